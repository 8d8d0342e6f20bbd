package sync

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestJSONLEmitterUpsertDedup(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONLEmitter(&buf)
	ctx := context.Background()

	first, err := emitter.Upsert(ctx, UpsertRequest{
		Type: "contact",
		Data: map[string]interface{}{"email": "jo@example.org"},
		Keys: []string{"hubspot:1", "email:jo@example.org"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if first.Action != ActionInserted || first.ID != "1" {
		t.Errorf("Expected first upsert inserted with id 1 but have: %+v", first)
	}

	second, err := emitter.Upsert(ctx, UpsertRequest{
		Type: "contact",
		Data: map[string]interface{}{"email": "jo@example.org"},
		Keys: []string{"hubspot:1"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if second.Action != ActionUpdated || second.ID != first.ID {
		t.Errorf("Expected second upsert updated with same id but have: %+v", second)
	}

	// dedup also matches on the natural key alone
	third, err := emitter.Upsert(ctx, UpsertRequest{
		Type: "contact",
		Data: map[string]interface{}{"email": "jo@example.org"},
		Keys: []string{"other:99", "email:jo@example.org"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if third.Action != ActionUpdated {
		t.Errorf("Expected natural key match to update but have: %+v", third)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 emitted lines but have: %d", len(lines))
	}
	for _, line := range lines {
		if !gjson.Valid(line) {
			t.Errorf("Expected a self-contained JSON line but have: %s", line)
		}
	}
	if gjson.Get(lines[0], "action").String() != "inserted" {
		t.Errorf("Expected first line action inserted but have: %s", lines[0])
	}
	if gjson.Get(lines[0], "data.email").String() != "jo@example.org" {
		t.Errorf("Expected mapped data on the line but have: %s", lines[0])
	}
	if gjson.Get(lines[1], "action").String() != "updated" {
		t.Errorf("Expected second line action updated but have: %s", lines[1])
	}
}

func TestJSONLEmitterTypeNormalisation(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONLEmitter(&buf)

	if _, err := emitter.Upsert(context.Background(), UpsertRequest{
		Type: "SupportTicket",
		Data: map[string]interface{}{},
		Keys: []string{"desk:1"},
	}); err != nil {
		t.Fatal(err)
	}
	if got := gjson.Get(strings.TrimSpace(buf.String()), "type").String(); got != "support_ticket" {
		t.Errorf("Expected snake case record type but have: %s", got)
	}
}

func TestJSONLEmitterRefs(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewJSONLEmitter(&buf)
	ctx := context.Background()

	result, err := emitter.Upsert(ctx, UpsertRequest{Type: "contact", Data: map[string]interface{}{}, Keys: []string{"hubspot:7"}})
	if err != nil {
		t.Fatal(err)
	}
	if err := emitter.AddRef(ctx, result.ID, Ref{System: "hubspot", ExternalID: "7", URL: "https://app.hubspot.com/7"}); err != nil {
		t.Fatal(err)
	}

	id, err := emitter.FindByRef(ctx, "hubspot", "7")
	if err != nil {
		t.Fatal(err)
	}
	if id != result.ID {
		t.Errorf("Expected FindByRef to return %s but have: %s", result.ID, id)
	}

	id, err = emitter.FindByRef(ctx, "hubspot", "999")
	if err != nil {
		t.Fatal(err)
	}
	if id != "" {
		t.Errorf("Expected empty id for an unknown ref but have: %s", id)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected record and ref lines but have: %d", len(lines))
	}
	if gjson.Get(lines[1], "kind").String() != "ref" || gjson.Get(lines[1], "url").String() != "https://app.hubspot.com/7" {
		t.Errorf("Expected ref line with url but have: %s", lines[1])
	}
}
