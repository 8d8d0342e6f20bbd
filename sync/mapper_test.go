package sync

import (
	"testing"
)

func TestMapFieldsIsTotal(t *testing.T) {
	item := ParseSource(`{"user":{"email":"jo@example.org","age":30},"status":null}`)
	mapping := map[string]string{
		"email":  "user.email",
		"age":    "user.age",
		"status": "status",
		"city":   "user.address.city",
		"origin": "`import`",
	}

	data := MapFields(item, mapping)

	if len(data) != len(mapping) {
		t.Errorf("Expected %d fields but have: %d", len(mapping), len(data))
	}
	if data["email"] != "jo@example.org" {
		t.Errorf("Expected email to map but have: %v", data["email"])
	}
	if data["age"] != float64(30) {
		t.Errorf("Expected age to map but have: %v", data["age"])
	}
	if data["status"] != nil {
		t.Errorf("Expected null source value to map to nil but have: %v", data["status"])
	}
	if data["city"] != nil {
		t.Errorf("Expected unresolved path to map to nil but have: %v", data["city"])
	}
	if data["origin"] != "import" {
		t.Errorf("Expected backtick value to map as a static string but have: %v", data["origin"])
	}
}

func TestExtractID(t *testing.T) {
	item := ParseSource(`{"id":123,"nested":{"uuid":"abc-1"}}`)

	if id, ok := ExtractID(item, "nested.uuid"); !ok || id != "abc-1" {
		t.Errorf("Expected id abc-1 but have: %s (%t)", id, ok)
	}
	if id, ok := ExtractID(item, "id"); !ok || id != "123" {
		t.Errorf("Expected numeric id to stringify but have: %s (%t)", id, ok)
	}
	if _, ok := ExtractID(item, "missing"); ok {
		t.Error("Expected missing id field to not resolve")
	}
	if _, ok := ExtractID(item, ""); ok {
		t.Error("Expected empty id field to not resolve")
	}
}

func TestBuildKeys(t *testing.T) {
	data := map[string]interface{}{
		"email": "jo@example.org",
		"phone": nil,
	}
	templates := []string{
		"email:{email}",
		"phone:{phone}",
		"combo:{email}:{phone}",
	}

	keys := BuildKeys("hubspot", "123", templates, data)

	expected := []string{"hubspot:123", "email:jo@example.org"}
	if len(keys) != len(expected) {
		t.Fatalf("Expected keys: %v but have: %v", expected, keys)
	}
	for i := range expected {
		if keys[i] != expected[i] {
			t.Errorf("Expected key %d to be %s but have: %s", i, expected[i], keys[i])
		}
	}
}

func TestBuildKeysMandatoryFirst(t *testing.T) {
	keys := BuildKeys("raisely", "u-1", nil, nil)
	if len(keys) != 1 || keys[0] != "raisely:u-1" {
		t.Errorf("Expected only the mandatory external ref key but have: %v", keys)
	}
}

func TestExpandKeyTemplate(t *testing.T) {
	data := map[string]interface{}{"email": "jo@example.org"}

	key := ExpandKeyTemplate("email:{email}", data)
	if key != "email:jo@example.org" {
		t.Errorf("Expected expanded key but have: %s", key)
	}

	key = ExpandKeyTemplate("email:{missing}", data)
	if validNaturalKey(key) {
		t.Errorf("Expected key with unresolved placeholder to be invalid but have: %s", key)
	}
}
