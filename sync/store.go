package sync

import (
	"context"
	"fmt"
	"io"
	"strconv"
	gosync "sync"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/sjson"
)

// UpsertAction reports what the destination store did with a record.
type UpsertAction string

const (
	ActionInserted UpsertAction = "inserted"
	ActionUpdated  UpsertAction = "updated"
)

// UpsertRequest carries one mapped record to the destination store. When
// Keys is supplied the store owns deduplication against them.
type UpsertRequest struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
	Tags []string               `json:"tags,omitempty"`
	Keys []string               `json:"keys,omitempty"`
}

// UpsertResult is the destination store's report for one upsert.
type UpsertResult struct {
	ID     string       `json:"id"`
	Action UpsertAction `json:"action"`
}

// Ref links a stored record back to its source system.
type Ref struct {
	System     string `json:"system"`
	ExternalID string `json:"externalId"`
	URL        string `json:"url,omitempty"`
}

// RecordStore is the destination for synced records. The engine does not
// pre-check existence - dedup semantics belong to the store.
type RecordStore interface {
	Upsert(ctx context.Context, req UpsertRequest) (UpsertResult, error)

	// FindByRef returns the record id for an external reference, or an
	// empty string when no record is linked to it.
	FindByRef(ctx context.Context, system string, externalID string) (string, error)

	AddRef(ctx context.Context, recordID string, ref Ref) error
}

// JSONLEmitter is a pass-through RecordStore that prints each record as one
// self-contained JSON line. Dedup is a best-effort in-memory map valid only
// for the current process lifetime, and ids are process-local sequence
// numbers.
type JSONLEmitter struct {
	Out io.Writer

	mu   gosync.Mutex
	seq  int
	seen map[string]string // dedup key -> record id
	refs map[string]string // "system:externalId" -> record id
}

// NewJSONLEmitter returns an emitter writing to out.
func NewJSONLEmitter(out io.Writer) *JSONLEmitter {
	return &JSONLEmitter{
		Out:  out,
		seen: make(map[string]string),
		refs: make(map[string]string),
	}
}

func (e *JSONLEmitter) Upsert(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := UpsertResult{Action: ActionInserted}
	for _, key := range req.Keys {
		if id, exists := e.seen[key]; exists {
			result.ID = id
			result.Action = ActionUpdated
			break
		}
	}
	if result.ID == "" {
		e.seq++
		result.ID = strconv.Itoa(e.seq)
	}
	for _, key := range req.Keys {
		e.seen[key] = result.ID
	}

	line, err := e.recordLine(req, result)
	if err != nil {
		return result, err
	}
	if _, err := fmt.Fprintln(e.Out, line); err != nil {
		return result, fmt.Errorf("failed to emit record %w", err)
	}
	return result, nil
}

func (e *JSONLEmitter) FindByRef(ctx context.Context, system string, externalID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refs[system+":"+externalID], nil
}

func (e *JSONLEmitter) AddRef(ctx context.Context, recordID string, ref Ref) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs[ref.System+":"+ref.ExternalID] = recordID

	line := "{}"
	var err error
	if line, err = sjson.Set(line, "kind", "ref"); err != nil {
		return err
	}
	if line, err = sjson.Set(line, "record", recordID); err != nil {
		return err
	}
	if line, err = sjson.Set(line, "system", ref.System); err != nil {
		return err
	}
	if line, err = sjson.Set(line, "externalId", ref.ExternalID); err != nil {
		return err
	}
	if ref.URL != "" {
		if line, err = sjson.Set(line, "url", ref.URL); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintln(e.Out, line); err != nil {
		return fmt.Errorf("failed to emit ref %w", err)
	}
	return nil
}

// recordLine builds the JSON line for one record. The record type is
// normalised to snake case so downstream consumers see consistent names.
func (e *JSONLEmitter) recordLine(req UpsertRequest, result UpsertResult) (string, error) {
	line := "{}"
	var err error
	if line, err = sjson.Set(line, "kind", "record"); err != nil {
		return "", err
	}
	if line, err = sjson.Set(line, "id", result.ID); err != nil {
		return "", err
	}
	if line, err = sjson.Set(line, "action", string(result.Action)); err != nil {
		return "", err
	}
	if line, err = sjson.Set(line, "type", strcase.ToSnake(req.Type)); err != nil {
		return "", err
	}
	if line, err = sjson.Set(line, "data", req.Data); err != nil {
		return "", err
	}
	if len(req.Tags) > 0 {
		if line, err = sjson.Set(line, "tags", req.Tags); err != nil {
			return "", err
		}
	}
	if line, err = sjson.Set(line, "keys", req.Keys); err != nil {
		return "", err
	}
	return line, nil
}
