package sync

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testMappingYAML = `name: crm-contacts
platform: hubspot
connection: conn-1
action: act-1
request:
  method: GET
  path: /crm/v3/objects/contacts
  query:
    limit: "100"
pagination:
  type: cursor
  requestParam: after
  responseField: paging.next.after
  itemsField: results
detail:
  path: /crm/v3/objects/contacts/{id}
record:
  type: contact
  mapping:
    email: properties.email
    name: properties.firstname
  tags:
    - crm
  naturalKeys:
    - "email:{email}"
externalRef:
  system: hubspot
  idField: id
  urlTemplate: https://app.hubspot.com/contacts/{id}
incremental:
  type: query-filter
  param: filter
  template: updatedAt>{lastSyncAt}
`

func mappingFileFromString(name string, yaml string) MappingFile {
	return MappingFile{Name: name, Reader: strings.NewReader(yaml), Length: len(yaml)}
}

func TestUnmarshalMapping(t *testing.T) {
	m, err := UnmarshalMapping(mappingFileFromString("test", testMappingYAML))
	if err != nil {
		t.Fatal(err)
	}

	if m.Name != "crm-contacts" || m.Platform != "hubspot" {
		t.Errorf("Expected mapping identity but have: %+v", m)
	}
	if m.ConnectionID != "conn-1" || m.ActionID != "act-1" {
		t.Errorf("Expected connection/action identifiers but have: %+v", m)
	}
	if m.Request.Method != "GET" || m.Request.Path != "/crm/v3/objects/contacts" {
		t.Errorf("Expected request template but have: %+v", m.Request)
	}
	if m.Request.Query["limit"] != "100" {
		t.Errorf("Expected static query params but have: %v", m.Request.Query)
	}
	if m.Pagination.Type != PaginationCursor || m.Pagination.RequestParam != "after" ||
		m.Pagination.ResponseField != "paging.next.after" || m.Pagination.ItemsField != "results" {
		t.Errorf("Expected pagination config but have: %+v", m.Pagination)
	}
	if m.Detail == nil || m.Detail.Path != "/crm/v3/objects/contacts/{id}" {
		t.Errorf("Expected detail config but have: %+v", m.Detail)
	}
	if m.Record.Type != "contact" || m.Record.Mapping["email"] != "properties.email" {
		t.Errorf("Expected record config but have: %+v", m.Record)
	}
	if len(m.Record.NaturalKeys) != 1 || m.Record.NaturalKeys[0] != "email:{email}" {
		t.Errorf("Expected natural key templates but have: %v", m.Record.NaturalKeys)
	}
	if m.ExternalRef.System != "hubspot" || m.ExternalRef.IDField != "id" {
		t.Errorf("Expected external ref config but have: %+v", m.ExternalRef)
	}
	if m.Incremental == nil || m.Incremental.Type != IncrementalQueryFilter ||
		m.Incremental.Template != "updatedAt>{lastSyncAt}" {
		t.Errorf("Expected incremental config but have: %+v", m.Incremental)
	}
}

func TestUnmarshalMappingOptionalSections(t *testing.T) {
	yaml := `name: minimal
request:
  path: /things
record:
  type: thing
  mapping:
    id: id
externalRef:
  system: things
  idField: id
`
	m, err := UnmarshalMapping(mappingFileFromString("minimal", yaml))
	if err != nil {
		t.Fatal(err)
	}
	if m.Detail != nil || m.Incremental != nil {
		t.Errorf("Expected absent optional sections to stay nil but have: %+v", m)
	}
	if m.Pagination.Type != PaginationNone {
		t.Errorf("Expected pagination to default to none but have: %q", m.Pagination.Type)
	}
}

func TestFindMappingFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "crm-contacts.yaml"), []byte(testMappingYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a mapping"), 0o644); err != nil {
		t.Fatal(err)
	}

	path, err := FindMappingFile(dir, "crm-contacts")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "crm-contacts.yaml" {
		t.Errorf("Expected crm-contacts.yaml but have: %s", path)
	}

	if _, err := FindMappingFile(dir, "unknown"); err == nil {
		t.Error("Expected an error for an unknown mapping")
	}

	// multiple matches are not supported - guard against misconfiguration
	if err := os.WriteFile(filepath.Join(dir, "crm-contacts.dev.yaml"), []byte(testMappingYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := FindMappingFile(dir, "crm-contacts"); err == nil {
		t.Error("Expected an error for ambiguous mapping files")
	}
}

func TestLoadMappingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unnamed.yaml")
	yaml := `request:
  path: /things
record:
  type: thing
  mapping:
    id: id
externalRef:
  system: things
  idField: id
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMappingFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "unnamed" {
		t.Errorf("Expected the mapping name to default from the filename but have: %q", m.Name)
	}
}
