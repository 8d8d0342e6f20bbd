// Package sync pulls paginated records from arbitrary external APIs through
// a passthrough endpoint, maps each item's fields via a declarative mapping
// and persists enough state per mapping to resume or re-run incrementally.
// The mapping configuration, not code, determines behaviour per integration.
package sync

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// MappingDocRow is a single row in the mapping documentation.
type MappingDocRow struct {
	TargetField string // Output field name in the mapped record
	SourcePath  string // Dot path resolved against the source item
	Notes       string // Static literals, modifiers, natural-key usage
}

// MappingDocumentation contains the field documentation for one mapping.
type MappingDocumentation struct {
	Mapping    string
	Platform   string
	RecordType string
	Rows       []MappingDocRow
}

// DescribeMapping generates field documentation from a mapping.
// Rows are sorted by target field for deterministic output.
func DescribeMapping(m Mapping) MappingDocumentation {
	doc := MappingDocumentation{
		Mapping:    m.Name,
		Platform:   m.Platform,
		RecordType: m.Record.Type,
		Rows:       []MappingDocRow{},
	}

	naturalKeyFields := collectNaturalKeyFields(m.Record.NaturalKeys)

	for _, field := range sortedKeys(m.Record.Mapping) {
		path := m.Record.Mapping[field]
		row := MappingDocRow{TargetField: field}

		var notes []string
		if len(path) >= 2 && path[0] == '`' && path[len(path)-1] == '`' {
			row.SourcePath = "(static)"
			notes = append(notes, fmt.Sprintf("Static value %q", path[1:len(path)-1]))
		} else {
			sourcePath, modifiers := parseSourcePath(path)
			row.SourcePath = sourcePath
			for _, modifier := range modifiers {
				notes = append(notes, fmt.Sprintf("Uses %s modifier", modifier))
			}
		}
		if naturalKeyFields[field] {
			notes = append(notes, "Natural key field")
		}
		row.Notes = strings.Join(notes, " | ")

		doc.Rows = append(doc.Rows, row)
	}

	doc.Rows = append(doc.Rows, MappingDocRow{
		TargetField: "(external id)",
		SourcePath:  m.ExternalRef.IDField,
		Notes:       fmt.Sprintf("Dedup key %s:<id>", m.ExternalRef.System),
	})

	return doc
}

// parseSourcePath splits a mapping value into the plain source path and any
// inline gjson modifiers, e.g. "user.country|@countryName" ->
// ("user.country", ["@countryName"]).
func parseSourcePath(value string) (string, []string) {
	parts := strings.Split(value, "|")
	sourcePath := parts[0]
	var modifiers []string
	for _, part := range parts[1:] {
		if strings.HasPrefix(part, "@") {
			modifiers = append(modifiers, part)
		}
	}
	return sourcePath, modifiers
}

// collectNaturalKeyFields returns the set of mapped fields referenced by
// natural-key templates.
func collectNaturalKeyFields(templates []string) map[string]bool {
	result := make(map[string]bool)
	for _, t := range templates {
		for _, match := range placeholderPattern.FindAllStringSubmatch(t, -1) {
			result[match[1]] = true
		}
	}
	return result
}

// sortedKeys returns the keys of a map[string]string in sorted order.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{fmt.Sprintf("# Mapping: %s (%s -> %s)", d.Mapping, d.Platform, d.RecordType)}); err != nil {
		return "", err
	}
	if err := writer.Write([]string{"Target Field", "Source Path", "Notes"}); err != nil {
		return "", err
	}
	for _, row := range d.Rows {
		if err := writer.Write([]string{row.TargetField, row.SourcePath, row.Notes}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
