package sync

import (
	"fmt"
	"regexp"

	"github.com/tidwall/gjson"
)

// Source wraps a parsed JSON document and provides path-based access to it.
// Paths are dot separated, array elements are addressed by numeric segments
// (e.g. "values.name.0.full_name"). Lookups never panic - a path through a
// null or non-object intermediate simply does not resolve.
type Source struct {
	data gjson.Result
}

// ParseSource parses raw JSON into a Source. Invalid JSON yields a Source
// that resolves nothing.
func ParseSource(json string) Source {
	return Source{data: gjson.Parse(json)}
}

// Resolve returns the value at path and whether it resolved.
// JSON null values are reported as unresolved.
func (s Source) Resolve(path string) (interface{}, bool) {
	result := s.data.Get(path)
	if !result.Exists() || result.Value() == nil {
		return nil, false
	}
	return result.Value(), true
}

// StringForPath returns the value at path in its string form.
func (s Source) StringForPath(path string) (string, bool) {
	result := s.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

// IntForPath returns the value at path as an int64.
func (s Source) IntForPath(path string) (int64, bool) {
	result := s.data.Get(path)
	return result.Int(), result.Exists() && (result.Value() != nil)
}

// BoolForPath returns the value at path as a bool.
func (s Source) BoolForPath(path string) (bool, bool) {
	result := s.data.Get(path)
	return result.Bool(), result.Exists() && (result.Value() != nil)
}

// Get returns the Source at path, which may resolve nothing.
func (s Source) Get(path string) Source {
	return Source{data: s.data.Get(path)}
}

// IsArray reports whether the underlying value is a JSON array.
func (s Source) IsArray() bool {
	return s.data.IsArray()
}

// Array returns the elements of the underlying JSON array,
// or nil if the value is not an array.
func (s Source) Array() []Source {
	if !s.data.IsArray() {
		return nil
	}
	elements := s.data.Array()
	result := make([]Source, len(elements))
	for i, e := range elements {
		result[i] = Source{data: e}
	}
	return result
}

// Raw returns the raw JSON of the underlying value.
func (s Source) Raw() string {
	return s.data.Raw
}

func (s Source) Data() map[string]interface{} {
	if v := s.data.Value(); v != nil {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}

var placeholderPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// BuildExternalURL substitutes every {path} placeholder in template with the
// stringified resolution of that path against item. Placeholders that do not
// resolve are replaced with an empty string.
func BuildExternalURL(template string, item Source) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := match[1 : len(match)-1]
		if v, ok := item.Resolve(path); ok {
			return fmt.Sprintf("%v", v)
		}
		return ""
	})
}
