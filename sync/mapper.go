package sync

import (
	"fmt"
	"strings"
)

// MapFields applies a mapping table (target field -> source path) to one item.
// Every key in the table appears in the result; the value is nil when the
// source path did not resolve. Mapping values escaped in backticks are static
// strings rather than paths - this allows a mapping to inject constants.
func MapFields(item Source, mapping map[string]string) map[string]interface{} {
	data := make(map[string]interface{}, len(mapping))
	for field, path := range mapping {
		if len(path) >= 2 && path[0] == '`' && path[len(path)-1] == '`' {
			data[field] = path[1 : len(path)-1]
			continue
		}
		if result, exists := item.Resolve(path); exists {
			data[field] = result
		} else {
			data[field] = nil
		}
	}
	return data
}

// ExtractID resolves the external id of an item. The id is the mandatory
// first dedup key and the join key for detail fetches, so an item without
// one cannot be synced.
func ExtractID(item Source, idField string) (string, bool) {
	if idField == "" {
		return "", false
	}
	result, exists := item.StringForPath(idField)
	if !exists || result == "" {
		return "", false
	}
	return result, true
}

// ExpandKeyTemplate substitutes {field} placeholders in a natural-key
// template with values from already-mapped data. Missing or nil fields
// substitute to an empty string.
func ExpandKeyTemplate(template string, data map[string]interface{}) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		field := match[1 : len(match)-1]
		if v, exists := data[field]; exists && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return ""
	})
}

// validNaturalKey reports whether an expanded key template produced a usable
// dedup key. A run of "::" or a trailing ":" indicates a placeholder that
// substituted to nothing, so the key is dropped rather than emitted malformed.
func validNaturalKey(key string) bool {
	if key == "" {
		return false
	}
	return !strings.Contains(key, "::") && !strings.HasSuffix(key, ":")
}

// BuildKeys derives the ordered dedup key list for one record. The first key
// is always "system:externalId"; natural-key templates are expanded against
// the mapped data and included only when they fully resolve.
func BuildKeys(system string, externalID string, templates []string, data map[string]interface{}) []string {
	keys := []string{fmt.Sprintf("%s:%s", system, externalID)}
	for _, t := range templates {
		key := ExpandKeyTemplate(t, data)
		if validNaturalKey(key) {
			keys = append(keys, key)
		}
	}
	return keys
}
