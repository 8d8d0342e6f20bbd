package sync

import (
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// PaginationType identifies one of the supported pagination strategies.
type PaginationType string

const (
	PaginationCursor     PaginationType = "cursor"
	PaginationOffset     PaginationType = "offset"
	PaginationSyncToken  PaginationType = "sync-token"
	PaginationLinkHeader PaginationType = "link-header"
	PaginationPageNumber PaginationType = "page-number"
	PaginationNone       PaginationType = "none"
)

// DefaultPageSize is assumed for offset and page-number pagination when the
// mapping does not configure one. Short-page detection depends on it.
const DefaultPageSize = 100

// offsetContinue is the opaque continuation marker returned for offset and
// page-number pagination when a full page indicates more data. The real
// position is the orchestrator's running offset, not this value.
const offsetContinue = "continue"

// PaginationConfig describes how to page through one API's list endpoint.
// Which fields are required depends on Type: cursor and sync-token need
// ResponseField, offset and page-number need PageSize to detect the last page.
type PaginationConfig struct {
	Type          PaginationType `yaml:"type" json:"type"`
	RequestParam  string         `yaml:"requestParam" json:"requestParam,omitempty"`
	ResponseField string         `yaml:"responseField" json:"responseField,omitempty"`
	ItemsField    string         `yaml:"itemsField" json:"itemsField,omitempty"`
	PageSize      int            `yaml:"pageSize" json:"pageSize,omitempty"`
}

// EffectivePageSize returns the configured page size or DefaultPageSize.
func (c PaginationConfig) EffectivePageSize() int {
	if c.PageSize > 0 {
		return c.PageSize
	}
	return DefaultPageSize
}

// Page is the result of extracting one API response.
type Page struct {
	Items      []Source
	NextCursor string
	Done       bool
}

// ExtractPage pulls the item list and the next-page handle out of one raw
// API response. Response headers must have lower-cased keys (link-header
// pagination reads the "link" header).
func ExtractPage(response Source, headers map[string]string, config PaginationConfig) Page {
	page := Page{Items: extractItems(response, config)}

	switch config.Type {
	case PaginationCursor:
		page.NextCursor = resolveCursor(response, config.ResponseField)
		page.Done = page.NextCursor == ""
	case PaginationOffset, PaginationPageNumber:
		// Last-page detection is inferred from a short page - these APIs
		// have no explicit end marker.
		if len(page.Items) < config.EffectivePageSize() {
			page.Done = true
		} else {
			page.NextCursor = offsetContinue
		}
	case PaginationSyncToken:
		page.NextCursor = resolveCursor(response, config.ResponseField)
		page.Done = len(page.Items) == 0 && page.NextCursor == ""
	case PaginationLinkHeader:
		page.NextCursor = parseLinkHeader(headers["link"])
		page.Done = page.NextCursor == ""
	case PaginationNone:
		page.Done = true
	default:
		page.Done = true
	}

	return page
}

// ApplyCursor merges the next-page handle into a copy of the outgoing query
// parameters. For link-header pagination the cursor is itself the next full
// URL and is fetched directly, so no parameter is mutated here.
func ApplyCursor(params map[string]string, config PaginationConfig, cursor string, offset int) map[string]string {
	result := make(map[string]string, len(params)+1)
	for k, v := range params {
		result[k] = v
	}

	switch config.Type {
	case PaginationCursor, PaginationSyncToken:
		if cursor != "" && config.RequestParam != "" {
			result[config.RequestParam] = cursor
		}
	case PaginationOffset:
		if config.RequestParam != "" {
			result[config.RequestParam] = strconv.Itoa(offset)
		}
	case PaginationPageNumber:
		if config.RequestParam != "" {
			page := offset/config.EffectivePageSize() + 1
			result[config.RequestParam] = strconv.Itoa(page)
		}
	case PaginationLinkHeader, PaginationNone:
		// no parameter mutation
	}

	return result
}

func extractItems(response Source, config PaginationConfig) []Source {
	if config.ItemsField != "" {
		field := response.Get(config.ItemsField)
		if field.IsArray() {
			return field.Array()
		}
		return nil
	}
	if response.IsArray() {
		return response.Array()
	}
	return nil
}

// resolveCursor stringifies the next cursor/token from a response field.
// A missing or falsy value (null, false, 0, "") means there is no next page.
func resolveCursor(response Source, field string) string {
	if field == "" {
		return ""
	}
	result := response.data.Get(field)
	if !result.Exists() {
		return ""
	}
	switch result.Type {
	case gjson.Null, gjson.False:
		return ""
	case gjson.Number:
		if result.Num == 0 {
			return ""
		}
	case gjson.String:
		if result.Str == "" {
			return ""
		}
	}
	return result.String()
}

// parseLinkHeader extracts the rel="next" URL from an RFC 5988 Link header,
// e.g. `<https://api.x/next>; rel="next", <https://api.x/prev>; rel="prev"`.
// Returns an empty string when no next link is present.
func parseLinkHeader(value string) string {
	if value == "" {
		return ""
	}
	for _, link := range strings.Split(value, ",") {
		segments := strings.Split(link, ";")
		if len(segments) < 2 {
			continue
		}
		url := strings.Trim(strings.TrimSpace(segments[0]), "<>")
		for _, segment := range segments[1:] {
			rel := strings.TrimSpace(segment)
			if rel == `rel="next"` || rel == "rel=next" {
				return url
			}
		}
	}
	return ""
}
