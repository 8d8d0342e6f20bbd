package sync

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"
)

// maxEmptyPages bounds how many consecutive zero-item pages with a
// continuation token a run will tolerate. Some sync-token APIs hand back a
// fresh token with no items indefinitely; without a bound the run would
// spin forever.
const maxEmptyPages = 5

// Syncer drives one mapping's sync runs. Its collaborators are injected so
// it can be exercised with fakes.
type Syncer struct {
	Requester Requester
	Records   RecordStore
	States    StateStore
}

// RunOptions control a single run.
type RunOptions struct {
	// Full ignores all incremental state and persisted cursors, pulling
	// from the beginning.
	Full bool
}

// Result summarises one run. Failures are reported here rather than raised -
// a run always yields a Result.
type Result struct {
	RunID    string        `json:"runId"`
	Mapping  string        `json:"mapping"`
	Status   RunStatus     `json:"status"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Errors   int           `json:"errors"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Run executes one sync run for a mapping: resume or fresh start, page loop
// with per-page state checkpoints, per-item mapping and upsert with error
// isolation, and the end-of-run state transition.
func (s *Syncer) Run(ctx context.Context, m Mapping, opts RunOptions) Result {
	start := time.Now()
	result := Result{
		RunID:   uuid.NewString(),
		Mapping: m.Name,
		Status:  StatusRunning,
	}

	state, err := s.States.Load(m.Name)
	if err != nil {
		// do not write the default state back over whatever is on disk
		result.Errors++
		result.Status = StatusError
		result.Error = fmt.Sprintf("failed to load state %v", err)
		result.Duration = time.Since(start)
		return result
	}

	isFirstRun := state.LastSyncAt == nil
	cursor := ""
	offset := 0
	if !opts.Full && !isFirstRun && state.LastCursor != "" {
		// resume an interrupted run from its last page checkpoint
		cursor = state.LastCursor
		log.Printf("Resuming %s from cursor %q", m.Name, cursor)
	}

	state.Status = StatusRunning
	state.LastError = ""
	if err := s.States.Save(m.Name, state); err != nil {
		return s.fail(result, state, m, start, fmt.Errorf("failed to persist running state %w", err))
	}

	incremental := !isFirstRun && !opts.Full && m.Incremental != nil && state.LastSyncAt != nil
	emptyPages := 0

	for {
		resp, err := s.fetchPage(ctx, m, state, cursor, offset, incremental)
		if err != nil {
			return s.fail(result, state, m, start, err)
		}

		page := ExtractPage(resp.Body, resp.Headers, m.Pagination)
		for _, item := range page.Items {
			s.processItem(ctx, m, item, &result)
		}

		offset += len(page.Items)
		cursor = page.NextCursor
		state.LastCursor = cursor
		if err := s.States.Save(m.Name, state); err != nil {
			return s.fail(result, state, m, start, fmt.Errorf("failed to checkpoint state %w", err))
		}

		if page.Done {
			break
		}
		if len(page.Items) == 0 {
			emptyPages++
			if emptyPages >= maxEmptyPages {
				log.Printf("Warning: %s returned %d consecutive empty pages with a continuation token, stopping", m.Name, emptyPages)
				break
			}
		} else {
			emptyPages = 0
		}
	}

	if m.Incremental != nil && m.Incremental.Type == IncrementalSyncToken {
		state.SyncToken = cursor
	}
	now := time.Now().UTC()
	state.LastSyncAt = &now
	state.LastCursor = ""
	state.TotalSynced += result.New
	state.LastRunRecords = result.New + result.Updated
	state.Status = StatusCompleted
	state.LastError = ""
	if err := s.States.Save(m.Name, state); err != nil {
		return s.fail(result, state, m, start, fmt.Errorf("failed to persist completed state %w", err))
	}

	result.Status = StatusCompleted
	result.Duration = time.Since(start)
	return result
}

// fetchPage composes and issues the request for one page. For link-header
// pagination an in-flight cursor is the next full URL and is fetched
// directly.
func (s *Syncer) fetchPage(ctx context.Context, m Mapping, state State, cursor string, offset int, incremental bool) (Response, error) {
	if m.Pagination.Type == PaginationLinkHeader && cursor != "" {
		return s.Requester.FetchURL(ctx, cursor)
	}

	params := make(map[string]string, len(m.Request.Query))
	for k, v := range m.Request.Query {
		params[k] = v
	}
	if incremental {
		params = ApplyIncrementalFilter(params, m.Incremental, state)
	}
	params = ApplyCursor(params, m.Pagination, cursor, offset)

	body := m.Request.Body
	if strings.EqualFold(m.Request.Method, http.MethodPost) && m.Pagination.RequestParam != "" {
		// some APIs require the paging parameter in the body for
		// POST-based list endpoints
		if value, exists := params[m.Pagination.RequestParam]; exists {
			delete(params, m.Pagination.RequestParam)
			var err error
			body, err = setBodyParam(body, m.Pagination.RequestParam, value)
			if err != nil {
				return Response{}, fmt.Errorf("failed to set %s in request body %w", m.Pagination.RequestParam, err)
			}
		}
	}

	return s.Requester.Do(ctx, RequestSpec{
		Method:  m.Request.Method,
		Path:    m.Request.Path,
		Query:   params,
		Body:    body,
		Headers: m.Request.Headers,
	})
}

// setBodyParam writes a paging parameter into the raw JSON body template,
// keeping numeric offsets and page numbers as JSON numbers.
func setBodyParam(body string, param string, value string) (string, error) {
	if body == "" {
		body = "{}"
	}
	if n, err := strconv.Atoi(value); err == nil {
		return sjson.Set(body, param, n)
	}
	return sjson.Set(body, param, value)
}

// processItem maps and stores one item. Failures here are counted and the
// run moves on - per-item failure never aborts the run.
func (s *Syncer) processItem(ctx context.Context, m Mapping, item Source, result *Result) {
	externalID, ok := ExtractID(item, m.ExternalRef.IDField)
	if !ok {
		log.Printf("Warning: %s item has no value at id field %q, skipping", m.Name, m.ExternalRef.IDField)
		result.Errors++
		return
	}

	working := item
	if m.Detail != nil && m.Detail.Path != "" {
		// detail enrichment is best effort - on failure keep the list item
		detail, err := s.Requester.Do(ctx, RequestSpec{
			Method:  m.Detail.Method,
			Path:    strings.ReplaceAll(m.Detail.Path, "{id}", externalID),
			Headers: m.Request.Headers,
		})
		if err == nil {
			working = detail.Body
		} else {
			log.Printf("Warning: detail fetch failed for %s %s, using list item: %v", m.Name, externalID, err)
		}
	}

	data := MapFields(working, m.Record.Mapping)
	keys := BuildKeys(m.ExternalRef.System, externalID, m.Record.NaturalKeys, data)

	upsert, err := s.Records.Upsert(ctx, UpsertRequest{
		Type: m.Record.Type,
		Data: data,
		Tags: m.Record.Tags,
		Keys: keys,
	})
	if err != nil {
		log.Printf("Upsert failed for %s %s: %v", m.Name, externalID, err)
		result.Errors++
		return
	}
	switch upsert.Action {
	case ActionInserted:
		result.New++
	case ActionUpdated:
		result.Updated++
	default:
		result.Skipped++
	}

	ref := Ref{System: m.ExternalRef.System, ExternalID: externalID}
	if m.ExternalRef.URLTemplate != "" {
		// the URL is built against the original item, not the mapped data
		ref.URL = BuildExternalURL(m.ExternalRef.URLTemplate, item)
	}
	if err := s.Records.AddRef(ctx, upsert.ID, ref); err != nil {
		log.Printf("AddRef failed for %s %s: %v", m.Name, externalID, err)
		result.Errors++
	}
}

// fail marks the run and its state as errored, leaving LastCursor at its
// last checkpoint so the next invocation can resume.
func (s *Syncer) fail(result Result, state State, m Mapping, start time.Time, cause error) Result {
	log.Printf("Sync %s failed: %v", m.Name, cause)
	result.Errors++
	result.Status = StatusError
	result.Error = cause.Error()
	result.Duration = time.Since(start)

	state.Status = StatusError
	state.LastError = cause.Error()
	if err := s.States.Save(m.Name, state); err != nil {
		log.Printf("Warning: failed to persist error state for %s: %v", m.Name, err)
	}
	return result
}
