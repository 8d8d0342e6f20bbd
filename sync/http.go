package sync

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
)

// HTTPRequestTimeout is the default timeout for all HTTP requests to external APIs.
const HTTPRequestTimeout = 60 * time.Second

// RequestSpec describes one upstream request composed from a mapping's
// request template plus the pagination and incremental parameters.
type RequestSpec struct {
	Method  string
	Path    string
	Query   map[string]string
	Body    string
	Headers map[string]string
}

// Response is one upstream response: parsed body, lower-cased headers and
// the HTTP status.
type Response struct {
	Body    Source
	Headers map[string]string
	Status  int
}

// Requester is the upstream request capability consumed by the orchestrator.
// FetchURL exists for link-header continuation, where the cursor is itself
// the next full URL rather than a path+params composition.
type Requester interface {
	Do(ctx context.Context, spec RequestSpec) (Response, error)
	FetchURL(ctx context.Context, url string) (Response, error)
}

// APIError captures an upstream error body.
type APIError map[string]interface{}

// Client makes passthrough requests to a third-party API via a proxy
// endpoint, authenticated by connection/action identifiers rather than
// direct credentials.
type Client struct {
	Endpoint     string
	Token        string
	ConnectionID string
	ActionID     string

	// RecordRequests captures wire traffic under testdata/.requests for
	// fixture authoring.
	RecordRequests bool
	RecordDir      string
}

// builder returns a new requests.Builder for the given base URL with the
// identifying headers applied.
func (c Client) builder(base string) *requests.Builder {
	result := requests.
		URL(base).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if c.RecordRequests {
		dir := c.RecordDir
		if dir == "" {
			dir = "testdata/.requests"
		}
		result = result.Transport(requests.Record(nil, dir))
	}
	if c.Token != "" {
		result = result.Bearer(c.Token)
	}
	if c.ConnectionID != "" {
		result = result.Header("X-Connection-Id", c.ConnectionID)
	}
	if c.ActionID != "" {
		result = result.Header("X-Action-Id", c.ActionID)
	}
	return result
}

func (c Client) Do(ctx context.Context, spec RequestSpec) (Response, error) {
	b := c.builder(c.Endpoint).Path(spec.Path)
	method := spec.Method
	if method == "" {
		method = http.MethodGet
	}
	b = b.Method(strings.ToUpper(method))
	for k, v := range spec.Query {
		b = b.Param(k, v)
	}
	for k, v := range spec.Headers {
		b = b.Header(k, v)
	}
	if spec.Body != "" {
		b = b.BodyBytes([]byte(spec.Body)).ContentType("application/json")
	}
	return c.fetch(ctx, b)
}

func (c Client) FetchURL(ctx context.Context, url string) (Response, error) {
	return c.fetch(ctx, c.builder(url))
}

func (c Client) fetch(ctx context.Context, b *requests.Builder) (Response, error) {
	var resp Response
	apiError := APIError{}
	err := b.
		Handle(func(r *http.Response) error {
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				return err
			}
			resp.Status = r.StatusCode
			resp.Headers = lowerHeaders(r.Header)
			resp.Body = ParseSource(string(raw))
			return nil
		}).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("Upstream Error: %+v", apiError)
		return resp, fmt.Errorf("upstream request failed (detail: %+v) %w", apiError, err)
	}
	return resp, nil
}

func lowerHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) > 0 {
			result[strings.ToLower(k)] = values[0]
		}
	}
	return result
}
