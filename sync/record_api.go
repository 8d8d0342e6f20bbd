package sync

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/carlmjohnson/requests"
)

// RecordAPI is the durable keyed RecordStore, backed by a records service
// over HTTP. The service owns record identity and dedup against the supplied
// keys.
type RecordAPI struct {
	Endpoint string
	APIKey   string

	RecordRequests bool
	RecordDir      string
}

// api returns a new requests.Builder configured for the records service.
func (r RecordAPI) api() *requests.Builder {
	result := requests.
		URL(r.Endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout})
	if r.RecordRequests {
		dir := r.RecordDir
		if dir == "" {
			dir = "testdata/.requests/records"
		}
		result = result.Transport(requests.Record(nil, dir))
	}
	if r.APIKey != "" {
		result = result.Header("X-Api-Key", r.APIKey)
	}
	return result
}

func (r RecordAPI) Upsert(ctx context.Context, req UpsertRequest) (UpsertResult, error) {
	var result UpsertResult
	apiError := APIError{}
	err := r.api().
		Path("/v1/records/upsert").
		BodyJSON(&req).
		ToJSON(&result).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("Records API Error: %+v", apiError)
		return result, fmt.Errorf("upsert failed %w", err)
	}
	return result, nil
}

func (r RecordAPI) FindByRef(ctx context.Context, system string, externalID string) (string, error) {
	response := struct {
		ID string `json:"id"`
	}{}
	apiError := APIError{}
	err := r.api().
		Path("/v1/refs/find").
		Param("system", system).
		Param("externalId", externalID).
		ToJSON(&response).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		if requests.HasStatusErr(err, http.StatusNotFound) {
			return "", nil
		}
		log.Printf("Records API Error: %+v", apiError)
		return "", fmt.Errorf("ref lookup failed %w", err)
	}
	return response.ID, nil
}

func (r RecordAPI) AddRef(ctx context.Context, recordID string, ref Ref) error {
	apiError := APIError{}
	err := r.api().
		Pathf("/v1/records/%s/refs", recordID).
		BodyJSON(&ref).
		ErrorJSON(&apiError).
		Fetch(ctx)
	if err != nil {
		log.Printf("Records API Error: %+v", apiError)
		return fmt.Errorf("ref attach failed %w", err)
	}
	return nil
}
