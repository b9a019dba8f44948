package vectorsearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/hyperjump/aibridge/internal/apierr"
	"github.com/hyperjump/aibridge/internal/workspace"
)

// HTTPIndex implements Index against the workspace vector search REST API.
type HTTPIndex struct {
	ws   *workspace.Client
	name string
}

// NewHTTPIndex returns an index client for the fully qualified index name.
func NewHTTPIndex(ws *workspace.Client, name string) (*HTTPIndex, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}
	return &HTTPIndex{ws: ws, name: name}, nil
}

func (h *HTTPIndex) path() string {
	return "/api/2.0/vector-search/indexes/" + url.PathEscape(h.name)
}

// Describe fetches the index description.
func (h *HTTPIndex) Describe(ctx context.Context) (*IndexDetails, error) {
	var d IndexDetails
	if err := h.ws.Do(ctx, http.MethodGet, h.path(), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert writes rows, each a column-name to value map.
func (h *HTTPIndex) Upsert(ctx context.Context, rows []map[string]any) (*UpsertResponse, error) {
	inputs, err := json.Marshal(rows)
	if err != nil {
		return nil, apierr.Wrap(apierr.Decode, "encode upsert rows", err)
	}
	var out UpsertResponse
	body := map[string]string{"inputs_json": string(inputs)}
	if err := h.ws.Do(ctx, http.MethodPost, h.path()+"/upsert-data", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes rows by primary key.
func (h *HTTPIndex) Delete(ctx context.Context, primaryKeys []string) error {
	body := map[string][]string{"primary_keys": primaryKeys}
	return h.ws.Do(ctx, http.MethodDelete, h.path()+"/delete-data", body, nil)
}

type queryBody struct {
	Columns     []string  `json:"columns"`
	QueryText   string    `json:"query_text,omitempty"`
	QueryVector []float32 `json:"query_vector,omitempty"`
	FiltersJSON string    `json:"filters_json,omitempty"`
	NumResults  int       `json:"num_results"`
	QueryType   string    `json:"query_type,omitempty"`
}

// Query runs a similarity query.
func (h *HTTPIndex) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	body := queryBody{
		Columns:     req.Columns,
		QueryText:   req.QueryText,
		QueryVector: req.QueryVector,
		NumResults:  req.NumResults,
		QueryType:   req.QueryType,
	}
	if len(req.Filters) > 0 {
		filters, err := json.Marshal(req.Filters)
		if err != nil {
			return nil, apierr.Wrap(apierr.Config, "encode filters", err)
		}
		body.FiltersJSON = string(filters)
	}
	var out QueryResponse
	if err := h.ws.Do(ctx, http.MethodPost, h.path()+"/query", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
