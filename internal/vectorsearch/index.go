package vectorsearch

import "context"

// Index is the remote vector index capability the store delegates to.
// HTTPIndex implements it over REST, MemoryIndex in process.
type Index interface {
	Describe(ctx context.Context) (*IndexDetails, error)
	Upsert(ctx context.Context, rows []map[string]any) (*UpsertResponse, error)
	Delete(ctx context.Context, primaryKeys []string) error
	Query(ctx context.Context, req QueryRequest) (*QueryResponse, error)
}

// QueryRequest is one similarity query. Either QueryText, QueryVector or
// both (hybrid) are set.
type QueryRequest struct {
	Columns     []string
	QueryText   string
	QueryVector []float32
	Filters     map[string]any
	NumResults  int
	QueryType   string
}

// ColumnInfo names a result column.
type ColumnInfo struct {
	Name string `json:"name"`
}

// ResultManifest lists result columns. The last column is the score.
type ResultManifest struct {
	ColumnCount int          `json:"column_count,omitempty"`
	Columns     []ColumnInfo `json:"columns"`
}

// ResultData holds result rows aligned to the manifest.
type ResultData struct {
	RowCount  int     `json:"row_count,omitempty"`
	DataArray [][]any `json:"data_array"`
}

// QueryResponse is the raw answer to a QueryRequest.
type QueryResponse struct {
	Manifest ResultManifest `json:"manifest"`
	Result   ResultData     `json:"result"`
}

// columnIndex returns the position of name in the manifest, or -1.
func (r *QueryResponse) columnIndex(name string) int {
	for i, c := range r.Manifest.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// UpsertStatus is the outcome of an upsert.
type UpsertStatus string

const (
	UpsertSuccess        UpsertStatus = "SUCCESS"
	UpsertPartialSuccess UpsertStatus = "PARTIAL_SUCCESS"
	UpsertFailure        UpsertStatus = "FAILURE"
)

// UpsertResult details an upsert.
type UpsertResult struct {
	SuccessRowCount   int      `json:"success_row_count,omitempty"`
	FailedPrimaryKeys []string `json:"failed_primary_keys,omitempty"`
}

// UpsertResponse is returned by Index.Upsert.
type UpsertResponse struct {
	Status UpsertStatus `json:"status"`
	Result UpsertResult `json:"result"`
}
