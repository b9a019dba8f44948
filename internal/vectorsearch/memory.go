package vectorsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/hyperjump/aibridge/internal/apierr"
	"github.com/hyperjump/aibridge/pkg/utils"
)

// scoreColumn is appended to every query result.
const scoreColumn = "score"

// MemoryIndex is an in-process direct-access index using brute-force cosine
// search. Suitable for tests and small local collections.
type MemoryIndex struct {
	details      IndexDetails
	vectorColumn string
	dimensions   int

	mu   sync.RWMutex
	ids  []string
	rows []map[string]any
	vecs [][]float32
}

// NewMemoryIndex creates an empty index. schema, when non-nil, maps column
// names to types and is published through Describe.
func NewMemoryIndex(name, primaryKey, vectorColumn string, dimensions int, schema map[string]string) (*MemoryIndex, error) {
	if err := ValidateIndexName(name); err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		return nil, apierr.New(apierr.Config, "dimensions must be positive")
	}
	if primaryKey == "" || vectorColumn == "" {
		return nil, apierr.New(apierr.Config, "primary key and vector column are required")
	}
	spec := &IndexSpec{
		EmbeddingVectorColumns: []EmbeddingVectorColumn{{Name: vectorColumn, EmbeddingDimension: dimensions}},
	}
	if schema != nil {
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, apierr.Wrap(apierr.Config, "encode schema", err)
		}
		spec.SchemaJSON = string(raw)
	}
	return &MemoryIndex{
		details: IndexDetails{
			Name:                  name,
			EndpointName:          "memory",
			PrimaryKey:            primaryKey,
			IndexType:             DirectAccess,
			DirectAccessIndexSpec: spec,
		},
		vectorColumn: vectorColumn,
		dimensions:   dimensions,
	}, nil
}

// Describe returns the index description.
func (m *MemoryIndex) Describe(context.Context) (*IndexDetails, error) {
	d := m.details
	return &d, nil
}

// Upsert inserts or replaces rows by primary key. Rows without a key or with
// a vector of the wrong dimension are reported as failed.
func (m *MemoryIndex) Upsert(_ context.Context, rows []map[string]any) (*UpsertResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []string
	ok := 0
	for _, row := range rows {
		rawID, present := row[m.details.PrimaryKey]
		if !present || rawID == nil {
			failed = append(failed, "")
			continue
		}
		id := fmt.Sprint(rawID)
		vec, err := toVector(row[m.vectorColumn])
		if err != nil || len(vec) != m.dimensions {
			failed = append(failed, id)
			continue
		}
		stored := make(map[string]any, len(row))
		for k, v := range row {
			stored[k] = v
		}
		stored[m.vectorColumn] = vec
		if i := m.position(id); i >= 0 {
			m.rows[i], m.vecs[i] = stored, vec
		} else {
			m.ids = append(m.ids, id)
			m.rows = append(m.rows, stored)
			m.vecs = append(m.vecs, vec)
		}
		ok++
	}

	resp := &UpsertResponse{Status: UpsertSuccess, Result: UpsertResult{SuccessRowCount: ok, FailedPrimaryKeys: failed}}
	switch {
	case len(failed) > 0 && ok == 0:
		resp.Status = UpsertFailure
	case len(failed) > 0:
		resp.Status = UpsertPartialSuccess
	}
	return resp, nil
}

func (m *MemoryIndex) position(id string) int {
	for i, existing := range m.ids {
		if existing == id {
			return i
		}
	}
	return -1
}

// Delete removes rows by primary key. Unknown keys are ignored.
func (m *MemoryIndex) Delete(_ context.Context, primaryKeys []string) error {
	remove := make(map[string]bool, len(primaryKeys))
	for _, id := range primaryKeys {
		remove[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.ids))
	rows := make([]map[string]any, 0, len(m.rows))
	vecs := make([][]float32, 0, len(m.vecs))
	for i, id := range m.ids {
		if !remove[id] {
			ids = append(ids, id)
			rows = append(rows, m.rows[i])
			vecs = append(vecs, m.vecs[i])
		}
	}
	m.ids, m.rows, m.vecs = ids, rows, vecs
	return nil
}

// Query returns the NumResults rows most similar to QueryVector among those
// matching Filters. A filter value that is a slice matches any of its
// elements; anything else matches by equality.
func (m *MemoryIndex) Query(_ context.Context, req QueryRequest) (*QueryResponse, error) {
	if req.QueryVector == nil {
		return nil, unsupported("text query", "requires a query vector on a memory index")
	}
	if len(req.QueryVector) != m.dimensions {
		return nil, apierr.Newf(apierr.Config, "query dimension mismatch: got %d, expected %d", len(req.QueryVector), m.dimensions)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	type scored struct {
		row   int
		score float64
	}
	hits := make([]scored, 0, len(m.rows))
	for i, row := range m.rows {
		if !matches(row, req.Filters) {
			continue
		}
		hits = append(hits, scored{row: i, score: utils.Cosine(req.QueryVector, m.vecs[i])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if req.NumResults >= 0 && req.NumResults < len(hits) {
		hits = hits[:req.NumResults]
	}

	resp := &QueryResponse{}
	for _, c := range req.Columns {
		resp.Manifest.Columns = append(resp.Manifest.Columns, ColumnInfo{Name: c})
	}
	resp.Manifest.Columns = append(resp.Manifest.Columns, ColumnInfo{Name: scoreColumn})
	resp.Manifest.ColumnCount = len(resp.Manifest.Columns)
	for _, h := range hits {
		row := make([]any, 0, len(req.Columns)+1)
		for _, c := range req.Columns {
			row = append(row, m.rows[h.row][c])
		}
		row = append(row, h.score)
		resp.Result.DataArray = append(resp.Result.DataArray, row)
	}
	resp.Result.RowCount = len(hits)
	return resp, nil
}

// Size returns the number of stored rows.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

func matches(row map[string]any, filters map[string]any) bool {
	for col, want := range filters {
		got := row[col]
		rv := reflect.ValueOf(want)
		if rv.Kind() == reflect.Slice {
			found := false
			for i := 0; i < rv.Len(); i++ {
				if equalValues(got, rv.Index(i).Interface()) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !equalValues(got, want) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
