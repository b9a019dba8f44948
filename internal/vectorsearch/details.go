// Package vectorsearch adapts a remote vector index to a document-oriented
// similarity search interface. It validates the index configuration against
// the caller's embedder and columns once, at construction, then reshapes
// requests and responses.
package vectorsearch

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/hyperjump/aibridge/internal/apierr"
)

// IndexType distinguishes indexes synced from a source table from indexes
// written to directly.
type IndexType string

const (
	DeltaSync    IndexType = "DELTA_SYNC"
	DirectAccess IndexType = "DIRECT_ACCESS"
)

// EmbeddingSourceColumn is a text column the service embeds itself.
type EmbeddingSourceColumn struct {
	Name                       string `json:"name"`
	EmbeddingModelEndpointName string `json:"embedding_model_endpoint_name,omitempty"`
}

// EmbeddingVectorColumn is a column holding caller-computed vectors.
type EmbeddingVectorColumn struct {
	Name               string `json:"name"`
	EmbeddingDimension int    `json:"embedding_dimension,omitempty"`
}

// IndexSpec is the type-specific part of an index description.
type IndexSpec struct {
	EmbeddingSourceColumns []EmbeddingSourceColumn `json:"embedding_source_columns,omitempty"`
	EmbeddingVectorColumns []EmbeddingVectorColumn `json:"embedding_vector_columns,omitempty"`
	SchemaJSON             string                  `json:"schema_json,omitempty"`
}

// IndexDetails is the description of an index as returned by the service.
type IndexDetails struct {
	Name                  string     `json:"name"`
	EndpointName          string     `json:"endpoint_name,omitempty"`
	PrimaryKey            string     `json:"primary_key"`
	IndexType             IndexType  `json:"index_type"`
	DeltaSyncIndexSpec    *IndexSpec `json:"delta_sync_index_spec,omitempty"`
	DirectAccessIndexSpec *IndexSpec `json:"direct_access_index_spec,omitempty"`
}

// IsDeltaSync reports whether the index is synced from a source table.
func (d *IndexDetails) IsDeltaSync() bool { return d.IndexType == DeltaSync }

// IsDirectAccess reports whether the index accepts direct writes.
func (d *IndexDetails) IsDirectAccess() bool { return d.IndexType == DirectAccess }

// IsManagedEmbeddings reports whether the service computes embeddings from a
// source text column.
func (d *IndexDetails) IsManagedEmbeddings() bool {
	return d.IsDeltaSync() && len(d.spec().EmbeddingSourceColumns) > 0
}

func (d *IndexDetails) spec() IndexSpec {
	switch {
	case d.IsDeltaSync() && d.DeltaSyncIndexSpec != nil:
		return *d.DeltaSyncIndexSpec
	case d.IsDirectAccess() && d.DirectAccessIndexSpec != nil:
		return *d.DirectAccessIndexSpec
	}
	return IndexSpec{}
}

// EmbeddingSourceColumn returns the first managed source column.
func (d *IndexDetails) EmbeddingSourceColumn() (EmbeddingSourceColumn, bool) {
	cols := d.spec().EmbeddingSourceColumns
	if len(cols) == 0 {
		return EmbeddingSourceColumn{}, false
	}
	return cols[0], true
}

// EmbeddingVectorColumn returns the first self-managed vector column.
func (d *IndexDetails) EmbeddingVectorColumn() (EmbeddingVectorColumn, bool) {
	cols := d.spec().EmbeddingVectorColumns
	if len(cols) == 0 {
		return EmbeddingVectorColumn{}, false
	}
	return cols[0], true
}

// Schema returns the column-name to type map of a direct-access index, or
// nil when the index publishes none.
func (d *IndexDetails) Schema() (map[string]string, error) {
	raw := d.spec().SchemaJSON
	if !d.IsDirectAccess() || raw == "" {
		return nil, nil
	}
	var schema map[string]string
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, apierr.Wrap(apierr.Decode, "index schema", err)
	}
	return schema, nil
}

// ValidateIndexName checks the three-part "catalog.schema.name" form.
func ValidateIndexName(name string) error {
	if strings.Count(name, ".") != 2 {
		return apierr.Newf(apierr.Config, "index name must be in the format 'catalog.schema.name', got %q", name)
	}
	return nil
}

// TextColumn resolves the column holding document text. Managed-embedding
// indexes dictate it; other indexes need the caller to name it.
func TextColumn(textColumn string, d *IndexDetails) (string, error) {
	if d.IsManagedEmbeddings() {
		src, _ := d.EmbeddingSourceColumn()
		if textColumn != "" && textColumn != src.Name {
			return "", apierr.Newf(apierr.Config,
				"text column %q does not match the source column of index %q: %q", textColumn, d.Name, src.Name)
		}
		return src.Name, nil
	}
	if textColumn == "" {
		return "", apierr.New(apierr.Config, "text column is required for this index")
	}
	return textColumn, nil
}

// ReturnColumns completes the caller's column list with the primary key,
// text column, document URI and caller primary key, and checks them against
// the schema of a direct-access index.
func ReturnColumns(columns []string, textColumn string, d *IndexDetails, docURI, primaryKey string) ([]string, error) {
	out := slices.Clone(columns)
	for _, c := range []string{d.PrimaryKey, textColumn, docURI, primaryKey} {
		if c != "" && !slices.Contains(out, c) {
			out = append(out, c)
		}
	}

	schema, err := d.Schema()
	if err != nil {
		return nil, err
	}
	if schema != nil {
		var missing []string
		for _, c := range out {
			if _, ok := schema[c]; !ok {
				missing = append(missing, c)
			}
		}
		if len(missing) > 0 {
			return nil, apierr.Newf(apierr.Config, "columns not in the index schema: %s", strings.Join(missing, ", "))
		}
	}
	return out, nil
}

// validateEmbedding checks that an embedder is given exactly when the index
// needs caller-computed vectors, and that its dimension matches.
func validateEmbedding(dimensions int, hasEmbedder bool, d *IndexDetails) error {
	if d.IsManagedEmbeddings() {
		if hasEmbedder {
			return apierr.Newf(apierr.Config,
				"index %q uses managed embeddings; do not pass an embedder", d.Name)
		}
		return nil
	}
	if !hasEmbedder {
		return apierr.New(apierr.Config,
			"an embedder is required for a direct-access index or a delta-sync index with self-managed embeddings")
	}
	if col, ok := d.EmbeddingVectorColumn(); ok && col.EmbeddingDimension > 0 && col.EmbeddingDimension != dimensions {
		return apierr.Newf(apierr.Config,
			"embedder dimension %d does not match the index configuration %d", dimensions, col.EmbeddingDimension)
	}
	return nil
}

func unsupported(op, why string) error {
	return apierr.New(apierr.Unsupported, fmt.Sprintf("%s %s", op, why))
}

func unexpected(format string, args ...any) error {
	return apierr.Newf(apierr.Decode, format, args...)
}
