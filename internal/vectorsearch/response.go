package vectorsearch

import (
	"fmt"
	"slices"
)

// Metadata keys that replace the configured doc URI and primary key columns.
const (
	MetadataDocURI  = "doc_uri"
	MetadataChunkID = "chunk_id"
	MetadataScore   = "score"
)

// Document is one retrieved text with its metadata columns.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata"`
}

// ScoredDocument pairs a Document with its similarity score.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// RetrieverSchema says which result columns play which role.
type RetrieverSchema struct {
	TextColumn   string   `json:"text_column"`
	DocURI       string   `json:"doc_uri,omitempty"`
	PrimaryKey   string   `json:"primary_key,omitempty"`
	OtherColumns []string `json:"other_columns,omitempty"`
}

// ParseResponse maps result rows to documents. The text column becomes the
// page content, the last column is the score and every other column not in
// ignore becomes metadata. The doc URI and primary key columns are renamed to
// MetadataDocURI and MetadataChunkID. With includeScore the score is also
// copied into the metadata.
func ParseResponse(resp *QueryResponse, schema RetrieverSchema, ignore []string, includeScore bool) ([]ScoredDocument, error) {
	cols := resp.Manifest.Columns
	if len(cols) == 0 {
		return nil, nil
	}
	textIdx := resp.columnIndex(schema.TextColumn)
	if textIdx < 0 {
		return nil, unexpected("text column %q missing from result", schema.TextColumn)
	}

	docs := make([]ScoredDocument, 0, len(resp.Result.DataArray))
	for r, row := range resp.Result.DataArray {
		if len(row) != len(cols) {
			return nil, unexpected("row %d has %d cells, want %d", r, len(row), len(cols))
		}
		score, _ := toFloat(row[len(row)-1])

		meta := make(map[string]any)
		for i, c := range cols[:len(cols)-1] {
			if i == textIdx || slices.Contains(ignore, c.Name) {
				continue
			}
			key := c.Name
			switch key {
			case schema.DocURI:
				key = MetadataDocURI
			case schema.PrimaryKey:
				key = MetadataChunkID
			}
			meta[key] = row[i]
		}
		if includeScore {
			meta[MetadataScore] = score
		}

		docs = append(docs, ScoredDocument{
			Document: Document{PageContent: fmt.Sprint(nilToEmpty(row[textIdx])), Metadata: meta},
			Score:    score,
		})
	}
	return docs, nil
}

func nilToEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
