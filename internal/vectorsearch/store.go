package vectorsearch

import (
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/hyperjump/aibridge/internal/apierr"
	"github.com/hyperjump/aibridge/internal/embedding"
	"github.com/hyperjump/aibridge/pkg/utils"
	"go.uber.org/zap"
)

const (
	DefaultK      = 4
	DefaultFetchK = 20
	DefaultLambda = 0.5

	// QueryTypeHybrid combines text and vector retrieval.
	QueryTypeHybrid = "HYBRID"
	// QueryTypeANN is approximate nearest neighbour vector retrieval.
	QueryTypeANN = "ANN"
)

// SearchOptions are shared by all search methods. Zero K means DefaultK.
type SearchOptions struct {
	K         int
	Filter    map[string]any
	QueryType string
}

// MMROptions tune maximal marginal relevance search. Zero FetchK means
// DefaultFetchK. Lambda is used as given: 0 favours diversity, 1 relevance.
type MMROptions struct {
	SearchOptions
	FetchK int
	Lambda float64
}

// VectorStore answers document similarity queries against an Index.
type VectorStore struct {
	index        Index
	details      *IndexDetails
	embedder     embedding.Embedder
	textColumn   string
	columns      []string
	schema       RetrieverSchema
	includeScore bool
	logger       *zap.Logger

	// options as given, resolved in New
	wantText    string
	wantColumns []string
	docURI      string
	primaryKey  string
}

// Option configures a VectorStore.
type Option func(*VectorStore)

// WithEmbedder sets the embedder for self-managed indexes.
func WithEmbedder(e embedding.Embedder) Option { return func(s *VectorStore) { s.embedder = e } }

// WithTextColumn names the column holding document text.
func WithTextColumn(c string) Option { return func(s *VectorStore) { s.wantText = c } }

// WithColumns adds columns returned as document metadata.
func WithColumns(cols ...string) Option {
	return func(s *VectorStore) { s.wantColumns = append(s.wantColumns, cols...) }
}

// WithDocURI names the column holding the document URI.
func WithDocURI(c string) Option { return func(s *VectorStore) { s.docURI = c } }

// WithPrimaryKey names the column reported as the chunk id.
func WithPrimaryKey(c string) Option { return func(s *VectorStore) { s.primaryKey = c } }

// WithIncludeScore copies the score into document metadata.
func WithIncludeScore(v bool) Option { return func(s *VectorStore) { s.includeScore = v } }

// WithLogger sets a logger for upsert failures.
func WithLogger(l *zap.Logger) Option { return func(s *VectorStore) { s.logger = l } }

// New describes index and validates the options against it: the embedder
// must be present exactly when the index is not managed, with a matching
// dimension, and the text and return columns must be resolvable.
func New(ctx context.Context, index Index, opts ...Option) (*VectorStore, error) {
	s := &VectorStore{index: index}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)

	details, err := index.Describe(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateIndexName(details.Name); err != nil {
		return nil, err
	}
	dims := 0
	if s.embedder != nil {
		dims = s.embedder.Dimensions()
	}
	if err := validateEmbedding(dims, s.embedder != nil, details); err != nil {
		return nil, err
	}
	text, err := TextColumn(s.wantText, details)
	if err != nil {
		return nil, err
	}
	cols, err := ReturnColumns(s.wantColumns, text, details, s.docURI, s.primaryKey)
	if err != nil {
		return nil, err
	}

	s.details = details
	s.textColumn = text
	s.columns = cols
	s.schema = RetrieverSchema{
		TextColumn:   text,
		DocURI:       s.docURI,
		PrimaryKey:   s.primaryKey,
		OtherColumns: cols,
	}
	return s, nil
}

// Details returns the index description loaded by New.
func (s *VectorStore) Details() *IndexDetails { return s.details }

// Schema returns the column roles used to build documents.
func (s *VectorStore) Schema() RetrieverSchema { return s.schema }

// AddTexts embeds texts and upserts them with their metadata. Missing ids
// are generated. The returned ids exclude rows the index reported as failed.
// Only direct-access indexes accept writes.
func (s *VectorStore) AddTexts(ctx context.Context, texts []string, metadatas []map[string]any, ids []string) ([]string, error) {
	if s.details.IsDeltaSync() {
		return nil, unsupported("AddTexts", "is only supported for direct-access indexes")
	}
	if metadatas != nil && len(metadatas) != len(texts) {
		return nil, apierr.Newf(apierr.Config, "got %d metadatas for %d texts", len(metadatas), len(texts))
	}
	if ids != nil && len(ids) != len(texts) {
		return nil, apierr.Newf(apierr.Config, "got %d ids for %d texts", len(ids), len(texts))
	}
	vectorCol, ok := s.details.EmbeddingVectorColumn()
	if !ok {
		return nil, apierr.Newf(apierr.Config, "index %q has no embedding vector column", s.details.Name)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = make([]string, len(texts))
		for i := range ids {
			ids[i] = uuid.NewString()
		}
	}

	rows := make([]map[string]any, len(texts))
	for i, text := range texts {
		row := make(map[string]any)
		if metadatas != nil {
			for k, v := range metadatas[i] {
				row[k] = v
			}
		}
		row[s.details.PrimaryKey] = ids[i]
		row[s.textColumn] = text
		row[vectorCol.Name] = vectors[i]
		rows[i] = row
	}

	resp, err := s.index.Upsert(ctx, rows)
	if err != nil {
		return nil, err
	}
	switch resp.Status {
	case UpsertFailure:
		s.logger.Error("failed to add texts to the index", zap.String("index", s.details.Name))
	case UpsertPartialSuccess:
		s.logger.Warn("some texts failed to be added to the index",
			zap.String("index", s.details.Name),
			zap.Int("failed", len(resp.Result.FailedPrimaryKeys)),
		)
	default:
		return ids, nil
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(resp.Result.FailedPrimaryKeys, id) {
			kept = append(kept, id)
		}
	}
	return kept, nil
}

// Delete removes documents by id. Only direct-access indexes accept writes.
func (s *VectorStore) Delete(ctx context.Context, ids []string) error {
	if s.details.IsDeltaSync() {
		return unsupported("Delete", "is only supported for direct-access indexes")
	}
	if len(ids) == 0 {
		return apierr.New(apierr.Config, "ids must be provided")
	}
	return s.index.Delete(ctx, ids)
}

// SimilaritySearch returns the documents most similar to query.
func (s *VectorStore) SimilaritySearch(ctx context.Context, query string, opts SearchOptions) ([]Document, error) {
	scored, err := s.SimilaritySearchWithScore(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return documents(scored), nil
}

// SimilaritySearchWithScore returns the documents most similar to query
// with their scores. Managed-embedding indexes receive the text; otherwise
// the query is embedded locally and sent as text too only for hybrid search.
func (s *VectorStore) SimilaritySearchWithScore(ctx context.Context, query string, opts SearchOptions) ([]ScoredDocument, error) {
	req := QueryRequest{
		Columns:    s.columns,
		Filters:    opts.Filter,
		NumResults: orDefault(opts.K, DefaultK),
		QueryType:  opts.QueryType,
	}
	if s.details.IsManagedEmbeddings() {
		req.QueryText = query
	} else {
		if isHybrid(opts.QueryType) {
			req.QueryText = query
		}
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, err
		}
		req.QueryVector = vec
	}
	return s.query(ctx, req, nil)
}

// SimilaritySearchByVector returns the documents most similar to vec.
// query is only allowed, and then required, for hybrid search.
func (s *VectorStore) SimilaritySearchByVector(ctx context.Context, vec []float32, query string, opts SearchOptions) ([]Document, error) {
	if s.details.IsManagedEmbeddings() {
		return nil, unsupported("SimilaritySearchByVector", "is not supported for indexes with managed embeddings")
	}
	scored, err := s.SimilaritySearchByVectorWithScore(ctx, vec, query, opts)
	if err != nil {
		return nil, err
	}
	return documents(scored), nil
}

// SimilaritySearchByVectorWithScore is SimilaritySearchByVector with scores.
func (s *VectorStore) SimilaritySearchByVectorWithScore(ctx context.Context, vec []float32, query string, opts SearchOptions) ([]ScoredDocument, error) {
	if s.details.IsManagedEmbeddings() {
		return nil, unsupported("SimilaritySearchByVectorWithScore", "is not supported for indexes with managed embeddings")
	}
	queryText, err := hybridText(query, opts.QueryType)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, QueryRequest{
		Columns:     s.columns,
		QueryText:   queryText,
		QueryVector: vec,
		Filters:     opts.Filter,
		NumResults:  orDefault(opts.K, DefaultK),
		QueryType:   opts.QueryType,
	}, nil)
}

// MaxMarginalRelevanceSearch embeds query and runs
// MaxMarginalRelevanceSearchByVector.
func (s *VectorStore) MaxMarginalRelevanceSearch(ctx context.Context, query string, opts MMROptions) ([]Document, error) {
	if s.details.IsManagedEmbeddings() {
		return nil, unsupported("MaxMarginalRelevanceSearch", "is not supported for indexes with managed embeddings")
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.MaxMarginalRelevanceSearchByVector(ctx, vec, opts)
}

// MaxMarginalRelevanceSearchByVector fetches FetchK candidates with their
// embeddings and keeps the K chosen by maximal marginal relevance, in the
// order the index ranked them.
func (s *VectorStore) MaxMarginalRelevanceSearchByVector(ctx context.Context, vec []float32, opts MMROptions) ([]Document, error) {
	if s.details.IsManagedEmbeddings() {
		return nil, unsupported("MaxMarginalRelevanceSearchByVector", "is not supported for indexes with managed embeddings")
	}
	vectorCol, ok := s.details.EmbeddingVectorColumn()
	if !ok {
		return nil, apierr.Newf(apierr.Config, "index %q has no embedding vector column", s.details.Name)
	}

	columns := s.columns
	var ignore []string
	if !slices.Contains(columns, vectorCol.Name) {
		columns = append(slices.Clone(columns), vectorCol.Name)
		ignore = []string{vectorCol.Name}
	}
	resp, err := s.index.Query(ctx, QueryRequest{
		Columns:     columns,
		QueryVector: vec,
		Filters:     opts.Filter,
		NumResults:  orDefault(opts.FetchK, DefaultFetchK),
		QueryType:   opts.QueryType,
	})
	if err != nil {
		return nil, err
	}

	embIdx := resp.columnIndex(vectorCol.Name)
	if embIdx < 0 {
		return nil, unexpected("embedding column %q missing from result", vectorCol.Name)
	}
	embeddings := make([][]float32, len(resp.Result.DataArray))
	for i, row := range resp.Result.DataArray {
		if embIdx >= len(row) {
			return nil, unexpected("row %d has no embedding", i)
		}
		e, err := toVector(row[embIdx])
		if err != nil {
			return nil, apierr.Wrap(apierr.Decode, "embedding column", err)
		}
		embeddings[i] = e
	}

	selected := MaximalMarginalRelevance(vec, embeddings, opts.Lambda, orDefault(opts.K, DefaultK))
	candidates, err := ParseResponse(resp, s.schema, ignore, s.includeScore)
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(selected))
	for i, c := range candidates {
		if slices.Contains(selected, i) {
			out = append(out, c.Document)
		}
	}
	return out, nil
}

func (s *VectorStore) query(ctx context.Context, req QueryRequest, ignore []string) ([]ScoredDocument, error) {
	resp, err := s.index.Query(ctx, req)
	if err != nil {
		return nil, err
	}
	return ParseResponse(resp, s.schema, ignore, s.includeScore)
}

func hybridText(query, queryType string) (string, error) {
	if isHybrid(queryType) {
		if query == "" {
			return "", apierr.New(apierr.Config, "a query is required for hybrid search")
		}
		return query, nil
	}
	if query != "" {
		return "", apierr.New(apierr.Config, "cannot pass both a vector and a query unless the query type is HYBRID")
	}
	return "", nil
}

func isHybrid(queryType string) bool {
	return strings.EqualFold(queryType, QueryTypeHybrid)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func documents(scored []ScoredDocument) []Document {
	out := make([]Document, len(scored))
	for i, d := range scored {
		out[i] = d.Document
	}
	return out
}
