package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hyperjump/aibridge/internal/config"
	"github.com/hyperjump/aibridge/internal/embedding"
	"github.com/hyperjump/aibridge/internal/genie"
	"github.com/hyperjump/aibridge/internal/table"
	"github.com/hyperjump/aibridge/internal/tokenizer"
	"github.com/hyperjump/aibridge/internal/vectorsearch"
	"github.com/hyperjump/aibridge/internal/workspace"
	"go.uber.org/zap"
)

// components holds the wired tools the server exposes.
type components struct {
	Genie    *genie.Genie
	Store    *vectorsearch.VectorStore
	embedder embedding.Embedder
}

// Close releases the embedder, if one was created.
func (c *components) Close() {
	if c.embedder != nil {
		_ = c.embedder.Close()
	}
}

// newCounter returns a tiktoken counter for model, or the word-based
// fallback when the encoding cannot be loaded.
func newCounter(model string, logger *zap.Logger) tokenizer.Counter {
	tk, err := tokenizer.NewTiktoken(model)
	if err != nil {
		logger.Warn("tokenizer unavailable, counting words instead",
			zap.String("model", model),
			zap.Error(err),
		)
		return tokenizer.WordCounter{}
	}
	return tk
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wsOpts := []workspace.Option{
		workspace.WithHTTPClient(&http.Client{Timeout: cfg.Workspace.Timeout}),
		workspace.WithLogger(logger),
	}
	if cfg.Workspace.Token != "" {
		wsOpts = append(wsOpts, workspace.WithToken(cfg.Workspace.Token))
	}
	ws := workspace.New(cfg.Workspace.Host, wsOpts...)

	truncator := table.NewTruncator(newCounter(cfg.Genie.TokenizerModel, logger), cfg.Genie.MaxTokens)
	g, err := genie.New(ctx, genie.NewClient(ws, cfg.Genie.SpaceID), truncator,
		genie.WithLogger(logger),
		genie.WithMaxIterations(cfg.Genie.MaxIterations),
		genie.WithPollInterval(cfg.Genie.PollInterval),
	)
	if err != nil {
		return nil, fmt.Errorf("genie: %w", err)
	}
	logger.Info("genie space loaded",
		zap.String("space_id", cfg.Genie.SpaceID),
		zap.String("description", g.Description()),
	)
	c := &components{Genie: g}

	vs := cfg.VectorSearch
	if !vs.Enabled() {
		return c, nil
	}
	index, err := vectorsearch.NewHTTPIndex(ws, vs.IndexName)
	if err != nil {
		return nil, err
	}
	details, err := index.Describe(ctx)
	if err != nil {
		return nil, fmt.Errorf("describe index: %w", err)
	}
	storeOpts := []vectorsearch.Option{
		vectorsearch.WithTextColumn(vs.TextColumn),
		vectorsearch.WithColumns(vs.Columns...),
		vectorsearch.WithDocURI(vs.DocURI),
		vectorsearch.WithPrimaryKey(vs.PrimaryKey),
		vectorsearch.WithIncludeScore(vs.IncludeScore),
		vectorsearch.WithLogger(logger),
	}
	if !details.IsManagedEmbeddings() {
		c.embedder = embedding.NewCached(embedding.NewHashEmbedder(vs.EmbeddingDimensions), vs.EmbeddingCacheSize)
		storeOpts = append(storeOpts, vectorsearch.WithEmbedder(c.embedder))
		logger.Warn("index uses self-managed embeddings; search results are placeholders until a model embedder is configured",
			zap.String("index", details.Name),
			zap.String("embedder", "hash"),
			zap.Int("dimensions", vs.EmbeddingDimensions),
		)
	}
	store, err := vectorsearch.New(ctx, index, storeOpts...)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("vector store: %w", err)
	}
	logger.Info("vector index ready",
		zap.String("index", details.Name),
		zap.String("index_type", string(details.IndexType)),
		zap.Bool("managed_embeddings", details.IsManagedEmbeddings()),
	)
	c.Store = store
	return c, nil
}
