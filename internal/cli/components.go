package cli

import (
	"fmt"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/embedding"
	"github.com/hyperjump/kioku/internal/index"
	"github.com/hyperjump/kioku/internal/ingest"
	"github.com/hyperjump/kioku/internal/retrieval"
	"github.com/hyperjump/kioku/internal/vector"
	"go.uber.org/zap"
)

// Components holds everything the server command wires together.
type Components struct {
	Index    *index.BoundedIndex
	Embedder embedding.Embedder
	Service  *retrieval.Service
	Ingester *ingest.Ingester
}

// Close releases the index and the embedder.
func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

// NewComponents builds the index, embedder, retrieval service and ingester
// described by cfg.
func NewComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := vector.NewStore(cfg.Index.Type, cfg.Index.Dimensions)
	if err != nil {
		// Fall back to the flat index if the configured type fails (e.g., FAISS not available)
		if cfg.Index.Type == string(vector.IndexTypeFlat) || cfg.Index.Type == "" {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		logger.Warn("failed to create vector store, falling back to flat",
			zap.String("requested_type", cfg.Index.Type),
			zap.Error(err))
		store, err = vector.NewStore(string(vector.IndexTypeFlat), cfg.Index.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}
	logger.Info("vector store initialized",
		zap.String("type", store.Type()),
		zap.Int("dimensions", store.Dimensions()),
		zap.Int("capacity", cfg.Index.Capacity),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))

	idx, err := index.New(store, cfg.Index.Capacity, index.WithLogger(logger))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}
	c := &Components{Index: idx}

	c.Embedder, err = embedding.New(cfg.Embedding, cfg.Index.Dimensions, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Service, err = retrieval.NewService(idx, c.Embedder,
		retrieval.WithLogger(logger),
		retrieval.WithTopK(cfg.Retrieval.TopK))
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Ingester, err = ingest.NewIngester(c.Service, nil, cfg.Ingest, ingest.WithLogger(logger))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize ingester: %w", err)
	}
	return c, nil
}
