package embedding

import (
	"fmt"

	"github.com/hyperjump/kioku/internal/config"
	"go.uber.org/zap"
)

// New builds the embedder selected by cfg.Provider for vectors of the given
// dimension, wrapped in a CachedEmbedder when cfg.CacheSize is positive.
func New(cfg config.EmbeddingConfig, dimensions int, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var e Embedder
	cacheKey := cfg.Provider + "/" + cfg.Model
	switch cfg.Provider {
	case config.ProviderMock:
		e = NewMockEmbedder(dimensions)
	case config.ProviderAzure, config.ProviderOpenAI:
		c, err := NewClient(ClientConfig{
			Provider:          cfg.Provider,
			Endpoint:          cfg.Endpoint,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			APIVersion:        cfg.APIVersion,
			Dimensions:        dimensions,
			BatchSize:         cfg.BatchSize,
			MaxConcurrency:    cfg.MaxConcurrency,
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxRetries:        cfg.MaxRetries,
			Timeout:           cfg.Timeout,
		}, WithLogger(logger))
		if err != nil {
			return nil, err
		}
		e = c
	case config.ProviderONNX:
		o, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			VocabPath:   cfg.VocabPath,
			LibraryPath: cfg.LibraryPath,
			Dimensions:  dimensions,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("loaded onnx model", zap.String("path", cfg.ModelPath), zap.Int("dimensions", dimensions))
		e = o
		cacheKey = cfg.Provider + "/" + cfg.ModelPath
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cacheKey, cfg.CacheSize)
	}
	return e, nil
}
