package config

import "time"

// Embedding providers.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
	ProviderONNX   = "onnx"
)

// DefaultOpenAIEndpoint is the base URL used by the openai provider when none is configured.
const DefaultOpenAIEndpoint = "https://api.openai.com/v1"

// DefaultPath is where the CLI looks for a config file when --config is not given.
const DefaultPath = "kioku.yaml"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Index.Capacity == 0 {
		cfg.Index.Capacity = 2000
	}
	if cfg.Index.Dimensions == 0 {
		cfg.Index.Dimensions = 1536
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderAzure
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.APIVersion == "" {
		cfg.Embedding.APIVersion = "2024-02-01"
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 16
	}
	if cfg.Embedding.MaxConcurrency == 0 {
		cfg.Embedding.MaxConcurrency = 4
	}
	if cfg.Embedding.RequestsPerSecond == 0 {
		cfg.Embedding.RequestsPerSecond = 10
	}
	if cfg.Embedding.MaxRetries == 0 {
		cfg.Embedding.MaxRetries = 3
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 30 * time.Second
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 100
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 20
	}
	if cfg.Ingest.MaxPDFSizeMB == 0 {
		cfg.Ingest.MaxPDFSizeMB = 10
	}
	if cfg.Ingest.MaxUploadSizeMB == 0 {
		cfg.Ingest.MaxUploadSizeMB = 25
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".pptx", ".odt", ".odp", ".ods", ".rtf"}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 1
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
