// Package config provides configuration loading and structs for the kioku server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read on top of the config file.
const (
	EnvAzureAPIKey   = "AZURE_OPENAI_API_KEY_RAG"
	EnvAzureEndpoint = "AZURE_OPENAI_ENDPOINT_RAG"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvONNXLibrary   = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

	EnvPort          = "KIOKU_PORT"
	EnvIndexType     = "KIOKU_INDEX_TYPE"
	EnvIndexCapacity = "KIOKU_INDEX_CAPACITY"
	EnvProvider      = "KIOKU_EMBEDDING_PROVIDER"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Index     IndexConfig     `yaml:"index"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IndexConfig sizes the bounded vector index.
type IndexConfig struct {
	Type       string `yaml:"type"`
	Capacity   int    `yaml:"capacity"`
	Dimensions int    `yaml:"dimensions"`
}

// EmbeddingConfig holds embedding provider settings. APIKey is only ever
// read from the environment and never written back to disk. The model_path,
// vocab_path, library_path and max_tokens settings apply to the onnx provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"`
	Endpoint          string        `yaml:"endpoint"`
	APIKey            string        `yaml:"-"`
	Model             string        `yaml:"model"`
	APIVersion        string        `yaml:"api_version"`
	BatchSize         int           `yaml:"batch_size"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxRetries        int           `yaml:"max_retries"`
	Timeout           time.Duration `yaml:"timeout"`
	CacheSize         int           `yaml:"cache_size"`
	ModelPath         string        `yaml:"model_path,omitempty"`
	VocabPath         string        `yaml:"vocab_path,omitempty"`
	LibraryPath       string        `yaml:"library_path,omitempty"`
	MaxTokens         int           `yaml:"max_tokens"`
}

// IngestConfig holds chunking and upload limits.
type IngestConfig struct {
	ChunkSize       int      `yaml:"chunk_size"`
	ChunkOverlap    int      `yaml:"chunk_overlap"`
	MaxPDFSizeMB    int      `yaml:"max_pdf_size_mb"`
	MaxUploadSizeMB int      `yaml:"max_upload_size_mb"`
	Extensions      []string `yaml:"extensions"`
}

// MaxPDFBytes returns the PDF size limit in bytes.
func (c IngestConfig) MaxPDFBytes() int64 {
	return int64(c.MaxPDFSizeMB) << 20
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c IngestConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) << 20
}

// RetrievalConfig holds prompt-building settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string      `yaml:"directories"`
	Recursive   *bool         `yaml:"recursive"`
	SyncOnStart bool          `yaml:"sync_on_start"`
	Debounce    time.Duration `yaml:"debounce"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Default returns a config with every default applied and environment overrides read.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	ApplyEnv(cfg)
	return cfg
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, expands paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}
	for _, p := range []*string{&cfg.Embedding.ModelPath, &cfg.Embedding.VocabPath, &cfg.Embedding.LibraryPath} {
		if *p != "" {
			*p = expandPath(*p, configDir)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like Load but falls back to Default when path does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = Default()
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files (default ".env")
// into the process environment. Missing files are ignored; variables already
// set are kept.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. API keys and the Azure
// endpoint fill empty fields; KIOKU_* variables always win.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Embedding.Provider = v
	}
	if cfg.Embedding.APIKey == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.APIKey = os.Getenv(EnvOpenAIAPIKey)
		case ProviderAzure:
			cfg.Embedding.APIKey = os.Getenv(EnvAzureAPIKey)
		}
	}
	if cfg.Embedding.Endpoint == "" {
		switch cfg.Embedding.Provider {
		case ProviderOpenAI:
			cfg.Embedding.Endpoint = DefaultOpenAIEndpoint
		case ProviderAzure:
			cfg.Embedding.Endpoint = os.Getenv(EnvAzureEndpoint)
		}
	}
	if cfg.Embedding.LibraryPath == "" && cfg.Embedding.Provider == ProviderONNX {
		cfg.Embedding.LibraryPath = os.Getenv(EnvONNXLibrary)
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv(EnvIndexType); v != "" {
		cfg.Index.Type = v
	}
	if v := os.Getenv(EnvIndexCapacity); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Capacity = n
		}
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	case c.Index.Capacity <= 0:
		return fmt.Errorf("index.capacity must be positive, got %d", c.Index.Capacity)
	case c.Index.Dimensions <= 0:
		return fmt.Errorf("index.dimensions must be positive, got %d", c.Index.Dimensions)
	case !oneOf(c.Index.Type, "flat", "faiss"):
		return fmt.Errorf("index.type must be flat or faiss, got %q", c.Index.Type)
	case !oneOf(c.Embedding.Provider, ProviderAzure, ProviderOpenAI, ProviderMock, ProviderONNX):
		return fmt.Errorf("embedding.provider must be azure, openai, onnx or mock, got %q", c.Embedding.Provider)
	case c.Embedding.Provider == ProviderONNX && c.Embedding.ModelPath == "":
		return fmt.Errorf("embedding.model_path is required for the onnx provider")
	case c.Embedding.MaxTokens < 0:
		return fmt.Errorf("embedding.max_tokens must not be negative")
	case c.Embedding.BatchSize <= 0:
		return fmt.Errorf("embedding.batch_size must be positive, got %d", c.Embedding.BatchSize)
	case c.Embedding.MaxConcurrency <= 0:
		return fmt.Errorf("embedding.max_concurrency must be positive, got %d", c.Embedding.MaxConcurrency)
	case c.Embedding.RequestsPerSecond < 0:
		return fmt.Errorf("embedding.requests_per_second must not be negative")
	case c.Embedding.MaxRetries < 0:
		return fmt.Errorf("embedding.max_retries must not be negative")
	case c.Ingest.ChunkSize <= 0:
		return fmt.Errorf("ingest.chunk_size must be positive, got %d", c.Ingest.ChunkSize)
	case c.Ingest.ChunkOverlap < 0 || c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize:
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size), got %d", c.Ingest.ChunkOverlap)
	case c.Retrieval.TopK <= 0:
		return fmt.Errorf("retrieval.top_k must be positive, got %d", c.Retrieval.TopK)
	}
	return nil
}

// Save writes the config to path. Used by `kioku init`.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
