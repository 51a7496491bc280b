package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/internal/vector"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const maxRetryDelay = 5 * time.Second

// APIError is a non-2xx response from the embeddings endpoint.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("embeddings request failed: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("embeddings request failed: %d %s", e.StatusCode, e.Message)
}

// Temporary reports whether the request may succeed if retried.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig configures a remote embeddings Client.
type ClientConfig struct {
	Provider          string // config.ProviderAzure or config.ProviderOpenAI
	Endpoint          string
	APIKey            string
	Model             string
	APIVersion        string
	Dimensions        int
	BatchSize         int
	MaxConcurrency    int
	RequestsPerSecond float64 // 0 disables throttling
	MaxRetries        int
	Timeout           time.Duration
}

// Client calls an OpenAI-compatible embeddings API. Azure OpenAI addresses the
// model as a deployment in the URL and authenticates with an api-key header;
// OpenAI takes the model in the body and a bearer token.
type Client struct {
	provider    string
	url         string
	apiKey      string
	model       string
	dimensions  int
	batchSize   int
	concurrency int
	maxRetries  int
	baseDelay   time.Duration
	limiter     *rate.Limiter
	http        *http.Client
	logger      *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for retries.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithRetryBaseDelay sets the first backoff delay; later attempts double it up to 5s.
func WithRetryBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.baseDelay = d }
}

// NewClient validates cfg and builds a client.
func NewClient(cfg ClientConfig, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing API key for %s embeddings", cfg.Provider)
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("missing endpoint for %s embeddings", cfg.Provider)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("missing embedding model")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	endpoint, err := requestURL(cfg)
	if err != nil {
		return nil, err
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &Client{
		provider:    cfg.Provider,
		url:         endpoint,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimensions:  cfg.Dimensions,
		batchSize:   max(cfg.BatchSize, 1),
		concurrency: max(cfg.MaxConcurrency, 1),
		maxRetries:  max(cfg.MaxRetries, 0),
		baseDelay:   200 * time.Millisecond,
		limiter:     rate.NewLimiter(limit, max(cfg.MaxConcurrency, 1)),
		http:        &http.Client{Timeout: cfg.Timeout},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func requestURL(cfg ClientConfig) (string, error) {
	base := strings.TrimRight(cfg.Endpoint, "/")
	if _, err := url.Parse(base); err != nil {
		return "", fmt.Errorf("invalid embeddings endpoint: %w", err)
	}
	switch cfg.Provider {
	case config.ProviderAzure:
		q := url.Values{"api-version": {cfg.APIVersion}}
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?%s", base, url.PathEscape(cfg.Model), q.Encode()), nil
	case config.ProviderOpenAI:
		return base + "/embeddings", nil
	default:
		return "", fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}
}

// Embed returns the embedding of a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in requests of at most batchSize inputs, running up to
// concurrency requests at once. The result is in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	if len(texts) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for start := 0; start < len(texts); start += c.batchSize {
		start := start
		end := min(start+c.batchSize, len(texts))
		g.Go(func() error {
			vecs, err := c.embedWithRetry(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(results[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *Client) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vecs, err := c.request(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if attempt >= c.maxRetries || !retryable(ctx, err) {
			return nil, err
		}
		delay := retryDelay(c.baseDelay, attempt)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}
		c.logger.Warn("embeddings request failed, retrying",
			zap.String("provider", c.provider),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	var dimErr *vector.DimensionMismatchError
	if errors.As(err, &dimErr) {
		return false
	}
	var decodeErr *decodeError
	return !errors.As(err, &decodeErr)
}

func retryDelay(base time.Duration, attempt int) time.Duration {
	d := base << attempt
	if d <= 0 || d > maxRetryDelay {
		d = maxRetryDelay
	}
	return d
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model,omitempty"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "invalid embeddings response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.provider == config.ProviderAzure {
		req.Header.Set("api-key", c.apiKey)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read embeddings response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		var er errorResponse
		if json.Unmarshal(payload, &er) == nil {
			apiErr.Message = er.Error.Message
		}
		return nil, apiErr
	}

	var out embeddingsResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, &decodeError{err: err}
	}
	if len(out.Data) != len(texts) {
		return nil, &decodeError{err: fmt.Errorf("got %d embeddings for %d inputs", len(out.Data), len(texts))}
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(texts) || vecs[d.Index] != nil {
			return nil, &decodeError{err: fmt.Errorf("unexpected embedding index %d", d.Index)}
		}
		if len(d.Embedding) != c.dimensions {
			return nil, &vector.DimensionMismatchError{Expected: c.dimensions, Got: len(d.Embedding)}
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Dimensions returns the expected embedding dimension.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
