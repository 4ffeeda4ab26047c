package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Default configuration values, sized for a local organizer model: a
// short liveness probe followed by a generate call that tolerates slow
// first-token latency.
const (
	defaultBaseURL       = "http://localhost:11434"
	defaultModel         = "llama3.1"
	defaultHealthTimeout = 5 * time.Second
	defaultGenerateTimeout = 300 * time.Second
	defaultMaxRetries    = 3
	defaultBaseBackoff   = 1 * time.Second
	defaultRateLimit     = 0.5
	defaultBurst         = 2
)

// ErrUnavailable is returned by Health (and by Generate, wrapping the
// health-check failure) when the endpoint does not respond to a
// liveness probe.
var ErrUnavailable = errors.New("llmclient: endpoint unavailable")

// ErrGenerateFailed is returned when a generate call exhausts its
// retries without a usable response.
var ErrGenerateFailed = errors.New("llmclient: generate failed")

// Config configures a Client, matching the embeddings and extraction
// packages' "Provider config with koanf tags and sane zero-value
// defaults" shape.
type Config struct {
	BaseURL         string `koanf:"base_url"`
	Model           string `koanf:"model"`
	HealthTimeout   time.Duration `koanf:"health_timeout"`
	GenerateTimeout time.Duration `koanf:"generate_timeout"`
}

// Client talks to an Ollama-compatible generate endpoint.
type Client struct {
	baseURL string
	model   string

	healthClient   *http.Client
	generateClient *http.Client

	limiter    *rate.Limiter
	maxRetries int
}

// New builds a Client from cfg, filling in defaults for zero-valued
// fields.
func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	healthTimeout := cfg.HealthTimeout
	if healthTimeout <= 0 {
		healthTimeout = defaultHealthTimeout
	}
	generateTimeout := cfg.GenerateTimeout
	if generateTimeout <= 0 {
		generateTimeout = defaultGenerateTimeout
	}

	return &Client{
		baseURL:        baseURL,
		model:          model,
		healthClient:   &http.Client{Timeout: healthTimeout},
		generateClient: &http.Client{Timeout: generateTimeout},
		limiter:        rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
		maxRetries:     defaultMaxRetries,
	}
}

// Model returns the configured model name, for logging and for
// recording in a MemoryRecord's IndexerModel field.
func (c *Client) Model() string {
	return c.model
}

// Health probes the endpoint's tag-listing route. A non-2xx response or
// a transport error both count as unavailable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := c.healthClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate sends prompt to the endpoint and returns the raw response
// text, retrying transient failures with exponential backoff.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req := generateRequest{Model: c.model, Prompt: prompt, Stream: false}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := c.doGenerate(ctx, req)
		if err == nil {
			return text, nil
		}

		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: %v", ErrGenerateFailed, lastErr)
}

func (c *Client) doGenerate(ctx context.Context, req generateRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.generateClient.Do(httpReq)
	if err != nil {
		return "", &retryableError{err: fmt.Errorf("generate request failed: %w", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read generate response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &retryableError{err: fmt.Errorf("rate limited (429)")}
	}
	if resp.StatusCode >= 500 {
		return "", &retryableError{err: fmt.Errorf("server error (%d): %s", resp.StatusCode, string(respBody))}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate error (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return parsed.Response, nil
}

// retryableError wraps an error to indicate it is safe to retry.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}
