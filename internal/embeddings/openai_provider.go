package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

// Model is the fixed embedding model: the only one in the OpenAI catalog
// that produces exactly Dimension (1536) floats, matching
// original_source/brain_core/embedding_service.py's generate_embedding.
const Model = "text-embedding-3-small"

// Retry/backoff defaults, carried over from the LLM client's retry shape
// (exponential backoff starting at 1s, 3 attempts).
const (
	defaultMaxRetries     = 3
	defaultBaseBackoff    = 1 * time.Second
	defaultRequestTimeout = 30 * time.Second
)

// Rate limiter defaults: conservative client-side throttling so a burst
// of backfill requests doesn't trip OpenAI's own rate limiting.
const (
	defaultRateLimit = 3.0 // requests per second
	defaultBurst     = 5
)

// OpenAIConfig configures the production embedding provider.
type OpenAIConfig struct {
	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`
}

// OpenAIProvider generates embeddings via the OpenAI API. Never returns a
// zero vector: any failure is a returned error.
type OpenAIProvider struct {
	client  openai.Client
	limiter *rate.Limiter
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider constructs a provider from cfg. Requires an API key;
// spec §4.1 treats a missing key as a fatal AuthFailure at call time, but
// failing fast at construction saves a wasted round trip.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrAuthFailure)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(defaultRequestTimeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIProvider{
		client:  openai.NewClient(opts...),
		limiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurst),
	}, nil
}

func (p *OpenAIProvider) Dimension() int { return Dimension }

func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	vecs, err := p.embedBatchRaw(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if err := validateText(t); err != nil {
			return nil, err
		}
	}
	return p.embedBatchRaw(ctx, texts)
}

func (p *OpenAIProvider) embedBatchRaw(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		if attempt > 0 {
			backoff := defaultBaseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
		}

		vecs, err := p.doEmbed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("embeddings: max retries exceeded: %w", lastErr)
}

func (p *OpenAIProvider) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make(openai.EmbeddingNewParamsInputArrayOfStrings, len(texts))
	copy(inputs, texts)

	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: Model,
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrDimensionMismatch, len(texts), len(resp.Data))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		if err := validateDimension(vec); err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// classifyAPIError sorts an openai-go error into the three transport
// kinds spec §4.1 names, matching embedding_service.py's string-matching
// classification but against the SDK's typed *openai.Error.
func classifyAPIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthFailure, err)
		case apiErr.StatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrNetwork, err)
		}
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	case strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return fmt.Errorf("%w: %v", ErrAuthFailure, err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection") || errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	default:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrNetwork)
}
