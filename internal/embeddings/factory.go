package embeddings

import "fmt"

// Config selects and configures an embedding provider, matching the
// teacher's ProviderConfig "Provider string + per-backend fields" shape.
type Config struct {
	// Provider is "openai" or "mock". Empty defaults to "openai".
	Provider string       `koanf:"provider"`
	OpenAI   OpenAIConfig `koanf:"openai"`
}

// NewProvider builds an instrumented Provider from cfg.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "openai", "":
		p, err := NewOpenAIProvider(cfg.OpenAI)
		if err != nil {
			return nil, err
		}
		return NewInstrumented(p), nil
	case "mock":
		return NewInstrumented(MockProvider{}), nil
	default:
		return nil, fmt.Errorf("embeddings: unknown provider %q", cfg.Provider)
	}
}
