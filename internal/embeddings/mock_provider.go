package embeddings

import "context"

// MockProvider is the embeddings backend for ENV_MODE=development (spec
// §4.1: "any call to embed fails with Unavailable. Components that
// depend on embeddings must degrade, never produce a zero vector."),
// grounded on embedding_service.py's MOCK_MODE branch, which sets
// _embedding_client to nil rather than fabricating vectors.
type MockProvider struct{}

var _ Provider = MockProvider{}

func (MockProvider) Dimension() int { return Dimension }

func (MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}

func (MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for _, t := range texts {
		if err := validateText(t); err != nil {
			return nil, err
		}
	}
	return nil, ErrUnavailable
}
