package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMockProvider_EmbedRejectsEmptyInput(t *testing.T) {
	_, err := MockProvider{}.Embed(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMockProvider_EmbedIsUnavailable(t *testing.T) {
	_, err := MockProvider{}.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMockProvider_Dimension(t *testing.T) {
	assert.Equal(t, 1536, MockProvider{}.Dimension())
}

func TestMockProvider_EmbedBatchRejectsAnyEmptyInput(t *testing.T) {
	_, err := MockProvider{}.EmbedBatch(context.Background(), []string{"ok", "", "also ok"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
