package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const codeRetrievalTopK = 5

// retrieveCode performs vector similarity search over code chunks.
// repositoryFilter/productionFilter are optional; nil means unfiltered.
func (r *Retriever) retrieveCode(ctx context.Context, userMessage string, repositoryFilter, productionFilter []string) Result {
	if strings.TrimSpace(userMessage) == "" {
		return Result{Kind: KindCode}
	}

	vec, err := r.embedder.Embed(ctx, userMessage)
	if err != nil {
		r.logger.Warn("code retrieval embedding failed, returning empty", zap.Error(err))
		return Result{Kind: KindCode}
	}

	hits, err := r.store.SearchCodeVector(ctx, vec, codeRetrievalTopK, repositoryFilter, productionFilter)
	if err != nil {
		r.logger.Warn("code retrieval vector search failed, returning empty", zap.Error(err))
		return Result{Kind: KindCode}
	}

	results := make([]CodeResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, CodeResult{
			FilePath:   h.Chunk.FilePath,
			Language:   h.Chunk.Language,
			ChunkText:  h.Chunk.ChunkText,
			Metadata:   h.Chunk.ChunkMetadata,
			Similarity: h.Similarity,
		})
	}
	return Result{Kind: KindCode, CodeResults: results}
}
