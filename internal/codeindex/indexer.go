package codeindex

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/embeddings"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

const embedBatchSize = 50

// Indexer implements the Code Indexer pipeline.
type Indexer struct {
	store    memorystore.Store
	embedder embeddings.Provider
	logger   *zap.Logger
}

// New builds an Indexer.
func New(store memorystore.Store, embedder embeddings.Provider, logger *zap.Logger) *Indexer {
	return &Indexer{store: store, embedder: embedder, logger: logger}
}

// IndexRepository walks repositoryPath, chunks and embeds every
// recognized file, and persists the result under repositoryName. If
// the repository's current commit matches RepositoryMetadata's
// last-indexed commit, the run is skipped entirely (Stats.Skipped is
// true, every other field zero). Per-file and per-chunk errors are
// accumulated into Stats.Errors rather than aborting the run.
func (ix *Indexer) IndexRepository(ctx context.Context, repositoryPath, repositoryName string, productionTargets []string) (Stats, error) {
	var stats Stats

	commit := headCommitHash(repositoryPath)
	if commit != "" {
		if existing, ok, err := ix.store.GetRepositoryMetadata(ctx, repositoryName); err == nil && ok {
			if existing.LastIndexedCommit == commit {
				ix.logger.Info("repository already indexed at this commit, skipping",
					zap.String("repository", repositoryName), zap.String("commit", commit))
				stats.Skipped = true
				return stats, nil
			}
		}
	}

	files, err := scanFiles(repositoryPath)
	if err != nil {
		return stats, fmt.Errorf("scanning repository %s: %w", repositoryPath, err)
	}
	stats.FilesProcessed = len(files)

	type pending struct {
		file codeFile
		c    chunk
	}
	var all []pending

	for _, f := range files {
		chunks, err := parseFile(f.FullPath, f.Language)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", f.RelPath, err))
			continue
		}
		for _, c := range chunks {
			all = append(all, pending{file: f, c: c})
		}
	}
	stats.ChunksCreated = len(all)

	for start := 0; start < len(all); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(all) {
			end = len(all)
		}
		batch := all[start:end]

		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = embeddingText(p.file.RelPath, p.c.Metadata, p.c.Text)
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("embedding batch %d-%d: %v", start, end, err))
			continue
		}

		for i, p := range batch {
			chunkRecord := memorystore.CodeChunk{
				ID:                uuid.New(),
				RepositoryName:    repositoryName,
				FilePath:          p.file.RelPath,
				Language:          p.file.Language,
				ChunkText:         p.c.Text,
				ChunkMetadata:     p.c.Metadata,
				Embedding:         vectors[i],
				ProductionTargets: productionTargets,
				IndexedAt:         time.Now().UTC(),
			}
			if err := ix.store.InsertCodeChunk(ctx, chunkRecord); err != nil {
				stats.Errors = append(stats.Errors, fmt.Sprintf("storing chunk from %s: %v", p.file.RelPath, err))
				continue
			}
			stats.EmbeddingsGenerated++
		}

		if end < len(all) {
			select {
			case <-time.After(1 * time.Second):
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}
	}

	if err := ix.store.SaveRepositoryMetadata(ctx, memorystore.RepositoryMetadata{
		RepositoryName:    repositoryName,
		LocalPath:         repositoryPath,
		LastIndexedCommit: commit,
		LastIndexedAt:     time.Now().UTC(),
		ProductionTargets: productionTargets,
	}); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("saving repository metadata: %v", err))
	}

	return stats, nil
}

// BackfillCodeEmbeddings recomputes and stores the embedding for every
// chunk in repositoryFilter (empty means all repositories) whose
// embedding is currently null, backing `backfill-code-embeddings`.
func (ix *Indexer) BackfillCodeEmbeddings(ctx context.Context, repositoryFilter string) (int, error) {
	total := 0
	for {
		chunks, err := ix.store.ListCodeChunksMissingEmbedding(ctx, repositoryFilter, embedBatchSize)
		if err != nil {
			return total, err
		}
		if len(chunks) == 0 {
			break
		}

		for _, c := range chunks {
			text := embeddingText(c.FilePath, c.ChunkMetadata, c.ChunkText)
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				ix.logger.Warn("code backfill: embedding failed, skipping chunk",
					zap.String("chunk_id", c.ID.String()), zap.Error(err))
				continue
			}
			c.Embedding = vec
			if err := ix.store.SetCodeChunkEmbedding(ctx, c.ID, vec); err != nil {
				ix.logger.Warn("code backfill: storing embedding failed, skipping chunk",
					zap.String("chunk_id", c.ID.String()), zap.Error(err))
				continue
			}
			total++
		}

		if len(chunks) < embedBatchSize {
			break
		}
		select {
		case <-time.After(1 * time.Second):
		case <-ctx.Done():
			return total, ctx.Err()
		}
	}
	return total, nil
}
