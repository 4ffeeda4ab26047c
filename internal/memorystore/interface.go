package memorystore

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the full contract the rest of the core needs from the memory
// store. Concurrency discipline: each method call is a
// short-lived unit against a connection from a pool; UpsertMemoryRecord
// and SetMemoryEmbedding, when both are needed for one logical write, are
// combined via UpsertMemoryRecordWithEmbedding so they share a single
// transaction rather than requiring the caller to coordinate two calls.
type Store interface {
	// UpsertSession creates or replaces a session row. Returns
	// ErrEmptyTitle if title is empty and ErrInvalidProjectTag if
	// projectTag is not a normalized member of the closed set.
	UpsertSession(ctx context.Context, id uuid.UUID, title, projectTag string, createdAt time.Time) error

	// GetSession loads a session by ID. Returns ErrSessionNotFound if
	// missing.
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)

	// UpdateSessionProjectTag updates only the project_tag of an
	// existing session, used by the tag-promotion-from-general path.
	UpdateSessionProjectTag(ctx context.Context, id uuid.UUID, projectTag string) error

	// AppendMessage stores a single message, ordered by CreatedAt within
	// the session.
	AppendMessage(ctx context.Context, sessionID uuid.UUID, role Role, content string, meta map[string]any) error

	// LoadMessages returns a session's messages ordered by created_at
	// ascending. limit<=0 means unbounded.
	LoadMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error)

	// UpsertMemoryRecord writes a record keyed by SessionID; on conflict
	// all fields are overwritten and IndexedAt bumped. Embedding is left
	// untouched if rec.Embedding is nil (use SetMemoryEmbedding or
	// UpsertMemoryRecordWithEmbedding to also write a vector).
	UpsertMemoryRecord(ctx context.Context, rec MemoryRecord) error

	// UpsertMemoryRecordWithEmbedding performs the upsert and the vector
	// write in a single transaction, so multi-statement writes never
	// observe a record with a stale or missing embedding.
	UpsertMemoryRecordWithEmbedding(ctx context.Context, rec MemoryRecord, embedding []float32) error

	// SetMemoryEmbedding stores the embedding vector for an existing
	// memory record.
	SetMemoryEmbedding(ctx context.Context, sessionID uuid.UUID, embedding []float32) error

	// GetMemoryRecord loads a single record. Returns
	// ErrMemoryRecordMissing if absent.
	GetMemoryRecord(ctx context.Context, sessionID uuid.UUID) (MemoryRecord, error)

	// DeleteMemoryRecord hard-deletes a record; the session itself is
	// untouched. Returns whether a row was deleted.
	DeleteMemoryRecord(ctx context.Context, sessionID uuid.UUID) (bool, error)

	// ListMemoryRecords returns up to limit records, optionally filtered
	// by projectTag (empty string means all projects).
	ListMemoryRecords(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error)

	// ListRecentMemories returns up to limit records for projectTag
	// ordered by IndexedAt descending.
	ListRecentMemories(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error)

	// SearchMemoryVector returns up to k records for projectTag ordered
	// by non-increasing similarity; only records with a non-null
	// embedding participate.
	SearchMemoryVector(ctx context.Context, projectTag string, queryVector []float32, k int) ([]MemoryHit, error)

	// SearchMemoryTitle performs a case-insensitive substring match of
	// titlePattern against MemoryRecord.Title within projectTag, ties
	// broken by most-recent IndexedAt first.
	SearchMemoryTitle(ctx context.Context, projectTag, titlePattern string, limit int) ([]MemoryRecord, error)

	// GetProjectKnowledge loads the stable, hand-curated descriptor for
	// projectTag. Returns (_, false, nil) if none exists.
	GetProjectKnowledge(ctx context.Context, projectTag string) (ProjectKnowledge, bool, error)

	// InsertCodeChunk stores a single code chunk.
	InsertCodeChunk(ctx context.Context, chunk CodeChunk) error

	// SetCodeChunkEmbedding stores the embedding vector for an existing
	// code chunk, used by the code-backfill CLI command so recomputing
	// an embedding never duplicates the chunk row.
	SetCodeChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error

	// SearchCodeVector returns up to k chunks ordered by non-increasing
	// similarity, optionally filtered by repository name and production
	// target membership.
	SearchCodeVector(ctx context.Context, queryVector []float32, k int, repositoryFilter []string, productionFilter []string) ([]CodeHit, error)

	// GetRepositoryMetadata loads incremental-indexing bookkeeping for a
	// repository. Returns (_, false, nil) if none exists yet.
	GetRepositoryMetadata(ctx context.Context, repositoryName string) (RepositoryMetadata, bool, error)

	// SaveRepositoryMetadata upserts incremental-indexing bookkeeping.
	SaveRepositoryMetadata(ctx context.Context, meta RepositoryMetadata) error

	// ListMemoryRecordsMissingEmbedding returns up to limit records for
	// projectTag (empty = all) whose Embedding is nil, for the backfill
	// CLI command.
	ListMemoryRecordsMissingEmbedding(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error)

	// ListCodeChunksMissingEmbedding returns up to limit chunks for
	// repositoryName (empty = all) whose Embedding is nil, for the
	// code-backfill CLI command.
	ListCodeChunksMissingEmbedding(ctx context.Context, repositoryName string, limit int) ([]CodeChunk, error)

	// Close releases any held resources (connection pool, etc).
	Close() error
}
