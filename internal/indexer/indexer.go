package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/embeddings"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/projecttag"
	"github.com/fyrsmithlabs/braind/internal/secrets"
)

// Sentinel errors for the pipeline's two programmer-error stop
// conditions; every other failure mode degrades through the fallback
// path and is reported via Outcome instead of an error.
var (
	ErrSessionNotFound    = memorystore.ErrSessionNotFound
	ErrEmptySession       = errors.New("indexer: session has no messages")
	ErrIndexerUnavailable = errors.New("indexer: organizer LLM is unreachable")
)

const backfillBatchSize = 50

// LLM is the subset of llmclient.Client the indexer depends on, kept
// narrow so it can be faked in tests without standing up an HTTP
// server.
type LLM interface {
	Health(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
	Model() string
}

// Config selects the index-format version recorded on every
// MemoryRecord the indexer writes.
type Config struct {
	Version int `koanf:"version"`
}

// Indexer implements the Session Indexer pipeline.
type Indexer struct {
	store    memorystore.Store
	llm      LLM
	embedder embeddings.Provider
	scrubber secrets.Scrubber
	logger   *zap.Logger
	version  int
}

// New builds an Indexer. scrubber may be nil, in which case transcripts
// are passed to the organizer LLM unscrubbed.
func New(store memorystore.Store, llm LLM, embedder embeddings.Provider, scrubber secrets.Scrubber, logger *zap.Logger, cfg Config) *Indexer {
	version := cfg.Version
	if version == 0 {
		version = 1
	}
	return &Indexer{
		store:    store,
		llm:      llm,
		embedder: embedder,
		scrubber: scrubber,
		logger:   logger,
		version:  version,
	}
}

// IndexOptions parameterizes a single IndexSession call, matching the
// CLI's --override-project and --preserve-project flags.
type IndexOptions struct {
	// OverrideProject is applied only if the session's own tag is
	// "general"; if it normalizes to something specific, it replaces
	// "general" before the LLM is even consulted.
	OverrideProject string
	// PreserveProject, when the session's tag is "general", forces it
	// to stay "general" regardless of what the LLM proposes.
	PreserveProject bool
}

// Outcome is the non-raising result of an indexing attempt: either a
// freshly upserted record, or a reason indexing could not complete
// while leaving the session and any prior record untouched.
type Outcome struct {
	Record  memorystore.MemoryRecord
	Indexed bool
	Reason  string
}

// IndexSession runs the full pipeline for sessionID. It returns a
// non-nil error only for ErrSessionNotFound, ErrEmptySession, and
// ErrIndexerUnavailable (the organizer LLM's liveness probe failed);
// every other failure mode (generate errors, JSON parse failures)
// degrades through the fallback path and is reported via Outcome
// instead.
func (ix *Indexer) IndexSession(ctx context.Context, sessionID uuid.UUID, opts IndexOptions) (Outcome, error) {
	start := time.Now()
	defer func() { indexDuration.Observe(time.Since(start).Seconds()) }()

	session, err := ix.store.GetSession(ctx, sessionID)
	if err != nil {
		return Outcome{}, err
	}

	sessionTag := session.ProjectTag
	if opts.OverrideProject != "" && sessionTag == projecttag.General {
		overridden := projecttag.Normalize(opts.OverrideProject)
		if overridden != projecttag.General {
			if err := ix.store.UpdateSessionProjectTag(ctx, sessionID, overridden); err != nil {
				return Outcome{}, fmt.Errorf("applying project override: %w", err)
			}
			sessionTag = overridden
		}
	}

	messages, err := ix.store.LoadMessages(ctx, sessionID, 0)
	if err != nil {
		return Outcome{}, err
	}
	if len(messages) == 0 {
		return Outcome{}, ErrEmptySession
	}

	lines := make([]TranscriptLine, len(messages))
	for i, m := range messages {
		content := m.Content
		if ix.scrubber != nil {
			content = ix.scrubber.Scrub(content).Scrubbed
		}
		lines[i] = TranscriptLine{Role: string(m.Role), Content: content}
	}
	prompt := buildIndexPrompt(buildTranscript(lines))

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	if err := ix.llm.Health(ctx); err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrIndexerUnavailable, err)
	}

	responseText, err := ix.llm.Generate(ctx, prompt)
	if err != nil {
		ix.logger.Warn("organizer LLM generate failed, conversation preserved",
			zap.String("session_id", sessionID.String()), zap.Error(err))
		recordOutcome("generate_failed")
		return Outcome{Indexed: false, Reason: "organizer LLM call failed"}, nil
	}

	payload, err := parsePayload(responseText)
	if err != nil {
		ix.logger.Info("reconstructing memory record from markdown fallback",
			zap.String("session_id", sessionID.String()), zap.Error(err),
			zap.String("response_excerpt", previewContext(responseText)))
		payload = reconstructPayload(responseText, session.Title, sessionTag)
		recordOutcome("markdown_fallback")
	}

	rec := reconcileProjectTag(sessionTag, payload.Project, opts.PreserveProject)
	if rec.PromotedFromGeneral {
		if err := ix.store.UpdateSessionProjectTag(ctx, sessionID, rec.Tag); err != nil {
			ix.logger.Warn("failed to persist project-tag promotion on session",
				zap.String("session_id", sessionID.String()), zap.Error(err))
		}
	}

	record := memorystore.MemoryRecord{
		SessionID:       sessionID,
		ProjectTag:      rec.Tag,
		Title:           payload.Title,
		Tags:            payload.Tags,
		SummaryShort:    payload.SummaryShort,
		SummaryDetailed: payload.SummaryDetailed,
		KeyEntities:     payload.KeyEntities,
		KeyTopics:       payload.KeyTopics,
		MemorySnippet:   payload.MemorySnippet,
		IndexerModel:    ix.llm.Model(),
		Version:         ix.version,
		IndexedAt:       time.Now().UTC(),
	}

	if !projecttag.UsesVectorRetrieval(rec.Tag) {
		if err := ix.store.UpsertMemoryRecord(ctx, record); err != nil {
			return Outcome{}, err
		}
		recordOutcome("ok")
		return Outcome{Record: record, Indexed: true}, nil
	}

	embedText := record.Title + " " + record.SummaryDetailed + " " + record.MemorySnippet
	vec, err := ix.embedder.Embed(ctx, embedText)
	if err != nil {
		ix.logger.Warn("embedding generation failed, record stored without a vector",
			zap.String("session_id", sessionID.String()), zap.Error(err))
		if err := ix.store.UpsertMemoryRecord(ctx, record); err != nil {
			return Outcome{}, err
		}
		recordOutcome("embedding_failed")
		return Outcome{Record: record, Indexed: true}, nil
	}

	record.Embedding = vec
	if err := ix.store.UpsertMemoryRecordWithEmbedding(ctx, record, vec); err != nil {
		return Outcome{}, err
	}
	recordOutcome("ok")
	return Outcome{Record: record, Indexed: true}, nil
}

// ListMemories is a read-only projection over memory records, backing
// the `list-memories` CLI command.
func (ix *Indexer) ListMemories(ctx context.Context, projectTag string, limit int) ([]memorystore.MemoryRecord, error) {
	return ix.store.ListRecentMemories(ctx, projectTag, limit)
}

// ViewMemory fetches a single record, backing `view-memory`.
func (ix *Indexer) ViewMemory(ctx context.Context, sessionID uuid.UUID) (memorystore.MemoryRecord, error) {
	return ix.store.GetMemoryRecord(ctx, sessionID)
}

// RefreshMemory re-runs the pipeline for an already-indexed session,
// backing `refresh-memory`.
func (ix *Indexer) RefreshMemory(ctx context.Context, sessionID uuid.UUID) (Outcome, error) {
	return ix.IndexSession(ctx, sessionID, IndexOptions{})
}

// DeleteMemory hard-deletes a record without touching the session,
// backing `delete-memory`.
func (ix *Indexer) DeleteMemory(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return ix.store.DeleteMemoryRecord(ctx, sessionID)
}

// BackfillEmbeddings recomputes and stores the embedding for every
// record in projectTag (empty means all projects) whose embedding is
// currently null, in batches of 50 with a 1s pause between batches,
// backing `backfill-embeddings`. It returns the number of records
// successfully updated; a single record's embedding failure is logged
// and skipped rather than aborting the run.
func (ix *Indexer) BackfillEmbeddings(ctx context.Context, projectTag string) (int, error) {
	total := 0
	for {
		records, err := ix.store.ListMemoryRecordsMissingEmbedding(ctx, projectTag, backfillBatchSize)
		if err != nil {
			return total, err
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			text := rec.Title + " " + rec.SummaryDetailed + " " + rec.MemorySnippet
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				ix.logger.Warn("backfill: embedding failed, skipping record",
					zap.String("session_id", rec.SessionID.String()), zap.Error(err))
				continue
			}
			if err := ix.store.SetMemoryEmbedding(ctx, rec.SessionID, vec); err != nil {
				ix.logger.Warn("backfill: storing embedding failed, skipping record",
					zap.String("session_id", rec.SessionID.String()), zap.Error(err))
				continue
			}
			total++
		}

		if len(records) < backfillBatchSize {
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

func previewContext(text string) string {
	const maxLen = 500
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen]
}
