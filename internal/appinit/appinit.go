// Package appinit wires the leaf packages (memorystore, embeddings,
// llmclient, secrets, indexer, codeindex, retrieval, context) into the
// dependency graph both cmd/braind and cmd/braindctl need, built from a
// single loaded config.Config. Kept as one shared package so the daemon
// and the CLI never drift in how they construct the same services.
package appinit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/codeindex"
	"github.com/fyrsmithlabs/braind/internal/config"
	contextpkg "github.com/fyrsmithlabs/braind/internal/context"
	"github.com/fyrsmithlabs/braind/internal/embeddings"
	"github.com/fyrsmithlabs/braind/internal/indexer"
	"github.com/fyrsmithlabs/braind/internal/llmclient"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/retrieval"
	"github.com/fyrsmithlabs/braind/internal/secrets"
)

// Deps holds every constructed service braind and braindctl share.
type Deps struct {
	Store     memorystore.Store
	Embedder  embeddings.Provider
	LLM       *llmclient.Client
	Scrubber  secrets.Scrubber
	Indexer   *indexer.Indexer
	CodeIndex *codeindex.Indexer
	Retriever *retrieval.Retriever
	Assembler *contextpkg.Assembler
	logger    *zap.Logger
}

// Close releases any held resources (store connection pool, etc).
func (d *Deps) Close() error {
	if d.Store != nil {
		return d.Store.Close()
	}
	return nil
}

// Build constructs the full dependency graph from cfg. ctx is used only
// for the memory store's initial connection (e.g. pgxpool.New); it is
// not retained.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Deps, error) {
	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("appinit: memory store: %w", err)
	}

	embedder, err := embeddings.NewProvider(cfg.Embeddings)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("appinit: embeddings provider: %w", err)
	}

	llm := llmclient.New(cfg.LLMClient)

	scrubber, err := secrets.New(&cfg.Secrets)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("appinit: secrets scrubber: %w", err)
	}

	ix := indexer.New(store, llm, embedder, scrubber, logger, cfg.Indexer)
	cix := codeindex.New(store, embedder, logger)
	retriever := retrieval.New(store, embedder, logger)
	assembler := contextpkg.New(store, retriever, nil, cfg.Context.BaseSystemPromptPath, logger)

	return &Deps{
		Store:     store,
		Embedder:  embedder,
		LLM:       llm,
		Scrubber:  scrubber,
		Indexer:   ix,
		CodeIndex: cix,
		Retriever: retriever,
		Assembler: assembler,
		logger:    logger,
	}, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (memorystore.Store, error) {
	switch cfg.MemoryStore.Backend {
	case "postgres":
		return memorystore.NewPGStore(ctx, cfg.MemoryStore.Postgres)
	case "chromem":
		return memorystore.NewChromemStore(cfg.MemoryStore.Chromem)
	default:
		return nil, fmt.Errorf("unsupported memorystore backend: %q", cfg.MemoryStore.Backend)
	}
}
