package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/embeddings"
	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/projecttag"
)

// Retriever dispatches a (project_tag, user_message) query to the
// correct retrieval strategy.
type Retriever struct {
	store    memorystore.Store
	embedder embeddings.Provider
	logger   *zap.Logger
}

// New builds a Retriever.
func New(store memorystore.Store, embedder embeddings.Provider, logger *zap.Logger) *Retriever {
	return &Retriever{store: store, embedder: embedder, logger: logger}
}

// Retrieve dispatches on the normalized project tag: DAAS uses
// single-dream/pattern mode, THN (and any project registered under
// projecttag.CodeRetrieval) uses code-chunk search, everything else
// uses generic keyword scoring. repositoryFilter/productionFilter only
// apply to the code path.
func (r *Retriever) Retrieve(ctx context.Context, rawProjectTag, userMessage string, repositoryFilter, productionFilter []string) Result {
	project := projecttag.Normalize(rawProjectTag)

	switch {
	case project == projecttag.DAAS:
		return r.retrieveDAAS(ctx, project, userMessage)
	case projecttag.UsesCodeRetrieval(project):
		return r.retrieveCode(ctx, userMessage, repositoryFilter, productionFilter)
	default:
		return r.retrieveGeneric(ctx, project, userMessage)
	}
}
