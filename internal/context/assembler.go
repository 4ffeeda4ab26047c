package context

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/projecttag"
	"github.com/fyrsmithlabs/braind/internal/retrieval"
)

const (
	latencyBudget = 500 * time.Millisecond
	maxNotes      = 10
)

const trailingGuidance = "\n\nUse this information in our conversation. This is a natural dialogue - " +
	"recall and reference relevant information from these notes and prior conversations " +
	"as topics come up."

// Output is the Context Assembler's result: a prompt-ready context
// string plus the provenance notes that produced it. A zero-value
// Output (both fields empty) means nothing relevant was found and the
// caller should inject no additional system-role content.
type Output struct {
	Context string
	Notes   []string
}

// Empty reports whether o carries no usable context.
func (o Output) Empty() bool {
	return o.Context == "" && len(o.Notes) == 0
}

// Assembler implements the context assembler: it dispatches to a
// retrieval strategy, gathers stable project knowledge and optional
// external notes, and renders a single ordered context block.
type Assembler struct {
	store     memorystore.Store
	retriever *retrieval.Retriever
	notes     NoteProvider
	prompt    *promptCache
	logger    *zap.Logger
}

// New builds an Assembler. notes may be nil, meaning no external
// note-resource collaborator is wired; basePromptPath may be empty,
// meaning the hard-coded fallback prompt is always used.
func New(store memorystore.Store, retriever *retrieval.Retriever, notes NoteProvider, basePromptPath string, logger *zap.Logger) *Assembler {
	return &Assembler{
		store:     store,
		retriever: retriever,
		notes:     notes,
		prompt:    newPromptCache(basePromptPath),
		logger:    logger,
	}
}

// BuildContext runs the RAG assembly path for (projectTag, userMessage)
// and returns a rendered context block with provenance notes. It never
// returns an error: every internal failure degrades to a smaller,
// partial Output, logged at WARN.
func (a *Assembler) BuildContext(ctx context.Context, rawProjectTag, userMessage string, repositoryFilter, productionFilter []string) Output {
	start := time.Now()
	project := projecttag.Normalize(rawProjectTag)

	result := a.retrieveSafely(ctx, project, userMessage, repositoryFilter, productionFilter)

	var knowledge memorystore.ProjectKnowledge
	var knowledgeFound bool
	var externalNotes []Note

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		pk, found, err := a.store.GetProjectKnowledge(gctx, project)
		if err != nil {
			a.logger.Warn("project knowledge lookup failed, continuing without it", zap.Error(err))
			return nil
		}
		knowledge, knowledgeFound = pk, found
		return nil
	})
	if a.notes != nil {
		g.Go(func() error {
			ns, err := a.notes.ProjectNotes(gctx, project, userMessage, defaultNotesLimit)
			if err != nil {
				a.logger.Warn("external note-resource fetch failed, continuing without notes", zap.Error(err))
				return nil
			}
			externalNotes = ns
			return nil
		})
	}
	_ = g.Wait() // both goroutines above swallow their own errors

	out := a.compose(result, knowledge, knowledgeFound, externalNotes)

	elapsed := time.Since(start)
	buildDuration.Observe(elapsed.Seconds())
	if elapsed > latencyBudget {
		latencyBreaches.Inc()
		a.logger.Warn("context build exceeded latency budget",
			zap.Duration("elapsed", elapsed), zap.Duration("budget", latencyBudget))
	}
	if out.Empty() {
		buildTotal.WithLabelValues("empty").Inc()
	} else {
		buildTotal.WithLabelValues("ok").Inc()
	}
	return out
}

// retrieveSafely dispatches to the retrieval strategy, recovering from
// any panic so a single malformed candidate never takes down a request;
// on panic it degrades to the generic keyword strategy for non-DAAS/
// non-code projects (a no-op, since that is already the default), or to
// an empty result for DAAS/code so the caller falls back to
// project-knowledge-only context.
func (a *Assembler) retrieveSafely(ctx context.Context, project, userMessage string, repositoryFilter, productionFilter []string) (result retrieval.Result) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("retrieval strategy panicked, degrading to project knowledge only", zap.Any("panic", r))
			if project == projecttag.DAAS || projecttag.UsesCodeRetrieval(project) {
				result = retrieval.Result{}
			} else {
				result = retrieval.Result{Kind: retrieval.KindGeneric}
			}
		}
	}()
	return a.retriever.Retrieve(ctx, project, userMessage, repositoryFilter, productionFilter)
}

// compose renders the ordered sections: external notes,
// project-knowledge summary, then the retrieval section.
func (a *Assembler) compose(result retrieval.Result, knowledge memorystore.ProjectKnowledge, knowledgeFound bool, externalNotes []Note) Output {
	var sections []string
	var notes []string

	if notesBody, notesLines := formatExternalNotes(externalNotes); notesBody != "" {
		sections = append(sections, "Here are relevant external notes from this project:\n\n"+notesBody)
		notes = append(notes, notesLines...)
	}

	if knowledgeFound {
		if knowledgeBody, knowledgeNotes := formatKnowledge(knowledge.SummaryList); knowledgeBody != "" {
			sections = append(sections, "Here is a general summary of the project:\n"+knowledgeBody)
			notes = append(notes, knowledgeNotes...)
		}
	}

	if retrievalBody, retrievalNotes := formatRetrieval(result); retrievalBody != "" {
		sections = append(sections, retrievalHeader(result.Kind)+":\n\n"+retrievalBody)
		notes = append(notes, retrievalNotes...)
	}

	if len(sections) == 0 {
		return Output{}
	}

	body := strings.Join(sections, "\n\n") + trailingGuidance
	if len(notes) > maxNotes {
		notes = notes[:maxNotes]
	}
	return Output{Context: body, Notes: notes}
}
