package retrieval

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	maxQuotedTitleLen  = 500
	daasPatternDefault = 5
	daasPatternFloor   = 3
	daasPatternCeiling = 5
)

var quotedTitleRe = regexp.MustCompile(`"([^"]+)"`)

// detectQuotedTitle extracts the first double-quoted substring from
// message, trimmed and truncated to maxQuotedTitleLen, matching the
// original's detect_quoted_title.
func detectQuotedTitle(message string) (string, bool) {
	m := quotedTitleRe.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	title := strings.TrimSpace(m[1])
	if title == "" {
		return "", false
	}
	if len(title) > maxQuotedTitleLen {
		title = title[:maxQuotedTitleLen]
	}
	return title, true
}

// retrieveDAAS dispatches a DAAS-project query to single-dream or
// pattern mode. The two modes are never mixed.
func (r *Retriever) retrieveDAAS(ctx context.Context, projectTag, userMessage string) Result {
	if title, ok := detectQuotedTitle(userMessage); ok {
		return r.retrieveSingleDream(ctx, projectTag, title)
	}
	return r.retrievePatternDreams(ctx, projectTag, userMessage, daasPatternDefault)
}

func (r *Retriever) retrieveSingleDream(ctx context.Context, projectTag, title string) Result {
	records, err := r.store.SearchMemoryTitle(ctx, projectTag, title, 1)
	if err != nil {
		r.logger.Warn("single-dream title search failed, returning empty", zap.Error(err))
		return Result{Kind: KindSingleDream, SingleDreamQuery: title}
	}
	if len(records) == 0 {
		return Result{Kind: KindSingleDream, SingleDreamQuery: title}
	}
	rec := records[0]
	return Result{
		Kind:             KindSingleDream,
		SingleDreamQuery: title,
		Dreams: []Dream{{
			SessionID:     rec.SessionID,
			Title:         rec.Title,
			SummaryShort:  rec.SummaryShort,
			MemorySnippet: rec.MemorySnippet,
		}},
	}
}

func (r *Retriever) retrievePatternDreams(ctx context.Context, projectTag, userMessage string, topK int) Result {
	if strings.TrimSpace(userMessage) == "" {
		return Result{Kind: KindPatternDreams}
	}
	if topK <= 0 {
		topK = daasPatternDefault
	}
	if topK > daasPatternCeiling {
		topK = daasPatternCeiling
	}
	if topK < daasPatternFloor {
		topK = daasPatternFloor
	}

	vec, err := r.embedder.Embed(ctx, userMessage)
	if err != nil {
		r.logger.Warn("DAAS pattern embedding failed, returning empty", zap.Error(err))
		return Result{Kind: KindPatternDreams}
	}

	hits, err := r.store.SearchMemoryVector(ctx, projectTag, vec, topK)
	if err != nil {
		r.logger.Warn("DAAS pattern vector search failed, returning empty", zap.Error(err))
		return Result{Kind: KindPatternDreams}
	}

	dreams := make([]Dream, 0, len(hits))
	for _, h := range hits {
		dreams = append(dreams, Dream{
			SessionID:     h.Record.SessionID,
			Title:         h.Record.Title,
			SummaryShort:  h.Record.SummaryShort,
			MemorySnippet: h.Record.MemorySnippet,
			Similarity:    h.Similarity,
		})
	}
	return Result{Kind: KindPatternDreams, Dreams: dreams}
}
