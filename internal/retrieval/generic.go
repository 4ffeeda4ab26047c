package retrieval

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

const (
	genericLimitMemories = 200
	genericTopN          = 5
)

// retrieveGeneric scores recent memory records for projectTag by the
// count of user-message tokens appearing in their tags/key_topics/
// summary_detailed.
func (r *Retriever) retrieveGeneric(ctx context.Context, projectTag, userMessage string) Result {
	records, err := r.store.ListRecentMemories(ctx, projectTag, genericLimitMemories)
	if err != nil {
		r.logger.Warn("generic retrieval failed to list memories, returning empty", zap.Error(err))
		return Result{Kind: KindGeneric}
	}
	if len(records) == 0 {
		return Result{Kind: KindGeneric}
	}

	tokens := tokenize(userMessage)

	scored := make([]GenericMemory, 0, len(records))
	for _, rec := range records {
		scored = append(scored, GenericMemory{Record: rec, Score: scoreMemory(rec, tokens)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.IndexedAt.After(scored[j].Record.IndexedAt)
	})

	if len(scored) > genericTopN {
		scored = scored[:genericTopN]
	}
	return Result{Kind: KindGeneric, GenericMemories: scored}
}

// tokenize lowercases and splits on whitespace, deduplicating so a
// repeated word is never counted twice.
func tokenize(message string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(message)) {
		if !seen[tok] {
			seen[tok] = true
			out = append(out, tok)
		}
	}
	return out
}

// scoreMemory counts how many of tokens appear as substrings of the
// concatenation of rec's tags, key topics, and detailed summary.
func scoreMemory(rec memorystore.MemoryRecord, tokens []string) int {
	var sb strings.Builder
	for _, t := range rec.Tags {
		sb.WriteString(strings.ToLower(t))
		sb.WriteByte(' ')
	}
	for _, t := range rec.KeyTopics {
		sb.WriteString(strings.ToLower(t))
		sb.WriteByte(' ')
	}
	sb.WriteString(strings.ToLower(rec.SummaryDetailed))
	haystack := sb.String()

	score := 0
	for _, tok := range tokens {
		if strings.Contains(haystack, tok) {
			score++
		}
	}
	return score
}
