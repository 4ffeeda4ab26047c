package context

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fyrsmithlabs/braind/internal/retrieval"
)

const (
	summaryTruncate = 300
	snippetTruncate = 200
	codeTruncate    = 1000
	noteTruncate    = 100
)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// retrievalHeader returns the section lead-in sentence for kind.
func retrievalHeader(kind retrieval.Kind) string {
	switch kind {
	case retrieval.KindSingleDream:
		return "Here is the specific dream you asked about"
	case retrieval.KindPatternDreams:
		return "Here are relevant dreams from your dream history"
	case retrieval.KindCode:
		return "Here is relevant code from the repository"
	default:
		return "Here are relevant memories from past conversations in this project"
	}
}

// formatRetrieval renders res into a body string (without header) and a
// set of 1-line provenance notes, one per retrieved item.
func formatRetrieval(res retrieval.Result) (body string, notes []string) {
	switch res.Kind {
	case retrieval.KindSingleDream:
		return formatSingleDream(res)
	case retrieval.KindPatternDreams:
		return formatPatternDreams(res)
	case retrieval.KindCode:
		return formatCodeResults(res)
	case retrieval.KindGeneric:
		return formatGenericMemories(res)
	default:
		return "", nil
	}
}

func formatSingleDream(res retrieval.Result) (string, []string) {
	if len(res.Dreams) == 0 {
		if res.SingleDreamQuery == "" {
			return "", nil
		}
		return fmt.Sprintf("No dream found matching %q.", res.SingleDreamQuery), nil
	}
	d := res.Dreams[0]
	var parts []string
	parts = append(parts, "Dream: "+d.Title)
	if d.SummaryShort != "" {
		parts = append(parts, d.SummaryShort)
	}
	if d.MemorySnippet != "" {
		parts = append(parts, d.MemorySnippet)
	}
	notes := []string{fmt.Sprintf("Retrieved dream %q by title match", d.Title)}
	return strings.Join(parts, "\n"), notes
}

func formatPatternDreams(res retrieval.Result) (string, []string) {
	if len(res.Dreams) == 0 {
		return "", nil
	}
	var blocks []string
	for _, d := range res.Dreams {
		var parts []string
		if d.Title != "" {
			parts = append(parts, "Dream: "+d.Title)
		}
		if d.SummaryShort != "" {
			parts = append(parts, "Summary: "+truncate(d.SummaryShort, summaryTruncate))
		}
		if d.MemorySnippet != "" {
			parts = append(parts, "Memory: "+truncate(d.MemorySnippet, snippetTruncate))
		}
		if len(parts) > 0 {
			blocks = append(blocks, strings.Join(parts, "\n"))
		}
	}
	if len(blocks) == 0 {
		return "", nil
	}
	notes := []string{fmt.Sprintf("Retrieved %d dreams via vector similarity search", len(blocks))}
	return strings.Join(blocks, "\n\n---\n\n"), notes
}

func formatCodeResults(res retrieval.Result) (string, []string) {
	if len(res.CodeResults) == 0 {
		return "", nil
	}
	var blocks []string
	for _, c := range res.CodeResults {
		var parts []string
		if c.FilePath != "" {
			parts = append(parts, "File: "+c.FilePath)
		}
		if c.Language != "" {
			parts = append(parts, "Language: "+c.Language)
		}
		description := c.Metadata.FunctionName
		if description == "" {
			description = c.Metadata.ClassName
		}
		if description == "" && c.FilePath != "" {
			description = strings.TrimSuffix(filepath.Base(c.FilePath), filepath.Ext(c.FilePath))
		}
		if description != "" {
			parts = append(parts, "Description: "+description)
		}
		if c.ChunkText != "" {
			parts = append(parts, fmt.Sprintf("```%s\n%s\n```", c.Language, truncate(c.ChunkText, codeTruncate)))
		}
		if len(parts) > 0 {
			blocks = append(blocks, strings.Join(parts, "\n"))
		}
	}
	if len(blocks) == 0 {
		return "", nil
	}
	notes := []string{fmt.Sprintf("Retrieved %d code chunks via vector similarity search", len(blocks))}
	return strings.Join(blocks, "\n\n---\n\n"), notes
}

func formatGenericMemories(res retrieval.Result) (string, []string) {
	if len(res.GenericMemories) == 0 {
		return "", nil
	}
	var blocks []string
	var notes []string
	for _, gm := range res.GenericMemories {
		rec := gm.Record
		var parts []string
		if rec.Title != "" {
			parts = append(parts, "Title: "+rec.Title)
		}
		if rec.SummaryShort != "" {
			parts = append(parts, "Summary: "+rec.SummaryShort)
		}
		if rec.MemorySnippet != "" {
			parts = append(parts, "Memory: "+rec.MemorySnippet)
		}
		if len(rec.KeyTopics) > 0 {
			parts = append(parts, "Topics: "+strings.Join(rec.KeyTopics, ", "))
		}
		if len(parts) == 0 {
			continue
		}
		blocks = append(blocks, strings.Join(parts, "\n"))
		if rec.SummaryShort != "" {
			notes = append(notes, "Previous conversation: "+truncate(rec.SummaryShort, 80))
		}
	}
	if len(blocks) == 0 {
		return "", nil
	}
	return strings.Join(blocks, "\n\n---\n\n"), notes
}

func formatKnowledge(summaries []string) (string, []string) {
	if len(summaries) == 0 {
		return "", nil
	}
	notes := make([]string, 0, len(summaries))
	for _, s := range summaries {
		notes = append(notes, "Project knowledge: "+truncate(s, noteTruncate))
	}
	return strings.Join(summaries, "\n\n"), notes
}

func formatExternalNotes(notes []Note) (string, []string) {
	if len(notes) == 0 {
		return "", nil
	}
	var blocks []string
	for _, n := range notes {
		blocks = append(blocks, fmt.Sprintf("From %s (%s):\n%s", n.Title, n.URI, n.ContentSnippet))
	}
	return strings.Join(blocks, "\n\n---\n\n"), []string{"Retrieved project-scoped external notes"}
}
