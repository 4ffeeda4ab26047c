package indexer

import "strings"

// buildTranscript renders messages as "{role}: {content}" lines,
// newline-joined.
func buildTranscript(lines []TranscriptLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Role+": "+l.Content)
	}
	return strings.Join(parts, "\n")
}

// TranscriptLine is the minimal view of a message the prompt builder
// needs, independent of memorystore.Message's concrete Role type.
type TranscriptLine struct {
	Role    string
	Content string
}

const indexPromptTemplate = `You are organizing a conversation transcript into a structured memory record.

Respond with a single JSON object and nothing else. Your entire response must start with '{' and end with '}'.

Produce exactly these fields:
{
  "title": string (<=100 chars),
  "project": one of "THN" | "DAAS" | "FF" | "700B" | "general",
  "tags": [string, ...],
  "summary_short": string (1-2 sentences),
  "summary_detailed": string (multi-paragraph),
  "key_entities": {
    "people": [string, ...],
    "domains": [string, ...],
    "assets": [string, ...]
  },
  "key_topics": [string, ...],
  "memory_snippet": string (2-3 sentences)
}

Transcript:
%s

Remember: respond with JSON only, starting with '{' and ending with '}'. No explanation before or after.`

// buildIndexPrompt renders the organizer prompt for transcript.
func buildIndexPrompt(transcript string) string {
	return strings.Replace(indexPromptTemplate, "%s", transcript, 1)
}
