package context

import "context"

// Note is a single project-scoped external note surfaced by a
// NoteProvider, grounded on the MCP notes API's note shape (title, uri,
// content_snippet).
type Note struct {
	Title          string
	URI            string
	ContentSnippet string
}

// NoteProvider is the optional external note-resource collaborator. The
// Context Assembler calls it at most once per request and treats any
// error, or a nil provider, as "no notes available" rather than a
// failure.
type NoteProvider interface {
	ProjectNotes(ctx context.Context, projectTag, userMessage string, limit int) ([]Note, error)
}

const defaultNotesLimit = 5
