package context

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/retrieval"
)

func TestRetrievalHeader_OnePerKind(t *testing.T) {
	assert.Equal(t, "Here is the specific dream you asked about", retrievalHeader(retrieval.KindSingleDream))
	assert.Equal(t, "Here are relevant dreams from your dream history", retrievalHeader(retrieval.KindPatternDreams))
	assert.Equal(t, "Here is relevant code from the repository", retrievalHeader(retrieval.KindCode))
	assert.Equal(t, "Here are relevant memories from past conversations in this project", retrievalHeader(retrieval.KindGeneric))
}

func TestFormatSingleDream_MatchFound(t *testing.T) {
	res := retrieval.Result{
		Kind: retrieval.KindSingleDream,
		Dreams: []retrieval.Dream{
			{Title: "The Flying Cathedral", SummaryShort: "A dream about flight.", MemorySnippet: "Clouds and bells."},
		},
	}
	body, notes := formatRetrieval(res)
	assert.Contains(t, body, "Dream: The Flying Cathedral")
	assert.Contains(t, body, "A dream about flight.")
	assert.Len(t, notes, 1)
}

func TestFormatSingleDream_NoMatchKeepsQuery(t *testing.T) {
	res := retrieval.Result{Kind: retrieval.KindSingleDream, SingleDreamQuery: "Missing Title"}
	body, notes := formatRetrieval(res)
	assert.Contains(t, body, `"Missing Title"`)
	assert.Nil(t, notes)
}

func TestFormatSingleDream_EmptyQueryAndNoDreamsReturnsEmpty(t *testing.T) {
	body, notes := formatRetrieval(retrieval.Result{Kind: retrieval.KindSingleDream})
	assert.Empty(t, body)
	assert.Nil(t, notes)
}

func TestFormatPatternDreams_JoinsWithSeparator(t *testing.T) {
	res := retrieval.Result{
		Kind: retrieval.KindPatternDreams,
		Dreams: []retrieval.Dream{
			{Title: "A", SummaryShort: "sa"},
			{Title: "B", SummaryShort: "sb"},
		},
	}
	body, notes := formatRetrieval(res)
	assert.Contains(t, body, "Dream: A")
	assert.Contains(t, body, "Dream: B")
	assert.Contains(t, body, "---")
	assert.Equal(t, []string{"Retrieved 2 dreams via vector similarity search"}, notes)
}

func TestFormatCodeResults_DescriptionFallsBackToFilename(t *testing.T) {
	res := retrieval.Result{
		Kind: retrieval.KindCode,
		CodeResults: []retrieval.CodeResult{
			{FilePath: "src/worker.py", Language: "python", ChunkText: "def run(): pass"},
		},
	}
	body, notes := formatRetrieval(res)
	assert.Contains(t, body, "File: src/worker.py")
	assert.Contains(t, body, "Description: worker")
	assert.Contains(t, body, "```python")
	assert.Len(t, notes, 1)
}

func TestFormatCodeResults_MetadataDescriptionPreferred(t *testing.T) {
	res := retrieval.Result{
		Kind: retrieval.KindCode,
		CodeResults: []retrieval.CodeResult{
			{FilePath: "src/worker.py", Metadata: memorystore.CodeChunkMetadata{FunctionName: "run"}},
		},
	}
	body, _ := formatRetrieval(res)
	assert.Contains(t, body, "Description: run")
}

func TestFormatGenericMemories_IncludesTopicsAndNotes(t *testing.T) {
	res := retrieval.Result{
		Kind: retrieval.KindGeneric,
		GenericMemories: []retrieval.GenericMemory{
			{Record: memorystore.MemoryRecord{Title: "T", SummaryShort: "S", KeyTopics: []string{"a", "b"}}},
		},
	}
	body, notes := formatRetrieval(res)
	assert.Contains(t, body, "Title: T")
	assert.Contains(t, body, "Topics: a, b")
	assert.Equal(t, []string{"Previous conversation: S"}, notes)
}

func TestFormatKnowledge_EmptyReturnsEmpty(t *testing.T) {
	body, notes := formatKnowledge(nil)
	assert.Empty(t, body)
	assert.Nil(t, notes)
}

func TestFormatExternalNotes_ComposesFromTitleAndURI(t *testing.T) {
	body, notes := formatExternalNotes([]Note{{Title: "Meditation log", URI: "notes://1", ContentSnippet: "stayed calm"}})
	assert.Contains(t, body, "From Meditation log (notes://1):")
	assert.Contains(t, body, "stayed calm")
	assert.Len(t, notes, 1)
}

func TestTruncate_AddsEllipsisOnlyWhenOverLimit(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 10))
	assert.Equal(t, "hel...", truncate("hello", 3))
}
