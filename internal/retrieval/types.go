package retrieval

import (
	"github.com/google/uuid"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// Kind discriminates which of the five retrieval shapes a Result holds.
type Kind int

const (
	// KindEmpty means no strategy found anything worth returning.
	KindEmpty Kind = iota
	// KindSingleDream is DAAS quoted-title mode, zero or one Dream.
	KindSingleDream
	// KindPatternDreams is DAAS vector-similarity mode, zero or more Dreams.
	KindPatternDreams
	// KindCode is code-chunk vector search.
	KindCode
	// KindGeneric is keyword-scored memory-record search.
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindSingleDream:
		return "single_dream"
	case KindPatternDreams:
		return "pattern_dreams"
	case KindCode:
		return "code"
	case KindGeneric:
		return "generic"
	default:
		return "empty"
	}
}

// Dream is a DAAS memory record as returned by either DAAS mode. Similarity
// is zero for single-dream mode, which matches by title rather than vector.
type Dream struct {
	SessionID     uuid.UUID
	Title         string
	SummaryShort  string
	MemorySnippet string
	Similarity    float32
}

// CodeResult is one hit from code-chunk vector search.
type CodeResult struct {
	FilePath   string
	Language   string
	ChunkText  string
	Metadata   memorystore.CodeChunkMetadata
	Similarity float32
}

// GenericMemory is one memory record surfaced by keyword scoring, along
// with the score that ranked it.
type GenericMemory struct {
	Record memorystore.MemoryRecord
	Score  int
}

// Result is the Retrieval sum type: exactly one of its slices is
// meaningful, selected by Kind. SingleDreamQuery holds the quoted title
// searched for in KindSingleDream, even on a miss, so the caller can
// compose a "no match for X" message.
type Result struct {
	Kind             Kind
	Dreams           []Dream
	SingleDreamQuery string
	CodeResults      []CodeResult
	GenericMemories  []GenericMemory
}

// Empty reports whether r carries no retrieved items at all.
func (r Result) Empty() bool {
	return len(r.Dreams) == 0 && len(r.CodeResults) == 0 && len(r.GenericMemories) == 0
}

// Outcome reifies the result of a best-effort retrieval step. A
// retrieval strategy never surfaces "nothing found" or "the embedding
// call failed" as a Go error to its caller, since retrieval must
// tolerate partial failure and never crash the caller — Err is carried
// here purely for logging.
type Outcome[T any] struct {
	Value T
	Found bool
	Err   error
}

// Ok wraps a successfully retrieved value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v, Found: true}
}

// Failed wraps a non-fatal error that degrades to an empty result.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Err: err}
}

// None represents a clean "nothing found" with no error.
func None[T any]() Outcome[T] {
	return Outcome[T]{}
}
