package codeindex

import "github.com/fyrsmithlabs/braind/internal/memorystore"

// codeFile is a single file discovered during traversal.
type codeFile struct {
	// RelPath is relative to the repository root, matching
	// memorystore.CodeChunk.FilePath.
	RelPath  string
	FullPath string
	Language string
}

// chunk is a language parser's output before embedding.
type chunk struct {
	Text     string
	Metadata memorystore.CodeChunkMetadata
}

// Stats accounts for a single IndexRepository run. Per-file and
// per-chunk errors are collected here rather than aborting the run.
type Stats struct {
	FilesProcessed      int
	ChunksCreated       int
	EmbeddingsGenerated int
	Errors              []string
	Skipped             bool
}
