// Package memorystore implements the memory store: persistence for
// sessions, messages, memory records, project knowledge, and code chunks,
// plus the vector-similarity and exact-match queries the rest of the core
// needs. The cosine-distance operator used by the pgvector backend is
// never exposed above this package — callers only ever see
// SearchMemoryVector/SearchCodeVector.
package memorystore

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Session is a conversation.
type Session struct {
	ID         uuid.UUID
	Title      string
	ProjectTag string
	CreatedAt  time.Time
}

// Message is a single turn in a session. Meta holds the recognized
// opaque keys: model, created_at, mock_mode, interrupted, note_read.
type Message struct {
	ID        uuid.UUID
	SessionID uuid.UUID
	Role      Role
	Content   string
	Meta      map[string]any
	CreatedAt time.Time
}

// KeyEntities is the fixed sub-structure of a MemoryRecord's extracted
// entities, matching the indexer's organizer-prompt schema.
type KeyEntities struct {
	People  []string `json:"people"`
	Domains []string `json:"domains"`
	Assets  []string `json:"assets"`
}

// MemoryRecord is the indexed form of a completed session.
type MemoryRecord struct {
	SessionID        uuid.UUID
	ProjectTag       string
	Title            string
	Tags             []string
	SummaryShort     string
	SummaryDetailed  string
	KeyEntities      KeyEntities
	KeyTopics        []string
	MemorySnippet    string
	IndexerModel     string
	Version          int
	IndexedAt        time.Time
	Embedding        []float32 // nil unless ProjectTag uses vector retrieval
}

// ProjectKnowledge is a stable, hand-curated per-project descriptor. It
// is mutated only out-of-band; the core only reads it.
type ProjectKnowledge struct {
	ProjectTag  string
	Overview    string
	Rules       string
	SummaryList []string
}

// CodeChunkMetadata is the recognized set of keys for a CodeChunk's
// metadata map.
type CodeChunkMetadata struct {
	FunctionName string
	ClassName    string
	LineStart    int
	LineEnd      int
	Docstring    string
	IsAsync      bool
	Section      string
	ChunkIndex   int
}

// CodeChunk is a unit of indexed source.
type CodeChunk struct {
	ID                uuid.UUID
	RepositoryName    string
	FilePath          string
	Language          string
	ChunkText         string
	ChunkMetadata     CodeChunkMetadata
	Embedding         []float32
	ProductionTargets []string
	IndexedAt         time.Time
}

// RepositoryMetadata is bookkeeping for incremental code indexing.
type RepositoryMetadata struct {
	RepositoryName    string
	LocalPath         string
	LastIndexedCommit string
	LastIndexedAt     time.Time
	ProductionTargets []string
}

// Similarity pairs a retrieved record/chunk with its cosine similarity
// (1 - cosine_distance).
type MemoryHit struct {
	Record     MemoryRecord
	Similarity float32
}

type CodeHit struct {
	Chunk      CodeChunk
	Similarity float32
}

// Sentinel errors distinguishing caller-input mistakes from backend
// failures.
var (
	ErrSessionNotFound     = errors.New("memorystore: session not found")
	ErrMemoryRecordMissing = errors.New("memorystore: memory record not found")
	ErrCodeChunkMissing    = errors.New("memorystore: code chunk not found")
	ErrInvalidProjectTag   = errors.New("memorystore: invalid project tag")
	ErrEmptyTitle          = errors.New("memorystore: session title must not be empty")
	ErrConnectionFailed    = errors.New("memorystore: connection failed")
)
