package context

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// fakeStore is a minimal in-memory memorystore.Store for context-package
// tests, matching the hand-written fake pattern used in
// internal/retrieval's own tests rather than a mocking library.
type fakeStore struct {
	knowledge    map[string]memorystore.ProjectKnowledge
	knowledgeErr error

	titleHits  []memorystore.MemoryRecord
	titleErr   error
	vectorHits []memorystore.MemoryHit
	vectorErr  error
	codeHits   []memorystore.CodeHit
	codeErr    error
	recent     []memorystore.MemoryRecord
	recentErr  error
}

func (f *fakeStore) UpsertSession(context.Context, uuid.UUID, string, string, time.Time) error {
	return nil
}
func (f *fakeStore) GetSession(context.Context, uuid.UUID) (memorystore.Session, error) {
	return memorystore.Session{}, nil
}
func (f *fakeStore) UpdateSessionProjectTag(context.Context, uuid.UUID, string) error { return nil }
func (f *fakeStore) AppendMessage(context.Context, uuid.UUID, memorystore.Role, string, map[string]any) error {
	return nil
}
func (f *fakeStore) LoadMessages(context.Context, uuid.UUID, int) ([]memorystore.Message, error) {
	return nil, nil
}
func (f *fakeStore) UpsertMemoryRecord(context.Context, memorystore.MemoryRecord) error { return nil }
func (f *fakeStore) UpsertMemoryRecordWithEmbedding(context.Context, memorystore.MemoryRecord, []float32) error {
	return nil
}
func (f *fakeStore) SetMemoryEmbedding(context.Context, uuid.UUID, []float32) error { return nil }
func (f *fakeStore) GetMemoryRecord(context.Context, uuid.UUID) (memorystore.MemoryRecord, error) {
	return memorystore.MemoryRecord{}, nil
}
func (f *fakeStore) DeleteMemoryRecord(context.Context, uuid.UUID) (bool, error) { return false, nil }
func (f *fakeStore) ListMemoryRecords(context.Context, string, int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}
func (f *fakeStore) ListRecentMemories(context.Context, string, int) ([]memorystore.MemoryRecord, error) {
	return f.recent, f.recentErr
}
func (f *fakeStore) SearchMemoryVector(context.Context, string, []float32, int) ([]memorystore.MemoryHit, error) {
	return f.vectorHits, f.vectorErr
}
func (f *fakeStore) SearchMemoryTitle(context.Context, string, string, int) ([]memorystore.MemoryRecord, error) {
	return f.titleHits, f.titleErr
}
func (f *fakeStore) GetProjectKnowledge(_ context.Context, projectTag string) (memorystore.ProjectKnowledge, bool, error) {
	if f.knowledgeErr != nil {
		return memorystore.ProjectKnowledge{}, false, f.knowledgeErr
	}
	pk, ok := f.knowledge[projectTag]
	return pk, ok, nil
}
func (f *fakeStore) InsertCodeChunk(context.Context, memorystore.CodeChunk) error { return nil }
func (f *fakeStore) SetCodeChunkEmbedding(context.Context, uuid.UUID, []float32) error {
	return nil
}
func (f *fakeStore) SearchCodeVector(context.Context, []float32, int, []string, []string) ([]memorystore.CodeHit, error) {
	return f.codeHits, f.codeErr
}
func (f *fakeStore) GetRepositoryMetadata(context.Context, string) (memorystore.RepositoryMetadata, bool, error) {
	return memorystore.RepositoryMetadata{}, false, nil
}
func (f *fakeStore) SaveRepositoryMetadata(context.Context, memorystore.RepositoryMetadata) error {
	return nil
}
func (f *fakeStore) ListMemoryRecordsMissingEmbedding(context.Context, string, int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}
func (f *fakeStore) ListCodeChunksMissingEmbedding(context.Context, string, int) ([]memorystore.CodeChunk, error) {
	return nil, nil
}
func (f *fakeStore) Close() error { return nil }

// fakeEmbedder implements embeddings.Provider with a fixed vector.
type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		v, err := f.Embed(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return len(f.vec) }
