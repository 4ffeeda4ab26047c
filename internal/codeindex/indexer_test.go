package codeindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
)

// fakeStore is a minimal in-memory memorystore.Store sufficient for
// exercising the code indexer; methods it never calls return zero values.
type fakeStore struct {
	chunks   map[uuid.UUID]memorystore.CodeChunk
	repoMeta map[string]memorystore.RepositoryMetadata
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		chunks:   make(map[uuid.UUID]memorystore.CodeChunk),
		repoMeta: make(map[string]memorystore.RepositoryMetadata),
	}
}

func (f *fakeStore) UpsertSession(ctx context.Context, id uuid.UUID, title, projectTag string, createdAt time.Time) error {
	return nil
}
func (f *fakeStore) GetSession(ctx context.Context, id uuid.UUID) (memorystore.Session, error) {
	return memorystore.Session{}, memorystore.ErrSessionNotFound
}
func (f *fakeStore) UpdateSessionProjectTag(ctx context.Context, id uuid.UUID, projectTag string) error {
	return nil
}
func (f *fakeStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role memorystore.Role, content string, meta map[string]any) error {
	return nil
}
func (f *fakeStore) LoadMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]memorystore.Message, error) {
	return nil, nil
}
func (f *fakeStore) UpsertMemoryRecord(ctx context.Context, rec memorystore.MemoryRecord) error {
	return nil
}
func (f *fakeStore) UpsertMemoryRecordWithEmbedding(ctx context.Context, rec memorystore.MemoryRecord, embedding []float32) error {
	return nil
}
func (f *fakeStore) SetMemoryEmbedding(ctx context.Context, sessionID uuid.UUID, embedding []float32) error {
	return nil
}
func (f *fakeStore) GetMemoryRecord(ctx context.Context, sessionID uuid.UUID) (memorystore.MemoryRecord, error) {
	return memorystore.MemoryRecord{}, memorystore.ErrMemoryRecordMissing
}
func (f *fakeStore) DeleteMemoryRecord(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return false, nil
}
func (f *fakeStore) ListMemoryRecords(ctx context.Context, projectTag string, limit int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}
func (f *fakeStore) ListRecentMemories(ctx context.Context, projectTag string, limit int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}
func (f *fakeStore) SearchMemoryVector(ctx context.Context, projectTag string, queryVector []float32, k int) ([]memorystore.MemoryHit, error) {
	return nil, nil
}
func (f *fakeStore) SearchMemoryTitle(ctx context.Context, projectTag, titlePattern string, limit int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}
func (f *fakeStore) GetProjectKnowledge(ctx context.Context, projectTag string) (memorystore.ProjectKnowledge, bool, error) {
	return memorystore.ProjectKnowledge{}, false, nil
}

func (f *fakeStore) InsertCodeChunk(ctx context.Context, chunk memorystore.CodeChunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	f.chunks[chunk.ID] = chunk
	return nil
}

func (f *fakeStore) SetCodeChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	c, ok := f.chunks[id]
	if !ok {
		return memorystore.ErrCodeChunkMissing
	}
	c.Embedding = embedding
	f.chunks[id] = c
	return nil
}

func (f *fakeStore) SearchCodeVector(ctx context.Context, queryVector []float32, k int, repositoryFilter, productionFilter []string) ([]memorystore.CodeHit, error) {
	return nil, nil
}

func (f *fakeStore) GetRepositoryMetadata(ctx context.Context, repositoryName string) (memorystore.RepositoryMetadata, bool, error) {
	meta, ok := f.repoMeta[repositoryName]
	return meta, ok, nil
}

func (f *fakeStore) SaveRepositoryMetadata(ctx context.Context, meta memorystore.RepositoryMetadata) error {
	f.repoMeta[meta.RepositoryName] = meta
	return nil
}

func (f *fakeStore) ListMemoryRecordsMissingEmbedding(ctx context.Context, projectTag string, limit int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}

func (f *fakeStore) ListCodeChunksMissingEmbedding(ctx context.Context, repositoryName string, limit int) ([]memorystore.CodeChunk, error) {
	var out []memorystore.CodeChunk
	for _, c := range f.chunks {
		if c.Embedding == nil && (repositoryName == "" || c.RepositoryName == repositoryName) {
			out = append(out, c)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Close() error { return nil }

var _ memorystore.Store = (*fakeStore)(nil)

// fakeEmbedder returns a deterministic vector without hitting a network.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
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

func writeRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.py"), []byte("def handle():\n    return 1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "deploy.sh"), []byte("deploy() {\n  echo hi\n}\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "node_modules", "ignored.py"), []byte("x = 1"), 0o644))
	return dir
}

func TestIndexRepository_ChunksEmbedsAndStores(t *testing.T) {
	store := newFakeStore()
	ix := New(store, &fakeEmbedder{}, zap.NewNop())
	dir := writeRepo(t)

	stats, err := ix.IndexRepository(context.Background(), dir, "myrepo", []string{"prod-east"})
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 2, stats.FilesProcessed)
	assert.Equal(t, 2, stats.ChunksCreated)
	assert.Equal(t, 2, stats.EmbeddingsGenerated)
	assert.Empty(t, stats.Errors)
	assert.Len(t, store.chunks, 2)

	meta, ok := store.repoMeta["myrepo"]
	require.True(t, ok)
	assert.Equal(t, []string{"prod-east"}, meta.ProductionTargets)
}

func TestIndexRepository_NonGitDirectoryNeverSkips(t *testing.T) {
	// headCommitHash returns "" outside a git repository, and the skip
	// check is gated on a non-empty commit, so stored metadata is
	// never consulted and the run always proceeds.
	store := newFakeStore()
	dir := writeRepo(t)
	store.repoMeta["myrepo"] = memorystore.RepositoryMetadata{RepositoryName: "myrepo", LastIndexedCommit: ""}

	ix := New(store, &fakeEmbedder{}, zap.NewNop())
	stats, err := ix.IndexRepository(context.Background(), dir, "myrepo", nil)
	require.NoError(t, err)
	assert.False(t, stats.Skipped)
	assert.Equal(t, 2, stats.FilesProcessed)
}

func TestIndexRepository_EmbeddingFailureAccumulatesError(t *testing.T) {
	store := newFakeStore()
	dir := writeRepo(t)
	ix := New(store, &fakeEmbedder{err: errEmbedFailed{}}, zap.NewNop())

	stats, err := ix.IndexRepository(context.Background(), dir, "myrepo", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.EmbeddingsGenerated)
	assert.NotEmpty(t, stats.Errors)
}

func TestBackfillCodeEmbeddings_UpdatesWithoutDuplicating(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	store.chunks[id] = memorystore.CodeChunk{
		ID:             id,
		RepositoryName: "myrepo",
		FilePath:       "main.py",
		ChunkText:      "def handle(): pass",
	}

	ix := New(store, &fakeEmbedder{}, zap.NewNop())
	total, err := ix.BackfillCodeEmbeddings(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, store.chunks, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, store.chunks[id].Embedding)
}

func TestBackfillCodeEmbeddings_NoMissingRecordsIsNoop(t *testing.T) {
	store := newFakeStore()
	ix := New(store, &fakeEmbedder{}, zap.NewNop())
	total, err := ix.BackfillCodeEmbeddings(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

type errEmbedFailed struct{}

func (errEmbedFailed) Error() string { return "embedding failed" }
