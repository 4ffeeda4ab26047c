package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/braind/internal/memorystore"
	"github.com/fyrsmithlabs/braind/internal/projecttag"
)

// fakeStore is a minimal in-memory memorystore.Store sufficient for
// exercising the indexer pipeline; methods the pipeline never calls in
// these tests return zero values.
type fakeStore struct {
	sessions   map[uuid.UUID]memorystore.Session
	messages   map[uuid.UUID][]memorystore.Message
	records    map[uuid.UUID]memorystore.MemoryRecord
	updateTags []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: make(map[uuid.UUID]memorystore.Session),
		messages: make(map[uuid.UUID][]memorystore.Message),
		records:  make(map[uuid.UUID]memorystore.MemoryRecord),
	}
}

func (f *fakeStore) UpsertSession(ctx context.Context, id uuid.UUID, title, projectTag string, createdAt time.Time) error {
	f.sessions[id] = memorystore.Session{ID: id, Title: title, ProjectTag: projectTag, CreatedAt: createdAt}
	return nil
}

func (f *fakeStore) GetSession(ctx context.Context, id uuid.UUID) (memorystore.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return memorystore.Session{}, memorystore.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeStore) UpdateSessionProjectTag(ctx context.Context, id uuid.UUID, projectTag string) error {
	f.updateTags = append(f.updateTags, projectTag)
	s := f.sessions[id]
	s.ProjectTag = projectTag
	f.sessions[id] = s
	return nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role memorystore.Role, content string, meta map[string]any) error {
	f.messages[sessionID] = append(f.messages[sessionID], memorystore.Message{
		ID: uuid.New(), SessionID: sessionID, Role: role, Content: content, Meta: meta, CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) LoadMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]memorystore.Message, error) {
	return f.messages[sessionID], nil
}

func (f *fakeStore) UpsertMemoryRecord(ctx context.Context, rec memorystore.MemoryRecord) error {
	f.records[rec.SessionID] = rec
	return nil
}

func (f *fakeStore) UpsertMemoryRecordWithEmbedding(ctx context.Context, rec memorystore.MemoryRecord, embedding []float32) error {
	rec.Embedding = embedding
	f.records[rec.SessionID] = rec
	return nil
}

func (f *fakeStore) SetMemoryEmbedding(ctx context.Context, sessionID uuid.UUID, embedding []float32) error {
	rec := f.records[sessionID]
	rec.Embedding = embedding
	f.records[sessionID] = rec
	return nil
}

func (f *fakeStore) GetMemoryRecord(ctx context.Context, sessionID uuid.UUID) (memorystore.MemoryRecord, error) {
	rec, ok := f.records[sessionID]
	if !ok {
		return memorystore.MemoryRecord{}, memorystore.ErrMemoryRecordMissing
	}
	return rec, nil
}

func (f *fakeStore) DeleteMemoryRecord(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	if _, ok := f.records[sessionID]; !ok {
		return false, nil
	}
	delete(f.records, sessionID)
	return true, nil
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

func (f *fakeStore) InsertCodeChunk(ctx context.Context, chunk memorystore.CodeChunk) error { return nil }

func (f *fakeStore) SetCodeChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	return nil
}

func (f *fakeStore) SearchCodeVector(ctx context.Context, queryVector []float32, k int, repositoryFilter []string, productionFilter []string) ([]memorystore.CodeHit, error) {
	return nil, nil
}

func (f *fakeStore) GetRepositoryMetadata(ctx context.Context, repositoryName string) (memorystore.RepositoryMetadata, bool, error) {
	return memorystore.RepositoryMetadata{}, false, nil
}

func (f *fakeStore) SaveRepositoryMetadata(ctx context.Context, meta memorystore.RepositoryMetadata) error {
	return nil
}

func (f *fakeStore) ListMemoryRecordsMissingEmbedding(ctx context.Context, projectTag string, limit int) ([]memorystore.MemoryRecord, error) {
	return nil, nil
}

func (f *fakeStore) ListCodeChunksMissingEmbedding(ctx context.Context, repositoryName string, limit int) ([]memorystore.CodeChunk, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

var _ memorystore.Store = (*fakeStore)(nil)

// fakeLLM is a scripted LLM for pipeline tests.
type fakeLLM struct {
	healthErr  error
	response   string
	generateErr error
	model      string
}

func (f *fakeLLM) Health(ctx context.Context) error { return f.healthErr }
func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.response, nil
}
func (f *fakeLLM) Model() string { return f.model }

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

const validResponse = `{
  "title": "Discussed deployment strategy",
  "project": "general",
  "tags": ["deploy", "infra"],
  "summary_short": "Talked about deploys.",
  "summary_detailed": "A longer discussion about blue-green deploys.",
  "key_entities": {"people": ["alice"], "domains": [], "assets": []},
  "key_topics": ["deployment"],
  "memory_snippet": "Decided to use blue-green deploys."
}`

func seedSession(t *testing.T, store *fakeStore, tag string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.UpsertSession(context.Background(), id, "a session", tag, time.Now()))
	require.NoError(t, store.AppendMessage(context.Background(), id, memorystore.RoleUser, "hello", nil))
	require.NoError(t, store.AppendMessage(context.Background(), id, memorystore.RoleAssistant, "hi there", nil))
	return id
}

func TestIndexSession_SessionNotFound(t *testing.T) {
	store := newFakeStore()
	ix := New(store, &fakeLLM{}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})
	_, err := ix.IndexSession(context.Background(), uuid.New(), IndexOptions{})
	assert.ErrorIs(t, err, memorystore.ErrSessionNotFound)
}

func TestIndexSession_EmptySession(t *testing.T) {
	store := newFakeStore()
	id := uuid.New()
	require.NoError(t, store.UpsertSession(context.Background(), id, "empty", projecttag.General, time.Now()))
	ix := New(store, &fakeLLM{}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})
	_, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestIndexSession_IndexerUnavailable(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	ix := New(store, &fakeLLM{healthErr: errors.New("connection refused")}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})
	_, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	assert.ErrorIs(t, err, ErrIndexerUnavailable)
}

func TestIndexSession_GenerateFailureDegradesGracefully(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	ix := New(store, &fakeLLM{generateErr: errors.New("timeout")}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	assert.False(t, outcome.Indexed)

	_, getErr := store.GetMemoryRecord(context.Background(), id)
	assert.ErrorIs(t, getErr, memorystore.ErrMemoryRecordMissing)
	_, sessErr := store.GetSession(context.Background(), id)
	assert.NoError(t, sessErr)
}

func TestIndexSession_SpecificSessionTagWinsOverLLM(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.THN)
	ix := New(store, &fakeLLM{response: validResponse, model: "test-model"}, &fakeEmbedder{}, nil, zap.NewNop(), Config{Version: 3})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Indexed)
	assert.Equal(t, projecttag.THN, outcome.Record.ProjectTag)
	assert.Equal(t, "test-model", outcome.Record.IndexerModel)
	assert.Equal(t, 3, outcome.Record.Version)
	assert.Nil(t, outcome.Record.Embedding, "THN does not use vector retrieval")

	stored, err := store.GetMemoryRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, projecttag.THN, stored.ProjectTag)
}

func TestIndexSession_GeneralPromotedToDAASGetsEmbedding(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	response := `{"title":"t","project":"DAAS","tags":[],"summary_short":"s","summary_detailed":"d","key_entities":{"people":[],"domains":[],"assets":[]},"key_topics":[],"memory_snippet":"m"}`
	ix := New(store, &fakeLLM{response: response}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Indexed)
	assert.Equal(t, projecttag.DAAS, outcome.Record.ProjectTag)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, outcome.Record.Embedding)

	session, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, projecttag.DAAS, session.ProjectTag, "promotion must update the session row too")
}

func TestIndexSession_PreserveProjectKeepsGeneralDespiteDAASSuggestion(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	response := `{"title":"t","project":"DAAS","tags":[],"summary_short":"s","summary_detailed":"d","key_entities":{"people":[],"domains":[],"assets":[]},"key_topics":[],"memory_snippet":"m"}`
	ix := New(store, &fakeLLM{response: response}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{PreserveProject: true})
	require.NoError(t, err)
	assert.Equal(t, projecttag.General, outcome.Record.ProjectTag)
}

func TestIndexSession_EmbeddingFailureIsNonFatal(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.DAAS)
	response := `{"title":"t","project":"DAAS","tags":[],"summary_short":"s","summary_detailed":"d","key_entities":{"people":[],"domains":[],"assets":[]},"key_topics":[],"memory_snippet":"m"}`
	ix := New(store, &fakeLLM{response: response}, &fakeEmbedder{err: errors.New("rate limited")}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Indexed)
	assert.Nil(t, outcome.Record.Embedding)

	stored, err := store.GetMemoryRecord(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, projecttag.DAAS, stored.ProjectTag)
}

func TestIndexSession_MarkdownFallbackWhenResponseIsNotJSON(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	noisy := "I couldn't produce JSON, but here is what I found:\n**Title:** A rambling chat\nTags: [chat, misc]\nSummary: short summary here"
	ix := New(store, &fakeLLM{response: noisy}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	require.True(t, outcome.Indexed)
	assert.NotEmpty(t, outcome.Record.Title)
}

func TestIndexSession_OverrideProjectAppliesOnlyWhenGeneral(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.General)
	ix := New(store, &fakeLLM{response: validResponse}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	outcome, err := ix.IndexSession(context.Background(), id, IndexOptions{OverrideProject: "ff"})
	require.NoError(t, err)
	assert.Equal(t, projecttag.FF, outcome.Record.ProjectTag)

	session, err := store.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, projecttag.FF, session.ProjectTag)
}

func TestIndexSession_Idempotent(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.THN)
	ix := New(store, &fakeLLM{response: validResponse}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	first, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)
	second, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Record.SessionID, second.Record.SessionID)
	assert.Equal(t, first.Record.Title, second.Record.Title)
	assert.Equal(t, first.Record.ProjectTag, second.Record.ProjectTag)
}

func TestDeleteMemory_ReportsWhetherARowExisted(t *testing.T) {
	store := newFakeStore()
	id := seedSession(t, store, projecttag.THN)
	ix := New(store, &fakeLLM{response: validResponse}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})

	_, err := ix.IndexSession(context.Background(), id, IndexOptions{})
	require.NoError(t, err)

	deleted, err := ix.DeleteMemory(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, deleted)

	deletedAgain, err := ix.DeleteMemory(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, deletedAgain)
}

func TestBackfillEmbeddings_NoRecordsIsNoop(t *testing.T) {
	store := newFakeStore()
	ix := New(store, &fakeLLM{}, &fakeEmbedder{}, nil, zap.NewNop(), Config{})
	n, err := ix.BackfillEmbeddings(context.Background(), projecttag.DAAS)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
