package memorystore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"

	"github.com/fyrsmithlabs/braind/internal/projecttag"
)

// vectorQueryPrefix marks a chromem query string as carrying a
// pre-computed query vector rather than text to be embedded. chromem-go's
// Collection.Query always routes its query argument through the
// collection's embeddingFunc; ChromemStore's embeddingFunc special-cases
// this prefix so that callers who already hold a query embedding (every
// caller in this codebase, since C1 is a separate component from the
// store) never pay for a second, redundant embedding call.
const vectorQueryPrefix = "\x00vec:"

// ChromemConfig configures the embedded, dependency-free dev-mode Store
// backend used when ENV_MODE=development and no Postgres DSN is
// configured.
type ChromemConfig struct {
	Path string `koanf:"path"`
}

// ChromemStore is a development-only Store backend built on chromem-go
// for vector search, with plain in-memory maps backing the relational
// bookkeeping (sessions, messages, project knowledge, repository
// metadata) that chromem, a pure vector store, has no notion of. It
// implements the same Store interface as PGStore so C6/C7 callers never
// know which backend answered them. Not meant for production use: no
// cascading-delete transaction semantics, and state above what chromem
// persists to disk is lost on restart.
type ChromemStore struct {
	db *chromem.DB

	mu            sync.RWMutex
	sessions      map[uuid.UUID]Session
	messages      map[uuid.UUID][]Message
	memRecords    map[uuid.UUID]MemoryRecord
	codeChunks    map[uuid.UUID]CodeChunk
	knowledge     map[string]ProjectKnowledge
	repoMeta      map[string]RepositoryMetadata

	conversationsCol *chromem.Collection
	codeCol          *chromem.Collection
}

var _ Store = (*ChromemStore)(nil)

func passthroughEmbeddingFunc(_ context.Context, text string) ([]float32, error) {
	if !strings.HasPrefix(text, vectorQueryPrefix) {
		return nil, fmt.Errorf("memorystore: chromem dev backend received a text query %q; only vector queries are supported (pass the query embedding, computed by the embeddings.Provider, as the query text)", text)
	}
	return decodeVectorQuery(text)
}

func encodeVectorQuery(v []float32) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return vectorQueryPrefix + strings.Join(parts, ",")
}

func decodeVectorQuery(s string) ([]float32, error) {
	s = strings.TrimPrefix(s, vectorQueryPrefix)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}

// NewChromemStore creates a dev-mode Store rooted at cfg.Path.
func NewChromemStore(cfg ChromemConfig) (*ChromemStore, error) {
	path := cfg.Path
	if path == "" {
		path = "./braind-dev-store"
	}
	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("memorystore: open chromem db: %w", err)
	}
	conv, err := db.GetOrCreateCollection("conversation_index", nil, passthroughEmbeddingFunc)
	if err != nil {
		return nil, err
	}
	code, err := db.GetOrCreateCollection("code_index", nil, passthroughEmbeddingFunc)
	if err != nil {
		return nil, err
	}
	return &ChromemStore{
		db:               db,
		sessions:         make(map[uuid.UUID]Session),
		messages:         make(map[uuid.UUID][]Message),
		memRecords:       make(map[uuid.UUID]MemoryRecord),
		codeChunks:       make(map[uuid.UUID]CodeChunk),
		knowledge:        make(map[string]ProjectKnowledge),
		repoMeta:         make(map[string]RepositoryMetadata),
		conversationsCol: conv,
		codeCol:          code,
	}, nil
}

func (s *ChromemStore) Close() error { return nil }

func (s *ChromemStore) UpsertSession(_ context.Context, id uuid.UUID, title, projectTag string, createdAt time.Time) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = Session{ID: id, Title: title, ProjectTag: projecttag.Normalize(projectTag), CreatedAt: createdAt}
	return nil
}

func (s *ChromemStore) GetSession(_ context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *ChromemStore) UpdateSessionProjectTag(_ context.Context, id uuid.UUID, projectTag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.ProjectTag = projecttag.Normalize(projectTag)
	s.sessions[id] = sess
	return nil
}

func (s *ChromemStore) AppendMessage(_ context.Context, sessionID uuid.UUID, role Role, content string, meta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], Message{
		ID: uuid.New(), SessionID: sessionID, Role: role, Content: content, Meta: meta, CreatedAt: time.Now(),
	})
	return nil
}

func (s *ChromemStore) LoadMessages(_ context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := append([]Message(nil), s.messages[sessionID]...)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (s *ChromemStore) upsertVectorDoc(ctx context.Context, col *chromem.Collection, id string, metadata map[string]string, embedding []float32) error {
	if embedding == nil {
		return nil
	}
	doc := chromem.Document{ID: id, Content: id, Metadata: metadata, Embedding: embedding}
	return col.AddDocuments(ctx, []chromem.Document{doc}, 1)
}

func (s *ChromemStore) UpsertMemoryRecord(ctx context.Context, rec MemoryRecord) error {
	rec.ProjectTag = projecttag.Normalize(rec.ProjectTag)
	rec.IndexedAt = time.Now()

	s.mu.Lock()
	s.memRecords[rec.SessionID] = rec
	s.mu.Unlock()

	return s.upsertVectorDoc(ctx, s.conversationsCol, rec.SessionID.String(),
		map[string]string{"project": rec.ProjectTag}, rec.Embedding)
}

func (s *ChromemStore) UpsertMemoryRecordWithEmbedding(ctx context.Context, rec MemoryRecord, embedding []float32) error {
	rec.Embedding = embedding
	return s.UpsertMemoryRecord(ctx, rec)
}

func (s *ChromemStore) SetMemoryEmbedding(ctx context.Context, sessionID uuid.UUID, embedding []float32) error {
	rec, err := s.GetMemoryRecord(ctx, sessionID)
	if err != nil {
		return err
	}
	rec.Embedding = embedding
	return s.UpsertMemoryRecord(ctx, rec)
}

func (s *ChromemStore) GetMemoryRecord(_ context.Context, sessionID uuid.UUID) (MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.memRecords[sessionID]
	if !ok {
		return MemoryRecord{}, ErrMemoryRecordMissing
	}
	return rec, nil
}

func (s *ChromemStore) DeleteMemoryRecord(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	_, existed := s.memRecords[sessionID]
	delete(s.memRecords, sessionID)
	s.mu.Unlock()

	if !existed {
		return false, nil
	}
	_ = s.conversationsCol.Delete(ctx, nil, nil, sessionID.String())
	return true, nil
}

func (s *ChromemStore) allMemoryRecords(projectTag string) []MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []MemoryRecord
	for _, rec := range s.memRecords {
		if projectTag != "" && rec.ProjectTag != projecttag.Normalize(projectTag) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (s *ChromemStore) ListMemoryRecords(_ context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	recs := s.allMemoryRecords(projectTag)
	sort.Slice(recs, func(i, j int) bool { return recs[i].IndexedAt.After(recs[j].IndexedAt) })
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *ChromemStore) ListRecentMemories(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	return s.ListMemoryRecords(ctx, projectTag, limit)
}

func (s *ChromemStore) ListMemoryRecordsMissingEmbedding(_ context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	recs := s.allMemoryRecords(projectTag)
	var out []MemoryRecord
	for _, r := range recs {
		if r.Embedding == nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IndexedAt.Before(out[j].IndexedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ChromemStore) SearchMemoryVector(ctx context.Context, projectTag string, queryVector []float32, k int) ([]MemoryHit, error) {
	count := s.conversationsCol.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	filter := map[string]string{"project": projecttag.Normalize(projectTag)}
	results, err := s.conversationsCol.Query(ctx, encodeVectorQuery(queryVector), k, filter, nil)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MemoryHit, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		rec, ok := s.memRecords[id]
		if !ok {
			continue
		}
		out = append(out, MemoryHit{Record: rec, Similarity: r.Similarity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

func (s *ChromemStore) SearchMemoryTitle(_ context.Context, projectTag, titlePattern string, limit int) ([]MemoryRecord, error) {
	recs := s.allMemoryRecords(projectTag)
	pattern := strings.ToLower(titlePattern)
	var matches []MemoryRecord
	for _, r := range recs {
		if strings.Contains(strings.ToLower(r.Title), pattern) {
			matches = append(matches, r)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].IndexedAt.After(matches[j].IndexedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *ChromemStore) GetProjectKnowledge(_ context.Context, projectTag string) (ProjectKnowledge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pk, ok := s.knowledge[projecttag.Normalize(projectTag)]
	return pk, ok, nil
}

// SetProjectKnowledge is a dev-mode-only seam for tests and local setup;
// production writes to project_knowledge happen out-of-band.
func (s *ChromemStore) SetProjectKnowledge(pk ProjectKnowledge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pk.ProjectTag = projecttag.Normalize(pk.ProjectTag)
	s.knowledge[pk.ProjectTag] = pk
}

func (s *ChromemStore) InsertCodeChunk(ctx context.Context, chunk CodeChunk) error {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}
	chunk.IndexedAt = time.Now()

	s.mu.Lock()
	s.codeChunks[chunk.ID] = chunk
	s.mu.Unlock()

	return s.upsertVectorDoc(ctx, s.codeCol, chunk.ID.String(),
		map[string]string{"repository_name": chunk.RepositoryName}, chunk.Embedding)
}

func (s *ChromemStore) SetCodeChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	s.mu.Lock()
	chunk, ok := s.codeChunks[id]
	if !ok {
		s.mu.Unlock()
		return ErrCodeChunkMissing
	}
	chunk.Embedding = embedding
	s.codeChunks[id] = chunk
	s.mu.Unlock()

	return s.upsertVectorDoc(ctx, s.codeCol, chunk.ID.String(),
		map[string]string{"repository_name": chunk.RepositoryName}, embedding)
}

func (s *ChromemStore) allCodeChunks() []CodeChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CodeChunk, 0, len(s.codeChunks))
	for _, c := range s.codeChunks {
		out = append(out, c)
	}
	return out
}

func (s *ChromemStore) SearchCodeVector(ctx context.Context, queryVector []float32, k int, repositoryFilter, productionFilter []string) ([]CodeHit, error) {
	count := s.codeCol.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	results, err := s.codeCol.Query(ctx, encodeVectorQuery(queryVector), k, nil, nil)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	repoSet := toSet(repositoryFilter)
	prodSet := toSet(productionFilter)
	out := make([]CodeHit, 0, len(results))
	for _, r := range results {
		id, err := uuid.Parse(r.ID)
		if err != nil {
			continue
		}
		c, ok := s.codeChunks[id]
		if !ok {
			continue
		}
		if len(repoSet) > 0 && !repoSet[c.RepositoryName] {
			continue
		}
		if len(prodSet) > 0 && !anyInSet(c.ProductionTargets, prodSet) {
			continue
		}
		out = append(out, CodeHit{Chunk: c, Similarity: r.Similarity})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return out, nil
}

func (s *ChromemStore) ListCodeChunksMissingEmbedding(_ context.Context, repositoryName string, limit int) ([]CodeChunk, error) {
	chunks := s.allCodeChunks()
	var out []CodeChunk
	for _, c := range chunks {
		if c.Embedding != nil {
			continue
		}
		if repositoryName != "" && c.RepositoryName != repositoryName {
			continue
		}
		out = append(out, c)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ChromemStore) GetRepositoryMetadata(_ context.Context, repositoryName string) (RepositoryMetadata, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.repoMeta[repositoryName]
	return m, ok, nil
}

func (s *ChromemStore) SaveRepositoryMetadata(_ context.Context, meta RepositoryMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repoMeta[meta.RepositoryName] = meta
	return nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func anyInSet(items []string, set map[string]bool) bool {
	for _, i := range items {
		if set[i] {
			return true
		}
	}
	return false
}
