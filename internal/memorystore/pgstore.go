package memorystore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fyrsmithlabs/braind/internal/projecttag"
)

// queryExecer is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// upsertMemoryRecordTx/setEmbeddingTx run either standalone or inside a
// transaction so the upsert-memory-record-plus-embedding path can share
// one transaction.
type queryExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PGConfig configures the Postgres + pgvector backed Store.
type PGConfig struct {
	DSN             string `koanf:"dsn"`
	MaxConns        int32  `koanf:"max_conns"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
}

// PGStore is the production Store backend: raw SQL against a Postgres
// database with the pgvector extension. Tables: conversations, messages,
// project_knowledge, conversation_index, code_index, with vector(1536)
// embedding columns and cascading delete from conversations to
// messages/conversation_index.
//
// The `<=>` cosine-distance operator never appears outside this file.
type PGStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PGStore)(nil)

// NewPGStore connects to Postgres using cfg and returns a ready Store.
// It does not create the schema; schema bootstrap is handled by
// surrounding deployment tooling, not this package.
func NewPGStore(ctx context.Context, cfg PGConfig) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	connectCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		connectCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(connectCtx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return &PGStore{pool: pool}, nil
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) UpsertSession(ctx context.Context, id uuid.UUID, title, projectTag string, createdAt time.Time) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	tag := projecttag.Normalize(projectTag)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, title, project, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, project = EXCLUDED.project
	`, id, title, tag, createdAt)
	return err
}

func (s *PGStore) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var sess Session
	sess.ID = id
	err := s.pool.QueryRow(ctx, `
		SELECT title, project, created_at FROM conversations WHERE id = $1
	`, id).Scan(&sess.Title, &sess.ProjectTag, &sess.CreatedAt)
	if err == pgx.ErrNoRows {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *PGStore) UpdateSessionProjectTag(ctx context.Context, id uuid.UUID, projectTag string) error {
	tag := projecttag.Normalize(projectTag)
	tag_, err := s.pool.Exec(ctx, `UPDATE conversations SET project = $1 WHERE id = $2`, tag, id)
	if err != nil {
		return err
	}
	if tag_.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PGStore) AppendMessage(ctx context.Context, sessionID uuid.UUID, role Role, content string, meta map[string]any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("memorystore: marshal message meta: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO messages (id, session_id, role, content, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New(), sessionID, string(role), content, metaJSON)
	return err
}

func (s *PGStore) LoadMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]Message, error) {
	query := `
		SELECT id, role, content, meta, created_at
		FROM messages WHERE session_id = $1
		ORDER BY created_at ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var role string
		var metaJSON []byte
		if err := rows.Scan(&m.ID, &role, &m.Content, &metaJSON, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.SessionID = sessionID
		m.Role = Role(role)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &m.Meta); err != nil {
				return nil, fmt.Errorf("memorystore: unmarshal message meta: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PGStore) UpsertMemoryRecord(ctx context.Context, rec MemoryRecord) error {
	return s.upsertMemoryRecordTx(ctx, s.pool, rec)
}

func (s *PGStore) UpsertMemoryRecordWithEmbedding(ctx context.Context, rec MemoryRecord, embedding []float32) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.upsertMemoryRecordTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := s.setEmbeddingTx(ctx, tx, rec.SessionID, embedding); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) upsertMemoryRecordTx(ctx context.Context, q queryExecer, rec MemoryRecord) error {
	tag := projecttag.Normalize(rec.ProjectTag)
	entitiesJSON, err := json.Marshal(rec.KeyEntities)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO conversation_index
			(session_id, project, title, tags, summary_short, summary_detailed,
			 key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (session_id) DO UPDATE SET
			project = EXCLUDED.project,
			title = EXCLUDED.title,
			tags = EXCLUDED.tags,
			summary_short = EXCLUDED.summary_short,
			summary_detailed = EXCLUDED.summary_detailed,
			key_entities = EXCLUDED.key_entities,
			key_topics = EXCLUDED.key_topics,
			memory_snippet = EXCLUDED.memory_snippet,
			indexer_model = EXCLUDED.indexer_model,
			version = EXCLUDED.version,
			indexed_at = NOW()
	`, rec.SessionID, tag, rec.Title, rec.Tags, rec.SummaryShort, rec.SummaryDetailed,
		entitiesJSON, rec.KeyTopics, rec.MemorySnippet, rec.IndexerModel, rec.Version)
	return err
}

func (s *PGStore) SetMemoryEmbedding(ctx context.Context, sessionID uuid.UUID, embedding []float32) error {
	return s.setEmbeddingTx(ctx, s.pool, sessionID, embedding)
}

func (s *PGStore) setEmbeddingTx(ctx context.Context, q queryExecer, sessionID uuid.UUID, embedding []float32) error {
	_, err := q.Exec(ctx, `
		UPDATE conversation_index SET embedding = $1::vector WHERE session_id = $2
	`, vectorLiteral(embedding), sessionID)
	return err
}

func (s *PGStore) GetMemoryRecord(ctx context.Context, sessionID uuid.UUID) (MemoryRecord, error) {
	rec, found, err := s.scanMemoryRecord(ctx, `
		SELECT session_id, project, title, tags, summary_short, summary_detailed,
		       key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at, embedding
		FROM conversation_index WHERE session_id = $1
	`, sessionID)
	if err != nil {
		return MemoryRecord{}, err
	}
	if !found {
		return MemoryRecord{}, ErrMemoryRecordMissing
	}
	return rec, nil
}

func (s *PGStore) scanMemoryRecord(ctx context.Context, query string, args ...any) (MemoryRecord, bool, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return MemoryRecord{}, false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return MemoryRecord{}, false, rows.Err()
	}
	rec, err := scanMemoryRow(rows)
	return rec, true, err
}

// rowScanner abstracts pgx.Rows for scanning a single memory record.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemoryRow(r rowScanner) (MemoryRecord, error) {
	var rec MemoryRecord
	var entitiesJSON []byte
	var embeddingStr *string
	if err := r.Scan(&rec.SessionID, &rec.ProjectTag, &rec.Title, &rec.Tags,
		&rec.SummaryShort, &rec.SummaryDetailed, &entitiesJSON, &rec.KeyTopics,
		&rec.MemorySnippet, &rec.IndexerModel, &rec.Version, &rec.IndexedAt, &embeddingStr); err != nil {
		return MemoryRecord{}, err
	}
	if len(entitiesJSON) > 0 {
		if err := json.Unmarshal(entitiesJSON, &rec.KeyEntities); err != nil {
			return MemoryRecord{}, err
		}
	}
	if embeddingStr != nil {
		vec, err := parseVectorLiteral(*embeddingStr)
		if err != nil {
			return MemoryRecord{}, err
		}
		rec.Embedding = vec
	}
	return rec, nil
}

func (s *PGStore) DeleteMemoryRecord(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversation_index WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) ListMemoryRecords(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	return s.listMemoryRecords(ctx, projectTag, limit, "indexed_at DESC")
}

func (s *PGStore) ListRecentMemories(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	return s.listMemoryRecords(ctx, projectTag, limit, "indexed_at DESC")
}

func (s *PGStore) listMemoryRecords(ctx context.Context, projectTag string, limit int, orderBy string) ([]MemoryRecord, error) {
	query := `
		SELECT session_id, project, title, tags, summary_short, summary_detailed,
		       key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at, embedding
		FROM conversation_index`
	var args []any
	if projectTag != "" {
		query += " WHERE project = $1"
		args = append(args, projecttag.Normalize(projectTag))
	}
	query += " ORDER BY " + orderBy
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) ListMemoryRecordsMissingEmbedding(ctx context.Context, projectTag string, limit int) ([]MemoryRecord, error) {
	query := `
		SELECT session_id, project, title, tags, summary_short, summary_detailed,
		       key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at, embedding
		FROM conversation_index
		WHERE embedding IS NULL`
	var args []any
	if projectTag != "" {
		args = append(args, projecttag.Normalize(projectTag))
		query += fmt.Sprintf(" AND project = $%d", len(args))
	}
	query += " ORDER BY indexed_at ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) SearchMemoryVector(ctx context.Context, projectTag string, queryVector []float32, k int) ([]MemoryHit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, project, title, tags, summary_short, summary_detailed,
		       key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at, embedding,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM conversation_index
		WHERE project = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $3
	`, vectorLiteral(queryVector), projecttag.Normalize(projectTag), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryHit
	for rows.Next() {
		var rec MemoryRecord
		var entitiesJSON []byte
		var embeddingStr *string
		var similarity float32
		if err := rows.Scan(&rec.SessionID, &rec.ProjectTag, &rec.Title, &rec.Tags,
			&rec.SummaryShort, &rec.SummaryDetailed, &entitiesJSON, &rec.KeyTopics,
			&rec.MemorySnippet, &rec.IndexerModel, &rec.Version, &rec.IndexedAt, &embeddingStr, &similarity); err != nil {
			return nil, err
		}
		if len(entitiesJSON) > 0 {
			if err := json.Unmarshal(entitiesJSON, &rec.KeyEntities); err != nil {
				return nil, err
			}
		}
		if embeddingStr != nil {
			vec, err := parseVectorLiteral(*embeddingStr)
			if err != nil {
				return nil, err
			}
			rec.Embedding = vec
		}
		out = append(out, MemoryHit{Record: rec, Similarity: similarity})
	}
	return out, rows.Err()
}

func (s *PGStore) SearchMemoryTitle(ctx context.Context, projectTag, titlePattern string, limit int) ([]MemoryRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, project, title, tags, summary_short, summary_detailed,
		       key_entities, key_topics, memory_snippet, indexer_model, version, indexed_at, embedding
		FROM conversation_index
		WHERE project = $1 AND title ILIKE $2
		ORDER BY indexed_at DESC
		LIMIT $3
	`, projecttag.Normalize(projectTag), "%"+titlePattern+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MemoryRecord
	for rows.Next() {
		rec, err := scanMemoryRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *PGStore) GetProjectKnowledge(ctx context.Context, projectTag string) (ProjectKnowledge, bool, error) {
	var pk ProjectKnowledge
	pk.ProjectTag = projecttag.Normalize(projectTag)
	var summaryJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT overview, rules, summary_list FROM project_knowledge WHERE project = $1
	`, pk.ProjectTag).Scan(&pk.Overview, &pk.Rules, &summaryJSON)
	if err == pgx.ErrNoRows {
		return ProjectKnowledge{}, false, nil
	}
	if err != nil {
		return ProjectKnowledge{}, false, err
	}
	if len(summaryJSON) > 0 {
		if err := json.Unmarshal(summaryJSON, &pk.SummaryList); err != nil {
			return ProjectKnowledge{}, false, err
		}
	}
	return pk, true, nil
}

func (s *PGStore) InsertCodeChunk(ctx context.Context, chunk CodeChunk) error {
	metaJSON, err := json.Marshal(chunk.ChunkMetadata)
	if err != nil {
		return err
	}
	var embeddingArg any
	if chunk.Embedding != nil {
		embeddingArg = vectorLiteral(chunk.Embedding)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO code_index
			(id, repository_name, file_path, language, chunk_text, chunk_metadata,
			 embedding, production_targets, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector, $8, NOW())
	`, chunk.ID, chunk.RepositoryName, chunk.FilePath, chunk.Language, chunk.ChunkText,
		metaJSON, embeddingArg, chunk.ProductionTargets)
	return err
}

func (s *PGStore) SetCodeChunkEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE code_index SET embedding = $1::vector WHERE id = $2
	`, vectorLiteral(embedding), id)
	return err
}

func (s *PGStore) SearchCodeVector(ctx context.Context, queryVector []float32, k int, repositoryFilter, productionFilter []string) ([]CodeHit, error) {
	query := `
		SELECT id, repository_name, file_path, language, chunk_text, chunk_metadata,
		       embedding, production_targets, indexed_at,
		       1 - (embedding <=> $1::vector) AS similarity
		FROM code_index
		WHERE embedding IS NOT NULL`
	args := []any{vectorLiteral(queryVector)}
	if len(repositoryFilter) > 0 {
		args = append(args, repositoryFilter)
		query += fmt.Sprintf(" AND repository_name = ANY($%d)", len(args))
	}
	if len(productionFilter) > 0 {
		args = append(args, productionFilter)
		query += fmt.Sprintf(" AND production_targets && $%d", len(args))
	}
	args = append(args, k)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1::vector LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodeHit
	for rows.Next() {
		var c CodeChunk
		var metaJSON []byte
		var embeddingStr *string
		var similarity float32
		if err := rows.Scan(&c.ID, &c.RepositoryName, &c.FilePath, &c.Language, &c.ChunkText,
			&metaJSON, &embeddingStr, &c.ProductionTargets, &c.IndexedAt, &similarity); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &c.ChunkMetadata); err != nil {
				return nil, err
			}
		}
		if embeddingStr != nil {
			vec, err := parseVectorLiteral(*embeddingStr)
			if err != nil {
				return nil, err
			}
			c.Embedding = vec
		}
		out = append(out, CodeHit{Chunk: c, Similarity: similarity})
	}
	return out, rows.Err()
}

func (s *PGStore) ListCodeChunksMissingEmbedding(ctx context.Context, repositoryName string, limit int) ([]CodeChunk, error) {
	query := `
		SELECT id, repository_name, file_path, language, chunk_text, chunk_metadata,
		       embedding, production_targets, indexed_at
		FROM code_index WHERE embedding IS NULL`
	var args []any
	if repositoryName != "" {
		args = append(args, repositoryName)
		query += fmt.Sprintf(" AND repository_name = $%d", len(args))
	}
	query += " ORDER BY indexed_at ASC"
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CodeChunk
	for rows.Next() {
		var c CodeChunk
		var metaJSON []byte
		var embeddingStr *string
		if err := rows.Scan(&c.ID, &c.RepositoryName, &c.FilePath, &c.Language, &c.ChunkText,
			&metaJSON, &embeddingStr, &c.ProductionTargets, &c.IndexedAt); err != nil {
			return nil, err
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &c.ChunkMetadata); err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PGStore) GetRepositoryMetadata(ctx context.Context, repositoryName string) (RepositoryMetadata, bool, error) {
	var m RepositoryMetadata
	m.RepositoryName = repositoryName
	err := s.pool.QueryRow(ctx, `
		SELECT local_path, last_indexed_commit, last_indexed_at, production_targets
		FROM repository_metadata WHERE repository_name = $1
	`, repositoryName).Scan(&m.LocalPath, &m.LastIndexedCommit, &m.LastIndexedAt, &m.ProductionTargets)
	if err == pgx.ErrNoRows {
		return RepositoryMetadata{}, false, nil
	}
	if err != nil {
		return RepositoryMetadata{}, false, err
	}
	return m, true, nil
}

func (s *PGStore) SaveRepositoryMetadata(ctx context.Context, meta RepositoryMetadata) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO repository_metadata (repository_name, local_path, last_indexed_commit, last_indexed_at, production_targets)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (repository_name) DO UPDATE SET
			local_path = EXCLUDED.local_path,
			last_indexed_commit = EXCLUDED.last_indexed_commit,
			last_indexed_at = EXCLUDED.last_indexed_at,
			production_targets = EXCLUDED.production_targets
	`, meta.RepositoryName, meta.LocalPath, meta.LastIndexedCommit, meta.LastIndexedAt, meta.ProductionTargets)
	return err
}

// vectorLiteral formats a float32 vector as the pgvector text literal
// '[0.1,0.2,...]' expected by a vector(1536) column, matching
// original_source/brain_core/daas_retrieval.py's embedding_str format.
func vectorLiteral(v []float32) string {
	if v == nil {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVectorLiteral parses a pgvector text representation back into a
// []float32.
func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("memorystore: parse vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
