package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/xhad/pdfvec/internal/types"
)

// IndexFile is the database file created inside the storage directory.
const IndexFile = "index.db"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS records (
	id        TEXT PRIMARY KEY,
	position  INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding TEXT NOT NULL,
	metadata  TEXT
);
CREATE INDEX IF NOT EXISTS records_position_idx ON records(position);
CREATE TABLE IF NOT EXISTS index_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const metaDimension = "dimension"

// SQLiteStore keeps the index in a single SQLite file and answers queries
// with an exact cosine scan over every stored vector. Vectors are stored in
// pgvector's text form.
type SQLiteStore struct {
	db       *sql.DB
	tx       *sql.Tx // open between Replace and Persist
	path     string
	embedder embeddings.Embedder
}

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// conn routes every statement through the pending rebuild, if any. The
// pool holds one connection, which the transaction owns until it ends.
func (s *SQLiteStore) conn() sqlQuerier {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

var _ types.VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if needed) the index under config.Location.
func NewSQLiteStore(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder) (*SQLiteStore, error) {
	if config.Location == "" {
		return nil, errors.New("store: sqlite location is required")
	}
	if err := os.MkdirAll(config.Location, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	path := filepath.Join(config.Location, IndexFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, embedder: embedder}, nil
}

// Path returns the database file backing the store.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts, err := resolveOptions(s.embedder, options)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	texts, vectors, err := embedDocuments(ctx, opts.Embedder, docs, dim)
	if err != nil {
		return nil, err
	}

	if s.tx != nil {
		return s.insert(ctx, s.tx, docs, texts, vectors, dim)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids, err := s.insert(ctx, tx, docs, texts, vectors, dim)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return ids, nil
}

// insert writes one batch; dim is the stored dimension, 0 before the first.
func (s *SQLiteStore) insert(ctx context.Context, q sqlQuerier, docs []schema.Document, texts []string, vectors [][]float32, dim int) ([]string, error) {
	var next int
	if err := q.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM records`).Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to read next position: %w", err)
	}

	if dim == 0 {
		_, err := q.ExecContext(ctx, `INSERT INTO index_meta(key, value) VALUES(?, ?)`,
			metaDimension, strconv.Itoa(len(vectors[0])))
		if err != nil {
			return nil, fmt.Errorf("failed to record dimension: %w", err)
		}
	}

	stmt, err := q.PrepareContext(ctx,
		`INSERT INTO records(id, position, content, embedding, metadata) VALUES(?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		meta, err := encodeMetadata(doc.Metadata)
		if err != nil {
			return nil, err
		}
		id := uuid.NewString()
		if _, err := stmt.ExecContext(ctx, id, next+i, texts[i], pgvector.NewVector(vectors[i]), meta); err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

type scoredRecord struct {
	doc      schema.Document
	position int
	score    float64
}

// SimilaritySearch returns up to k documents ordered by descending cosine
// similarity to query. Ties keep insertion order.
func (s *SQLiteStore) SimilaritySearch(ctx context.Context, query string, k int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts, err := resolveOptions(s.embedder, options)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	queryVec, err := opts.Embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.conn().QueryContext(ctx,
		`SELECT id, position, content, embedding, metadata FROM records ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var scored []scoredRecord
	for rows.Next() {
		var (
			id, content string
			position    int
			vec         pgvector.Vector
			meta        sql.NullString
		)
		if err := rows.Scan(&id, &position, &content, &vec, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		score, err := cosineSimilarity(queryVec, vec.Slice())
		if err != nil {
			return nil, err
		}
		if opts.ScoreThreshold > 0 && score < float64(opts.ScoreThreshold) {
			continue
		}

		metadata, err := decodeMetadata(meta)
		if err != nil {
			return nil, err
		}
		metadata["id"] = id
		metadata["position"] = position

		scored = append(scored, scoredRecord{
			doc:      schema.Document{PageContent: content, Metadata: metadata, Score: float32(score)},
			position: position,
			score:    score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > k {
		scored = scored[:k]
	}

	docs := make([]schema.Document, len(scored))
	for i, r := range scored {
		docs[i] = r.doc
	}
	return docs, nil
}

func (s *SQLiteStore) Replace(ctx context.Context) error {
	if s.tx != nil {
		return errors.New("store: replace already in progress")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range []string{`DELETE FROM records`, `DELETE FROM index_meta`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	s.tx = tx
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

// Persist commits a pending rebuild and moves everything written to the
// WAL into the database file. A checkpoint blocked by another reader is
// left for the next one; committed writes are already durable.
func (s *SQLiteStore) Persist(ctx context.Context) error {
	if s.tx != nil {
		err := s.tx.Commit()
		s.tx = nil
		if err != nil {
			return fmt.Errorf("failed to commit rebuild: %w", err)
		}
	}

	var busy, logFrames, checkpointed int
	err := s.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to checkpoint index: %w", err)
	}
	return nil
}

// Close discards a rebuild that was never persisted.
func (s *SQLiteStore) Close() error {
	var rollbackErr error
	if s.tx != nil {
		rollbackErr = s.tx.Rollback()
		s.tx = nil
	}
	return errors.Join(rollbackErr, s.db.Close())
}

func (s *SQLiteStore) dimension(ctx context.Context) (int, error) {
	var value string
	err := s.conn().QueryRowContext(ctx, `SELECT value FROM index_meta WHERE key = ?`, metaDimension).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}
	return strconv.Atoi(value)
}

func encodeMetadata(meta map[string]any) (sql.NullString, error) {
	if len(meta) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(meta sql.NullString) (map[string]any, error) {
	out := map[string]any{}
	if !meta.Valid || meta.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(meta.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return out, nil
}
