package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"

	"github.com/xhad/pdfvec/internal/types"
)

// PGVectorStore keeps the index in a PostgreSQL table with a pgvector
// column and lets the database rank rows by cosine distance.
type PGVectorStore struct {
	config   VectorStoreConfig
	table    string
	pool     *pgxpool.Pool
	tx       pgx.Tx // open between Replace and Persist
	embedder embeddings.Embedder
}

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

func (vs *PGVectorStore) conn() pgQuerier {
	if vs.tx != nil {
		return vs.tx
	}
	return vs.pool
}

var _ types.VectorStore = (*PGVectorStore)(nil)

func NewPGVectorStore(ctx context.Context, config VectorStoreConfig, embedder embeddings.Embedder) (*PGVectorStore, error) {
	if config.ConnString == "" {
		return nil, errors.New("store: pgvector connection string is required")
	}
	if config.TableName == "" {
		config.TableName = "documents"
	}
	if config.VectorDim <= 0 {
		return nil, fmt.Errorf("store: pgvector needs a positive vector dimension, got %d", config.VectorDim)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config:   config,
		table:    pgx.Identifier{config.TableName}.Sanitize(),
		pool:     pool,
		embedder: embedder,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata JSONB
		)`, vs.table, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	if vs.config.IVFFlatLists > 0 {
		createIndex := fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = %d)`,
			pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table, vs.config.IVFFlatLists)

		_, err = vs.pool.Exec(ctx, createIndex)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

func (vs *PGVectorStore) AddDocuments(ctx context.Context, docs []schema.Document, options ...vectorstores.Option) ([]string, error) {
	opts, err := resolveOptions(vs.embedder, options)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}

	texts, vectors, err := embedDocuments(ctx, opts.Embedder, docs, vs.config.VectorDim)
	if err != nil {
		return nil, err
	}

	if vs.tx != nil {
		return vs.insert(ctx, vs.tx, docs, texts, vectors)
	}

	// Begin transaction
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ids, err := vs.insert(ctx, tx, docs, texts, vectors)
	if err != nil {
		return nil, err
	}

	// Commit transaction
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return ids, nil
}

func (vs *PGVectorStore) insert(ctx context.Context, q pgQuerier, docs []schema.Document, texts []string, vectors [][]float32) ([]string, error) {
	var next int
	err := q.QueryRow(ctx, fmt.Sprintf(`SELECT COALESCE(MAX(position) + 1, 0) FROM %s`, vs.table)).Scan(&next)
	if err != nil {
		return nil, fmt.Errorf("failed to read next position: %w", err)
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, position, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		vs.table)

	batch := &pgx.Batch{}
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		id := uuid.NewString()
		batch.Queue(stmt, id, next+i, texts[i], pgvector.NewVector(vectors[i]), doc.Metadata)
		ids = append(ids, id)
	}

	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("failed to insert documents: %w", err)
	}

	return ids, nil
}

func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, query string, k int, options ...vectorstores.Option) ([]schema.Document, error) {
	opts, err := resolveOptions(vs.embedder, options)
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

	// Query similar documents
	sql := fmt.Sprintf(`
		SELECT id, position, content, metadata, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, position
		LIMIT $2`,
		vs.table)

	rows, err := vs.conn().Query(ctx, sql, pgvector.NewVector(queryVec), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []schema.Document
	for rows.Next() {
		var (
			id, content string
			position    int
			metadata    map[string]any
			score       float64
		)
		if err := rows.Scan(&id, &position, &content, &metadata, &score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if opts.ScoreThreshold > 0 && score < float64(opts.ScoreThreshold) {
			continue
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		metadata["id"] = id
		metadata["position"] = position

		docs = append(docs, schema.Document{PageContent: content, Metadata: metadata, Score: float32(score)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return docs, nil
}

func (vs *PGVectorStore) Replace(ctx context.Context) error {
	if vs.tx != nil {
		return errors.New("store: replace already in progress")
	}

	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, vs.table)); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("failed to clear table: %w", err)
	}

	vs.tx = tx
	return nil
}

func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := vs.conn().QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, vs.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Persist commits a pending rebuild. Other rows are durable once inserted.
func (vs *PGVectorStore) Persist(ctx context.Context) error {
	if vs.tx == nil {
		return nil
	}
	err := vs.tx.Commit(ctx)
	vs.tx = nil
	if err != nil {
		return fmt.Errorf("failed to commit rebuild: %w", err)
	}
	return nil
}

// Close discards a rebuild that was never persisted.
func (vs *PGVectorStore) Close() error {
	var err error
	if vs.tx != nil {
		err = vs.tx.Rollback(context.Background())
		vs.tx = nil
	}
	if vs.pool != nil {
		vs.pool.Close()
	}
	return err
}
