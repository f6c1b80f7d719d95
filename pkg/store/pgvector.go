// Package store keeps corpus chunks and their embeddings in PostgreSQL with pgvector.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/regqa/internal/models"
	"github.com/xhad/regqa/internal/types"
	"go.uber.org/zap"
)

// ErrIndexMissing is returned by Open when the chunk table has not been built yet.
var ErrIndexMissing = errors.New("vector index table does not exist, run `regqa index` first")

// Embedder turns text into vectors of VectorDim dimensions.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
}

type VectorStore struct {
	config   VectorStoreConfig
	pool     *pgxpool.Pool
	embedder Embedder
	table    string
	logger   *zap.Logger
}

func applyDefaults(config VectorStoreConfig) VectorStoreConfig {
	if config.TableName == "" {
		config.TableName = "regulation_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768 // nomic-embed-text
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	return config
}

// NewWithConfig connects to the database. It does not check or create the schema.
func NewWithConfig(ctx context.Context, config VectorStoreConfig, embedder Embedder, logger *zap.Logger) (*VectorStore, error) {
	config = applyDefaults(config)
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &VectorStore{
		config:   config,
		pool:     pool,
		embedder: embedder,
		table:    pgx.Identifier{config.TableName}.Sanitize(),
		logger:   logger.With(zap.String("table", config.TableName)),
	}, nil
}

// Open connects and verifies that the chunk table exists.
func Open(ctx context.Context, config VectorStoreConfig, embedder Embedder, logger *zap.Logger) (*VectorStore, error) {
	vs, err := NewWithConfig(ctx, config, embedder, logger)
	if err != nil {
		return nil, err
	}

	var exists bool
	if err := vs.pool.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", vs.config.TableName).Scan(&exists); err != nil {
		vs.Close()
		return nil, fmt.Errorf("failed to check index table: %w", err)
	}
	if !exists {
		vs.Close()
		return nil, ErrIndexMissing
	}
	return vs, nil
}

// Opener adapts Open to the retriever's index opener. A non-empty location overrides the connection string.
func Opener(config VectorStoreConfig, embedder Embedder, logger *zap.Logger) types.IndexOpener {
	return func(ctx context.Context, location string) (types.VectorIndex, error) {
		if location != "" {
			config.ConnString = location
		}
		return Open(ctx, config, embedder, logger)
	}
}

// EnsureSchema creates the extension, the chunk table and its vector index.
func (vs *VectorStore) EnsureSchema(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			title TEXT,
			page INTEGER NOT NULL DEFAULT 0,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB
		)`, vs.table, vs.config.VectorDim)
	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING ivfflat (embedding vector_cosine_ops)
		WITH (lists = 100)`,
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize(), vs.table)
	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Store embeds and upserts every chunk. progress, if set, is called after each batch with the number of chunks written.
func (vs *VectorStore) Store(ctx context.Context, docs []models.ProcessedDocument, progress func(n int)) error {
	type row struct {
		id      string
		doc     *models.Document
		index   int
		content string
	}

	var rows []row
	for d := range docs {
		doc := &docs[d].Document
		for i, chunk := range docs[d].Chunks {
			clean := sanitizeUTF8(chunk)
			if strings.TrimSpace(clean) == "" {
				continue
			}
			rows = append(rows, row{id: fmt.Sprintf("%s_%d", doc.ID, i), doc: doc, index: i, content: clean})
		}
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, source, title, page, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata`,
		vs.table)

	for start := 0; start < len(rows); start += vs.config.BatchSize {
		end := min(start+vs.config.BatchSize, len(rows))
		batch := rows[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.content
		}
		vectors, err := vs.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to create embeddings: %w", err)
		}

		tx, err := vs.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		for i, r := range batch {
			if len(vectors[i]) != vs.config.VectorDim {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("embedding for %s has %d dimensions, want %d", r.id, len(vectors[i]), vs.config.VectorDim)
			}
			_, err = tx.Exec(ctx, stmt,
				r.id,
				r.doc.Source,
				sanitizeUTF8(r.doc.Title),
				r.doc.Page,
				r.index,
				r.content,
				pgvector.NewVector(vectors[i]),
				r.doc.Metadata,
			)
			if err != nil {
				_ = tx.Rollback(ctx)
				return fmt.Errorf("failed to insert chunk %s: %w", r.id, err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}

		vs.logger.Debug("stored batch", zap.Int("chunks", len(batch)))
		if progress != nil {
			progress(len(batch))
		}
	}

	vs.logger.Info("stored chunks", zap.Int("documents", len(docs)), zap.Int("chunks", len(rows)))
	return nil
}

// SimilaritySearch returns the k chunks closest to query by cosine distance, ties broken by id.
func (vs *VectorStore) SimilaritySearch(ctx context.Context, query string, k int) ([]models.Passage, error) {
	vector, err := vs.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(`
		SELECT id, source, COALESCE(title, ''), page, content, metadata, embedding <=> $1 AS distance
		FROM %s
		ORDER BY distance, id
		LIMIT $2`,
		vs.table)

	rows, err := vs.pool.Query(ctx, sql, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	passages := make([]models.Passage, 0, k)
	for rows.Next() {
		var (
			p        models.Passage
			title    string
			distance float64
		)
		if err := rows.Scan(&p.ID, &p.Source, &title, &p.Page, &p.Content, &p.Metadata, &distance); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if title != "" {
			if p.Metadata == nil {
				p.Metadata = make(map[string]interface{})
			}
			p.Metadata["title"] = title
		}
		p.Score = 1 - distance
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return passages, nil
}

// Count returns the number of stored chunks.
func (vs *VectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := vs.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", vs.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func (vs *VectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

// sanitizeUTF8 drops invalid bytes, which PostgreSQL rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
