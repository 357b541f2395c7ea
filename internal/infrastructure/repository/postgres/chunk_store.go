package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hockeytools/rules-engine/internal/core/domain"
	"github.com/hockeytools/rules-engine/internal/infrastructure/lexical"
)

// ChunkStore persists rule chunks in one table carrying both the dense vector
// (pgvector, cosine ops) and the lexical tsvector, each behind its native
// index so neither search channel ever full-scans.
type ChunkStore struct {
	db   *sql.DB
	dims int
}

func NewChunkStore(db *sql.DB, embeddingDims int) *ChunkStore {
	if embeddingDims <= 0 {
		embeddingDims = 768
	}
	return &ChunkStore{db: db, dims: embeddingDims}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *ChunkStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026040201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS rule_chunks (
	id BIGSERIAL PRIMARY KEY,
	variant TEXT NOT NULL,
	country TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	embedding vector(%d) NOT NULL,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	tsv TSVECTOR NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_rule_chunks_scope ON rule_chunks(variant, country);
CREATE INDEX IF NOT EXISTS idx_rule_chunks_tsv ON rule_chunks USING GIN(tsv);
CREATE INDEX IF NOT EXISTS idx_rule_chunks_embedding ON rule_chunks
	USING hnsw (embedding vector_cosine_ops);
`, s.dims)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *ChunkStore) VectorSearch(ctx context.Context, scope domain.Scope, queryVector []float32, k int) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, variant, country, content, metadata
FROM rule_chunks
WHERE variant = $1 AND country = $2
ORDER BY embedding <=> $3::vector
LIMIT $4
`, scope.Variant, scope.Country, formatVector(queryVector), k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

func (s *ChunkStore) KeywordSearch(ctx context.Context, scope domain.Scope, query string, k int) ([]domain.Chunk, error) {
	normalized := lexical.NormalizeQuery(query)
	if normalized == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, variant, country, content, metadata
FROM rule_chunks
WHERE variant = $1 AND country = $2
  AND tsv @@ websearch_to_tsquery('english', $3)
ORDER BY ts_rank(tsv, websearch_to_tsquery('english', $3)) DESC
LIMIT $4
`, scope.Variant, scope.Country, normalized, k)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// ReplaceScope deletes the scope's previous chunk set and inserts the new one
// inside a single transaction, so readers observe either the fully-old or the
// fully-new set and a failure keeps the previous set visible. Other scopes are
// never touched.
func (s *ChunkStore) ReplaceScope(ctx context.Context, scope domain.Scope, chunks []domain.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize same-scope replaces across workers. Row locks alone do not
	// serialize on scope identity: two concurrent replaces would each delete
	// what their snapshot sees and commit the union of both insert sets.
	if _, err := tx.ExecContext(ctx, `
SELECT pg_advisory_xact_lock(hashtext($1 || '/' || $2))
`, scope.Variant, scope.Country); err != nil {
		return fmt.Errorf("acquire scope lock: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
DELETE FROM rule_chunks WHERE variant = $1 AND country = $2
`, scope.Variant, scope.Country); err != nil {
		return fmt.Errorf("delete scoped chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO rule_chunks (variant, country, content, embedding, metadata, tsv)
VALUES ($1, $2, $3, $4::vector, $5, to_tsvector('english', $6))
`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for i, chunk := range chunks {
		metaJSON, err := json.Marshal(chunk.Metadata)
		if err != nil {
			return fmt.Errorf("marshal chunk %d metadata: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx,
			scope.Variant,
			scope.Country,
			chunk.Text,
			formatVector(chunk.Embedding),
			metaJSON,
			lexical.SearchText(chunk),
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func (s *ChunkStore) CountByScope(ctx context.Context, scope domain.Scope) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM rule_chunks WHERE variant = $1 AND country = $2
`, scope.Variant, scope.Country).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func (s *ChunkStore) ListJurisdictions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT country FROM rule_chunks WHERE country <> '' ORDER BY country
`)
	if err != nil {
		return nil, fmt.Errorf("list jurisdictions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, fmt.Errorf("scan jurisdiction: %w", err)
		}
		out = append(out, country)
	}
	return out, rows.Err()
}

func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for rows.Next() {
		var (
			chunk   domain.Chunk
			metaRaw []byte
		)
		if err := rows.Scan(&chunk.ID, &chunk.Scope.Variant, &chunk.Scope.Country, &chunk.Text, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metaRaw) > 0 {
			if err := json.Unmarshal(metaRaw, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal chunk metadata: %w", err)
			}
		}
		out = append(out, chunk)
	}
	return out, rows.Err()
}

// formatVector renders the pgvector text literal: [v1,v2,...].
func formatVector(vector []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vector {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
