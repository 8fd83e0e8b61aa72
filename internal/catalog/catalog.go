// Package catalog is a supplemental, Postgres-backed index of completed
// documents, adapted from the teacher's internal/repository/postgres
// package (DB pool setup + DocumentRepo) but dropping the tenant scoping
// and the chunk-level table: this catalog is deliberately outside the Job
// Manager's in-memory lifecycle and the Checkpoint Store's resume role
// (§3/§5) — it only ever records a row after a job succeeds, so it can
// never be consulted for resume/checkpoint decisions.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("catalog: document not found")

// Document is one completed ingestion's durable record.
type Document struct {
	ID          string
	Source      string
	ContentHash string
	ChunkCount  int
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DB wraps a pgx connection pool.
type DB struct {
	Pool *pgxpool.Pool
}

// Open creates a pool against databaseURL and verifies connectivity.
func Open(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("catalog: parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("catalog: create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("catalog: ping database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close releases the pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// Schema is the DDL this package expects; callers run it via their own
// migration tooling (none is bundled here, matching the teacher, which
// also assumes an externally-applied schema).
const Schema = `
CREATE TABLE IF NOT EXISTS ingested_documents (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	chunk_count  INTEGER NOT NULL,
	metadata     JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ingested_documents_content_hash_idx ON ingested_documents (content_hash);
`

// Repository records completed ingestions.
type Repository struct {
	db *DB
}

// NewRepository builds a Repository against an open DB.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Record upserts a Document row, keyed by id, after a job succeeds.
func (r *Repository) Record(ctx context.Context, doc Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("catalog: marshal metadata: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO ingested_documents (id, source, content_hash, chunk_count, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source,
			content_hash = EXCLUDED.content_hash,
			chunk_count = EXCLUDED.chunk_count,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`, doc.ID, doc.Source, doc.ContentHash, doc.ChunkCount, metadataJSON, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: record document %q: %w", doc.ID, err)
	}
	return nil
}

// GetByHash finds a previously completed document by its content hash,
// letting callers detect an identical re-ingest before spending embedding
// calls on it.
func (r *Repository) GetByHash(ctx context.Context, hash string) (*Document, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, source, content_hash, chunk_count, metadata, created_at, updated_at
		FROM ingested_documents
		WHERE content_hash = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, hash)
	return scanDocument(row)
}

// List returns completed documents ordered by most recently created.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Document, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, source, content_hash, chunk_count, metadata, created_at, updated_at
		FROM ingested_documents
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("catalog: list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row pgx.Row) (*Document, error) {
	doc, err := scanRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc, nil
}

func scanRow(row rowScanner) (*Document, error) {
	var doc Document
	var metadataJSON []byte
	if err := row.Scan(&doc.ID, &doc.Source, &doc.ContentHash, &doc.ChunkCount, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("catalog: scan document: %w", err)
	}
	doc.Metadata = make(map[string]string)
	if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("catalog: unmarshal metadata: %w", err)
	}
	return &doc, nil
}
