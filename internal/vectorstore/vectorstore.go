// Package vectorstore defines the Vector Store interface (§4.4/§6.3) and its
// three concrete backends (Qdrant, Chroma, Pinecone), generalized from the
// teacher's tenant-scoped internal/vectorstore package into a
// collection/namespace-scoped one, per spec's "Logical partition within a
// vector store" glossary entry rather than a per-tenant account model.
package vectorstore

import (
	"context"
	"errors"
)

// ErrVectorStore is the single error kind §7 calls VectorStoreError: never
// retried at this layer, fails the job immediately.
var ErrVectorStore = errors.New("vectorstore: operation failed")

// VectorRecord is one embedded chunk ready to persist.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Metadata  map[string]any
}

// Match is one result row from Query. Score is opaque: the Chroma store
// passes through a distance (smaller is closer), while the Qdrant store's
// cosine collections and the Pinecone store return a similarity (larger is
// closer), so callers must not assume a universal direction across
// backends (§9 Design Notes).
type Match struct {
	ID       string
	Score    float32
	Text     string
	Metadata map[string]any
}

// Store is the collection-scoped vector database contract every backend
// satisfies.
type Store interface {
	// Upsert is a no-op on an empty slice; otherwise atomically replaces
	// any prior record sharing an id within collection.
	Upsert(ctx context.Context, collection string, records []VectorRecord) error
	// Query returns up to topK nearest matches to vector within collection,
	// optionally constrained by filters (flat key/value equality,
	// conjunctive). A nil or empty filters map means "no filter".
	Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]Match, error)
	// Delete is a no-op on an empty slice; unknown ids are ignored.
	Delete(ctx context.Context, collection string, ids []string) error
}
