// Package search implements the symmetric query path: clean query -> embed
// -> query vector store -> slice top-k (§2 Search path), grounded on
// original_source/services/search_service.py's SearchService.search.
package search

import (
	"context"
	"fmt"

	"github.com/Theubaa/universal-vectorizer/internal/clean"
	"github.com/Theubaa/universal-vectorizer/internal/embedding"
	"github.com/Theubaa/universal-vectorizer/internal/vectorstore"
)

// Service embeds a query and retrieves nearest neighbors from a single
// vector store collection.
type Service struct {
	cleaner    *clean.Cleaner
	embedder   embedding.Backend
	store      vectorstore.Store
	collection string
}

// New builds a search Service bound to one collection.
func New(embedder embedding.Backend, store vectorstore.Store, collection string, lowercase bool) *Service {
	return &Service{
		cleaner:    clean.New(lowercase),
		embedder:   embedder,
		store:      store,
		collection: collection,
	}
}

// Search cleans query, embeds it, and returns up to topK matches starting
// at offset. Per §9 Design Notes, offset is applied client-side after
// retrieving topK+offset results from the store — inefficient for large
// offsets, but not forbidden.
func (s *Service) Search(ctx context.Context, query string, topK, offset int, filters map[string]string) ([]vectorstore.Match, error) {
	cleanedQuery := s.cleaner.Clean(query)

	results, err := s.embedder.Embed(ctx, []string{cleanedQuery})
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("search: expected one embedding, got %d", len(results))
	}

	fetchCount := topK + offset
	if fetchCount < topK {
		fetchCount = topK
	}

	matches, err := s.store.Query(ctx, s.collection, results[0].Vector, fetchCount, filters)
	if err != nil {
		return nil, fmt.Errorf("search: query store: %w", err)
	}

	if offset >= len(matches) {
		return nil, nil
	}
	end := offset + topK
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}
