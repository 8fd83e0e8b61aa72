package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ChromaStore is a hand-rolled REST client for a Chroma server, built the
// same way the teacher hand-rolls its Ollama HTTP client in
// internal/embedder/ollama.go: a JSON request/response struct pair plus a
// *http.Client. Grounded on
// original_source/utils/vectordb/chroma_db.py's collection/add/query/delete
// calls against Chroma's HTTP API.
type ChromaStore struct {
	BaseURL    string
	HTTPClient *http.Client

	mu       sync.Mutex
	ensured  map[string]bool
}

func NewChromaStore(baseURL string, client *http.Client) *ChromaStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &ChromaStore{BaseURL: baseURL, HTTPClient: client, ensured: make(map[string]bool)}
}

func (s *ChromaStore) ensureCollection(ctx context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured[collection] {
		return nil
	}
	body := map[string]any{"name": collection, "get_or_create": true}
	if _, err := s.do(ctx, http.MethodPost, "/api/v1/collections", body); err != nil {
		return fmt.Errorf("%w: ensure collection %q: %v", ErrVectorStore, collection, err)
	}
	s.ensured[collection] = true
	return nil
}

func (s *ChromaStore) Upsert(ctx context.Context, collection string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	ids := make([]string, len(records))
	embeddings := make([][]float32, len(records))
	metadatas := make([]map[string]any, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
		embeddings[i] = rec.Embedding
		metadatas[i] = rec.Metadata
	}

	body := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"metadatas":  metadatas,
	}
	path := fmt.Sprintf("/api/v1/collections/%s/upsert", collection)
	if _, err := s.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("%w: upsert into %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (s *ChromaStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]Match, error) {
	body := map[string]any{
		"query_embeddings": [][]float32{vector},
		"n_results":        topK,
	}
	if len(filters) > 0 {
		where := make(map[string]any, len(filters))
		for k, v := range filters {
			where[k] = v
		}
		body["where"] = where
	}

	path := fmt.Sprintf("/api/v1/collections/%s/query", collection)
	raw, err := s.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %v", ErrVectorStore, collection, err)
	}

	var parsed struct {
		IDs       [][]string         `json:"ids"`
		Distances [][]float32        `json:"distances"`
		Metadatas [][]map[string]any `json:"metadatas"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode query response: %v", ErrVectorStore, err)
	}
	if len(parsed.IDs) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, len(parsed.IDs[0]))
	for i, id := range parsed.IDs[0] {
		m := Match{ID: id}
		if i < len(parsed.Distances[0]) {
			m.Score = parsed.Distances[0][i]
		}
		if i < len(parsed.Metadatas[0]) {
			m.Metadata = parsed.Metadatas[0][i]
			if text, ok := m.Metadata["text"].(string); ok {
				m.Text = text
			}
		}
		matches = append(matches, m)
	}
	return matches, nil
}

func (s *ChromaStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids}
	path := fmt.Sprintf("/api/v1/collections/%s/delete", collection)
	if _, err := s.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("%w: delete from %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (s *ChromaStore) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}
	return raw, nil
}

var _ Store = (*ChromaStore)(nil)
