package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// PineconeStore is a hand-rolled REST client against a Pinecone index's
// data-plane URL, grounded on
// original_source/utils/vectordb/pinecone_db.py's upsert/query/delete calls.
// Pinecone namespaces play the role of spec.md's collection/namespace;
// Pinecone indexes are provisioned out of band (no Go SDK exists anywhere
// in the retrieved pack). This store does not create indexes and does not
// infer or check vector dimensionality itself; any request the index
// rejects surfaces as ErrVectorStore.
type PineconeStore struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewPineconeStore(baseURL, apiKey string, client *http.Client) *PineconeStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &PineconeStore{BaseURL: baseURL, APIKey: apiKey, HTTPClient: client}
}

func (s *PineconeStore) Upsert(ctx context.Context, collection string, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	vectors := make([]map[string]any, len(records))
	for i, rec := range records {
		vectors[i] = map[string]any{
			"id":       rec.ID,
			"values":   rec.Embedding,
			"metadata": rec.Metadata,
		}
	}
	body := map[string]any{"vectors": vectors, "namespace": collection}
	if _, err := s.do(ctx, "/vectors/upsert", body); err != nil {
		return fmt.Errorf("%w: upsert into %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (s *PineconeStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]Match, error) {
	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"namespace":       collection,
		"includeMetadata": true,
	}
	if len(filters) > 0 {
		filter := make(map[string]any, len(filters))
		for k, v := range filters {
			filter[k] = map[string]any{"$eq": v}
		}
		body["filter"] = filter
	}

	raw, err := s.do(ctx, "/query", body)
	if err != nil {
		return nil, fmt.Errorf("%w: query %q: %v", ErrVectorStore, collection, err)
	}

	var parsed struct {
		Matches []struct {
			ID       string         `json:"id"`
			Score    float32        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode query response: %v", ErrVectorStore, err)
	}

	matches := make([]Match, 0, len(parsed.Matches))
	for _, m := range parsed.Matches {
		match := Match{ID: m.ID, Score: m.Score, Metadata: m.Metadata}
		if text, ok := m.Metadata["text"].(string); ok {
			match.Text = text
		}
		matches = append(matches, match)
	}
	return matches, nil
}

func (s *PineconeStore) Delete(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	body := map[string]any{"ids": ids, "namespace": collection}
	if _, err := s.do(ctx, "/vectors/delete", body); err != nil {
		return fmt.Errorf("%w: delete from %q: %v", ErrVectorStore, collection, err)
	}
	return nil
}

func (s *PineconeStore) do(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", s.APIKey)

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

var _ Store = (*PineconeStore)(nil)
