package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// RemoteBackend serializes an entire batch into a single HTTP request, the
// OpenAI-style shape original_source/utils/embeddings/openai_backend.py
// uses — unlike the teacher's Ollama embedder, which fires one goroutine
// per text, the remote backend here honors §4.3's "serializes texts in a
// single request" requirement literally.
type RemoteBackend struct {
	URL        string
	Model      string
	APIKey     string
	HTTPClient *http.Client

	dimension int
}

// NewRemoteBackend builds a RemoteBackend against an OpenAI-compatible
// embeddings endpoint.
func NewRemoteBackend(url, model, apiKey string, client *http.Client) *RemoteBackend {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteBackend{URL: url, Model: model, APIKey: apiKey, HTTPClient: client}
}

type remoteRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type remoteResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed sends one request carrying every text in the batch and returns
// results in the same order, re-sorting by the response's index field in
// case the provider reorders them.
func (b *RemoteBackend) Embed(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(remoteRequest{Model: b.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransport, err)
	}

	var parsed remoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	if resp.StatusCode >= 400 {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrTransport, msg)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrTransport, len(texts), len(parsed.Data))
	}

	model := parsed.Model
	if model == "" {
		model = b.Model
	}

	out := make([]Result, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrTransport, d.Index)
		}
		out[d.Index] = Result{Vector: d.Embedding, Model: model}
	}
	if len(out) > 0 {
		b.dimension = len(out[0].Vector)
	}
	return out, nil
}

func (b *RemoteBackend) Dimension() int { return b.dimension }
func (b *RemoteBackend) Name() string   { return b.Model }
