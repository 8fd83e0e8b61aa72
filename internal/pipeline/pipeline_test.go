package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Theubaa/universal-vectorizer/internal/checkpoint"
	"github.com/Theubaa/universal-vectorizer/internal/embedding"
	"github.com/Theubaa/universal-vectorizer/internal/extract"
	"github.com/Theubaa/universal-vectorizer/internal/vectorstore"
)

type fakeBackend struct {
	name     string
	failN    int
	calls    int
	dim      int
}

func (f *fakeBackend) Embed(ctx context.Context, texts []string) ([]embedding.Result, error) {
	f.calls++
	if f.calls <= f.failN {
		return nil, errors.New("simulated transport failure")
	}
	out := make([]embedding.Result, len(texts))
	for i := range texts {
		out[i] = embedding.Result{Vector: []float32{1, 2, 3}, Model: f.name}
	}
	return out, nil
}
func (f *fakeBackend) Dimension() int { return f.dim }
func (f *fakeBackend) Name() string   { return f.name }

type fakeStore struct {
	records []vectorstore.VectorRecord
}

func (s *fakeStore) Upsert(ctx context.Context, collection string, records []vectorstore.VectorRecord) error {
	s.records = append(s.records, records...)
	return nil
}
func (s *fakeStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]vectorstore.Match, error) {
	return nil, nil
}
func (s *fakeStore) Delete(ctx context.Context, collection string, ids []string) error { return nil }

func newTestPipeline(t *testing.T, primary, fallback embedding.Backend, store vectorstore.Store, dir string) *Pipeline {
	t.Helper()
	cfg := Config{
		ChunkSize:             10,
		ChunkOverlap:          0,
		BatchSize:             2,
		EmbeddingMaxRetries:   5,
		EmbeddingRetryDelay:   0,
		EmbeddingRetryBackoff: 1.0,
		Collection:            "test",
	}
	p, err := New(cfg, primary, fallback, store, checkpoint.New(dir))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestRunEmptyStreamSucceedsWithNoUpserts(t *testing.T) {
	store := &fakeStore{}
	primary := &fakeBackend{name: "primary"}
	p := newTestPipeline(t, primary, primary, store, t.TempDir())

	doc := &extract.Document{Chunks: extract.NewSliceStream(nil), Metadata: map[string]string{"source": "doc"}}
	if err := p.Run(context.Background(), "job-empty", doc, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.records) != 0 {
		t.Errorf("expected zero upserts, got %d", len(store.records))
	}
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	dir := t.TempDir()
	cps := checkpoint.New(dir)
	if err := cps.Write("job-resume", 2); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	store := &fakeStore{}
	primary := &fakeBackend{name: "primary"}
	cfg := Config{ChunkSize: 10, ChunkOverlap: 0, BatchSize: 2, EmbeddingMaxRetries: 5, EmbeddingRetryBackoff: 1.0, Collection: "test"}
	p, err := New(cfg, primary, primary, store, cps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fragments := []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc", "dddddddddd", "eeeeeeeeee"}
	doc := &extract.Document{Chunks: extract.NewSliceStream(fragments), Metadata: map[string]string{"source": "doc"}}

	if err := p.Run(context.Background(), "job-resume", doc, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.records) != 3 {
		t.Fatalf("expected 3 upserted records (chunks 2,3,4), got %d", len(store.records))
	}
	if cps.Exists("job-resume") {
		t.Error("expected checkpoint to be deleted after successful completion")
	}
}

func TestRunFallsBackAfterPrimaryExhaustion(t *testing.T) {
	store := &fakeStore{}
	primary := &fakeBackend{name: "primary", failN: 1000}
	fallback := &fakeBackend{name: "fallback"}
	p := newTestPipeline(t, primary, fallback, store, t.TempDir())

	doc := &extract.Document{Chunks: extract.NewSliceStream([]string{"hello world"}), Metadata: map[string]string{"source": "doc"}}
	if err := p.Run(context.Background(), "job-fallback", doc, nil, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// "hello world" is 11 characters: with size 10 and no overlap it yields
	// "hello worl" and "d", flushed together as one batch of 2.
	if len(store.records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(store.records))
	}
	if store.records[0].Metadata["embedding_model"] != "fallback" {
		t.Errorf("embedding_model = %v, want fallback", store.records[0].Metadata["embedding_model"])
	}
}

func TestRunFailsWhenBothBackendsFail(t *testing.T) {
	store := &fakeStore{}
	primary := &fakeBackend{name: "primary", failN: 1000}
	fallback := &fakeBackend{name: "fallback", failN: 1000}
	p := newTestPipeline(t, primary, fallback, store, t.TempDir())

	doc := &extract.Document{Chunks: extract.NewSliceStream([]string{"hello world"}), Metadata: map[string]string{"source": "doc"}}
	if err := p.Run(context.Background(), "job-fail", doc, nil, nil); err == nil {
		t.Fatal("expected error when both backends fail")
	}
}
