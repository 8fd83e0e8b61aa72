package ingestsvc

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Theubaa/universal-vectorizer/internal/checkpoint"
	"github.com/Theubaa/universal-vectorizer/internal/embedding"
	"github.com/Theubaa/universal-vectorizer/internal/extract"
	"github.com/Theubaa/universal-vectorizer/internal/job"
	"github.com/Theubaa/universal-vectorizer/internal/pipeline"
	"github.com/Theubaa/universal-vectorizer/internal/vectorstore"
)

type noopBackend struct{}

func (noopBackend) Embed(ctx context.Context, texts []string) ([]embedding.Result, error) {
	out := make([]embedding.Result, len(texts))
	for i := range texts {
		out[i] = embedding.Result{Vector: []float32{1}, Model: "noop"}
	}
	return out, nil
}
func (noopBackend) Dimension() int { return 1 }
func (noopBackend) Name() string   { return "noop" }

type noopStore struct{}

func (noopStore) Upsert(ctx context.Context, collection string, records []vectorstore.VectorRecord) error {
	return nil
}
func (noopStore) Query(ctx context.Context, collection string, vector []float32, topK int, filters map[string]string) ([]vectorstore.Match, error) {
	return nil, nil
}
func (noopStore) Delete(ctx context.Context, collection string, ids []string) error { return nil }

func waitForTerminal(t *testing.T, jobs *job.Manager, jobID string) job.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, ok := jobs.Get(jobID)
		if ok && (status.State == job.StateCompleted || status.State == job.StateFailed) {
			return status
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("job %q never reached a terminal state", jobID)
	return job.Status{}
}

// TestIngestFileUnsupportedSuffixFailsAsJob exercises Testable Property S5:
// submitting an unsupported suffix still creates a job, which transitions
// pending -> processing -> failed with an error mentioning the suffix, and
// leaves no checkpoint file behind.
func TestIngestFileUnsupportedSuffixFailsAsJob(t *testing.T) {
	jobs := job.New()
	checkpointDir := t.TempDir()
	checkpoints := checkpoint.New(checkpointDir)

	cfg := pipeline.Config{ChunkSize: 10, ChunkOverlap: 0, BatchSize: 2, EmbeddingMaxRetries: 1, EmbeddingRetryBackoff: 1.0, Collection: "test"}
	p, err := pipeline.New(cfg, noopBackend{}, noopBackend{}, noopStore{}, checkpoints)
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}

	registry := extract.NewDefaultRegistry()
	svc := New(jobs, p, registry, &extract.URLExtractor{}, 1, nil, nil)

	jobID, err := svc.IngestFile(context.Background(), "./doc.xyz", nil)
	if err != nil {
		t.Fatalf("IngestFile returned a synchronous error %v; a job should always be created first", err)
	}
	if jobID == "" {
		t.Fatal("expected a non-empty job id")
	}

	created, ok := jobs.Get(jobID)
	if !ok {
		t.Fatalf("job %q was not created", jobID)
	}
	if created.State != job.StatePending && created.State != job.StateProcessing && created.State != job.StateFailed {
		t.Fatalf("unexpected initial state %q", created.State)
	}

	status := waitForTerminal(t, jobs, jobID)
	if status.State != job.StateFailed {
		t.Fatalf("state = %q, want failed", status.State)
	}
	if len(status.Errors) == 0 {
		t.Fatal("expected at least one error entry")
	}
	if !strings.Contains(status.Errors[len(status.Errors)-1], ".xyz") {
		t.Errorf("error %q does not mention the unsupported suffix", status.Errors[len(status.Errors)-1])
	}

	if checkpoints.Exists(jobID) {
		t.Error("expected no checkpoint file for a job that never resolved an extractor")
	}
}
