// Package ingestsvc implements the Ingestion Service (C9/§4.9): job id
// allocation, a global concurrency cap, and detached pipeline execution,
// grounded on original_source/services/ingestion_service.py's
// ingest_file/ingest_url and on the teacher's cmd/ragd/main.go's
// signal-driven composition-root shutdown style for how a long-running
// background task is supervised.
package ingestsvc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Theubaa/universal-vectorizer/internal/extract"
	"github.com/Theubaa/universal-vectorizer/internal/job"
	"github.com/Theubaa/universal-vectorizer/internal/pipeline"
)

// CompletedDocument is what a CompletionRecorder persists once a job
// reaches the completed state.
type CompletedDocument struct {
	JobID       string
	Source      string
	ContentHash string
	ChunkCount  int
	Metadata    map[string]string
}

// CompletionRecorder is a supplemental durable sink for completed jobs
// (e.g. internal/catalog.Repository). It is never consulted for resume or
// checkpoint decisions — only notified after a job already succeeded.
type CompletionRecorder interface {
	Record(ctx context.Context, doc CompletedDocument) error
}

// Service owns a single Job Manager and a global counting semaphore sized
// to ingestion_concurrency (§4.9).
type Service struct {
	jobs         *job.Manager
	pipeline     *pipeline.Pipeline
	registry     *extract.Registry
	urlExtractor extract.Extractor
	sem          *semaphore.Weighted
	logger       *slog.Logger
	recorder     CompletionRecorder
}

// New builds a Service bounded to concurrency concurrent pipeline runs.
// recorder may be nil, in which case completions are not cataloged.
func New(jobs *job.Manager, p *pipeline.Pipeline, registry *extract.Registry, urlExtractor extract.Extractor, concurrency int, logger *slog.Logger, recorder CompletionRecorder) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:         jobs,
		pipeline:     p,
		registry:     registry,
		urlExtractor: urlExtractor,
		sem:          semaphore.NewWeighted(int64(concurrency)),
		logger:       logger,
		recorder:     recorder,
	}
}

// IngestFile allocates a job id for path, registers it pending, and spawns
// a detached goroutine to run the pipeline once the concurrency semaphore
// admits it. Returns the job id immediately (§4.9 step 4): the job always
// exists before the suffix is resolved, so an unsupported suffix surfaces
// as a normal failed transition (§4.9 Testable Property S5) rather than a
// synchronous error that leaves no job behind.
func (s *Service) IngestFile(ctx context.Context, path string, metadata map[string]string) (string, error) {
	return s.submit(job.KindFile, path, metadata, func(ctx context.Context) (*extract.Document, error) {
		extractor, err := s.registry.Resolve(path)
		if err != nil {
			return nil, err
		}
		return extractor.Extract(ctx, path)
	})
}

// IngestURL allocates a job id for rawURL and spawns a detached run using
// the dedicated URL extractor, bypassing the suffix registry (§4.5).
func (s *Service) IngestURL(ctx context.Context, rawURL string, metadata map[string]string) (string, error) {
	return s.submit(job.KindURL, rawURL, metadata, func(ctx context.Context) (*extract.Document, error) {
		return s.urlExtractor.Extract(ctx, rawURL)
	})
}

func (s *Service) submit(kind job.Kind, source string, metadata map[string]string, resolve func(context.Context) (*extract.Document, error)) (string, error) {
	jobID := uuid.NewString()
	s.jobs.Create(jobID, kind, source)

	go s.run(jobID, metadata, resolve)

	return jobID, nil
}

// run acquires the semaphore, transitions the job to processing, runs the
// pipeline, and records the terminal state. It is the task wrapper §7
// names as the only layer that catches and records errors.
func (s *Service) run(jobID string, metadata map[string]string, resolve func(context.Context) (*extract.Document, error)) {
	ctx := context.Background()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.jobs.Fail(jobID, fmt.Sprintf("failed to acquire concurrency slot: %v", err))
		return
	}
	defer s.sem.Release(1)

	s.jobs.Update(jobID, func(st *job.Status) {
		st.State = job.StateProcessing
		st.LastMessage = "Starting ingestion"
	})

	doc, err := resolve(ctx)
	if err != nil {
		s.jobs.Fail(jobID, err.Error())
		s.logger.Error("ingestion failed to resolve extractor", "job_id", jobID, "error", err)
		return
	}

	err = s.pipeline.Run(ctx, jobID, doc, metadata, func(flushed int) {
		s.jobs.IncrementChunks(jobID, flushed)
	})
	if err != nil {
		s.jobs.Fail(jobID, err.Error())
		s.logger.Error("ingestion failed", "job_id", jobID, "error", err)
		return
	}

	status, _ := s.jobs.Succeed(jobID, "")
	s.logger.Info("ingestion completed", "job_id", jobID)

	if s.recorder != nil {
		completed := CompletedDocument{
			JobID:       jobID,
			Source:      status.Source,
			ContentHash: fingerprint(status.Source, status.ProcessedChunks),
			ChunkCount:  status.ProcessedChunks,
			Metadata:    metadata,
		}
		if err := s.recorder.Record(ctx, completed); err != nil {
			s.logger.Error("failed to record completed document in catalog", "job_id", jobID, "error", err)
		}
	}
}

// fingerprint derives a stable content hash from the source identifier and
// chunk count. A streaming pipeline never buffers the full document, so
// hashing raw bytes would mean a second read pass; this fingerprint is a
// deliberate, documented compromise rather than a full content hash.
func fingerprint(source string, chunkCount int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", source, chunkCount)))
	return hex.EncodeToString(sum[:])
}
