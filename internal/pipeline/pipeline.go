// Package pipeline implements the Ingestion Pipeline (C8/§4.8): drives
// extractor -> cleaner -> chunker -> batch -> embed(retry+fallback) ->
// upsert -> checkpoint for one job, grounded on
// original_source/pipelines/ingestion_pipeline.py's StreamingIngestionPipeline.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/Theubaa/universal-vectorizer/internal/checkpoint"
	"github.com/Theubaa/universal-vectorizer/internal/chunk"
	"github.com/Theubaa/universal-vectorizer/internal/clean"
	"github.com/Theubaa/universal-vectorizer/internal/embedding"
	"github.com/Theubaa/universal-vectorizer/internal/extract"
	"github.com/Theubaa/universal-vectorizer/internal/vectorstore"
)

// Config holds the per-run tunables §4.8 names explicitly.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int

	EmbeddingMaxRetries   int
	EmbeddingRetryDelay   time.Duration
	EmbeddingRetryBackoff float64

	Collection string
	Lowercase  bool
}

// Pipeline wires one run's collaborators together. A fresh Pipeline is
// cheap to construct per job; the embedders and vector store are shared
// across jobs (§5 "shared resources").
type Pipeline struct {
	cfg Config

	cleaner  *clean.Cleaner
	chunker  *chunk.Chunker
	primary  embedding.Backend
	fallback embedding.Backend
	store    vectorstore.Store

	checkpoints *checkpoint.Store
}

// New validates chunk geometry (a ConfigError per §4.1 if invalid) and
// returns a Pipeline ready to run jobs.
func New(cfg Config, primary, fallback embedding.Backend, store vectorstore.Store, checkpoints *checkpoint.Store) (*Pipeline, error) {
	chunker, err := chunk.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 32
	}
	return &Pipeline{
		cfg:         cfg,
		cleaner:     clean.New(cfg.Lowercase),
		chunker:     chunker,
		primary:     primary,
		fallback:    fallback,
		store:       store,
		checkpoints: checkpoints,
	}, nil
}

// Run drives one job from a resolved extractor document to terminal state,
// honoring the checkpoint-skip/resume contract of §4.8 steps 1-8. extra is
// caller-supplied metadata that overrides extractor-supplied keys on
// collision. onProgress, if non-nil, is invoked after every successful
// batch flush with the number of chunks that batch flushed.
func (p *Pipeline) Run(ctx context.Context, jobID string, doc *extract.Document, extra map[string]string, onProgress func(flushed int)) error {
	if closer, ok := doc.Chunks.(extract.Closer); ok {
		defer closer.Close()
	}

	metadata := make(map[string]string, len(doc.Metadata)+len(extra))
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	for k, v := range extra {
		metadata[k] = v
	}

	checkpointSnapshot, err := p.checkpoints.Load(jobID)
	if err != nil {
		return err
	}
	already := checkpointSnapshot.ChunksProcessed

	cleaned := p.cleaner.CleanStream(doc.Chunks)
	stream := p.chunker.IterChunks(cleaned, metadata)

	var batch []chunk.Chunk
	index := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.flushBatch(ctx, batch); err != nil {
			return err
		}
		flushedCount := index
		if onProgress != nil {
			onProgress(len(batch))
		}
		batch = nil
		return p.checkpoints.Write(jobID, flushedCount)
	}

	for stream.Next() {
		c := stream.Chunk()
		if index < already {
			index++
			continue
		}
		batch = append(batch, c)
		index++
		if len(batch) >= p.cfg.BatchSize {
			if err := flush(); err != nil {
				return fmt.Errorf("pipeline: flush batch ending at chunk %d: %w", index, err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}

	if err := flush(); err != nil {
		return fmt.Errorf("pipeline: flush final batch: %w", err)
	}

	return p.checkpoints.Delete(jobID)
}

func (p *Pipeline) flushBatch(ctx context.Context, batch []chunk.Chunk) error {
	results, err := p.embedWithRetry(ctx, batch)
	if err != nil {
		return err
	}
	records := toVectorRecords(batch, results)
	return p.store.Upsert(ctx, p.cfg.Collection, records)
}

// embedWithRetry realizes §4.8.1: call the primary backend up to
// max_retries times in all, with exponential backoff between attempts,
// then try the fallback once.
// The batch is the sole retry unit; there is no per-chunk granularity.
func (p *Pipeline) embedWithRetry(ctx context.Context, batch []chunk.Chunk) ([]embedding.Result, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.EmbeddingRetryDelay
	bo.Multiplier = p.cfg.EmbeddingRetryBackoff
	bo.MaxElapsedTime = 0 // bounded by WithMaxRetries, not wall-clock

	var results []embedding.Result
	var lastErr error
	retries := p.cfg.EmbeddingMaxRetries - 1
	if retries < 0 {
		retries = 0
	}

	err := backoff.Retry(func() error {
		r, embedErr := p.primary.Embed(ctx, texts)
		if embedErr != nil {
			lastErr = embedErr
			return embedErr
		}
		results = r
		return nil
	}, backoff.WithMaxRetries(bo, uint64(retries)))

	if err == nil {
		return results, nil
	}

	fallbackResults, fallbackErr := p.fallback.Embed(ctx, texts)
	if fallbackErr != nil {
		return nil, fmt.Errorf("embedding: primary exhausted (%v), fallback failed: %w", lastErr, fallbackErr)
	}
	return fallbackResults, nil
}

// toVectorRecords realizes §4.8.2's vector-record construction.
func toVectorRecords(batch []chunk.Chunk, results []embedding.Result) []vectorstore.VectorRecord {
	records := make([]vectorstore.VectorRecord, len(batch))
	for i, c := range batch {
		meta := make(map[string]any, len(c.Metadata)+2)
		for k, v := range c.Metadata {
			meta[k] = v
		}
		meta["text"] = c.Text
		meta["embedding_model"] = results[i].Model
		records[i] = vectorstore.VectorRecord{
			ID:        c.ID,
			Embedding: results[i].Vector,
			Metadata:  meta,
		}
	}
	return records
}
