// Package embedding implements the Embedding Backend interface (§4.3/§6.2):
// vectorize a batch of strings, in order, asynchronously and retryably.
// Grounded on the teacher's internal/embedder package for the interface
// shape, and on original_source/utils/embeddings/{openai_backend,hf_backend}.py
// for the two concrete implementations' request semantics.
package embedding

import (
	"context"
	"errors"
)

// ErrTransport is the single error kind §6.2 specifies for transport/auth/
// rate-limit failures: the pipeline treats all of these as retryable.
var ErrTransport = errors.New("embedding: transport error")

// Result is one vector plus the opaque model tag that produced it.
type Result struct {
	Vector []float32
	Model  string
}

// Backend vectorizes a batch of texts. Output length and order must match
// input length and order; any failure returns a non-nil error.
type Backend interface {
	Embed(ctx context.Context, texts []string) ([]Result, error)
	// Dimension reports the fixed vector width this backend produces, or 0
	// if unknown until the first call.
	Dimension() int
	// Name is the opaque model tag stored as embedding_model.
	Name() string
}
