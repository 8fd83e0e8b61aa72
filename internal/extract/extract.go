// Package extract defines the extractor contract (§6.1) and a suffix-keyed
// registry mapping file suffixes to extractor factories, modeled on the
// teacher's internal/ingestion registration style and on
// original_source/utils/ingestion/registry.py.
package extract

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsupportedSource is returned by Resolve when no extractor is
// registered for a suffix.
var ErrUnsupportedSource = errors.New("extract: unsupported source suffix")

// FragmentStream is the pull-based, single-pass, in-order contract every
// fragment producer in this module satisfies: extractors and the cleaner.
// The chunker's Stream follows the same Next/Err shape but yields chunks
// through Chunk instead of Fragment. It mirrors bufio.Scanner and pgx.Rows, both of which the
// corpus already uses for exactly this kind of streaming pull-loop.
type FragmentStream interface {
	// Next advances to the next fragment, returning false when the stream
	// is exhausted or an error occurred (check Err to distinguish).
	Next() bool
	// Fragment returns the current non-empty fragment. Valid only after a
	// call to Next that returned true.
	Fragment() string
	// Err returns the first error encountered while producing fragments,
	// or nil if the stream ended cleanly.
	Err() error
}

// Closer is implemented by streams that own I/O handles; the pipeline calls
// Close once the stream is fully drained or abandoned.
type Closer interface {
	Close() error
}

// Document is what an extractor produces: a fragment stream plus metadata.
// Metadata must include "source" and "type" (§6.1).
type Document struct {
	Chunks   FragmentStream
	Metadata map[string]string
}

// Extractor is a format-specific producer of a fragment stream from a
// source path. Implementations must surface decode errors as an error on
// first iteration (via FragmentStream.Err), never by silent truncation.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Factory constructs a fresh Extractor instance. Registered per suffix so
// that every resolved extractor starts with no shared state.
type Factory func() Extractor

// Registry maps lowercase dotted suffixes to extractor factories. Last
// registration for a suffix wins; registration order is otherwise
// irrelevant.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Factory)}
}

// Register binds suffixes (e.g. ".txt", ".md") to a factory.
func (r *Registry) Register(suffixes []string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, suffix := range suffixes {
		r.handlers[strings.ToLower(suffix)] = factory
	}
}

// Resolve constructs a fresh extractor for path's suffix, or
// ErrUnsupportedSource if none is registered.
func (r *Registry) Resolve(path string) (Extractor, error) {
	suffix := strings.ToLower(filepath.Ext(path))
	r.mu.RLock()
	factory, ok := r.handlers[suffix]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, suffix)
	}
	return factory(), nil
}

// NewDefaultRegistry returns a registry with every extractor this module
// ships registered, mirroring original_source's IngestionRegistry
// constructor.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TextSuffixes, func() Extractor { return &TextExtractor{} })
	r.Register(TabularSuffixes, func() Extractor { return &TabularExtractor{} })
	r.Register(JSONSuffixes, func() Extractor { return &JSONExtractor{} })
	r.Register(PDFSuffixes, func() Extractor { return &PDFExtractor{} })
	r.Register(ImageSuffixes, func() Extractor { return &ImageExtractor{} })
	r.Register(AudioSuffixes, func() Extractor { return &AudioExtractor{} })
	return r
}

// SliceStream is a FragmentStream over an in-memory slice of fragments, used
// by extractors whose source format must be parsed in full before fragments
// can be produced (e.g. tabular sheets, JSON documents).
type SliceStream struct {
	items []string
	idx   int
	err   error
}

// NewSliceStream wraps fragments as a FragmentStream.
func NewSliceStream(fragments []string) *SliceStream {
	return &SliceStream{items: fragments, idx: -1}
}

// NewErrStream returns a FragmentStream that immediately fails with err.
func NewErrStream(err error) *SliceStream {
	return &SliceStream{err: err, idx: -1}
}

func (s *SliceStream) Next() bool {
	if s.err != nil {
		return false
	}
	s.idx++
	return s.idx < len(s.items)
}

func (s *SliceStream) Fragment() string {
	if s.idx < 0 || s.idx >= len(s.items) {
		return ""
	}
	return s.items[s.idx]
}

func (s *SliceStream) Err() error { return s.err }
