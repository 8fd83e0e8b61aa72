// Package chunk implements the hybrid fixed-window chunker (§4.1): it turns
// a lazy fragment stream into a lazy stream of overlapping, fixed-size text
// chunks without ever buffering a whole document, grounded on
// original_source/utils/chunking/hybrid_chunker.py's HybridChunker.
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Theubaa/universal-vectorizer/internal/extract"
)

// ErrConfig is returned by New when chunk geometry is invalid.
var ErrConfig = errors.New("chunk: invalid configuration")

// Chunk is one fixed-window slice of a document's cleaned text.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Chunker holds validated chunk geometry. chunk_size > chunk_overlap >= 0 is
// enforced at construction: violating it is a fatal configuration error,
// never a runtime one.
type Chunker struct {
	size    int
	overlap int
}

// New validates size/overlap and returns a Chunker, or ErrConfig.
func New(size, overlap int) (*Chunker, error) {
	if overlap < 0 {
		return nil, fmt.Errorf("%w: chunk_overlap %d must be >= 0", ErrConfig, overlap)
	}
	if size <= overlap {
		return nil, fmt.Errorf("%w: chunk_size %d must be > chunk_overlap %d", ErrConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Stream is the lazy, pull-based chunk producer returned by IterChunks. Call
// Next until it returns false, then check Err.
type Stream struct {
	src      extract.FragmentStream
	chunker  *Chunker
	metadata map[string]string
	source   string

	buf       strings.Builder
	index     int
	cur       Chunk
	err       error
	srcDone   bool
	tailEmit  bool
	tailReady bool
}

// IterChunks returns a Stream that lazily emits Chunks from src, the cleaned
// fragment stream, and the document metadata map (metadata["source"] feeds
// chunk ids; "unknown" is used if absent).
func (c *Chunker) IterChunks(src extract.FragmentStream, metadata map[string]string) *Stream {
	source := metadata["source"]
	if source == "" {
		source = "unknown"
	}
	return &Stream{src: src, chunker: c, metadata: metadata, source: source}
}

// Next advances to the next chunk, draining buffered semantic units and
// pulling new fragments as needed. Returns false at end of stream or error.
func (s *Stream) Next() bool {
	if s.err != nil {
		return false
	}

	for {
		if s.buf.Len() >= s.chunker.size {
			s.emitFull()
			return true
		}
		if s.srcDone {
			break
		}
		if !s.src.Next() {
			s.srcDone = true
			if err := s.src.Err(); err != nil {
				s.err = fmt.Errorf("chunk: reading fragment stream: %w", err)
				return false
			}
			continue
		}
		for _, unit := range semanticUnits(s.src.Fragment()) {
			s.appendUnit(unit)
		}
	}

	// Input exhausted: emit the trailing partial chunk exactly once.
	if s.buf.Len() > 0 {
		s.emit(s.buf.String())
		s.buf.Reset()
		return true
	}
	return false
}

// Chunk returns the current chunk. Valid only after Next returned true.
func (s *Stream) Chunk() Chunk { return s.cur }

// Err returns the first error encountered, if any.
func (s *Stream) Err() error { return s.err }

func (s *Stream) appendUnit(unit string) {
	if unit == "" {
		return
	}
	if s.buf.Len() == 0 {
		s.buf.WriteString(unit)
		return
	}
	joined := strings.TrimSpace(s.buf.String() + " " + unit)
	s.buf.Reset()
	s.buf.WriteString(joined)
}

func (s *Stream) emitFull() {
	text := s.buf.String()[:s.chunker.size]
	remainder := s.buf.String()[s.chunker.size-s.chunker.overlap:]
	s.buf.Reset()
	s.buf.WriteString(remainder)
	s.emit(text)
}

func (s *Stream) emit(text string) {
	meta := make(map[string]string, len(s.metadata)+1)
	for k, v := range s.metadata {
		meta[k] = v
	}
	meta["chunk_index"] = fmt.Sprintf("%d", s.index)
	s.cur = Chunk{
		ID:       fmt.Sprintf("%s-chunk-%d", s.source, s.index),
		Text:     text,
		Metadata: meta,
	}
	s.index++
}

// semanticUnits splits a fragment into the units §4.1 step 1 describes:
// paragraph breaks first, then internal newlines collapsed to spaces within
// each paragraph, then split on ". ".
func semanticUnits(fragment string) []string {
	var units []string
	for _, para := range strings.Split(fragment, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		para = strings.ReplaceAll(para, "\n", " ")
		for _, sentence := range strings.Split(para, ". ") {
			sentence = strings.TrimSpace(sentence)
			if sentence != "" {
				units = append(units, sentence)
			}
		}
	}
	return units
}
