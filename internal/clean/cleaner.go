// Package clean normalizes whitespace in streamed text fragments before chunking.
package clean

import (
	"regexp"
	"strings"

	"github.com/Theubaa/universal-vectorizer/internal/extract"
)

var whitespaceRun = regexp.MustCompile(`[ \t\n\r\f\v]+`)

// Cleaner normalizes whitespace on each fragment it sees.
type Cleaner struct {
	Lowercase bool
}

// New creates a Cleaner with the given lowercasing behavior.
func New(lowercase bool) *Cleaner {
	return &Cleaner{Lowercase: lowercase}
}

// Clean collapses carriage returns and whitespace runs to a single space and
// trims the result. It is idempotent: Clean(Clean(x)) == Clean(x).
func (c *Cleaner) Clean(text string) string {
	if text == "" {
		return ""
	}
	processed := strings.ReplaceAll(text, "\r", " ")
	processed = whitespaceRun.ReplaceAllString(processed, " ")
	if c.Lowercase {
		processed = strings.ToLower(processed)
	}
	return strings.TrimSpace(processed)
}

// FragmentStream is extract.FragmentStream: the bufio.Scanner-shaped pull
// interface every streaming fragment producer in this module (extractors,
// the cleaner) implements.
type FragmentStream = extract.FragmentStream

// Stream wraps a FragmentStream, yielding only the non-empty cleaned form of
// each fragment. Order is preserved; it is 1-to-at-most-1 in fragments.
type Stream struct {
	src     FragmentStream
	cleaner *Cleaner
	cur     string
}

// CleanStream returns a FragmentStream that yields the cleaned, non-empty
// form of each fragment from src, preserving order.
func (c *Cleaner) CleanStream(src FragmentStream) *Stream {
	return &Stream{src: src, cleaner: c}
}

// Next advances to the next non-empty cleaned fragment.
func (s *Stream) Next() bool {
	for s.src.Next() {
		cleaned := s.cleaner.Clean(s.src.Fragment())
		if cleaned == "" {
			continue
		}
		s.cur = cleaned
		return true
	}
	return false
}

// Fragment returns the current cleaned fragment.
func (s *Stream) Fragment() string {
	return s.cur
}

// Err returns the first error encountered by the underlying stream, if any.
func (s *Stream) Err() error {
	return s.src.Err()
}
