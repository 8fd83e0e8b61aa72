package chunk

import (
	"strconv"
	"testing"

	"github.com/Theubaa/universal-vectorizer/internal/extract"
)

func collectChunks(t *testing.T, s *Stream) []Chunk {
	t.Helper()
	var out []Chunk
	for s.Next() {
		out = append(out, s.Chunk())
	}
	if err := s.Err(); err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}
	return out
}

func TestNewRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name    string
		size    int
		overlap int
	}{
		{"overlap negative", 10, -1},
		{"overlap equals size", 10, 10},
		{"overlap exceeds size", 10, 12},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.size, tc.overlap); err == nil {
				t.Fatalf("expected ErrConfig for size=%d overlap=%d", tc.size, tc.overlap)
			}
		})
	}
}

func TestIterChunksFullSizeExceptLast(t *testing.T) {
	c, err := New(10, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := extract.NewSliceStream([]string{"abcdefghij", "klmnop"})
	chunks := collectChunks(t, c.IterChunks(src, map[string]string{"source": "doc"}))

	if len(chunks) == 0 {
		t.Fatal("expected at least one chunk")
	}
	for i, ch := range chunks {
		if i < len(chunks)-1 {
			if len(ch.Text) != 10 {
				t.Errorf("chunk %d: want len 10, got %d (%q)", i, len(ch.Text), ch.Text)
			}
		} else {
			if len(ch.Text) < 1 || len(ch.Text) > 10 {
				t.Errorf("final chunk length out of bounds: %d", len(ch.Text))
			}
		}
		wantID := "doc-chunk-" + strconv.Itoa(i)
		if ch.ID != wantID {
			t.Errorf("chunk %d id = %q, want %q", i, ch.ID, wantID)
		}
		if ch.Metadata["chunk_index"] != strconv.Itoa(i) {
			t.Errorf("chunk %d metadata chunk_index = %q, want %q", i, ch.Metadata["chunk_index"], strconv.Itoa(i))
		}
	}
}

func TestConsecutiveChunksOverlap(t *testing.T) {
	c, err := New(10, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := extract.NewSliceStream([]string{"abcdefghijklmnopqrstuvwxyz"})
	chunks := collectChunks(t, c.IterChunks(src, map[string]string{"source": "doc"}))

	for i := 0; i < len(chunks)-1; i++ {
		if len(chunks[i].Text) != 10 {
			continue
		}
		got := chunks[i].Text[10-3:]
		want := chunks[i+1].Text[:3]
		if got != want {
			t.Errorf("overlap mismatch at %d: %q != %q", i, got, want)
		}
	}
}

func TestEmptyStreamYieldsNoChunks(t *testing.T) {
	c, err := New(10, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := extract.NewSliceStream(nil)
	chunks := collectChunks(t, c.IterChunks(src, map[string]string{"source": "doc"}))
	if len(chunks) != 0 {
		t.Fatalf("expected zero chunks, got %d", len(chunks))
	}
}

func TestShortInputYieldsOneChunk(t *testing.T) {
	c, err := New(100, 10)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := extract.NewSliceStream([]string{"short document"})
	chunks := collectChunks(t, c.IterChunks(src, map[string]string{"source": "doc"}))
	if len(chunks) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short document" {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestZeroOverlapProducesDisjointChunks(t *testing.T) {
	c, err := New(5, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	src := extract.NewSliceStream([]string{"abcdefghijklmno"})
	chunks := collectChunks(t, c.IterChunks(src, map[string]string{"source": "doc"}))

	var rebuilt string
	for _, ch := range chunks {
		rebuilt += ch.Text
	}
	if rebuilt != "abcdefghijklmno" {
		t.Errorf("disjoint reconstruction = %q, want %q", rebuilt, "abcdefghijklmno")
	}
}
