package extract

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// JSONExtractor streams .json/.jsonl/.ndjson records as flattened
// "key: value" fragments, one fragment per record, grounded on
// original_source/utils/ingestion/json_handler.py and
// original_source/utils/json_flattener.py's dotted-path flattening.
type JSONExtractor struct{}

func (e *JSONExtractor) Extract(_ context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open %q: %w", path, err)
	}

	suffix := strings.ToLower(filepath.Ext(path))
	meta := map[string]string{
		"source": path,
		"type":   "json",
		"suffix": suffix,
	}

	if suffix == ".jsonl" || suffix == ".ndjson" {
		return &Document{Chunks: &jsonlStream{scanner: bufio.NewScanner(f), file: f}, Metadata: meta}, nil
	}

	defer f.Close()
	var root any
	dec := json.NewDecoder(f)
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return &Document{Chunks: NewErrStream(fmt.Errorf("extract: decode json %q: %w", path, err)), Metadata: meta}, nil
	}

	var records []any
	if arr, ok := root.([]any); ok {
		records = arr
	} else {
		records = []any{root}
	}

	fragments := make([]string, 0, len(records))
	for _, record := range records {
		flat := flattenJSON("", record, map[string]string{})
		fragments = append(fragments, flatToFragment(flat))
	}

	return &Document{Chunks: NewSliceStream(fragments), Metadata: meta}, nil
}

// flattenJSON walks a decoded JSON value, producing dotted-path -> string
// leaves (arrays are indexed: "items.0.name").
func flattenJSON(prefix string, value any, out map[string]string) map[string]string {
	switch v := value.(type) {
	case map[string]any:
		for key, child := range v {
			flattenJSON(joinPath(prefix, key), child, out)
		}
	case []any:
		for i, child := range v {
			flattenJSON(fmt.Sprintf("%s.%d", prefix, i), child, out)
		}
	case nil:
		out[prefix] = ""
	default:
		out[prefix] = fmt.Sprintf("%v", v)
	}
	return out
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func flatToFragment(flat map[string]string) string {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if flat[k] == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(flat[k])
	}
	return b.String()
}

// jsonlStream decodes one JSON object per line, flattening each into a
// fragment on demand.
type jsonlStream struct {
	scanner *bufio.Scanner
	file    *os.File
	cur     string
	err     error
}

func (s *jsonlStream) Next() bool {
	if s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}
		var record any
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			s.err = fmt.Errorf("extract: decode jsonl line: %w", err)
			return false
		}
		s.cur = flatToFragment(flattenJSON("", record, map[string]string{}))
		return true
	}
	if err := s.scanner.Err(); err != nil {
		s.err = err
	}
	return false
}

func (s *jsonlStream) Fragment() string { return s.cur }
func (s *jsonlStream) Err() error       { return s.err }
func (s *jsonlStream) Close() error     { return s.file.Close() }
