package extract

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// TabularExtractor streams .csv/.tsv rows as "column: value" fragments, one
// fragment per row, grounded on
// original_source/utils/ingestion/csv_handler.py's row-to-text flattening.
type TabularExtractor struct{}

func (e *TabularExtractor) Extract(_ context.Context, path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("extract: open %q: %w", path, err)
	}
	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		reader.Comma = '\t'
	}

	meta := map[string]string{
		"source": path,
		"type":   "tabular",
		"suffix": filepath.Ext(path),
	}

	header, err := reader.Read()
	if err != nil {
		f.Close()
		return &Document{Chunks: NewErrStream(fmt.Errorf("extract: read header of %q: %w", path, err)), Metadata: meta}, nil
	}

	return &Document{
		Chunks:   &tabularStream{reader: reader, header: header, file: f},
		Metadata: meta,
	}, nil
}

type tabularStream struct {
	reader *csv.Reader
	header []string
	file   *os.File
	cur    string
	err    error
}

func (s *tabularStream) Next() bool {
	if s.err != nil {
		return false
	}
	record, err := s.reader.Read()
	if err != nil {
		if !errors.Is(err, io.EOF) {
			s.err = fmt.Errorf("extract: read row: %w", err)
		}
		return false
	}
	s.cur = rowToFragment(s.header, record)
	return true
}

func rowToFragment(header, record []string) string {
	var b strings.Builder
	for i, value := range record {
		if value == "" {
			continue
		}
		column := fmt.Sprintf("col%d", i)
		if i < len(header) {
			column = header[i]
		}
		if b.Len() > 0 {
			b.WriteString(" | ")
		}
		b.WriteString(column)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}

func (s *tabularStream) Fragment() string { return s.cur }
func (s *tabularStream) Err() error       { return s.err }
func (s *tabularStream) Close() error     { return s.file.Close() }
