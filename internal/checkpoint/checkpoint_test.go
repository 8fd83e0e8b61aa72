package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadAbsentReturnsZeroValue(t *testing.T) {
	s := New(t.TempDir())
	cp, err := s.Load("missing-job")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.ChunksProcessed != 0 {
		t.Errorf("ChunksProcessed = %d, want 0", cp.ChunksProcessed)
	}
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Write("job-1", 7); err != nil {
		t.Fatalf("Write: %v", err)
	}
	cp, err := s.Load("job-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.ChunksProcessed != 7 {
		t.Errorf("ChunksProcessed = %d, want 7", cp.ChunksProcessed)
	}
}

func TestWriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	if err := s.Write("job-1", 3); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "job-1.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected temp file to be gone, stat err = %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New(t.TempDir())
	if err := s.Delete("never-existed"); err != nil {
		t.Fatalf("Delete on absent file: %v", err)
	}
	if err := s.Write("job-1", 1); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Delete("job-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete("job-1"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if s.Exists("job-1") {
		t.Error("expected checkpoint to be gone")
	}
}

func TestLoadCorruptFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "job-1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}
	s := New(dir)
	if _, err := s.Load("job-1"); err == nil {
		t.Fatal("expected error loading corrupt checkpoint")
	}
}
