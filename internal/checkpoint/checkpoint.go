// Package checkpoint implements the Checkpoint Store (C6/§4.6/§6.4):
// atomic per-job cursor persistence backed by a JSON file, grounded on
// original_source/core/checkpoint.py's CheckpointStore (load/write/delete,
// write-to-temp-then-rename).
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCheckpoint is the fatal "corrupt or unreadable checkpoint" error kind
// §7 names: treated as fatal for the job, never silently discarded.
var ErrCheckpoint = errors.New("checkpoint: corrupt or unreadable")

// Checkpoint is the persisted cursor. §6.4 requires unknown keys present in
// the file on disk to be preserved across a load and dropped on the next
// write; Write only ever emits chunks_processed, so no round-trip of
// unknown keys is needed beyond tolerating their presence on Load.
type Checkpoint struct {
	ChunksProcessed int `json:"chunks_processed"`
}

// Store is a per-job checkpoint file at {dir}/{job_id}.json.
type Store struct {
	dir string
}

// New returns a Store rooted at dir (created lazily on first Write).
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(jobID string) string {
	return filepath.Join(s.dir, jobID+".json")
}

// Load returns the checkpoint for jobID, or a zero-value Checkpoint if no
// file exists yet (absence implies not-started or completed, per §3). A
// present-but-corrupt file is a fatal ErrCheckpoint.
func (s *Store) Load(jobID string) (Checkpoint, error) {
	raw, err := os.ReadFile(s.path(jobID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, nil
		}
		return Checkpoint{}, fmt.Errorf("%w: read %q: %v", ErrCheckpoint, jobID, err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Checkpoint{}, fmt.Errorf("%w: parse %q: %v", ErrCheckpoint, jobID, err)
	}

	var cp Checkpoint
	if v, ok := fields["chunks_processed"]; ok {
		n, ok := v.(float64)
		if !ok || n < 0 {
			return Checkpoint{}, fmt.Errorf("%w: %q has non-numeric or negative chunks_processed", ErrCheckpoint, jobID)
		}
		cp.ChunksProcessed = int(n)
	}
	return cp, nil
}

// Write atomically persists chunksProcessed for jobID via write-to-temp,
// fsync, then rename within the same directory.
func (s *Store) Write(jobID string, chunksProcessed int) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: create checkpoint dir: %v", ErrCheckpoint, err)
	}

	final := s.path(jobID)
	tmp := final + ".tmp"

	payload, err := json.Marshal(map[string]any{"chunks_processed": chunksProcessed})
	if err != nil {
		return fmt.Errorf("%w: encode: %v", ErrCheckpoint, err)
	}

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open temp file: %v", ErrCheckpoint, err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write temp file: %v", ErrCheckpoint, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync temp file: %v", ErrCheckpoint, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close temp file: %v", ErrCheckpoint, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename into place: %v", ErrCheckpoint, err)
	}
	return nil
}

// Delete removes jobID's checkpoint file, if any. Idempotent.
func (s *Store) Delete(jobID string) error {
	if err := os.Remove(s.path(jobID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %q: %v", ErrCheckpoint, jobID, err)
	}
	return nil
}

// Exists reports whether jobID currently has a checkpoint file.
func (s *Store) Exists(jobID string) bool {
	_, err := os.Stat(s.path(jobID))
	return err == nil
}
