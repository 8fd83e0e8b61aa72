package vectorstore

import "testing"

func TestPointIDPreservesExistingUUID(t *testing.T) {
	id := "550e8400-e29b-41d4-a716-446655440000"
	got := pointID(id)
	if got.GetUuid() != id {
		t.Errorf("pointID(%q) = %q, want the UUID unchanged", id, got.GetUuid())
	}
}

func TestPointIDDerivesStableUUIDForSpecFormatID(t *testing.T) {
	id := "report.txt-chunk-3"
	first := pointID(id)
	second := pointID(id)
	if first.GetUuid() == "" {
		t.Fatalf("pointID(%q) did not produce a UUID", id)
	}
	if first.GetUuid() != second.GetUuid() {
		t.Errorf("pointID(%q) is not deterministic: %q != %q", id, first.GetUuid(), second.GetUuid())
	}
}

func TestPointIDDiffersAcrossDistinctSpecFormatIDs(t *testing.T) {
	a := pointID("report.txt-chunk-0")
	b := pointID("report.txt-chunk-1")
	if a.GetUuid() == b.GetUuid() {
		t.Errorf("distinct chunk ids derived the same point id %q", a.GetUuid())
	}
}
