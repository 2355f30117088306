package strset_test

import (
	"testing"

	"github.com/spindle-coref/spindle/internal/strset"
)

func TestAdd_AppendsNewAndMergesExisting(t *testing.T) {
	s := strset.New()
	s.Add("http://example.org/a", strset.REFRESHED)
	s.Add("http://example.org/b", strset.MOVED)
	s.Add("http://example.org/a", strset.MOVED)

	got, ok := s.Flags("http://example.org/a")
	if !ok {
		t.Fatal("expected key a to be present")
	}
	if !got.Has(strset.REFRESHED) || !got.Has(strset.MOVED) {
		t.Errorf("expected a to have REFRESHED|MOVED, got %b", got)
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Len())
	}
}

func TestEntries_PreservesInsertionOrder(t *testing.T) {
	s := strset.New()
	order := []string{"z", "a", "m"}
	for _, k := range order {
		s.Add(k, strset.REFRESHED)
	}
	// Re-adding an existing key must not move it in iteration order.
	s.Add("a", strset.MOVED)

	entries := s.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range order {
		if entries[i].Key != want {
			t.Errorf("entry %d: got %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestFlags_AbsentKey(t *testing.T) {
	s := strset.New()
	if _, ok := s.Flags("missing"); ok {
		t.Error("expected absent key to report ok=false")
	}
}

func TestZeroValueUsable(t *testing.T) {
	var s strset.Set
	s.Add("http://example.org/a", strset.DONE)
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}
}
