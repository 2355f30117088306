// Package strset implements the flag-tagged, insertion-ordered URI set used
// as a change-set sink throughout the engine (spec.md §4.2).
//
// The original C implementation (rulebase.h's spindle_strset_struct) managed
// a manually reallocated array; per spec.md §9's design note, this is
// replaced with a native ordered map: a Go map for O(1) lookup paired with
// an order slice that records insertion order, since insertion-order
// iteration is load-bearing for the correlator's tie-break rule.
package strset

// Flags is a bitfield of change-set annotations.
type Flags uint8

const (
	// MOVED marks a proxy as newly minted or having had references migrated in.
	MOVED Flags = 1 << iota

	// UPDATED is a caller-controlled dirty flag.
	UPDATED

	// REFRESHED marks a proxy touched by correlation even if unchanged.
	REFRESHED

	// DONE marks an entry processed by a downstream stage.
	DONE
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Set is an insertion-ordered, flag-tagged set of URIs. The zero value is
// ready to use. Not safe for concurrent use.
type Set struct {
	flags map[string]Flags
	order []string
}

// New returns an empty Set.
func New() *Set {
	return &Set{flags: make(map[string]Flags)}
}

// Add inserts key with flags if absent, or ORs flags into the existing
// entry's flags if key is already present. It never removes entries.
func (s *Set) Add(key string, flags Flags) {
	if s.flags == nil {
		s.flags = make(map[string]Flags)
	}
	if existing, ok := s.flags[key]; ok {
		s.flags[key] = existing | flags
		return
	}
	s.flags[key] = flags
	s.order = append(s.order, key)
}

// Flags returns the flags for key and whether key is present.
func (s *Set) Flags(key string) (Flags, bool) {
	f, ok := s.flags[key]
	return f, ok
}

// Len returns the number of entries in the set.
func (s *Set) Len() int {
	return len(s.order)
}

// Entry is a single (key, flags) pair as observed during ordered iteration.
type Entry struct {
	Key   string
	Flags Flags
}

// Entries returns all entries in insertion order.
func (s *Set) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Entry{Key: k, Flags: s.flags[k]})
	}
	return out
}
