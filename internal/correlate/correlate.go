// Package correlate extracts co-reference pairs from an RDF graph and
// asserts them into the proxy store, producing a change-set (spec.md §4.4).
//
// Grounded on the original's twine/correlate/coref.c (two-pass extraction:
// match-predicate streaming, then a lone-subject pass over every subject)
// and common/db-correlate.c's per-pair create sequencing.
package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spindle-coref/spindle/internal/observe"
	"github.com/spindle-coref/spindle/internal/proxystore"
	"github.com/spindle-coref/spindle/internal/rdf"
	"github.com/spindle-coref/spindle/internal/rulebase"
	"github.com/spindle-coref/spindle/internal/strset"
)

// Pair is a single co-reference assertion extracted from a graph: left is
// always present; right is empty for a lone subject (spec.md §4.4).
type Pair struct {
	Left  string
	Right string
}

// CorefSet collects [Pair]s in insertion order with add-semantics that
// de-duplicate exact (left, right) pairs (spec.md §4.4 "Add-semantics").
type CorefSet struct {
	seen  map[Pair]bool
	pairs []Pair
}

// NewCorefSet returns an empty CorefSet.
func NewCorefSet() *CorefSet {
	return &CorefSet{seen: make(map[Pair]bool)}
}

// Add appends (left, right) if not already present.
func (c *CorefSet) Add(left, right string) {
	p := Pair{Left: left, Right: right}
	if c.seen[p] {
		return
	}
	c.seen[p] = true
	c.pairs = append(c.pairs, p)
}

// Pairs returns the pairs in insertion order.
func (c *CorefSet) Pairs() []Pair {
	out := make([]Pair, len(c.pairs))
	copy(out, c.pairs)
	return out
}

// extractViaCallback adapts [CorefSet.Add] to the [rulebase.Callback]'s
// strset.Set-shaped sink: match-predicate callbacks were specified against
// a generic flagged set (spec.md §4.1), but the correlator only cares about
// the (subject, object) pairing they produce, not flags. A throwaway
// strset.Set captures each callback invocation's output and is translated
// into CorefSet pairs immediately after.
func extractViaCallback(cb rulebase.Callback, set *CorefSet, subject, object string) {
	scratch := strset.New()
	cb(scratch, subject, object)
	entries := scratch.Entries()
	if len(entries) == 2 {
		set.Add(entries[0].Key, entries[1].Key)
	}
}

// Extract implements spec.md §4.4's extract(model): for each match
// predicate in rb, stream matching triples and invoke its callback; then
// enumerate every resource subject in the model and add a lone-subject
// entry, so every subject ends up with a proxy even absent any equivalence
// assertion.
func Extract(model rdf.Model, rb *rulebase.RuleBase) *CorefSet {
	set := NewCorefSet()

	for _, mp := range rb.MatchPredicates() {
		predNode := rdf.NewResource(mp.Predicate)
		for _, stmt := range model.Find(nil, &predNode, nil) {
			if !stmt.Subject.IsResource() || !stmt.Object.IsResource() {
				continue
			}
			extractViaCallback(mp.Callback, set, stmt.Subject.URI(), stmt.Object.URI())
		}
	}

	seenSubjects := make(map[string]bool)
	for _, stmt := range model.Statements() {
		if !stmt.Subject.IsResource() {
			continue
		}
		uri := stmt.Subject.URI()
		if seenSubjects[uri] {
			continue
		}
		seenSubjects[uri] = true
		set.Add(uri, "")
	}

	return set
}

// ChangeEntry is one entry of a [ChangeSet]: a touched proxy URI and the
// flags it was touched with.
type ChangeEntry struct {
	ProxyURI string
	Flags    strset.Flags
}

// ChangeSet is the set of proxy URIs touched during one correlation call.
type ChangeSet []ChangeEntry

// GraphUpdate is a single input graph to correlate: its URI, the old model
// (if this is a re-ingest of a previously seen graph), and the new model
// (spec.md §6.4).
type GraphUpdate struct {
	URI string
	Old rdf.Model
	New rdf.Model
}

// Correlate implements spec.md §4.4: extract the new co-reference set, then
// invoke proxystore.Create for every pair in order, sequentially —
// determinism is required by the tie-break rule (spec.md §4.4 "Ordering
// guarantee"). When update.Old is set its set is extracted too, but the
// result is not used.
//
// Each pair's Create runs and commits in its own transaction; no transaction
// spans the whole graph. If a pair's Create fails, Correlate returns the
// error at once: pairs processed before it stay committed, later pairs are
// not processed, and the change-set gathered so far is not returned.
func Correlate(ctx context.Context, store *proxystore.Store, rb *rulebase.RuleBase, update GraphUpdate) (ChangeSet, error) {
	start := time.Now()
	metrics := observe.DefaultMetrics()
	defer func() {
		metrics.CorrelateDuration.Record(ctx, time.Since(start).Seconds())
	}()

	if update.Old != nil {
		_ = Extract(update.Old, rb) // only the new set drives correlation; old is informational
	}

	newSet := Extract(update.New, rb)
	changeset := strset.New()

	for _, pair := range newSet.Pairs() {
		slog.Debug("correlate: processing pair", "graph", update.URI, "left", pair.Left, "right", pair.Right)
		if err := store.Create(ctx, pair.Left, pair.Right, changeset); err != nil {
			metrics.RecordCorrelateError(ctx)
			return nil, fmt.Errorf("correlate: graph %q: %w", update.URI, err)
		}
	}

	out := make(ChangeSet, 0, changeset.Len())
	for _, e := range changeset.Entries() {
		out = append(out, ChangeEntry{ProxyURI: e.Key, Flags: e.Flags})
	}
	return out, nil
}
