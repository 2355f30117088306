// Package strip filters an RDF graph down to the triples whose predicates
// survive the rule base's cache-predicate list (spec.md §4.5).
//
// Grounded verbatim on the original's strip/processor.c: spindle_strip
// iterates every statement and keeps it only if a chain of rule callbacks
// (here: a single rule, is-cache-predicate) approves it; the approval check
// is a lexicographically-sorted scan that short-circuits once the table
// advances past the probed URI.
package strip

import (
	"sort"

	"github.com/spindle-coref/spindle/internal/rdf"
)

// Strip returns a new model containing only the statements from in whose
// predicate is a resource present in cachePredicates. cachePredicates MUST
// already be lexicographically sorted (spec.md §4.1's CachePredicates()
// guarantees this); the short-circuit scan below assumes it.
func Strip(in rdf.Model, cachePredicates []string) *rdf.MemModel {
	out := rdf.NewMemModel()
	for _, stmt := range in.Statements() {
		if !stmt.Predicate.IsResource() {
			continue
		}
		if isCachePredicate(stmt.Predicate.URI(), cachePredicates) {
			out.Add(stmt)
		}
	}
	return out
}

// isCachePredicate reports whether uri appears in the sorted cachePredicates
// list. sort.SearchStrings performs the same sortedness-dependent
// short-circuit the original's linear break-on-exceed scan relies on,
// just via binary search instead of a linear one.
func isCachePredicate(uri string, cachePredicates []string) bool {
	i := sort.SearchStrings(cachePredicates, uri)
	return i < len(cachePredicates) && cachePredicates[i] == uri
}
