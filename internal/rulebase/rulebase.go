// Package rulebase loads the match-predicate and cache-predicate
// configuration that drives the correlator and stripper, and exposes it as
// a read-only value after load (spec.md §4.1).
//
// Grounded on the original's rulebase/rulebase.c struct shape
// (spindle_rulebase_struct: classes, predicates, a sorted cachepreds array,
// and a match_types/coref callback table) and on [coref.c]'s dispatch of a
// predicate to its registered callback.
package rulebase

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spindle-coref/spindle/internal/spindleerr"
	"github.com/spindle-coref/spindle/internal/strset"
)

// wikipediaPrefix is the prefix rewritten to dbpediaPrefix by the built-in
// "wikipedia" callback (spec.md §4.1).
const wikipediaPrefix = "http://en.wikipedia.org/wiki/"
const dbpediaPrefix = "http://dbpedia.org/resource/"

// Callback adds zero or more co-reference pairs to set given a matched
// (subject, object) pair of resource URIs.
type Callback func(set *strset.Set, subject, object string)

// MatchPredicate pairs a predicate URI with the callback invoked whenever a
// triple using that predicate is encountered during extraction.
type MatchPredicate struct {
	Predicate string
	Callback  Callback
}

// RuleBase is the loaded, read-only configuration of match predicates,
// cache predicates, and the opaque class/predicate maps consumed by the
// (out-of-scope) indexer.
type RuleBase struct {
	matchPredicates []MatchPredicate
	cachePredicates []string // kept lexicographically sorted
	classMap        map[string]string
	predicateMap    map[string]string
}

// fileFormat is the on-disk YAML shape for a rule-base file.
type fileFormat struct {
	MatchPredicates []matchEntry      `yaml:"match_predicates"`
	CachePredicates []string          `yaml:"cache_predicates"`
	ClassMap        map[string]string `yaml:"class_map"`
	PredicateMap    map[string]string `yaml:"predicate_map"`
}

type matchEntry struct {
	Predicate string `yaml:"predicate"`
	Callback  string `yaml:"callback"`
}

// builtinCallbacks maps a callback name from the rule-base file to its
// implementation. Only "sameAs" and "wikipedia" are built in, per spec.md §4.1.
var builtinCallbacks = map[string]Callback{
	"sameAs":    matchSameAs,
	"wikipedia": matchWikipedia,
}

// matchSameAs adds (subject, object) verbatim — the owl:sameAs interpretation.
func matchSameAs(set *strset.Set, subject, object string) {
	set.Add(subject, 0)
	set.Add(object, 0)
}

// matchWikipedia rewrites a Wikipedia article URI onto its DBpedia resource
// URI and adds that pairing; URIs outside the Wikipedia prefix are ignored.
func matchWikipedia(set *strset.Set, subject, object string) {
	if !strings.HasPrefix(object, wikipediaPrefix) {
		return
	}
	rewritten := dbpediaPrefix + object[len(wikipediaPrefix):]
	set.Add(subject, 0)
	set.Add(rewritten, 0)
}

// Load reads and parses a rule-base file from path. Failure to load is
// fatal at start-up per spec.md §4.1 — callers should treat a non-nil error
// as unrecoverable.
func Load(path string) (*RuleBase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rulebase: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses a rule-base from r. See [Load].
func LoadFromReader(r io.Reader) (*RuleBase, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var raw fileFormat
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("rulebase: decode yaml: %w: %w", spindleerr.ErrRuleBase, err)
	}

	rb := &RuleBase{
		classMap:     raw.ClassMap,
		predicateMap: raw.PredicateMap,
	}

	for _, entry := range raw.MatchPredicates {
		if entry.Predicate == "" {
			return nil, fmt.Errorf("rulebase: match predicate with empty uri: %w", spindleerr.ErrRuleBase)
		}
		cb, ok := builtinCallbacks[entry.Callback]
		if !ok {
			return nil, fmt.Errorf("rulebase: match predicate %q: unknown callback %q: %w",
				entry.Predicate, entry.Callback, spindleerr.ErrRuleBase)
		}
		rb.matchPredicates = append(rb.matchPredicates, MatchPredicate{
			Predicate: entry.Predicate,
			Callback:  cb,
		})
	}

	rb.cachePredicates = append(rb.cachePredicates, raw.CachePredicates...)
	sort.Strings(rb.cachePredicates)

	return rb, nil
}

// MatchPredicates returns the ordered list of (predicate, callback) pairs.
// The order is the order declared in the rule-base file.
func (rb *RuleBase) MatchPredicates() []MatchPredicate {
	out := make([]MatchPredicate, len(rb.matchPredicates))
	copy(out, rb.matchPredicates)
	return out
}

// CachePredicates returns the lexicographically sorted list of predicates
// that survive stripping. Sort order is load-bearing: see internal/strip.
func (rb *RuleBase) CachePredicates() []string {
	out := make([]string, len(rb.cachePredicates))
	copy(out, rb.cachePredicates)
	return out
}

// ClassMap returns the opaque class-mapping rules consumed by the
// out-of-scope indexer.
func (rb *RuleBase) ClassMap() map[string]string {
	return rb.classMap
}

// PredicateMap returns the opaque predicate-mapping rules consumed by the
// out-of-scope indexer.
func (rb *RuleBase) PredicateMap() map[string]string {
	return rb.predicateMap
}

// DumpSummary logs the loaded rule base's shape via slog, mirroring the
// teacher's printStartupSummary. Invoked when the "dumprules" config key is
// set (spec.md §6.3).
func (rb *RuleBase) DumpSummary() {
	slog.Info("rule base loaded",
		"match_predicates", len(rb.matchPredicates),
		"cache_predicates", len(rb.cachePredicates),
		"class_map_entries", len(rb.classMap),
		"predicate_map_entries", len(rb.predicateMap),
	)
	for _, mp := range rb.matchPredicates {
		slog.Info("rule base match predicate", "predicate", mp.Predicate)
	}
	for _, cp := range rb.cachePredicates {
		slog.Info("rule base cache predicate", "predicate", cp)
	}
}
