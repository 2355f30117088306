package correlate

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/spindle-coref/spindle/internal/rdf"
)

// DefaultLabelPredicates lists the literal predicates [FuzzyMatcher] reads
// by default when collecting candidate labels: rdfs:label and foaf:name are
// the two the retrieved corpus's sources actually populate.
var DefaultLabelPredicates = []string{
	"http://www.w3.org/2000/01/rdf-schema#label",
	"http://xmlns.com/foaf/0.1/name",
}

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// FuzzyOption configures a [FuzzyMatcher].
type FuzzyOption func(*FuzzyMatcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required to
// accept a phonetically-overlapping candidate. Default: 0.70.
func WithPhoneticThreshold(threshold float64) FuzzyOption {
	return func(m *FuzzyMatcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic overlap exists and the matcher falls back to pure string
// similarity. Default: 0.85.
func WithFuzzyThreshold(threshold float64) FuzzyOption {
	return func(m *FuzzyMatcher) { m.fuzzyThreshold = threshold }
}

// WithLabelPredicates overrides the literal predicates read from the model.
// Default: [DefaultLabelPredicates].
func WithLabelPredicates(predicates ...string) FuzzyOption {
	return func(m *FuzzyMatcher) { m.predicates = predicates }
}

// FuzzyMatcher proposes additional co-reference pairs among lone subjects
// that carry no sameAs-style assertion but whose rdfs:label/foaf:name
// literals are near-miss spellings of one another (spec.md §4.4's
// lone-subject pass otherwise mints every such subject its own proxy,
// permanently, even when two sources plainly describe the same thing under
// slightly different spellings).
//
// Ported from the teacher's phonetic entity matcher
// (internal/transcript/phonetic/phonetic.go): Double Metaphone phonetic
// codes first filter candidates, then Jaro-Winkler ranks among them, with a
// pure-fuzzy fallback pass when no phonetic overlap exists. That matcher
// ranked a transcribed word against a fixed entity list; this one ranks one
// graph subject's label against every other subject's label to find mutual
// near-duplicates.
//
// FuzzyMatcher is opt-in: [Extract] and [Correlate] never invoke it. A
// caller that wants fuzzy-label correlation constructs one explicitly and
// merges [FuzzyMatcher.SuggestPairs] into its own [CorefSet] before calling
// [Correlate], since accepting fuzzy matches by default would silently
// change which proxies exact-sameAs sources land on.
type FuzzyMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
	predicates        []string
}

// NewFuzzyMatcher returns a [FuzzyMatcher] configured with the supplied
// options. Defaults: phonetic threshold 0.70, fuzzy threshold 0.85, reading
// [DefaultLabelPredicates].
func NewFuzzyMatcher(opts ...FuzzyOption) *FuzzyMatcher {
	m := &FuzzyMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		predicates:        DefaultLabelPredicates,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Labels collects the literal value of every statement in model whose
// predicate is one of m's configured label predicates, keyed by subject URI.
// A subject with more than one matching literal keeps the last one found.
func (m *FuzzyMatcher) Labels(model rdf.Model) map[string]string {
	labels := make(map[string]string)
	for _, predURI := range m.predicates {
		pred := rdf.NewResource(predURI)
		for _, stmt := range model.Find(nil, &pred, nil) {
			if !stmt.Subject.IsResource() || stmt.Object.IsResource() {
				continue
			}
			labels[stmt.Subject.URI()] = stmt.Object.Literal()
		}
	}
	return labels
}

// SuggestPairs scans the labels [FuzzyMatcher.Labels] collects from model and
// proposes a [Pair] for every subject whose label's best match is some other
// subject's label, mutually (each side picks the other as its own best
// match). Subjects are visited in subject URI order, and a subject already
// claimed by an earlier pair is not reconsidered, so the result is a set of
// disjoint candidate pairs, returned in that deterministic order.
func (m *FuzzyMatcher) SuggestPairs(model rdf.Model) []Pair {
	labels := m.Labels(model)
	if len(labels) < 2 {
		return nil
	}

	subjects := make([]string, 0, len(labels))
	for s := range labels {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)

	claimed := make(map[string]bool, len(subjects))
	var out []Pair

	for _, subj := range subjects {
		if claimed[subj] {
			continue
		}
		cand, _, matched := m.match(subj, labels, claimed)
		if !matched {
			continue
		}
		// Accept only mutual best matches: subj's best candidate must also
		// pick subj back, otherwise a one-sided near-miss (e.g. a short
		// label that phonetically overlaps many others) would silently
		// merge unrelated subjects.
		back, _, backMatched := m.match(cand, labels, claimed)
		if !backMatched || back != subj {
			continue
		}
		out = append(out, Pair{Left: subj, Right: cand})
		claimed[subj] = true
		claimed[cand] = true
	}

	return out
}

// match finds the label in labels (other than self, and other than any
// already-claimed subject) that best matches self's own label, following
// the teacher's two-stage algorithm: phonetic candidate filtering via Double
// Metaphone, then Jaro-Winkler ranking, with a pure-fuzzy fallback when no
// phonetic candidate clears the phonetic threshold.
func (m *FuzzyMatcher) match(self string, labels map[string]string, claimed map[string]bool) (subject string, confidence float64, matched bool) {
	word := strings.ToLower(strings.TrimSpace(labels[self]))
	if word == "" {
		return "", 0, false
	}
	wordTokens := strings.Fields(word)
	inputCodes := codesForTokens(wordTokens)

	var bestSubject string
	var bestScore float64
	var bestPhonetic bool

	// Deterministic iteration order, same rationale as SuggestPairs.
	others := make([]string, 0, len(labels))
	for s := range labels {
		others = append(others, s)
	}
	sort.Strings(others)

	for _, other := range others {
		if other == self || claimed[other] {
			continue
		}
		entityLower := strings.ToLower(strings.TrimSpace(labels[other]))
		if entityLower == "" {
			continue
		}
		entityTokens := strings.Fields(entityLower)

		entityCodes := codesForTokens(entityTokens)
		phoneticMatch := codesOverlap(inputCodes, entityCodes)
		jwScore := bestJWScore(wordTokens, entityTokens, word, entityLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold && (!bestPhonetic || jwScore > bestScore) {
				bestSubject, bestScore, bestPhonetic = other, jwScore, true
			}
		} else if !bestPhonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > bestScore {
				bestSubject, bestScore = other, jwScore
			}
		}
	}

	if bestSubject == "" {
		return "", 0, false
	}
	return bestSubject, bestScore, true
}

// codesForTokens returns the union of Double Metaphone codes for tokens.
// Empty codes (short words, or words with no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap reports whether a and b share at least one phonetic code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between two
// labels across three strategies: full-string, space-stripped concatenation,
// and best pairwise token — the same three the teacher's matcher uses to
// tolerate multi-word labels split or joined differently across sources.
func bestJWScore(inputTokens, entityTokens []string, inputFull, entityFull string) float64 {
	score := matchr.JaroWinkler(inputFull, entityFull, false)

	if len(inputTokens) > 1 || len(entityTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(entityTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	for _, it := range inputTokens {
		for _, et := range entityTokens {
			if s := matchr.JaroWinkler(it, et, false); s > score {
				score = s
			}
		}
	}

	return score
}
