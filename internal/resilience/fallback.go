package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// a tripped breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry [Breaker] created for each
// collaborator registered in a [FallbackGroup].
type FallbackConfig struct {
	CircuitBreaker BreakerConfig
}

// fallbackEntry pairs a collaborator value with its dedicated breaker and a
// running count of how many times it has been selected.
type fallbackEntry[T any] struct {
	name      string
	value     T
	breaker   *Breaker
	selects   int
	lastError error
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same collaborator type. When the primary fails (or its breaker is open),
// the next healthy fallback is tried in registration order. Used by
// internal/graphcache to retry an external graph fetch against a secondary
// source when the primary is unavailable.
//
// FallbackGroup is not safe for concurrent use: AddFallback appends to the
// entry list, and the per-entry selection count, last error and
// LastSelected value are updated, all without locking. Each entry's
// [Breaker] is itself safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
	last    string
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first
// entry. Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	bCfg := cfg.CircuitBreaker
	bCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{name: primaryName, value: primary, breaker: NewBreaker(bCfg)},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback collaborator. Fallbacks are tried in the
// order they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	bCfg := fg.cfg.CircuitBreaker
	bCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{name: name, value: fallback, breaker: NewBreaker(bCfg)})
}

// LastSelected returns the name of the entry that most recently served a
// successful call, or "" if none has yet.
func (fg *FallbackGroup[T]) LastSelected() string { return fg.last }

// Execute tries fn against each entry in order until one succeeds.
// Tripped entries are skipped. Returns [ErrAllFailed] wrapped with the last
// error if every entry fails.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning both the result value and error. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			entry.selects++
			fg.last = entry.name
			return result, nil
		}
		lastErr = err
		entry.lastError = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("resilience: skipping tripped fallback entry", "name", entry.name)
		} else {
			slog.Warn("resilience: fallback entry failed, trying next", "name", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
