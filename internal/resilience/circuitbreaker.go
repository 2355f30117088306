// Package resilience provides the trip-breaker and failover primitives that
// guard Spindle's two points of external contact: the retrying Create
// transaction against PostgreSQL (internal/proxystore) and the external
// graph fetch behind a [graphcache.Cache] miss (internal/graphcache).
//
// The central type is [Breaker], a classic three-state breaker (closed →
// open → half-open) that stops hammering a collaborator once it has shown
// it is unhealthy. [FallbackGroup] composes multiple instances of any
// collaborator type, each behind its own Breaker, so a failing primary is
// bypassed in favour of a healthy fallback.
//
// [Breaker] is safe for concurrent use; [FallbackGroup] is not (see its doc).
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] when the breaker is
// tripped and its cool-down has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the current operating mode of a [Breaker].
type State int

const (
	// StateClosed is the normal operating state — all calls are forwarded.
	StateClosed State = iota

	// StateOpen indicates the breaker has tripped due to a run of
	// consecutive failures. Calls are rejected immediately with
	// [ErrCircuitOpen] until the cool-down elapses.
	StateOpen

	// StateHalfOpen is the probe state entered after the cool-down. A
	// limited number of calls are allowed through; if they all succeed the
	// breaker closes, otherwise it re-trips.
	StateHalfOpen
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages and in OnTrip callbacks.
	Name string

	// FailureBudget is the number of consecutive failures tolerated in the
	// closed state before the breaker trips open. Default: 5.
	FailureBudget int

	// CoolDown is how long the breaker stays open before a probe call is
	// allowed through in the half-open state. Default: 30s.
	CoolDown time.Duration

	// ProbeBudget is the number of probe calls allowed through in the
	// half-open state before the breaker decides whether to close or
	// re-trip. Default: 3.
	ProbeBudget int

	// OnTrip, if set, is invoked every time the breaker transitions into
	// [StateOpen] — whether from closed (budget exhausted) or from
	// half-open (a probe failed). Callers use this to emit their own
	// domain-specific log line alongside the breaker's own, without the
	// breaker package needing to know about the caller's domain.
	OnTrip func(name string)
}

// Breaker implements the three-state circuit-breaker pattern described in
// BreakerConfig's field docs. It is safe for concurrent use from multiple
// goroutines.
type Breaker struct {
	name          string
	failureBudget int
	coolDown      time.Duration
	probeBudget   int
	onTrip        func(name string)

	mu          sync.Mutex
	state       State
	failStreak  int
	trippedAt   time.Time
	probeCalls  int
	probeFailed int
}

// NewBreaker creates a [Breaker] with the supplied configuration.
// Zero-value config fields are replaced with sensible defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureBudget <= 0 {
		cfg.FailureBudget = 5
	}
	if cfg.CoolDown <= 0 {
		cfg.CoolDown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 3
	}
	return &Breaker{
		name:          cfg.Name,
		failureBudget: cfg.FailureBudget,
		coolDown:      cfg.CoolDown,
		probeBudget:   cfg.ProbeBudget,
		onTrip:        cfg.OnTrip,
		state:         StateClosed,
	}
}

// Execute runs fn if the breaker allows it. While open it returns
// [ErrCircuitOpen] without calling fn. While half-open, only up to
// ProbeBudget calls are let through.
func (cb *Breaker) Execute(fn func() error) error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		if time.Since(cb.trippedAt) >= cb.coolDown {
			cb.state = StateHalfOpen
			cb.probeCalls = 0
			cb.probeFailed = 0
			slog.Info("resilience: breaker entering probe state", "name", cb.name)
		} else {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}

	case StateHalfOpen:
		if cb.probeCalls >= cb.probeBudget {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
	}

	probing := cb.state == StateHalfOpen
	if probing {
		cb.probeCalls++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure(probing)
	} else {
		cb.onSuccess(probing)
	}
	return err
}

// onFailure applies failure accounting. Must be called with cb.mu held.
func (cb *Breaker) onFailure(probing bool) {
	cb.trippedAt = time.Now()

	if probing {
		cb.probeFailed++
		cb.trip("probe call failed")
		return
	}

	cb.failStreak++
	if cb.failStreak >= cb.failureBudget {
		cb.trip("failure budget exhausted")
	}
}

// onSuccess applies success accounting. Must be called with cb.mu held.
func (cb *Breaker) onSuccess(probing bool) {
	if !probing {
		cb.failStreak = 0
		return
	}

	if cb.probeCalls-cb.probeFailed >= cb.probeBudget {
		cb.state = StateClosed
		cb.failStreak = 0
		cb.probeCalls = 0
		cb.probeFailed = 0
		slog.Info("resilience: breaker closed after clean probe run", "name", cb.name)
	}
}

// trip transitions the breaker into StateOpen, logs the reason, and fires
// OnTrip. Must be called with cb.mu held.
func (cb *Breaker) trip(reason string) {
	cb.state = StateOpen
	cb.failStreak = cb.failureBudget
	slog.Warn("resilience: breaker tripped open", "name", cb.name, "reason", reason)
	if cb.onTrip != nil {
		cb.onTrip(cb.name)
	}
}

// State returns the current [State] of the breaker. If open and the
// cool-down has elapsed, the returned state is [StateHalfOpen] — the actual
// transition happens on the next [Breaker.Execute] call.
func (cb *Breaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.trippedAt) >= cb.coolDown {
		return StateHalfOpen
	}
	return cb.state
}

// Reset manually forces the breaker back to [StateClosed], clearing all
// failure accounting.
func (cb *Breaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = StateClosed
	cb.failStreak = 0
	cb.probeCalls = 0
	cb.probeFailed = 0
	slog.Info("resilience: breaker manually reset", "name", cb.name)
}
