// Package spindleerr defines the sentinel error classes surfaced by the
// engine to its host: six categories a caller needs to branch on
// (configuration, rule-base, database, invalid proxy ID, invalid URI and
// internal errors), plus a not-found error.
//
// Callers compare against these with [errors.Is]. The rule-base parser, the
// proxy store and the ID utilities wrap one of these sentinels with context
// via fmt.Errorf; errors from internal/config wrap none of them.
package spindleerr

import "errors"

var (
	// ErrConfig indicates a configuration file or value is invalid.
	ErrConfig = errors.New("spindle: config error")

	// ErrRuleBase indicates the rule base failed to load or is malformed.
	ErrRuleBase = errors.New("spindle: rule base error")

	// ErrDB indicates an RDBMS error occurred during a store operation.
	ErrDB = errors.New("spindle: db error")

	// ErrInvalidProxyID indicates a string is not a well-formed 32-hex proxy ID.
	ErrInvalidProxyID = errors.New("spindle: invalid proxy id")

	// ErrInvalidURI indicates a string could not be parsed as an absolute URI.
	ErrInvalidURI = errors.New("spindle: invalid uri")

	// ErrInternal indicates a violated invariant or unexpected internal state.
	ErrInternal = errors.New("spindle: internal error")

	// ErrNotFound indicates a lookup found no matching row. Not part of the
	// spec.md §6.5 surfaced set but needed by queryapi.FetchItem's
	// not-found case, which the spec requires to be distinguishable from a
	// bare proxy-with-no-index-row result.
	ErrNotFound = errors.New("spindle: not found")
)
