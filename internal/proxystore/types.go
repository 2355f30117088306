// Package proxystore is the PostgreSQL-backed persistence layer for proxy
// entities: the proxy/sameas/state/moved relational model and its
// dependent tables (spec.md §3.2, §4.3).
package proxystore

import "time"

// Status is a proxy's processing status (spec.md §3.2, state.status).
type Status string

const (
	StatusDirty    Status = "DIRTY"
	StatusComplete Status = "COMPLETE"
	StatusRejected Status = "REJECTED"
)

// Proxy is a single row of the proxy table: an ID and the external URIs it
// subsumes.
type Proxy struct {
	ID     string
	SameAs []string
}

// State is a single row of the state table (spec.md §4.3.3).
type State struct {
	ID        string
	ShortHash uint32
	TinyHash  uint8
	Status    Status
	Modified  time.Time
	Flags     int
}

// StateUpdateResult reports which branch of the §4.3.3 state-update logic ran.
type StateUpdateResult int

const (
	// StateCreated indicates no state row existed and one was inserted.
	StateCreated StateUpdateResult = iota
	// StateDirtied indicates an existing row was marked DIRTY.
	StateDirtied
	// StateUnchanged indicates no write was needed.
	StateUnchanged
)

// Item is the structured view [queryapi.FetchItem] (and this package's
// FetchItem) returns: the co-reference list and, if present, index metadata.
// IndexPresent distinguishes "no index row yet" from a zero-value IndexRow,
// since spec.md §4.8 requires that distinction to not be treated as 404.
type Item struct {
	ID           string
	SameAs       []string
	IndexPresent bool
	Index        IndexRow
}

// IndexRow is the denormalised search index row for a proxy (spec.md §3.2).
// Maintained by the out-of-scope indexer; the core only reads it.
type IndexRow struct {
	Classes     []string
	Title       string
	Description string
	Modified    time.Time
	Score       float64
}

// Membership is a single row of the membership table.
type Membership struct {
	ID         string
	Collection string
}
