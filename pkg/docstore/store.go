// Package docstore is a hierarchical key-value document store: a JSON tree addressed by
// slash-separated paths ("rewards/r1/guestName").
//
// Every implementation honours context cancellation and deadlines on each call. Values are
// stored as plain JSON trees (map[string]any, []any, string, float64, bool); anything else is
// converted through encoding/json on write, so structs can be written and read back with Decode.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when nothing is stored at the path.
	ErrNotFound = errors.New("document not found")
	// ErrAbort is returned by a TxFunc to leave the value untouched; Transaction returns it too.
	ErrAbort = errors.New("transaction aborted")
	// ErrInvalidPath is returned for empty paths, empty segments or forbidden key characters.
	ErrInvalidPath = errors.New("invalid document path")
)

// Entry is one child of a queried node.
type Entry struct {
	Key   string
	Value any
}

// Cursor is an exclusive position in an ordered child listing. Value is the ordering value
// (ignored when ordering by key).
type Cursor struct {
	Key   string `json:"key"`
	Value any    `json:"value,omitempty"`
}

// Bound is an inclusive bound on the ordering value. When ordering by key, Value must be a string.
type Bound struct {
	Value any
}

// Query selects an ordered window of a node's children. A single ordering criterion is
// supported: the child key when OrderBy is empty, otherwise the named child field (nested
// fields use "/").
type Query struct {
	OrderBy    string
	StartAfter *Cursor
	StartAt    *Bound
	EndAt      *Bound
	// Limit caps the number of entries returned from the start of the window; 0 means no limit.
	Limit int
}

// TxFunc receives the current value (nil when absent) and returns the value to store.
// Returning ErrAbort cancels the write. It must not call back into the store.
type TxFunc func(current any) (any, error)

// Store is the document store contract.
type Store interface {
	// Get returns the value at path or ErrNotFound.
	Get(ctx context.Context, path string) (any, error)
	// Set overwrites the value at path. A nil value removes it.
	Set(ctx context.Context, path string, value any) error
	// Patch writes every path in updates together, or none of them. Paths must not overlap.
	Patch(ctx context.Context, updates map[string]any) error
	// Remove deletes the value at path. Removing a missing path is not an error.
	Remove(ctx context.Context, path string) error
	// RangeQuery returns the children of path selected by q, in order. A missing node yields
	// no entries.
	RangeQuery(ctx context.Context, path string, q Query) ([]Entry, error)
	// Transaction atomically replaces the value at path with fn(current).
	Transaction(ctx context.Context, path string, fn TxFunc) (any, error)
}
