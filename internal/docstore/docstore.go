// Package docstore abstracts the schemaless mirror of document state. The
// relational database stays authoritative; everything written here can be
// rebuilt from it, so writes are idempotent upserts keyed by ID.
package docstore

import (
	"context"
	"errors"
)

// Document is the schemaless payload mirrored into the store.
type Document map[string]any

// ErrNotFound is returned by Get when no document exists under the ID.
var ErrNotFound = errors.New("docstore: document not found")

// Store is the schemaless side of the dual-write. Put must be an upsert and
// Delete must succeed on an absent document, so replays of the same event
// converge on the same state.
type Store interface {
	// Put creates or fully replaces the document under id.
	Put(ctx context.Context, collection, id string, doc Document) error

	// Get returns the document under id, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Delete removes the document under id. Deleting an absent document is
	// not an error.
	Delete(ctx context.Context, collection, id string) error
}

// TransientError marks a store failure worth retrying: the operation may
// succeed later without anyone changing the request.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }

func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable. Returns nil for a nil err.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err should be retried rather than parked.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}
