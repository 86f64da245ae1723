// Package remote abstracts the remote datastore the sync engine pushes to
// and pulls from.
//
// The transport itself classifies failures into a closed ErrorKind set, so
// the sync engine branches on structured data and never sniffs
// provider-specific error text.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind is the closed classification of remote failures.
type ErrorKind int

const (
	// KindUnknown is any failure the transport cannot classify. Treated
	// as retryable by the sync engine (entry stays queued).
	KindUnknown ErrorKind = iota

	// KindDuplicate means the record already exists remotely. The sync
	// engine treats the operation as an idempotent success.
	KindDuplicate

	// KindForeignKeyViolation means a referenced foreign id does not
	// exist remotely. The sync engine retries once with the offending
	// relation fields nulled out.
	KindForeignKeyViolation

	// KindTransient is a network failure, timeout, or 5xx. The entry
	// stays queued for the next pass.
	KindTransient
)

// String returns a human-readable representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindDuplicate:
		return "duplicate"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error is a classified remote failure.
type Error struct {
	Kind  ErrorKind
	Table string
	Op    string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote %s on %s (%s): %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the ErrorKind from an error chain, defaulting to
// KindUnknown for non-remote errors.
func KindOf(err error) ErrorKind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnknown
}

// Record is one outbound row: the allow-listed projection of an entity.
type Record map[string]any

// Remote is the CRUD transport to the authoritative datastore.
//
// Implementations must return *Error for classified failures, carry a
// bounded per-call timeout, and treat the id field as the shared primary
// key between local and remote rows.
type Remote interface {
	// Insert creates a row. A row with the same id already existing is
	// reported as KindDuplicate.
	Insert(ctx context.Context, table string, rec Record) error

	// Update replaces a row's fields by id.
	Update(ctx context.Context, table, id string, rec Record) error

	// Delete removes a row by id. Deleting an absent row is a no-op.
	Delete(ctx context.Context, table, id string) error

	// FetchAll returns every row of a table, used once at startup to
	// seed the local store from the source of truth.
	FetchAll(ctx context.Context, table string) ([]json.RawMessage, error)
}

// Oracle answers whether the remote is currently reachable. Consulted by
// callers before best-effort sync triggers; never by the engine itself.
type Oracle interface {
	Online(ctx context.Context) bool
}
