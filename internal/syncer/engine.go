// Package syncer drains the sync queue against the remote datastore.
//
// The engine iterates queued entries oldest-first, projects each payload
// onto its table's outbound allow-list, dispatches it, and classifies the
// outcome. One entry's failure never aborts the batch, and the engine
// never returns a hard error past its boundary for per-entry problems: it
// always produces a structured Summary.
package syncer

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/jfcamacho/cajasync/internal/remote"
	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
)

// EntryError records one queue entry that could not be completed this
// pass. The entry stays queued for the next trigger.
type EntryError struct {
	EntryID   int64
	Table     schema.Table
	Operation schema.Operation
	Err       error
}

func (e EntryError) Error() string {
	return fmt.Sprintf("entry %d (%s %s): %v", e.EntryID, e.Operation, e.Table, e.Err)
}

// Summary is the result of one ProcessQueue pass.
type Summary struct {
	// Success is true iff no entry produced an unresolved error.
	Success bool

	// SyncedCount is the number of entries confirmed (or recognized as
	// already applied) and removed this pass.
	SyncedCount int

	// Errors lists the entries left queued.
	Errors []EntryError
}

// Engine pushes queued mutations to the remote datastore. Construct it
// once and share it; ProcessQueue is serialized process-wide.
type Engine struct {
	store  *store.Store
	remote remote.Remote
	logger *log.Logger

	// mu serializes passes: a concurrent trigger waits for the in-flight
	// pass instead of double-dispatching entries.
	mu sync.Mutex
}

// New creates a sync engine over an open store and a remote transport.
//
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, rm remote.Remote, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		store:  st,
		remote: rm,
		logger: logger,
	}
}

// ProcessQueue drains the queue once, oldest-first.
//
// Outcome classification per entry:
//   - success: queue entry deleted; transacciones rows get sincronizado set
//   - duplicate: the remote already has the record; treated as success
//   - foreign key violation: retried once with relation fields nulled out
//   - anything else: entry stays queued, error recorded, batch continues
//
// The engine performs no retry scheduling of its own; callers re-invoke it
// on the next trigger (reconnect, timer, manual request).
func (e *Engine) ProcessQueue(ctx context.Context) (*Summary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := store.PendingQueueEntries(ctx, e.store.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to read sync queue: %w", err)
	}

	summary := &Summary{Success: true}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sync pass interrupted: %w", err)
		}

		if err := e.processEntry(ctx, entry); err != nil {
			e.logger.Printf("Entry %d (%s %s) left queued: %v",
				entry.ID, entry.Operation, entry.Table, err)
			summary.Errors = append(summary.Errors, EntryError{
				EntryID:   entry.ID,
				Table:     entry.Table,
				Operation: entry.Operation,
				Err:       err,
			})
			continue
		}

		summary.SyncedCount++
	}

	summary.Success = len(summary.Errors) == 0
	e.logger.Printf("Sync pass complete: synced=%d, failed=%d",
		summary.SyncedCount, len(summary.Errors))

	return summary, nil
}

// processEntry pushes one entry to completion. A nil return means the
// entry was confirmed (or recognized as duplicate) and removed.
func (e *Engine) processEntry(ctx context.Context, entry *schema.QueueEntry) error {
	proj, err := projectionFor(entry.Table)
	if err != nil {
		return err
	}

	rec, err := proj.project(entry.Payload)
	if err != nil {
		return err
	}

	err = e.dispatch(ctx, entry, rec)
	switch remote.KindOf(err) {
	case remote.KindDuplicate:
		// The record already exists remotely; the push is an
		// idempotent no-op.
		e.logger.Printf("Entry %d already applied remotely, cleaning up", entry.ID)
		err = nil

	case remote.KindForeignKeyViolation:
		if len(proj.relations) == 0 {
			return err
		}
		e.logger.Printf("Entry %d hit a missing relation, retrying with %v nulled",
			entry.ID, proj.relations)
		retryErr := e.dispatch(ctx, entry, nullOutRelations(rec, proj.relations))
		if retryErr != nil && remote.KindOf(retryErr) != remote.KindDuplicate {
			return retryErr
		}
		err = nil
	}
	if err != nil {
		return err
	}

	return e.complete(ctx, entry, rec)
}

// dispatch routes the entry's operation to the remote transport.
func (e *Engine) dispatch(ctx context.Context, entry *schema.QueueEntry, rec remote.Record) error {
	table := string(entry.Table)

	switch entry.Operation {
	case schema.OpInsert:
		return e.remote.Insert(ctx, table, rec)
	case schema.OpUpdate:
		return e.remote.Update(ctx, table, recordID(rec), rec)
	case schema.OpDelete:
		return e.remote.Delete(ctx, table, recordID(rec))
	default:
		return fmt.Errorf("unknown queue operation %q", entry.Operation)
	}
}

// complete removes the queue entry and, for tables carrying a synced
// flag, marks the local record, in one local transaction.
func (e *Engine) complete(ctx context.Context, entry *schema.QueueEntry, rec remote.Record) error {
	tx, err := e.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin cleanup transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.DeleteQueueEntry(ctx, tx, entry.ID); err != nil {
		return err
	}

	if entry.Table == schema.TableTransactions && entry.Operation != schema.OpDelete {
		if err := store.MarkTransactionSynced(ctx, tx, recordID(rec)); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cleanup of entry %d: %w", entry.ID, err)
	}

	return nil
}

// recordID extracts the shared primary key from a projected record.
func recordID(rec remote.Record) string {
	id, _ := rec["id"].(string)
	return id
}

// QueueDepth reports the number of pending entries, the user-visible
// pending-sync counter.
func (e *Engine) QueueDepth(ctx context.Context) (int, error) {
	return store.QueueDepth(ctx, e.store.DB())
}

// DiscardEntry removes a queue entry without pushing it. This is the
// manual escape hatch for an entry that can never succeed.
func (e *Engine) DiscardEntry(ctx context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := store.DeleteQueueEntry(ctx, e.store.DB(), id); err != nil {
		return err
	}
	e.logger.Printf("Discarded queue entry %d", id)
	return nil
}
