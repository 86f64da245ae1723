package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jfcamacho/cajasync/internal/schema"
)

// Enqueue appends one sync queue entry carrying a serialized snapshot of
// the mutated record. One entry per logical mutation, FIFO by rowid,
// independent of connectivity.
//
// Callers pass the same transaction the mutation ran in, so the mutation
// and its queue entry commit as one unit.
func Enqueue(ctx context.Context, q Execer, table schema.Table, op schema.Operation, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload for %s %s: %w", op, table, err)
	}

	_, err = q.ExecContext(ctx,
		"INSERT INTO sync_queue (tabla, operacion, datos, timestamp) VALUES (?, ?, ?, ?)",
		string(table),
		string(op),
		string(data),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", op, table, err)
	}

	return nil
}

// PendingQueueEntries returns every queued entry oldest-first.
func PendingQueueEntries(ctx context.Context, q Execer) ([]*schema.QueueEntry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, tabla, operacion, datos, timestamp FROM sync_queue ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list sync_queue: %w", err)
	}
	defer rows.Close()

	var entries []*schema.QueueEntry
	for rows.Next() {
		var e schema.QueueEntry
		var tabla, op, datos, ts string

		if err := rows.Scan(&e.ID, &tabla, &op, &datos, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan sync_queue entry: %w", err)
		}

		e.Table = schema.Table(tabla)
		e.Operation = schema.Operation(op)
		e.Payload = json.RawMessage(datos)
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			e.Timestamp = t
		}

		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync_queue: %w", err)
	}

	return entries, nil
}

// DeleteQueueEntry removes a queue entry after the remote confirmed it (or
// reported it already applied), or when the user discards it. Idempotent.
func DeleteQueueEntry(ctx context.Context, q Execer, id int64) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM sync_queue WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete sync_queue entry %d: %w", id, err)
	}
	return nil
}

// QueueDepth returns the number of pending entries. This powers the
// user-visible pending-sync counter.
func QueueDepth(ctx context.Context, q Execer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM sync_queue").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sync_queue: %w", err)
	}
	return n, nil
}
