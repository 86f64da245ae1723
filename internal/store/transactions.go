package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jfcamacho/cajasync/internal/schema"
)

const transactionColumns = `
	id, fecha, descripcion, monto, tipo_movimiento, categoria,
	proyecto_id, caja_origen_id, caja_destino_id, tercero_id,
	soporte_url, sincronizado, created_at
`

// InsertTransaction stores a new transaction record. The balance effect is
// applied separately by the ledger, inside the same SQLite transaction.
func InsertTransaction(ctx context.Context, q Execer, t *schema.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaccion: %w", err)
	}

	query := `
	INSERT INTO transacciones (` + transactionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		t.ID,
		t.Date.UTC().Format(time.RFC3339),
		nullString(t.Description),
		t.Amount.String(),
		string(t.Movement),
		nullString(t.Category),
		nullString(t.ProjectID),
		t.SourceBoxID,
		nullString(t.DestBoxID),
		nullString(t.ThirdParty),
		nullString(t.SupportRef),
		boolToInt(t.Synced),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaccion %s: %w", t.ID, err)
	}

	return nil
}

// UpdateTransaction replaces a transaction's stored fields by id.
func UpdateTransaction(ctx context.Context, q Execer, t *schema.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaccion: %w", err)
	}

	query := `
	UPDATE transacciones SET
		fecha = ?, descripcion = ?, monto = ?, tipo_movimiento = ?,
		categoria = ?, proyecto_id = ?, caja_origen_id = ?,
		caja_destino_id = ?, tercero_id = ?, soporte_url = ?,
		sincronizado = ?
	WHERE id = ?
	`

	res, err := q.ExecContext(ctx, query,
		t.Date.UTC().Format(time.RFC3339),
		nullString(t.Description),
		t.Amount.String(),
		string(t.Movement),
		nullString(t.Category),
		nullString(t.ProjectID),
		t.SourceBoxID,
		nullString(t.DestBoxID),
		nullString(t.ThirdParty),
		nullString(t.SupportRef),
		boolToInt(t.Synced),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaccion %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("transaccion %s: %w", t.ID, schema.ErrNotFound)
	}

	return nil
}

// DeleteTransaction removes a transaction by id. Idempotent.
func DeleteTransaction(ctx context.Context, q Execer, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM transacciones WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete transaccion %s: %w", id, err)
	}
	return nil
}

// MarkTransactionSynced flips the sincronizado flag after the remote
// confirmed (or recognized as duplicate) the matching queue entry.
func MarkTransactionSynced(ctx context.Context, q Execer, id string) error {
	if _, err := q.ExecContext(ctx, "UPDATE transacciones SET sincronizado = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to mark transaccion %s synced: %w", id, err)
	}
	return nil
}

// GetTransaction retrieves a transaction by id.
// Returns schema.ErrNotFound if it doesn't exist.
func GetTransaction(ctx context.Context, q Execer, id string) (*schema.Transaction, error) {
	row := q.QueryRowContext(ctx, "SELECT"+transactionColumns+"FROM transacciones WHERE id = ?", id)

	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaccion %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns every transaction ordered by date, then
// creation time.
func ListTransactions(ctx context.Context, q Execer) ([]*schema.Transaction, error) {
	rows, err := q.QueryContext(ctx, "SELECT"+transactionColumns+"FROM transacciones ORDER BY fecha ASC, created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list transacciones: %w", err)
	}
	defer rows.Close()

	var txs []*schema.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transacciones: %w", err)
	}

	return txs, nil
}

// scanTransaction reads one transaction row through the given scan
// function, shared by the single-row and multi-row paths.
func scanTransaction(scan func(dest ...any) error) (*schema.Transaction, error) {
	var t schema.Transaction
	var fecha, monto, movimiento, createdAt string
	var descripcion, categoria, proyecto, destino, tercero, soporte sql.NullString
	var sincronizado int

	err := scan(
		&t.ID, &fecha, &descripcion, &monto, &movimiento, &categoria,
		&proyecto, &t.SourceBoxID, &destino, &tercero,
		&soporte, &sincronizado, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.Date = nullStringToTime(sql.NullString{String: fecha, Valid: true})
	t.Description = descripcion.String
	if t.Amount, err = parseDecimal(monto); err != nil {
		return nil, err
	}
	t.Movement = schema.MovementType(movimiento)
	t.Category = categoria.String
	t.ProjectID = proyecto.String
	t.DestBoxID = destino.String
	t.ThirdParty = tercero.String
	t.SupportRef = soporte.String
	t.Synced = sincronizado != 0
	t.CreatedAt = nullStringToTime(sql.NullString{String: createdAt, Valid: true})

	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
