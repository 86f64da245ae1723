package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfcamacho/cajasync/internal/schema"
)

// InsertBox stores a new cash box.
func InsertBox(ctx context.Context, q Execer, b *schema.CashBox) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid caja: %w", err)
	}

	query := `
	INSERT INTO cajas (
		id, nombre, tipo, empresa_id, saldo_actual,
		banco_nombre, numero_cuenta, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		b.ID,
		b.Name,
		nullString(b.Type),
		nullString(b.CompanyID),
		b.Balance.String(),
		nullString(b.BankName),
		nullString(b.AccountNumber),
		b.CreatedAt.UTC().Format(time.RFC3339),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert caja %s: %w", b.ID, err)
	}

	return nil
}

// GetBox retrieves a cash box by id.
// Returns schema.ErrNotFound if it doesn't exist.
func GetBox(ctx context.Context, q Execer, id string) (*schema.CashBox, error) {
	query := `
	SELECT id, nombre, tipo, empresa_id, saldo_actual,
	       banco_nombre, numero_cuenta, created_at, updated_at
	FROM cajas
	WHERE id = ?
	`

	row := q.QueryRowContext(ctx, query, id)

	var b schema.CashBox
	var tipo, empresa, banco, cuenta sql.NullString
	var saldo, createdAt, updatedAt string

	err := row.Scan(&b.ID, &b.Name, &tipo, &empresa, &saldo, &banco, &cuenta, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("caja %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan caja %s: %w", id, err)
	}

	b.Type = tipo.String
	b.CompanyID = empresa.String
	b.BankName = banco.String
	b.AccountNumber = cuenta.String
	if b.Balance, err = parseDecimal(saldo); err != nil {
		return nil, err
	}
	b.CreatedAt = nullStringToTime(sql.NullString{String: createdAt, Valid: true})
	b.UpdatedAt = nullStringToTime(sql.NullString{String: updatedAt, Valid: true})

	return &b, nil
}

// ListBoxes returns every cash box ordered by name.
func ListBoxes(ctx context.Context, q Execer) ([]*schema.CashBox, error) {
	query := `
	SELECT id, nombre, tipo, empresa_id, saldo_actual,
	       banco_nombre, numero_cuenta, created_at, updated_at
	FROM cajas
	ORDER BY nombre ASC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cajas: %w", err)
	}
	defer rows.Close()

	var boxes []*schema.CashBox
	for rows.Next() {
		var b schema.CashBox
		var tipo, empresa, banco, cuenta sql.NullString
		var saldo, createdAt, updatedAt string

		if err := rows.Scan(&b.ID, &b.Name, &tipo, &empresa, &saldo, &banco, &cuenta, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan caja: %w", err)
		}

		b.Type = tipo.String
		b.CompanyID = empresa.String
		b.BankName = banco.String
		b.AccountNumber = cuenta.String
		if b.Balance, err = parseDecimal(saldo); err != nil {
			return nil, err
		}
		b.CreatedAt = nullStringToTime(sql.NullString{String: createdAt, Valid: true})
		b.UpdatedAt = nullStringToTime(sql.NullString{String: updatedAt, Valid: true})

		boxes = append(boxes, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cajas: %w", err)
	}

	return boxes, nil
}

// AdjustBalance adds delta (which may be negative) to a box's balance.
//
// The read and the write both happen on q; callers MUST pass a transaction
// so the read-modify-write is atomic. With _txlock=immediate the write
// lock is held from BEGIN, so no concurrent mutation can interleave.
func AdjustBalance(ctx context.Context, q Execer, boxID string, delta decimal.Decimal) error {
	var saldo string
	err := q.QueryRowContext(ctx, "SELECT saldo_actual FROM cajas WHERE id = ?", boxID).Scan(&saldo)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("caja %s: %w", boxID, schema.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read saldo for caja %s: %w", boxID, err)
	}

	current, err := parseDecimal(saldo)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx,
		"UPDATE cajas SET saldo_actual = ?, updated_at = ? WHERE id = ?",
		current.Add(delta).String(),
		time.Now().UTC().Format(time.RFC3339),
		boxID,
	)
	if err != nil {
		return fmt.Errorf("failed to update saldo for caja %s: %w", boxID, err)
	}

	return nil
}

// SetBalance overwrites a box's balance. Used by Recalc.
func SetBalance(ctx context.Context, q Execer, boxID string, balance decimal.Decimal) error {
	res, err := q.ExecContext(ctx,
		"UPDATE cajas SET saldo_actual = ?, updated_at = ? WHERE id = ?",
		balance.String(),
		time.Now().UTC().Format(time.RFC3339),
		boxID,
	)
	if err != nil {
		return fmt.Errorf("failed to set saldo for caja %s: %w", boxID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("caja %s: %w", boxID, schema.ErrNotFound)
	}
	return nil
}

// ZeroBalances resets every box balance to zero. Used by Recalc before
// folding all transaction effects back in.
func ZeroBalances(ctx context.Context, q Execer) error {
	_, err := q.ExecContext(ctx,
		"UPDATE cajas SET saldo_actual = '0', updated_at = ?",
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to zero saldos: %w", err)
	}
	return nil
}
