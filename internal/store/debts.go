package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jfcamacho/cajasync/internal/schema"
)

// InsertInterBoxDebt stores a new inter-box loan.
func InsertInterBoxDebt(ctx context.Context, q Execer, d *schema.InterBoxDebt) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deuda_cajas: %w", err)
	}

	pagos, err := json.Marshal(payments(d.Payments))
	if err != nil {
		return fmt.Errorf("failed to marshal pagos: %w", err)
	}

	query := `
	INSERT INTO deudas_cajas (
		id, caja_deudora_id, caja_acreedora_id, monto_original,
		monto_pendiente, fecha_prestamo, estado, pagos, descripcion,
		version, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	_, err = q.ExecContext(ctx, query,
		d.ID,
		d.DebtorBoxID,
		d.CreditorBoxID,
		d.Original.String(),
		d.Outstanding.String(),
		d.LoanDate.UTC().Format(time.RFC3339),
		string(d.State),
		string(pagos),
		nullString(d.Description),
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deuda_cajas %s: %w", d.ID, err)
	}

	return nil
}

// GetInterBoxDebt retrieves an inter-box debt by id, including its version
// for optimistic writes. Returns schema.ErrNotFound if it doesn't exist.
func GetInterBoxDebt(ctx context.Context, q Execer, id string) (*schema.InterBoxDebt, error) {
	query := `
	SELECT id, caja_deudora_id, caja_acreedora_id, monto_original,
	       monto_pendiente, fecha_prestamo, estado, pagos, descripcion,
	       version, created_at
	FROM deudas_cajas
	WHERE id = ?
	`

	row := q.QueryRowContext(ctx, query, id)

	var d schema.InterBoxDebt
	var original, pendiente, fecha, estado, pagos, createdAt string
	var descripcion sql.NullString

	err := row.Scan(&d.ID, &d.DebtorBoxID, &d.CreditorBoxID, &original,
		&pendiente, &fecha, &estado, &pagos, &descripcion, &d.Version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deuda_cajas %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan deuda_cajas %s: %w", id, err)
	}

	if d.Original, err = parseDecimal(original); err != nil {
		return nil, err
	}
	if d.Outstanding, err = parseDecimal(pendiente); err != nil {
		return nil, err
	}
	d.LoanDate = nullStringToTime(sql.NullString{String: fecha, Valid: true})
	d.State = schema.DebtState(estado)
	if err := json.Unmarshal([]byte(pagos), &d.Payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pagos for %s: %w", id, err)
	}
	d.Description = descripcion.String
	d.CreatedAt = nullStringToTime(sql.NullString{String: createdAt, Valid: true})

	return &d, nil
}

// UpdateInterBoxDebtAmortization writes back a debt's amortization fields
// (outstanding, state, payments) if and only if the row's version still
// matches the one the debt was read at. On success the version advances.
//
// Returns schema.ErrVersionConflict when another writer got there first;
// the caller re-reads and retries.
func UpdateInterBoxDebtAmortization(ctx context.Context, q Execer, d *schema.InterBoxDebt) error {
	pagos, err := json.Marshal(payments(d.Payments))
	if err != nil {
		return fmt.Errorf("failed to marshal pagos: %w", err)
	}

	query := `
	UPDATE deudas_cajas SET
		monto_pendiente = ?, estado = ?, pagos = ?, version = version + 1
	WHERE id = ? AND version = ?
	`

	res, err := q.ExecContext(ctx, query,
		d.Outstanding.String(),
		string(d.State),
		string(pagos),
		d.ID,
		d.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update deuda_cajas %s: %w", d.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of deuda_cajas %s: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("deuda_cajas %s: %w", d.ID, schema.ErrVersionConflict)
	}

	d.Version++
	return nil
}

// DeleteInterBoxDebt removes an inter-box debt unconditionally. It does
// not reverse transactions synthesized by its past payments.
func DeleteInterBoxDebt(ctx context.Context, q Execer, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM deudas_cajas WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete deuda_cajas %s: %w", id, err)
	}
	return nil
}

// InsertThirdPartyDebt stores a new third-party payable.
func InsertThirdPartyDebt(ctx context.Context, q Execer, d *schema.ThirdPartyDebt) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deuda_terceros: %w", err)
	}

	pagos, err := json.Marshal(payments(d.Payments))
	if err != nil {
		return fmt.Errorf("failed to marshal pagos: %w", err)
	}

	query := `
	INSERT INTO deudas_terceros (
		id, tercero_id, empresa_id, proyecto_id, monto_original,
		monto_pendiente, fecha_deuda, estado, descripcion, pagos,
		version, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`

	_, err = q.ExecContext(ctx, query,
		d.ID,
		d.ThirdPartyID,
		nullString(d.CompanyID),
		nullString(d.ProjectID),
		d.Original.String(),
		d.Outstanding.String(),
		d.DebtDate.UTC().Format(time.RFC3339),
		string(d.State),
		nullString(d.Description),
		string(pagos),
		d.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert deuda_terceros %s: %w", d.ID, err)
	}

	return nil
}

// GetThirdPartyDebt retrieves a third-party debt by id.
// Returns schema.ErrNotFound if it doesn't exist.
func GetThirdPartyDebt(ctx context.Context, q Execer, id string) (*schema.ThirdPartyDebt, error) {
	query := `
	SELECT id, tercero_id, empresa_id, proyecto_id, monto_original,
	       monto_pendiente, fecha_deuda, estado, descripcion, pagos,
	       version, created_at
	FROM deudas_terceros
	WHERE id = ?
	`

	row := q.QueryRowContext(ctx, query, id)

	var d schema.ThirdPartyDebt
	var original, pendiente, fecha, estado, pagos, createdAt string
	var empresa, proyecto, descripcion sql.NullString

	err := row.Scan(&d.ID, &d.ThirdPartyID, &empresa, &proyecto, &original,
		&pendiente, &fecha, &estado, &descripcion, &pagos, &d.Version, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("deuda_terceros %s: %w", id, schema.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan deuda_terceros %s: %w", id, err)
	}

	d.CompanyID = empresa.String
	d.ProjectID = proyecto.String
	if d.Original, err = parseDecimal(original); err != nil {
		return nil, err
	}
	if d.Outstanding, err = parseDecimal(pendiente); err != nil {
		return nil, err
	}
	d.DebtDate = nullStringToTime(sql.NullString{String: fecha, Valid: true})
	d.State = schema.DebtState(estado)
	d.Description = descripcion.String
	if err := json.Unmarshal([]byte(pagos), &d.Payments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pagos for %s: %w", id, err)
	}
	d.CreatedAt = nullStringToTime(sql.NullString{String: createdAt, Valid: true})

	return &d, nil
}

// UpdateThirdPartyDebtAmortization writes back a third-party debt's
// amortization fields under the same optimistic version discipline as
// UpdateInterBoxDebtAmortization.
func UpdateThirdPartyDebtAmortization(ctx context.Context, q Execer, d *schema.ThirdPartyDebt) error {
	pagos, err := json.Marshal(payments(d.Payments))
	if err != nil {
		return fmt.Errorf("failed to marshal pagos: %w", err)
	}

	query := `
	UPDATE deudas_terceros SET
		monto_pendiente = ?, estado = ?, pagos = ?, version = version + 1
	WHERE id = ? AND version = ?
	`

	res, err := q.ExecContext(ctx, query,
		d.Outstanding.String(),
		string(d.State),
		string(pagos),
		d.ID,
		d.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update deuda_terceros %s: %w", d.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update of deuda_terceros %s: %w", d.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("deuda_terceros %s: %w", d.ID, schema.ErrVersionConflict)
	}

	d.Version++
	return nil
}

// DeleteThirdPartyDebt removes a third-party debt unconditionally.
func DeleteThirdPartyDebt(ctx context.Context, q Execer, id string) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM deudas_terceros WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete deuda_terceros %s: %w", id, err)
	}
	return nil
}

// payments normalizes a nil payment slice to an empty one so the stored
// JSON is always an array, matching the remote schema.
func payments(ps []schema.Payment) []schema.Payment {
	if ps == nil {
		return []schema.Payment{}
	}
	return ps
}
