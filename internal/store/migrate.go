package store

import (
	"context"
	"fmt"
)

// Schema migrations. Each version declares the FULL table set, never a
// diff: every statement is CREATE TABLE IF NOT EXISTS (or an equally
// idempotent index), so an instance installed at any version converges by
// replaying the versions above its PRAGMA user_version in order.
//
// Amounts are stored as canonical decimal strings (TEXT); timestamps as
// RFC3339 TEXT; payment lists as JSON arrays mirroring the remote schema.

var migrations = []string{
	// v1: companies, cash boxes, transactions
	`
	CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		nit TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cajas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		empresa_id TEXT,
		saldo_actual TEXT NOT NULL DEFAULT '0',
		banco_nombre TEXT,
		numero_cuenta TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transacciones (
		id TEXT PRIMARY KEY,
		fecha TEXT NOT NULL,
		descripcion TEXT,
		monto TEXT NOT NULL,
		tipo_movimiento TEXT NOT NULL,
		categoria TEXT,
		proyecto_id TEXT,
		caja_origen_id TEXT NOT NULL,
		caja_destino_id TEXT,
		tercero_id TEXT,
		soporte_url TEXT,
		sincronizado INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transacciones_origen ON transacciones(caja_origen_id);
	CREATE INDEX IF NOT EXISTS idx_transacciones_destino ON transacciones(caja_destino_id);
	CREATE INDEX IF NOT EXISTS idx_transacciones_fecha ON transacciones(fecha);
	`,

	// v2: + projects, third parties
	`
	CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		nit TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS proyectos (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		empresa_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terceros (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cajas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		empresa_id TEXT,
		saldo_actual TEXT NOT NULL DEFAULT '0',
		banco_nombre TEXT,
		numero_cuenta TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transacciones (
		id TEXT PRIMARY KEY,
		fecha TEXT NOT NULL,
		descripcion TEXT,
		monto TEXT NOT NULL,
		tipo_movimiento TEXT NOT NULL,
		categoria TEXT,
		proyecto_id TEXT,
		caja_origen_id TEXT NOT NULL,
		caja_destino_id TEXT,
		tercero_id TEXT,
		soporte_url TEXT,
		sincronizado INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	`,

	// v3: + sync queue
	`
	CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		nit TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS proyectos (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		empresa_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terceros (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cajas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		empresa_id TEXT,
		saldo_actual TEXT NOT NULL DEFAULT '0',
		banco_nombre TEXT,
		numero_cuenta TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transacciones (
		id TEXT PRIMARY KEY,
		fecha TEXT NOT NULL,
		descripcion TEXT,
		monto TEXT NOT NULL,
		tipo_movimiento TEXT NOT NULL,
		categoria TEXT,
		proyecto_id TEXT,
		caja_origen_id TEXT NOT NULL,
		caja_destino_id TEXT,
		tercero_id TEXT,
		soporte_url TEXT,
		sincronizado INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tabla TEXT NOT NULL,
		operacion TEXT NOT NULL,
		datos TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);
	`,

	// v4: + debt ledgers
	`
	CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		nit TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS proyectos (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		empresa_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terceros (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cajas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		empresa_id TEXT,
		saldo_actual TEXT NOT NULL DEFAULT '0',
		banco_nombre TEXT,
		numero_cuenta TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transacciones (
		id TEXT PRIMARY KEY,
		fecha TEXT NOT NULL,
		descripcion TEXT,
		monto TEXT NOT NULL,
		tipo_movimiento TEXT NOT NULL,
		categoria TEXT,
		proyecto_id TEXT,
		caja_origen_id TEXT NOT NULL,
		caja_destino_id TEXT,
		tercero_id TEXT,
		soporte_url TEXT,
		sincronizado INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tabla TEXT NOT NULL,
		operacion TEXT NOT NULL,
		datos TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deudas_cajas (
		id TEXT PRIMARY KEY,
		caja_deudora_id TEXT NOT NULL,
		caja_acreedora_id TEXT NOT NULL,
		monto_original TEXT NOT NULL,
		monto_pendiente TEXT NOT NULL,
		fecha_prestamo TEXT NOT NULL,
		estado TEXT NOT NULL,
		pagos TEXT NOT NULL DEFAULT '[]',
		descripcion TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deudas_terceros (
		id TEXT PRIMARY KEY,
		tercero_id TEXT NOT NULL,
		empresa_id TEXT,
		proyecto_id TEXT,
		monto_original TEXT NOT NULL,
		monto_pendiente TEXT NOT NULL,
		fecha_deuda TEXT NOT NULL,
		estado TEXT NOT NULL,
		descripcion TEXT,
		pagos TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deudas_cajas_estado ON deudas_cajas(estado);
	CREATE INDEX IF NOT EXISTS idx_deudas_terceros_estado ON deudas_terceros(estado);
	CREATE INDEX IF NOT EXISTS idx_deudas_terceros_tercero ON deudas_terceros(tercero_id);
	`,

	// v5: + categories
	`
	CREATE TABLE IF NOT EXISTS empresas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		nit TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS proyectos (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		empresa_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS terceros (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS categorias (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo_movimiento TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cajas (
		id TEXT PRIMARY KEY,
		nombre TEXT NOT NULL,
		tipo TEXT,
		empresa_id TEXT,
		saldo_actual TEXT NOT NULL DEFAULT '0',
		banco_nombre TEXT,
		numero_cuenta TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS transacciones (
		id TEXT PRIMARY KEY,
		fecha TEXT NOT NULL,
		descripcion TEXT,
		monto TEXT NOT NULL,
		tipo_movimiento TEXT NOT NULL,
		categoria TEXT,
		proyecto_id TEXT,
		caja_origen_id TEXT NOT NULL,
		caja_destino_id TEXT,
		tercero_id TEXT,
		soporte_url TEXT,
		sincronizado INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tabla TEXT NOT NULL,
		operacion TEXT NOT NULL,
		datos TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deudas_cajas (
		id TEXT PRIMARY KEY,
		caja_deudora_id TEXT NOT NULL,
		caja_acreedora_id TEXT NOT NULL,
		monto_original TEXT NOT NULL,
		monto_pendiente TEXT NOT NULL,
		fecha_prestamo TEXT NOT NULL,
		estado TEXT NOT NULL,
		pagos TEXT NOT NULL DEFAULT '[]',
		descripcion TEXT,
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deudas_terceros (
		id TEXT PRIMARY KEY,
		tercero_id TEXT NOT NULL,
		empresa_id TEXT,
		proyecto_id TEXT,
		monto_original TEXT NOT NULL,
		monto_pendiente TEXT NOT NULL,
		fecha_deuda TEXT NOT NULL,
		estado TEXT NOT NULL,
		descripcion TEXT,
		pagos TEXT NOT NULL DEFAULT '[]',
		version INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transacciones_origen ON transacciones(caja_origen_id);
	CREATE INDEX IF NOT EXISTS idx_transacciones_destino ON transacciones(caja_destino_id);
	CREATE INDEX IF NOT EXISTS idx_transacciones_fecha ON transacciones(fecha);
	CREATE INDEX IF NOT EXISTS idx_transacciones_sync ON transacciones(sincronizado);
	CREATE INDEX IF NOT EXISTS idx_deudas_cajas_estado ON deudas_cajas(estado);
	CREATE INDEX IF NOT EXISTS idx_deudas_terceros_estado ON deudas_terceros(estado);
	CREATE INDEX IF NOT EXISTS idx_deudas_terceros_tercero ON deudas_terceros(tercero_id);
	`,
}

// SchemaVersion is the version Migrate brings the store to.
var SchemaVersion = len(migrations)

// Migrate replays every migration above the store's current user_version,
// in order, each inside its own transaction. Safe to call on every open.
func (s *Store) Migrate() error {
	return s.MigrateContext(context.Background())
}

// MigrateContext replays pending migrations with context support.
func (s *Store) MigrateContext(ctx context.Context) error {
	var current int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if current > len(migrations) {
		return fmt.Errorf("database schema version %d is newer than this binary supports (%d)",
			current, len(migrations))
	}

	for v := current; v < len(migrations); v++ {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", v+1, err)
		}

		if _, err := tx.ExecContext(ctx, migrations[v]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration to version %d failed: %w", v+1, err)
		}

		// PRAGMA doesn't take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", v+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record schema version %d: %w", v+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", v+1, err)
		}
	}

	return nil
}

// Version returns the store's current schema version.
func (s *Store) Version() (int, error) {
	var v int
	if err := s.conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}
