package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jfcamacho/cajasync/internal/schema"
)

// Reference entities (companies, projects, third parties, categories) are
// created through entity-management workflows and consumed by id by the
// core. The store keeps plain upserts for them; the startup pull replaces
// them wholesale (see pull.go).

// UpsertCompany inserts or updates a company.
func UpsertCompany(ctx context.Context, q Execer, c *schema.Company) error {
	query := `
	INSERT INTO empresas (id, nombre, nit, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nombre = excluded.nombre,
		nit = excluded.nit
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.Name, nullString(c.TaxID), c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert empresa %s: %w", c.ID, err)
	}
	return nil
}

// UpsertProject inserts or updates a project.
func UpsertProject(ctx context.Context, q Execer, p *schema.Project) error {
	query := `
	INSERT INTO proyectos (id, nombre, empresa_id, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nombre = excluded.nombre,
		empresa_id = excluded.empresa_id
	`
	_, err := q.ExecContext(ctx, query,
		p.ID, p.Name, nullString(p.CompanyID), p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert proyecto %s: %w", p.ID, err)
	}
	return nil
}

// UpsertThirdParty inserts or updates a third party.
func UpsertThirdParty(ctx context.Context, q Execer, t *schema.ThirdParty) error {
	query := `
	INSERT INTO terceros (id, nombre, tipo, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nombre = excluded.nombre,
		tipo = excluded.tipo
	`
	_, err := q.ExecContext(ctx, query,
		t.ID, t.Name, nullString(t.Kind), t.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert tercero %s: %w", t.ID, err)
	}
	return nil
}

// UpsertCategory inserts or updates a category.
func UpsertCategory(ctx context.Context, q Execer, c *schema.Category) error {
	query := `
	INSERT INTO categorias (id, nombre, tipo_movimiento, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		nombre = excluded.nombre,
		tipo_movimiento = excluded.tipo_movimiento
	`
	_, err := q.ExecContext(ctx, query,
		c.ID, c.Name, nullString(c.Movement), c.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert categoria %s: %w", c.ID, err)
	}
	return nil
}
