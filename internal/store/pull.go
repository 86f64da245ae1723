package store

import (
	"context"
	"fmt"

	"github.com/jfcamacho/cajasync/internal/schema"
)

// Startup pull support: each Replace* clears a table and reloads it from
// the remote's authoritative rows. A full replace, not a merge, so repeated
// pulls across devices never accumulate duplicates.
//
// The sync queue is deliberately NOT touched here: pending local mutations
// survive a pull and are pushed afterwards.

// ReplaceBoxes replaces the cajas table wholesale.
func ReplaceBoxes(ctx context.Context, q Execer, boxes []*schema.CashBox) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM cajas"); err != nil {
		return fmt.Errorf("failed to clear cajas: %w", err)
	}
	for _, b := range boxes {
		if err := InsertBox(ctx, q, b); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceTransactions replaces the transacciones table wholesale. Rows
// arriving from the remote are by definition synced.
func ReplaceTransactions(ctx context.Context, q Execer, txs []*schema.Transaction) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM transacciones"); err != nil {
		return fmt.Errorf("failed to clear transacciones: %w", err)
	}
	for _, t := range txs {
		t.Synced = true
		if err := InsertTransaction(ctx, q, t); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceInterBoxDebts replaces the deudas_cajas table wholesale.
func ReplaceInterBoxDebts(ctx context.Context, q Execer, debts []*schema.InterBoxDebt) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM deudas_cajas"); err != nil {
		return fmt.Errorf("failed to clear deudas_cajas: %w", err)
	}
	for _, d := range debts {
		if err := InsertInterBoxDebt(ctx, q, d); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceThirdPartyDebts replaces the deudas_terceros table wholesale.
func ReplaceThirdPartyDebts(ctx context.Context, q Execer, debts []*schema.ThirdPartyDebt) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM deudas_terceros"); err != nil {
		return fmt.Errorf("failed to clear deudas_terceros: %w", err)
	}
	for _, d := range debts {
		if err := InsertThirdPartyDebt(ctx, q, d); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceCompanies replaces the empresas table wholesale.
func ReplaceCompanies(ctx context.Context, q Execer, cs []*schema.Company) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM empresas"); err != nil {
		return fmt.Errorf("failed to clear empresas: %w", err)
	}
	for _, c := range cs {
		if err := UpsertCompany(ctx, q, c); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceProjects replaces the proyectos table wholesale.
func ReplaceProjects(ctx context.Context, q Execer, ps []*schema.Project) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM proyectos"); err != nil {
		return fmt.Errorf("failed to clear proyectos: %w", err)
	}
	for _, p := range ps {
		if err := UpsertProject(ctx, q, p); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceThirdParties replaces the terceros table wholesale.
func ReplaceThirdParties(ctx context.Context, q Execer, ts []*schema.ThirdParty) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM terceros"); err != nil {
		return fmt.Errorf("failed to clear terceros: %w", err)
	}
	for _, t := range ts {
		if err := UpsertThirdParty(ctx, q, t); err != nil {
			return err
		}
	}
	return nil
}

// ReplaceCategories replaces the categorias table wholesale.
func ReplaceCategories(ctx context.Context, q Execer, cs []*schema.Category) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM categorias"); err != nil {
		return fmt.Errorf("failed to clear categorias: %w", err)
	}
	for _, c := range cs {
		if err := UpsertCategory(ctx, q, c); err != nil {
			return err
		}
	}
	return nil
}
