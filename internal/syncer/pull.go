package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
)

// PullAll seeds the local store from the remote source of truth: every
// mirrored table is fetched wholesale and REPLACED locally (not merged),
// so repeated pulls across devices never accumulate duplicates.
//
// Pending sync queue entries are left untouched: local mutations made
// offline survive the pull and are pushed by the next ProcessQueue.
//
// The replace of all tables happens in one local transaction, so a failed
// pull leaves the previous dataset intact.
func (e *Engine) PullAll(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.logger.Printf("Pulling full dataset from remote")

	companies, err := fetchRows[schema.Company](ctx, e, schema.TableCompanies)
	if err != nil {
		return err
	}
	projects, err := fetchRows[schema.Project](ctx, e, schema.TableProjects)
	if err != nil {
		return err
	}
	thirds, err := fetchRows[schema.ThirdParty](ctx, e, schema.TableThirdParties)
	if err != nil {
		return err
	}
	categories, err := fetchRows[schema.Category](ctx, e, schema.TableCategories)
	if err != nil {
		return err
	}
	boxes, err := fetchRows[schema.CashBox](ctx, e, schema.TableBoxes)
	if err != nil {
		return err
	}
	txs, err := fetchRows[schema.Transaction](ctx, e, schema.TableTransactions)
	if err != nil {
		return err
	}
	interDebts, err := fetchRows[schema.InterBoxDebt](ctx, e, schema.TableInterBoxDebts)
	if err != nil {
		return err
	}
	thirdDebts, err := fetchRows[schema.ThirdPartyDebt](ctx, e, schema.TableThirdPartyDebts)
	if err != nil {
		return err
	}

	tx, err := e.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin pull transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.ReplaceCompanies(ctx, tx, companies); err != nil {
		return err
	}
	if err := store.ReplaceProjects(ctx, tx, projects); err != nil {
		return err
	}
	if err := store.ReplaceThirdParties(ctx, tx, thirds); err != nil {
		return err
	}
	if err := store.ReplaceCategories(ctx, tx, categories); err != nil {
		return err
	}
	if err := store.ReplaceBoxes(ctx, tx, boxes); err != nil {
		return err
	}
	if err := store.ReplaceTransactions(ctx, tx, txs); err != nil {
		return err
	}
	if err := store.ReplaceInterBoxDebts(ctx, tx, interDebts); err != nil {
		return err
	}
	if err := store.ReplaceThirdPartyDebts(ctx, tx, thirdDebts); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit pull: %w", err)
	}

	e.logger.Printf("Pull complete: %d cajas, %d transacciones, %d deudas_cajas, %d deudas_terceros",
		len(boxes), len(txs), len(interDebts), len(thirdDebts))
	return nil
}

// fetchRows fetches one table and decodes every row, normalizing
// date-only fields to full timestamps first.
func fetchRows[T any](ctx context.Context, e *Engine, table schema.Table) ([]*T, error) {
	raw, err := e.remote.FetchAll(ctx, string(table))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", table, err)
	}

	rows := make([]*T, 0, len(raw))
	for _, r := range raw {
		r = normalizeDates(r)
		var row T
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, fmt.Errorf("failed to decode %s row: %w", table, err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// normalizeDates widens remote date-only values (the remote types fecha
// fields as dates) to RFC3339 timestamps so they decode into time.Time.
func normalizeDates(raw json.RawMessage) json.RawMessage {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return raw
	}

	changed := false
	for k, v := range m {
		s, ok := v.(string)
		if !ok || len(s) != len(dateOnly) {
			continue
		}
		switch k {
		case "fecha", "fecha_prestamo", "fecha_deuda":
			m[k] = s + "T00:00:00Z"
			changed = true
		}
	}
	if !changed {
		return raw
	}

	out, err := json.Marshal(m)
	if err != nil {
		return raw
	}
	return out
}
