package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jfcamacho/cajasync/internal/remote"
	"github.com/jfcamacho/cajasync/internal/schema"
)

// Outbound projections. Each table has one statically-checked projection
// function that decodes a queue payload into its typed entity and emits
// ONLY the fields of the table's remote schema. Local-only fields (debt
// version counters, any UI state a payload might carry) never reach the
// remote call, and fields the remote types as date are normalized to
// date-only strings.
//
// The set is closed: an unknown table is a projection error, and adding a
// table means adding a case here.

const dateOnly = "2006-01-02"

// projection turns a queue payload into an outbound record plus the
// relation fields eligible for the null-out retry on foreign-key failures.
type projection struct {
	project   func(payload json.RawMessage) (remote.Record, error)
	relations []string
}

// projectionFor selects the projection for a table.
func projectionFor(table schema.Table) (projection, error) {
	switch table {
	case schema.TableTransactions:
		return projection{projectTransaction, []string{"proyecto_id", "tercero_id"}}, nil
	case schema.TableBoxes:
		return projection{projectBox, []string{"empresa_id"}}, nil
	case schema.TableInterBoxDebts:
		return projection{projectInterBoxDebt, nil}, nil
	case schema.TableThirdPartyDebts:
		return projection{projectThirdPartyDebt, []string{"empresa_id", "proyecto_id"}}, nil
	case schema.TableCompanies:
		return projection{projectCompany, nil}, nil
	case schema.TableProjects:
		return projection{projectProject, []string{"empresa_id"}}, nil
	case schema.TableThirdParties:
		return projection{projectThirdParty, nil}, nil
	case schema.TableCategories:
		return projection{projectCategory, nil}, nil
	default:
		return projection{}, fmt.Errorf("no outbound projection for table %q", table)
	}
}

// nullOutRelations returns a copy of rec with the given relation fields
// removed, for the retry after a foreign-key failure.
func nullOutRelations(rec remote.Record, relations []string) remote.Record {
	out := make(remote.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	for _, field := range relations {
		if _, ok := out[field]; ok {
			out[field] = nil
		}
	}
	return out
}

// optional maps an empty string to nil so the remote receives NULL rather
// than an empty foreign key.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func projectTransaction(payload json.RawMessage) (remote.Record, error) {
	var t schema.Transaction
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("failed to decode transaccion payload: %w", err)
	}

	return remote.Record{
		"id":              t.ID,
		"fecha":           t.Date.UTC().Format(dateOnly),
		"descripcion":     t.Description,
		"monto":           t.Amount.String(),
		"tipo_movimiento": string(t.Movement),
		"categoria":       optional(t.Category),
		"proyecto_id":     optional(t.ProjectID),
		"caja_origen_id":  t.SourceBoxID,
		"caja_destino_id": optional(t.DestBoxID),
		"tercero_id":      optional(t.ThirdParty),
		"soporte_url":     optional(t.SupportRef),
		"sincronizado":    true,
		"created_at":      t.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectBox(payload json.RawMessage) (remote.Record, error) {
	var b schema.CashBox
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("failed to decode caja payload: %w", err)
	}

	return remote.Record{
		"id":            b.ID,
		"nombre":        b.Name,
		"tipo":          optional(b.Type),
		"empresa_id":    optional(b.CompanyID),
		"saldo_actual":  b.Balance.String(),
		"banco_nombre":  optional(b.BankName),
		"numero_cuenta": optional(b.AccountNumber),
		"created_at":    b.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":    b.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectInterBoxDebt(payload json.RawMessage) (remote.Record, error) {
	var d schema.InterBoxDebt
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("failed to decode deuda_cajas payload: %w", err)
	}

	pagos, err := json.Marshal(d.Payments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pagos: %w", err)
	}

	return remote.Record{
		"id":                d.ID,
		"caja_deudora_id":   d.DebtorBoxID,
		"caja_acreedora_id": d.CreditorBoxID,
		"monto_original":    d.Original.String(),
		"monto_pendiente":   d.Outstanding.String(),
		"fecha_prestamo":    d.LoanDate.UTC().Format(dateOnly),
		"estado":            string(d.State),
		"pagos":             json.RawMessage(pagos),
		"descripcion":       optional(d.Description),
		"created_at":        d.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectThirdPartyDebt(payload json.RawMessage) (remote.Record, error) {
	var d schema.ThirdPartyDebt
	if err := json.Unmarshal(payload, &d); err != nil {
		return nil, fmt.Errorf("failed to decode deuda_terceros payload: %w", err)
	}

	pagos, err := json.Marshal(d.Payments)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pagos: %w", err)
	}

	return remote.Record{
		"id":              d.ID,
		"tercero_id":      d.ThirdPartyID,
		"empresa_id":      optional(d.CompanyID),
		"proyecto_id":     optional(d.ProjectID),
		"monto_original":  d.Original.String(),
		"monto_pendiente": d.Outstanding.String(),
		"fecha_deuda":     d.DebtDate.UTC().Format(dateOnly),
		"estado":          string(d.State),
		"descripcion":     d.Description,
		"pagos":           json.RawMessage(pagos),
		"created_at":      d.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectCompany(payload json.RawMessage) (remote.Record, error) {
	var c schema.Company
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to decode empresa payload: %w", err)
	}

	return remote.Record{
		"id":         c.ID,
		"nombre":     c.Name,
		"nit":        optional(c.TaxID),
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectProject(payload json.RawMessage) (remote.Record, error) {
	var p schema.Project
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to decode proyecto payload: %w", err)
	}

	return remote.Record{
		"id":         p.ID,
		"nombre":     p.Name,
		"empresa_id": optional(p.CompanyID),
		"created_at": p.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectThirdParty(payload json.RawMessage) (remote.Record, error) {
	var t schema.ThirdParty
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("failed to decode tercero payload: %w", err)
	}

	return remote.Record{
		"id":         t.ID,
		"nombre":     t.Name,
		"tipo":       optional(t.Kind),
		"created_at": t.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func projectCategory(payload json.RawMessage) (remote.Record, error) {
	var c schema.Category
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("failed to decode categoria payload: %w", err)
	}

	return remote.Record{
		"id":              c.ID,
		"nombre":          c.Name,
		"tipo_movimiento": optional(c.Movement),
		"created_at":      c.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}
