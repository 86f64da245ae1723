// Package schema provides the entity types shared by the cajasync core:
// cash boxes, transactions, debt records, and the sync queue.
//
// Amounts are decimal.Decimal throughout; they are serialized as canonical
// decimal strings both in SQLite and in sync payloads so no component ever
// does float arithmetic on money.
package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MovementType classifies a transaction's cash effect.
type MovementType string

const (
	// MovementIncome adds the amount to the source box.
	MovementIncome MovementType = "ingreso"
	// MovementExpense subtracts the amount from the source box.
	MovementExpense MovementType = "gasto"
	// MovementTransfer moves the amount from the source box to the
	// destination box.
	MovementTransfer MovementType = "transferencia"
)

// Valid reports whether mt is one of the three known movement types.
func (mt MovementType) Valid() bool {
	switch mt {
	case MovementIncome, MovementExpense, MovementTransfer:
		return true
	}
	return false
}

// CashBox is a named account with a tracked running balance.
//
// Balance is a derived quantity: it must always equal the fold of all
// currently-applied transaction effects referencing the box. The ledger
// package owns every balance mutation.
type CashBox struct {
	ID        string          `json:"id"`
	Name      string          `json:"nombre"`
	Type      string          `json:"tipo"`
	CompanyID string          `json:"empresa_id,omitempty"`
	Balance   decimal.Decimal `json:"saldo_actual"`

	// Optional banking details carried for the remote schema.
	BankName      string `json:"banco_nombre,omitempty"`
	AccountNumber string `json:"numero_cuenta,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields a cash box needs before it can be stored.
func (b *CashBox) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("id is required")
	}
	if b.Name == "" {
		return fmt.Errorf("nombre is required")
	}
	return nil
}

// Transaction is a single cash movement. It is owned by the workflow that
// created it: mutation happens only through the ledger's update (reverse +
// reapply) and delete (reverse) operations.
type Transaction struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"fecha"`
	Description string          `json:"descripcion"`
	Amount      decimal.Decimal `json:"monto"`
	Movement    MovementType    `json:"tipo_movimiento"`
	Category    string          `json:"categoria,omitempty"`
	ProjectID   string          `json:"proyecto_id,omitempty"`
	SourceBoxID string          `json:"caja_origen_id"`
	DestBoxID   string          `json:"caja_destino_id,omitempty"`
	ThirdParty  string          `json:"tercero_id,omitempty"`
	SupportRef  string          `json:"soporte_url,omitempty"`

	// Synced is false until the matching sync queue entry is confirmed
	// by the remote (or recognized as already applied there).
	Synced bool `json:"sincronizado"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the transaction invariants that must hold before any
// balance effect is applied.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if !t.Movement.Valid() {
		return fmt.Errorf("tipo_movimiento %q is not valid", t.Movement)
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("monto must be positive (got %s): %w", t.Amount, ErrInvalidAmount)
	}
	if t.SourceBoxID == "" {
		return fmt.Errorf("caja_origen_id is required")
	}
	if t.Movement == MovementTransfer && t.DestBoxID == "" {
		return fmt.Errorf("caja_destino_id is required for transfers")
	}
	if t.Movement != MovementTransfer && t.DestBoxID != "" {
		return fmt.Errorf("caja_destino_id is only valid for transfers")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("fecha is required")
	}
	return nil
}

// Company, Project, ThirdParty, and Category are simple reference entities.
// They are created through entity-management workflows and consumed by id
// by the core; none of them carries derived state.

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	TaxID     string    `json:"nit,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	CompanyID string    `json:"empresa_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ThirdParty struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	Kind      string    `json:"tipo,omitempty"` // proveedor, empleado, contratista
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"nombre"`
	Movement  string    `json:"tipo_movimiento,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
