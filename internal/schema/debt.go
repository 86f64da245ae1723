package schema

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DebtState is the amortization state of a debt record. It is a pure
// function of the outstanding amount versus the original amount and is
// never set independently of them.
type DebtState string

const (
	// DebtPending means no payment has been recorded yet.
	DebtPending DebtState = "pendiente"
	// DebtPartial means at least one payment exists but the debt is not
	// fully settled.
	DebtPartial DebtState = "parcial"
	// DebtPaid means the outstanding amount reached exactly zero.
	// Terminal.
	DebtPaid DebtState = "pagada"
)

// StateFor derives the amortization state from the two amounts.
func StateFor(outstanding, original decimal.Decimal) DebtState {
	switch {
	case outstanding.IsZero():
		return DebtPaid
	case outstanding.Equal(original):
		return DebtPending
	default:
		return DebtPartial
	}
}

// Payment is one amortization step recorded against a debt.
//
// BoxID is meaningful for inter-box debts, where it names the box the cash
// actually left. For third-party debts it is a memo only and triggers no
// balance effect.
type Payment struct {
	Amount      decimal.Decimal `json:"monto"`
	Date        time.Time       `json:"fecha"`
	Description string          `json:"descripcion,omitempty"`
	BoxID       string          `json:"caja_id,omitempty"`
}

// InterBoxDebt is a loan between two cash boxes of the same dataset.
// Recording a payment against it is a real cash movement: the ledger
// synthesizes a transfer transaction from debtor to creditor.
type InterBoxDebt struct {
	ID            string          `json:"id"`
	DebtorBoxID   string          `json:"caja_deudora_id"`
	CreditorBoxID string          `json:"caja_acreedora_id"`
	Original      decimal.Decimal `json:"monto_original"`
	Outstanding   decimal.Decimal `json:"monto_pendiente"`
	LoanDate      time.Time       `json:"fecha_prestamo"`
	State         DebtState       `json:"estado"`
	Payments      []Payment       `json:"pagos"`
	Description   string          `json:"descripcion,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	// Version is the optimistic concurrency token; every payment write
	// requires the read version to still match.
	Version int64 `json:"-"`
}

// Validate checks a new inter-box debt before it is stored.
func (d *InterBoxDebt) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.DebtorBoxID == "" || d.CreditorBoxID == "" {
		return fmt.Errorf("both caja_deudora_id and caja_acreedora_id are required")
	}
	if d.DebtorBoxID == d.CreditorBoxID {
		return fmt.Errorf("debtor and creditor box must differ")
	}
	if !d.Original.IsPositive() {
		return fmt.Errorf("monto_original must be positive (got %s): %w", d.Original, ErrInvalidAmount)
	}
	return validateAmortization(d.Original, d.Outstanding, d.State, d.Payments)
}

// ThirdPartyDebt is a payable owed to a supplier, employee, or contractor.
// Payments against it are ledger-only annotations.
type ThirdPartyDebt struct {
	ID           string          `json:"id"`
	ThirdPartyID string          `json:"tercero_id"`
	CompanyID    string          `json:"empresa_id,omitempty"`
	ProjectID    string          `json:"proyecto_id,omitempty"`
	Original     decimal.Decimal `json:"monto_original"`
	Outstanding  decimal.Decimal `json:"monto_pendiente"`
	DebtDate     time.Time       `json:"fecha_deuda"`
	State        DebtState       `json:"estado"`
	Description  string          `json:"descripcion"`
	Payments     []Payment       `json:"pagos"`
	CreatedAt    time.Time       `json:"created_at"`

	Version int64 `json:"-"`
}

// Validate checks a new third-party debt before it is stored.
func (d *ThirdPartyDebt) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("id is required")
	}
	if d.ThirdPartyID == "" {
		return fmt.Errorf("tercero_id is required")
	}
	if !d.Original.IsPositive() {
		return fmt.Errorf("monto_original must be positive (got %s): %w", d.Original, ErrInvalidAmount)
	}
	return validateAmortization(d.Original, d.Outstanding, d.State, d.Payments)
}

// validateAmortization enforces the shared debt invariants: the
// outstanding amount stays within [0, original], equals original minus the
// payment sum, and the state matches the amounts.
func validateAmortization(original, outstanding decimal.Decimal, state DebtState, payments []Payment) error {
	if outstanding.IsNegative() {
		return fmt.Errorf("monto_pendiente %s is negative", outstanding)
	}
	if outstanding.GreaterThan(original) {
		return fmt.Errorf("monto_pendiente %s exceeds monto_original %s", outstanding, original)
	}
	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}
	if !original.Sub(paid).Equal(outstanding) {
		return fmt.Errorf("monto_pendiente %s does not match monto_original %s minus payments %s",
			outstanding, original, paid)
	}
	if got := StateFor(outstanding, original); state != got {
		return fmt.Errorf("estado %q inconsistent with amounts (want %q)", state, got)
	}
	return nil
}
