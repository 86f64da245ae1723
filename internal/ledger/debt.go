package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
)

// versionRetries bounds the optimistic-concurrency retry loop on debt
// amortization writes.
const versionRetries = 3

// CreateInterBoxDebt registers a new loan between two boxes. The debt
// starts fully outstanding in state pendiente. No cash moves at creation.
func (s *Service) CreateInterBoxDebt(ctx context.Context, d *schema.InterBoxDebt) error {
	if d.ID == "" {
		d.ID = store.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.LoanDate.IsZero() {
		d.LoanDate = d.CreatedAt
	}
	d.Outstanding = d.Original
	d.State = schema.DebtPending
	d.Payments = nil

	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deuda_cajas: %w", err)
	}

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Both boxes must exist before a loan between them makes sense.
	if _, err := store.GetBox(ctx, tx, d.DebtorBoxID); err != nil {
		return err
	}
	if _, err := store.GetBox(ctx, tx, d.CreditorBoxID); err != nil {
		return err
	}

	if err := store.InsertInterBoxDebt(ctx, tx, d); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableInterBoxDebts, schema.OpInsert, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deuda_cajas %s: %w", d.ID, err)
	}

	s.logger.Printf("Created deuda_cajas %s (%s -> %s, %s)",
		d.ID, d.DebtorBoxID, d.CreditorBoxID, d.Original)
	return nil
}

// RecordInterBoxPayment amortizes an inter-box loan. Besides the ledger
// annotation, the payment is a REAL cash movement: a transfer transaction
// from the debtor box to the creditor box is synthesized and routed
// through the balance ledger, and both records are enqueued.
//
// Fails with schema.ErrInvalidAmount for non-positive amounts and
// schema.ErrOverpayment when the amount exceeds the outstanding debt; in
// both cases the debt is left unchanged.
func (s *Service) RecordInterBoxPayment(ctx context.Context, debtID string, amount decimal.Decimal, meta schema.Payment) error {
	if !amount.IsPositive() {
		return fmt.Errorf("payment of %s: %w", amount, schema.ErrInvalidAmount)
	}

	for attempt := 0; ; attempt++ {
		err := s.recordInterBoxPayment(ctx, debtID, amount, meta)
		if errors.Is(err, schema.ErrVersionConflict) && attempt < versionRetries {
			s.logger.Printf("Version conflict on deuda_cajas %s, retrying", debtID)
			continue
		}
		return err
	}
}

func (s *Service) recordInterBoxPayment(ctx context.Context, debtID string, amount decimal.Decimal, meta schema.Payment) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetInterBoxDebt(ctx, tx, debtID)
	if err != nil {
		return err
	}

	if amount.GreaterThan(d.Outstanding) {
		return fmt.Errorf("payment of %s against outstanding %s: %w",
			amount, d.Outstanding, schema.ErrOverpayment)
	}

	payment := schema.Payment{
		Amount:      amount,
		Date:        meta.Date,
		Description: meta.Description,
		BoxID:       d.DebtorBoxID,
	}
	if payment.Date.IsZero() {
		payment.Date = time.Now().UTC()
	}

	d.Outstanding = d.Outstanding.Sub(amount)
	d.Payments = append(d.Payments, payment)
	d.State = schema.StateFor(d.Outstanding, d.Original)

	if err := store.UpdateInterBoxDebtAmortization(ctx, tx, d); err != nil {
		return err
	}

	// The synthesized cash movement, debtor -> creditor.
	transfer := &schema.Transaction{
		ID:          store.NewID(),
		Date:        payment.Date,
		Description: fmt.Sprintf("Pago deuda entre cajas %s", d.ID),
		Amount:      amount,
		Movement:    schema.MovementTransfer,
		SourceBoxID: d.DebtorBoxID,
		DestBoxID:   d.CreditorBoxID,
		CreatedAt:   time.Now().UTC(),
	}
	if meta.Description != "" {
		transfer.Description = meta.Description
	}

	if err := store.InsertTransaction(ctx, tx, transfer); err != nil {
		return err
	}
	for _, e := range effects(transfer, +1) {
		if err := store.AdjustBalance(ctx, tx, e.boxID, e.delta); err != nil {
			return err
		}
	}

	if err := store.Enqueue(ctx, tx, schema.TableInterBoxDebts, schema.OpUpdate, d); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableTransactions, schema.OpInsert, transfer); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment on deuda_cajas %s: %w", debtID, err)
	}

	s.logger.Printf("Payment of %s on deuda_cajas %s (outstanding %s, %s)",
		amount, debtID, d.Outstanding, d.State)
	return nil
}

// DeleteInterBoxDebt removes a loan record unconditionally. Transactions
// synthesized by its past payments are NOT reversed; the cash genuinely
// moved and the transfers stand on their own.
func (s *Service) DeleteInterBoxDebt(ctx context.Context, id string) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetInterBoxDebt(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := store.DeleteInterBoxDebt(ctx, tx, id); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableInterBoxDebts, schema.OpDelete, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion of deuda_cajas %s: %w", id, err)
	}

	s.logger.Printf("Deleted deuda_cajas %s", id)
	return nil
}

// CreateThirdPartyDebt registers a new payable to a supplier, employee, or
// contractor.
func (s *Service) CreateThirdPartyDebt(ctx context.Context, d *schema.ThirdPartyDebt) error {
	if d.ID == "" {
		d.ID = store.NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.DebtDate.IsZero() {
		d.DebtDate = d.CreatedAt
	}
	d.Outstanding = d.Original
	d.State = schema.DebtPending
	d.Payments = nil

	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid deuda_terceros: %w", err)
	}

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.InsertThirdPartyDebt(ctx, tx, d); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableThirdPartyDebts, schema.OpInsert, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deuda_terceros %s: %w", d.ID, err)
	}

	s.logger.Printf("Created deuda_terceros %s (tercero %s, %s)", d.ID, d.ThirdPartyID, d.Original)
	return nil
}

// RecordThirdPartyPayment amortizes a third-party debt. This is
// ledger-only: even when the payment metadata references a box, no
// balance effect is applied. The box id is stored as a memo.
func (s *Service) RecordThirdPartyPayment(ctx context.Context, debtID string, amount decimal.Decimal, meta schema.Payment) error {
	if !amount.IsPositive() {
		return fmt.Errorf("payment of %s: %w", amount, schema.ErrInvalidAmount)
	}

	for attempt := 0; ; attempt++ {
		err := s.recordThirdPartyPayment(ctx, debtID, amount, meta)
		if errors.Is(err, schema.ErrVersionConflict) && attempt < versionRetries {
			s.logger.Printf("Version conflict on deuda_terceros %s, retrying", debtID)
			continue
		}
		return err
	}
}

func (s *Service) recordThirdPartyPayment(ctx context.Context, debtID string, amount decimal.Decimal, meta schema.Payment) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetThirdPartyDebt(ctx, tx, debtID)
	if err != nil {
		return err
	}

	if amount.GreaterThan(d.Outstanding) {
		return fmt.Errorf("payment of %s against outstanding %s: %w",
			amount, d.Outstanding, schema.ErrOverpayment)
	}

	payment := schema.Payment{
		Amount:      amount,
		Date:        meta.Date,
		Description: meta.Description,
		BoxID:       meta.BoxID,
	}
	if payment.Date.IsZero() {
		payment.Date = time.Now().UTC()
	}

	d.Outstanding = d.Outstanding.Sub(amount)
	d.Payments = append(d.Payments, payment)
	d.State = schema.StateFor(d.Outstanding, d.Original)

	if err := store.UpdateThirdPartyDebtAmortization(ctx, tx, d); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableThirdPartyDebts, schema.OpUpdate, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit payment on deuda_terceros %s: %w", debtID, err)
	}

	s.logger.Printf("Payment of %s on deuda_terceros %s (outstanding %s, %s)",
		amount, debtID, d.Outstanding, d.State)
	return nil
}

// DeleteThirdPartyDebt removes a payable unconditionally.
func (s *Service) DeleteThirdPartyDebt(ctx context.Context, id string) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := store.GetThirdPartyDebt(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := store.DeleteThirdPartyDebt(ctx, tx, id); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableThirdPartyDebts, schema.OpDelete, d); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion of deuda_terceros %s: %w", id, err)
	}

	s.logger.Printf("Deleted deuda_terceros %s", id)
	return nil
}
