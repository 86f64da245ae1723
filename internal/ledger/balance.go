// Package ledger implements the consistency core: it keeps cash-box
// balances and debt outstanding-amounts correct across create, edit,
// delete, and payment operations.
//
// Every mutation commits the record change, its balance effects, and the
// matching sync queue entry inside ONE SQLite transaction. A crash can
// therefore never split a mutation from its queue entry, and the
// read-modify-write of a balance is atomic with respect to concurrent
// operations on the same box.
package ledger

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
)

// effect is one signed balance change implied by a transaction.
type effect struct {
	boxID string
	delta decimal.Decimal
}

// effects returns the balance changes a transaction implies, scaled by
// sign (+1 apply, -1 reverse).
//
// INCOME adds to the source box, EXPENSE subtracts from it, TRANSFER
// subtracts from the source and adds to the destination.
func effects(t *schema.Transaction, sign int64) []effect {
	amount := t.Amount.Mul(decimal.NewFromInt(sign))
	switch t.Movement {
	case schema.MovementIncome:
		return []effect{{t.SourceBoxID, amount}}
	case schema.MovementExpense:
		return []effect{{t.SourceBoxID, amount.Neg()}}
	case schema.MovementTransfer:
		return []effect{
			{t.SourceBoxID, amount.Neg()},
			{t.DestBoxID, amount},
		}
	}
	return nil
}

// Service mutates the local store and appends sync queue entries. It is
// constructed once and passed by reference into the CLI, the daemon, and
// the debt operations; it holds no state beyond its collaborators.
type Service struct {
	store  *store.Store
	logger *log.Logger
}

// New creates a ledger service over an open, migrated store.
//
// If logger is nil, a default logger writing to stderr is used.
func New(st *store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[ledger] ", log.LstdFlags)
	}
	return &Service{
		store:  st,
		logger: logger,
	}
}

// CreateBox stores a new cash box and enqueues it for sync.
func (s *Service) CreateBox(ctx context.Context, b *schema.CashBox) error {
	if b.ID == "" {
		b.ID = store.NewID()
	}
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.InsertBox(ctx, tx, b); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableBoxes, schema.OpInsert, b); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit caja %s: %w", b.ID, err)
	}

	s.logger.Printf("Created caja %s (%s)", b.ID, b.Name)
	return nil
}

// CreateTransaction applies a new transaction: stores the record, applies
// its balance effect, and enqueues it, all in one unit.
func (s *Service) CreateTransaction(ctx context.Context, t *schema.Transaction) error {
	if t.ID == "" {
		t.ID = store.NewID()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.Synced = false

	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid transaccion: %w", err)
	}

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.InsertTransaction(ctx, tx, t); err != nil {
		return err
	}
	for _, e := range effects(t, +1) {
		if err := store.AdjustBalance(ctx, tx, e.boxID, e.delta); err != nil {
			return err
		}
	}
	if err := store.Enqueue(ctx, tx, schema.TableTransactions, schema.OpInsert, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaccion %s: %w", t.ID, err)
	}

	s.logger.Printf("Created transaccion %s (%s %s)", t.ID, t.Movement, t.Amount)
	return nil
}

// DeleteTransaction reverses a transaction's balance effect and removes
// the record, enqueueing the deletion.
func (s *Service) DeleteTransaction(ctx context.Context, id string) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	t, err := store.GetTransaction(ctx, tx, id)
	if err != nil {
		return err
	}

	for _, e := range effects(t, -1) {
		if err := store.AdjustBalance(ctx, tx, e.boxID, e.delta); err != nil {
			return err
		}
	}
	if err := store.DeleteTransaction(ctx, tx, id); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableTransactions, schema.OpDelete, t); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit deletion of transaccion %s: %w", id, err)
	}

	s.logger.Printf("Deleted transaccion %s", id)
	return nil
}

// UpdateTransaction edits a transaction as two discrete steps: reverse the
// ORIGINAL record's effect, then apply the UPDATED record's effect. Box
// identities may differ between the two (a transfer's destination can
// change on edit), so this is never a single diff.
func (s *Service) UpdateTransaction(ctx context.Context, updated *schema.Transaction) error {
	if err := updated.Validate(); err != nil {
		return fmt.Errorf("invalid transaccion: %w", err)
	}

	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	original, err := store.GetTransaction(ctx, tx, updated.ID)
	if err != nil {
		return err
	}

	updated.CreatedAt = original.CreatedAt
	updated.Synced = false

	for _, e := range effects(original, -1) {
		if err := store.AdjustBalance(ctx, tx, e.boxID, e.delta); err != nil {
			return err
		}
	}
	for _, e := range effects(updated, +1) {
		if err := store.AdjustBalance(ctx, tx, e.boxID, e.delta); err != nil {
			return err
		}
	}
	if err := store.UpdateTransaction(ctx, tx, updated); err != nil {
		return err
	}
	if err := store.Enqueue(ctx, tx, schema.TableTransactions, schema.OpUpdate, updated); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit edit of transaccion %s: %w", updated.ID, err)
	}

	s.logger.Printf("Updated transaccion %s", updated.ID)
	return nil
}

// Recalc rebuilds every box balance from scratch: zero all balances, then
// fold every currently-applied transaction's effect exactly once. The fold
// is commutative, so order doesn't matter.
//
// Used for integrity repair and as the reference oracle in tests. Nothing
// is enqueued: balances are derived state the remote recomputes itself.
func (s *Service) Recalc(ctx context.Context) error {
	tx, err := s.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.ZeroBalances(ctx, tx); err != nil {
		return err
	}

	txs, err := store.ListTransactions(ctx, tx)
	if err != nil {
		return err
	}

	balances := make(map[string]decimal.Decimal)
	for _, t := range txs {
		for _, e := range effects(t, +1) {
			balances[e.boxID] = balances[e.boxID].Add(e.delta)
		}
	}

	for boxID, balance := range balances {
		if err := store.SetBalance(ctx, tx, boxID, balance); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit recalculation: %w", err)
	}

	s.logger.Printf("Recalculated %d caja balances from %d transacciones", len(balances), len(txs))
	return nil
}
