package syncer

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jfcamacho/cajasync/internal/remote"
	"github.com/jfcamacho/cajasync/internal/schema"
	"github.com/jfcamacho/cajasync/internal/store"
)

// setupTestEngine creates an engine over a migrated temporary database
// and an in-memory remote.
func setupTestEngine(t *testing.T) (*Engine, *store.Store, *remote.InMemoryRemote) {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if err := st.Migrate(); err != nil {
		t.Fatalf("failed to migrate test store: %v", err)
	}

	rm := remote.NewInMemory()
	return New(st, rm, log.New(io.Discard, "", 0)), st, rm
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// enqueueTransaction stores a transaction locally and enqueues its insert,
// the state a ledger mutation leaves behind.
func enqueueTransaction(t *testing.T, st *store.Store, tx *schema.Transaction) {
	t.Helper()

	ctx := context.Background()
	if err := store.InsertTransaction(ctx, st.DB(), tx); err != nil {
		t.Fatalf("failed to insert transaction: %v", err)
	}
	if err := store.Enqueue(ctx, st.DB(), schema.TableTransactions, schema.OpInsert, tx); err != nil {
		t.Fatalf("failed to enqueue transaction: %v", err)
	}
}

func testExpense(id string) *schema.Transaction {
	return &schema.Transaction{
		ID:          id,
		Date:        time.Date(2026, 3, 10, 15, 4, 5, 0, time.UTC),
		Description: "compra materiales",
		Amount:      decimal.NewFromInt(30000),
		Movement:    schema.MovementExpense,
		SourceBoxID: "box-a",
		CreatedAt:   time.Now().UTC(),
	}
}

func queueDepth(t *testing.T, eng *Engine) int {
	t.Helper()

	depth, err := eng.QueueDepth(context.Background())
	if err != nil {
		t.Fatalf("failed to read queue depth: %v", err)
	}
	return depth
}

func TestProcessQueueSyncsAndCleansUp(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	enqueueTransaction(t, st, testExpense("tx1"))

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if !summary.Success || summary.SyncedCount != 1 || len(summary.Errors) != 0 {
		t.Errorf("summary = %+v, want success with 1 synced", summary)
	}
	if depth := queueDepth(t, eng); depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}

	rec, ok := rm.Row("transacciones", "tx1")
	if !ok {
		t.Fatal("remote should have received transaccion tx1")
	}
	// Outbound date fields are date-only, matching the remote column type.
	if got := rec["fecha"]; got != "2026-03-10" {
		t.Errorf("fecha = %v, want 2026-03-10", got)
	}
	if got := rec["monto"]; got != "30000" {
		t.Errorf("monto = %v, want \"30000\"", got)
	}

	local, err := store.GetTransaction(ctx, st.DB(), "tx1")
	if err != nil {
		t.Fatalf("failed to get local transaction: %v", err)
	}
	if !local.Synced {
		t.Error("confirmed transaction should be marked synced locally")
	}

	// A second pass finds nothing to do.
	summary, err = eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("second ProcessQueue failed: %v", err)
	}
	if !summary.Success || summary.SyncedCount != 0 {
		t.Errorf("second pass summary = %+v, want success with 0 synced", summary)
	}
	if rm.Count("transacciones") != 1 {
		t.Errorf("remote row count = %d, want 1", rm.Count("transacciones"))
	}
}

func TestDuplicateKeyTreatedAsAlreadyApplied(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	// The remote already has the row (a previous pass crashed between
	// the remote write and the local cleanup).
	rm.Seed("transacciones", "tx1", remote.Record{"id": "tx1"})
	enqueueTransaction(t, st, testExpense("tx1"))

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if !summary.Success || summary.SyncedCount != 1 {
		t.Errorf("summary = %+v, want duplicate counted as synced", summary)
	}
	if depth := queueDepth(t, eng); depth != 0 {
		t.Errorf("queue depth = %d, want 0", depth)
	}

	local, err := store.GetTransaction(ctx, st.DB(), "tx1")
	if err != nil {
		t.Fatalf("failed to get local transaction: %v", err)
	}
	if !local.Synced {
		t.Error("duplicate-confirmed transaction should be marked synced")
	}
}

func TestForeignKeyFailureRetriesWithRelationsNulled(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	rm.DeclareRelation("transacciones", remote.Relation{Field: "proyecto_id", Table: "proyectos"})

	tx := testExpense("tx1")
	tx.ProjectID = "proj-not-synced-yet"
	enqueueTransaction(t, st, tx)

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if !summary.Success || summary.SyncedCount != 1 {
		t.Errorf("summary = %+v, want success after null-out retry", summary)
	}

	rec, ok := rm.Row("transacciones", "tx1")
	if !ok {
		t.Fatal("remote should have received transaccion tx1")
	}
	if rec["proyecto_id"] != nil {
		t.Errorf("proyecto_id = %v, want nil after null-out retry", rec["proyecto_id"])
	}
	// Non-relation fields survive the retry untouched.
	if rec["caja_origen_id"] != "box-a" {
		t.Errorf("caja_origen_id = %v, want box-a", rec["caja_origen_id"])
	}
}

func TestForeignKeyFailureOnNonNullableRelationStaysQueued(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	// The source box is not an eligible null-out field, so the retry
	// fails too and the entry stays queued.
	rm.DeclareRelation("transacciones", remote.Relation{Field: "caja_origen_id", Table: "cajas"})

	enqueueTransaction(t, st, testExpense("tx1"))

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if summary.Success || len(summary.Errors) != 1 {
		t.Errorf("summary = %+v, want one unresolved entry", summary)
	}
	if depth := queueDepth(t, eng); depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestTransientFailureKeepsEntryQueued(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	enqueueTransaction(t, st, testExpense("tx1"))
	rm.SetOffline(true)

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if summary.Success || summary.SyncedCount != 0 || len(summary.Errors) != 1 {
		t.Errorf("summary = %+v, want failed pass with entry retained", summary)
	}
	if depth := queueDepth(t, eng); depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}

	local, err := store.GetTransaction(ctx, st.DB(), "tx1")
	if err != nil {
		t.Fatalf("failed to get local transaction: %v", err)
	}
	if local.Synced {
		t.Error("unconfirmed transaction must stay unsynced")
	}

	// Connectivity returns; the same entry now succeeds.
	rm.SetOffline(false)
	summary, err = eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue after reconnect failed: %v", err)
	}
	if !summary.Success || summary.SyncedCount != 1 {
		t.Errorf("summary after reconnect = %+v, want 1 synced", summary)
	}
	if depth := queueDepth(t, eng); depth != 0 {
		t.Errorf("queue depth after reconnect = %d, want 0", depth)
	}
}

func TestOneFailureDoesNotAbortTheBatch(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	enqueueTransaction(t, st, testExpense("tx1"))
	enqueueTransaction(t, st, testExpense("tx2"))

	// Only the first dispatch fails.
	rm.FailNext(&remote.Error{Kind: remote.KindTransient, Table: "transacciones", Op: "insert",
		Err: context.DeadlineExceeded})

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if summary.Success {
		t.Error("pass with a failed entry must not report success")
	}
	if summary.SyncedCount != 1 || len(summary.Errors) != 1 {
		t.Errorf("summary = %+v, want 1 synced and 1 failed", summary)
	}
	if summary.Errors[0].Table != schema.TableTransactions {
		t.Errorf("error table = %s, want transacciones", summary.Errors[0].Table)
	}
	if depth := queueDepth(t, eng); depth != 1 {
		t.Errorf("queue depth = %d, want 1", depth)
	}
}

func TestDebtProjectionOmitsLocalOnlyFields(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	d := &schema.InterBoxDebt{
		ID:            "d1",
		DebtorBoxID:   "box-a",
		CreditorBoxID: "box-b",
		Original:      dec(t, "50000"),
		Outstanding:   dec(t, "30000"),
		LoanDate:      time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC),
		State:         schema.DebtPartial,
		Payments:      []schema.Payment{{Amount: dec(t, "20000"), Date: time.Now().UTC(), BoxID: "box-a"}},
		CreatedAt:     time.Now().UTC(),
		Version:       7,
	}
	if err := store.Enqueue(ctx, st.DB(), schema.TableInterBoxDebts, schema.OpUpdate, d); err != nil {
		t.Fatalf("failed to enqueue debt update: %v", err)
	}

	summary, err := eng.ProcessQueue(ctx)
	if err != nil {
		t.Fatalf("ProcessQueue failed: %v", err)
	}
	if !summary.Success {
		t.Fatalf("summary = %+v, want success", summary)
	}

	rec, ok := rm.Row("deudas_cajas", "d1")
	if !ok {
		t.Fatal("remote should have received deuda d1")
	}
	if _, leaked := rec["version"]; leaked {
		t.Error("local version counter must not reach the remote")
	}
	if got := rec["fecha_prestamo"]; got != "2026-02-01" {
		t.Errorf("fecha_prestamo = %v, want 2026-02-01", got)
	}
	if got := rec["estado"]; got != "parcial" {
		t.Errorf("estado = %v, want parcial", got)
	}
}

func TestDiscardEntry(t *testing.T) {
	eng, st, _ := setupTestEngine(t)
	ctx := context.Background()

	enqueueTransaction(t, st, testExpense("tx1"))

	entries, err := store.PendingQueueEntries(ctx, st.DB())
	if err != nil {
		t.Fatalf("failed to read queue: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("queue depth = %d, want 1", len(entries))
	}

	if err := eng.DiscardEntry(ctx, entries[0].ID); err != nil {
		t.Fatalf("failed to discard entry: %v", err)
	}
	if depth := queueDepth(t, eng); depth != 0 {
		t.Errorf("queue depth after discard = %d, want 0", depth)
	}
}

func TestPullAllReplacesLocalDataset(t *testing.T) {
	eng, st, rm := setupTestEngine(t)
	ctx := context.Background()

	// Stale local state: a box the remote no longer has, plus a pending
	// queue entry that must survive the pull.
	stale := &schema.CashBox{ID: "box-old", Name: "Caja Vieja", Balance: decimal.Zero,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()}
	if err := store.InsertBox(ctx, st.DB(), stale); err != nil {
		t.Fatalf("failed to insert stale box: %v", err)
	}
	if err := store.Enqueue(ctx, st.DB(), schema.TableTransactions, schema.OpInsert, testExpense("tx-local")); err != nil {
		t.Fatalf("failed to enqueue local mutation: %v", err)
	}

	rm.Seed("cajas", "box-a", remote.Record{
		"id": "box-a", "nombre": "Caja Principal", "tipo": "efectivo",
		"saldo_actual": "70000",
		"created_at":   "2026-01-15T08:00:00Z", "updated_at": "2026-03-10T08:00:00Z",
	})
	// The remote types fecha as a date; PullAll must widen it to decode.
	rm.Seed("transacciones", "tx-remote", remote.Record{
		"id": "tx-remote", "fecha": "2026-03-10", "descripcion": "compra",
		"monto": "30000", "tipo_movimiento": "gasto", "caja_origen_id": "box-a",
		"sincronizado": true, "created_at": "2026-03-10T08:00:00Z",
	})
	rm.Seed("empresas", "e1", remote.Record{
		"id": "e1", "nombre": "Constructora Sur", "created_at": "2026-01-01T00:00:00Z",
	})
	rm.Seed("deudas_cajas", "d1", remote.Record{
		"id": "d1", "caja_deudora_id": "box-a", "caja_acreedora_id": "box-b",
		"monto_original": "50000", "monto_pendiente": "50000",
		"fecha_prestamo": "2026-02-01", "estado": "pendiente",
		"pagos": []any{}, "created_at": "2026-02-01T00:00:00Z",
	})

	if err := eng.PullAll(ctx); err != nil {
		t.Fatalf("PullAll failed: %v", err)
	}

	boxes, err := store.ListBoxes(ctx, st.DB())
	if err != nil {
		t.Fatalf("failed to list boxes: %v", err)
	}
	if len(boxes) != 1 || boxes[0].ID != "box-a" {
		t.Fatalf("boxes after pull = %+v, want only box-a", boxes)
	}
	if !boxes[0].Balance.Equal(dec(t, "70000")) {
		t.Errorf("pulled balance = %s, want 70000", boxes[0].Balance)
	}

	tx, err := store.GetTransaction(ctx, st.DB(), "tx-remote")
	if err != nil {
		t.Fatalf("failed to get pulled transaction: %v", err)
	}
	if tx.Date.Format("2006-01-02") != "2026-03-10" {
		t.Errorf("pulled fecha = %s, want 2026-03-10", tx.Date)
	}
	if !tx.Synced {
		t.Error("pulled transactions are authoritative and should be synced")
	}

	d, err := store.GetInterBoxDebt(ctx, st.DB(), "d1")
	if err != nil {
		t.Fatalf("failed to get pulled debt: %v", err)
	}
	if d.State != schema.DebtPending || !d.Outstanding.Equal(dec(t, "50000")) {
		t.Errorf("pulled debt = %+v, want pendiente with 50000 outstanding", d)
	}

	// Local offline work is preserved for the next push.
	if depth := queueDepth(t, eng); depth != 1 {
		t.Errorf("queue depth after pull = %d, want 1", depth)
	}
}
