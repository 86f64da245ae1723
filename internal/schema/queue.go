package schema

import (
	"encoding/json"
	"time"
)

// Table names the local tables mirrored by the remote datastore. The set
// is closed: the sync engine selects an outbound projection per table, so
// adding one is a compile-time-visible change.
type Table string

const (
	TableCompanies       Table = "empresas"
	TableProjects        Table = "proyectos"
	TableBoxes           Table = "cajas"
	TableThirdParties    Table = "terceros"
	TableCategories      Table = "categorias"
	TableTransactions    Table = "transacciones"
	TableInterBoxDebts   Table = "deudas_cajas"
	TableThirdPartyDebts Table = "deudas_terceros"
)

// Operation is the mutation kind carried by a sync queue entry.
type Operation string

const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// QueueEntry is one pending local mutation awaiting remote confirmation.
//
// Entries are append-only and FIFO by ID (auto-increment rowid). An entry
// is removed only after the remote confirms it, reports it as already
// applied, or the user discards it explicitly. Entries targeting the same
// record are never merged; the engine's dispatch is idempotent instead.
type QueueEntry struct {
	ID        int64           `json:"id"`
	Table     Table           `json:"tabla"`
	Operation Operation       `json:"operacion"`
	Payload   json.RawMessage `json:"datos"`
	Timestamp time.Time       `json:"timestamp"`
}
