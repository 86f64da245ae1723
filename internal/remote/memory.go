package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Relation declares that a table's field references rows of another table.
// The in-memory remote uses relations to reproduce foreign-key failures.
type Relation struct {
	Field string
	Table string
}

// InMemoryRemote is a Remote backed by maps. It reproduces the failure
// modes the sync engine must classify: duplicate ids, missing foreign
// keys, and injectable transient outages. Used by tests only; production
// commands require a configured HTTP remote.
type InMemoryRemote struct {
	mu        sync.Mutex
	tables    map[string]map[string]Record
	relations map[string][]Relation

	// failNext, when set, fails the next mutating call with the given
	// error and then clears itself.
	failNext error

	// offline fails every call with a transient error while true.
	offline bool

	// Calls counts mutating dispatches per operation, for tests.
	Calls map[string]int
}

// NewInMemory creates an empty in-memory remote.
func NewInMemory() *InMemoryRemote {
	return &InMemoryRemote{
		tables:    make(map[string]map[string]Record),
		relations: make(map[string][]Relation),
		Calls:     make(map[string]int),
	}
}

// DeclareRelation registers a foreign-key relation checked on insert and
// update, mirroring the remote datastore's referential integrity.
func (m *InMemoryRemote) DeclareRelation(table string, rel Relation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relations[table] = append(m.relations[table], rel)
}

// SetOffline toggles a simulated outage.
func (m *InMemoryRemote) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// FailNext makes the next mutating call fail with err.
func (m *InMemoryRemote) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// Seed stores a row directly, bypassing failure injection.
func (m *InMemoryRemote) Seed(table, id string, rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tableLocked(table)[id] = rec
}

// Row returns a stored row and whether it exists.
func (m *InMemoryRemote) Row(table, id string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.tableLocked(table)[id]
	return rec, ok
}

// Count returns the number of rows in a table.
func (m *InMemoryRemote) Count(table string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tableLocked(table))
}

// Insert implements Remote.Insert.
func (m *InMemoryRemote) Insert(ctx context.Context, table string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["insert"]++

	if err := m.gateLocked(table, "insert"); err != nil {
		return err
	}

	id, _ := rec["id"].(string)
	if id == "" {
		return &Error{Kind: KindUnknown, Table: table, Op: "insert",
			Err: fmt.Errorf("record has no id")}
	}

	if _, exists := m.tableLocked(table)[id]; exists {
		return &Error{Kind: KindDuplicate, Table: table, Op: "insert",
			Err: fmt.Errorf("duplicate key %s", id)}
	}

	if err := m.checkRelationsLocked(table, rec, "insert"); err != nil {
		return err
	}

	m.tableLocked(table)[id] = rec
	return nil
}

// Update implements Remote.Update.
func (m *InMemoryRemote) Update(ctx context.Context, table, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["update"]++

	if err := m.gateLocked(table, "update"); err != nil {
		return err
	}

	if err := m.checkRelationsLocked(table, rec, "update"); err != nil {
		return err
	}

	m.tableLocked(table)[id] = rec
	return nil
}

// Delete implements Remote.Delete. Deleting an absent row is a no-op.
func (m *InMemoryRemote) Delete(ctx context.Context, table, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls["delete"]++

	if err := m.gateLocked(table, "delete"); err != nil {
		return err
	}

	delete(m.tableLocked(table), id)
	return nil
}

// FetchAll implements Remote.FetchAll.
func (m *InMemoryRemote) FetchAll(ctx context.Context, table string) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.gateLocked(table, "fetch"); err != nil {
		return nil, err
	}

	var rows []json.RawMessage
	for _, rec := range m.tableLocked(table) {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s row: %w", table, err)
		}
		rows = append(rows, data)
	}
	return rows, nil
}

func (m *InMemoryRemote) tableLocked(table string) map[string]Record {
	t, ok := m.tables[table]
	if !ok {
		t = make(map[string]Record)
		m.tables[table] = t
	}
	return t
}

// gateLocked applies the outage and fail-next knobs.
func (m *InMemoryRemote) gateLocked(table, op string) error {
	if m.offline {
		return &Error{Kind: KindTransient, Table: table, Op: op,
			Err: fmt.Errorf("simulated outage")}
	}
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	return nil
}

// checkRelationsLocked enforces declared foreign keys: a non-empty
// relation field must reference an existing row.
func (m *InMemoryRemote) checkRelationsLocked(table string, rec Record, op string) error {
	for _, rel := range m.relations[table] {
		v, ok := rec[rel.Field]
		if !ok || v == nil {
			continue
		}
		id, _ := v.(string)
		if id == "" {
			continue
		}
		if _, exists := m.tableLocked(rel.Table)[id]; !exists {
			return &Error{Kind: KindForeignKeyViolation, Table: table, Op: op,
				Err: fmt.Errorf("%s %s references missing %s %s", table, rel.Field, rel.Table, id)}
		}
	}
	return nil
}

// StaticOracle is an Oracle with a fixed answer, for tests and for the
// CLI's --offline flag.
type StaticOracle bool

// Online implements Oracle.
func (o StaticOracle) Online(ctx context.Context) bool {
	return bool(o)
}
