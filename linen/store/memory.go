// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/warp/laundry-ledger/linen"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

var (
	_ linen.TxStore      = (*Memory)(nil)
	_ linen.SessionStore = (*Memory)(nil)
)

type Memory struct {
	mu          sync.RWMutex
	collections map[linen.Collection]*collection
	quarantined map[linen.Collection][]linen.Record
	sequences   map[linen.Collection]int
	session     string
}

// collection keeps insertion order separately from the id index.
type collection struct {
	order []string
	byID  map[string]json.RawMessage
}

func newCollection() *collection {
	return &collection{byID: make(map[string]json.RawMessage)}
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[linen.Collection]*collection),
		quarantined: make(map[linen.Collection][]linen.Record),
		sequences:   make(map[linen.Collection]int),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) List(_ context.Context, c linen.Collection) ([]linen.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(c), nil
}

func (m *Memory) Get(_ context.Context, c linen.Collection, id string) (linen.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(c, id)
}

func (m *Memory) Count(_ context.Context, c linen.Collection) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countLocked(c), nil
}

func (m *Memory) Insert(_ context.Context, c linen.Collection, rec linen.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(c, rec)
}

func (m *Memory) Update(_ context.Context, c linen.Collection, rec linen.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(c, rec)
}

func (m *Memory) Delete(_ context.Context, c linen.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteLocked(c, id)
}

func (m *Memory) Quarantine(_ context.Context, c linen.Collection) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quarantineLocked(c), nil
}

func (m *Memory) Sequence(_ context.Context, c linen.Collection) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sequences[c], nil
}

func (m *Memory) SetSequence(_ context.Context, c linen.Collection, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequences[c] = n
	return nil
}

// Quarantined returns the records moved aside for a collection.
func (m *Memory) Quarantined(c linen.Collection) []linen.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]linen.Record(nil), m.quarantined[c]...)
}

// -----------------------------------------------------------------------------
// locked helpers, caller holds m.mu
// -----------------------------------------------------------------------------

func (m *Memory) listLocked(c linen.Collection) []linen.Record {
	col := m.collections[c]
	if col == nil {
		return []linen.Record{}
	}
	result := make([]linen.Record, 0, len(col.order))
	for _, id := range col.order {
		result = append(result, linen.Record{ID: id, Body: cloneBytes(col.byID[id])})
	}
	return result
}

func (m *Memory) getLocked(c linen.Collection, id string) (linen.Record, error) {
	col := m.collections[c]
	if col == nil {
		return linen.Record{}, &linen.NotFoundError{Collection: c, ID: id}
	}
	body, ok := col.byID[id]
	if !ok {
		return linen.Record{}, &linen.NotFoundError{Collection: c, ID: id}
	}
	return linen.Record{ID: id, Body: cloneBytes(body)}, nil
}

func (m *Memory) countLocked(c linen.Collection) int {
	if col := m.collections[c]; col != nil {
		return len(col.order)
	}
	return 0
}

func (m *Memory) insertLocked(c linen.Collection, rec linen.Record) error {
	col := m.collections[c]
	if col == nil {
		col = newCollection()
		m.collections[c] = col
	}
	if _, exists := col.byID[rec.ID]; exists {
		return &linen.DuplicateKeyError{Collection: c, ID: rec.ID}
	}
	col.order = append(col.order, rec.ID)
	col.byID[rec.ID] = cloneBytes(rec.Body)
	return nil
}

func (m *Memory) updateLocked(c linen.Collection, rec linen.Record) error {
	if c.AppendOnly() {
		return linen.ErrAppendOnly
	}
	col := m.collections[c]
	if col == nil {
		return &linen.NotFoundError{Collection: c, ID: rec.ID}
	}
	if _, ok := col.byID[rec.ID]; !ok {
		return &linen.NotFoundError{Collection: c, ID: rec.ID}
	}
	col.byID[rec.ID] = cloneBytes(rec.Body)
	return nil
}

func (m *Memory) deleteLocked(c linen.Collection, id string) error {
	if c.AppendOnly() {
		return linen.ErrAppendOnly
	}
	col := m.collections[c]
	if col == nil {
		return &linen.NotFoundError{Collection: c, ID: id}
	}
	if _, ok := col.byID[id]; !ok {
		return &linen.NotFoundError{Collection: c, ID: id}
	}
	delete(col.byID, id)
	for i, existing := range col.order {
		if existing == id {
			col.order = append(col.order[:i:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) quarantineLocked(c linen.Collection) int {
	recs := m.listLocked(c)
	m.quarantined[c] = append(m.quarantined[c], recs...)
	delete(m.collections, c)
	return len(recs)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(linen.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	collections map[linen.Collection]*collection
	quarantined map[linen.Collection][]linen.Record
	sequences   map[linen.Collection]int
}

func (m *Memory) snapshot() memorySnapshot {
	cols := make(map[linen.Collection]*collection, len(m.collections))
	for name, col := range m.collections {
		cp := &collection{
			order: append([]string(nil), col.order...),
			byID:  make(map[string]json.RawMessage, len(col.byID)),
		}
		for id, body := range col.byID {
			cp.byID[id] = body
		}
		cols[name] = cp
	}
	q := make(map[linen.Collection][]linen.Record, len(m.quarantined))
	for name, recs := range m.quarantined {
		q[name] = append([]linen.Record(nil), recs...)
	}
	seqs := make(map[linen.Collection]int, len(m.sequences))
	for name, n := range m.sequences {
		seqs[name] = n
	}
	return memorySnapshot{collections: cols, quarantined: q, sequences: seqs}
}

func (m *Memory) restore(s memorySnapshot) {
	m.collections = s.collections
	m.quarantined = s.quarantined
	m.sequences = s.sequences
}

// txMemoryView runs against the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) List(_ context.Context, c linen.Collection) ([]linen.Record, error) {
	return tv.parent.listLocked(c), nil
}

func (tv *txMemoryView) Get(_ context.Context, c linen.Collection, id string) (linen.Record, error) {
	return tv.parent.getLocked(c, id)
}

func (tv *txMemoryView) Count(_ context.Context, c linen.Collection) (int, error) {
	return tv.parent.countLocked(c), nil
}

func (tv *txMemoryView) Insert(_ context.Context, c linen.Collection, rec linen.Record) error {
	return tv.parent.insertLocked(c, rec)
}

func (tv *txMemoryView) Update(_ context.Context, c linen.Collection, rec linen.Record) error {
	return tv.parent.updateLocked(c, rec)
}

func (tv *txMemoryView) Delete(_ context.Context, c linen.Collection, id string) error {
	return tv.parent.deleteLocked(c, id)
}

func (tv *txMemoryView) Quarantine(_ context.Context, c linen.Collection) (int, error) {
	return tv.parent.quarantineLocked(c), nil
}

func (tv *txMemoryView) Sequence(_ context.Context, c linen.Collection) (int, error) {
	return tv.parent.sequences[c], nil
}

func (tv *txMemoryView) SetSequence(_ context.Context, c linen.Collection, n int) error {
	tv.parent.sequences[c] = n
	return nil
}

// =============================================================================
// SESSION SLOT
// =============================================================================

func (m *Memory) CurrentSession(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session, m.session != "", nil
}

func (m *Memory) SetSession(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = userID
	return nil
}

func (m *Memory) ClearSession(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = ""
	return nil
}

func cloneBytes(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return append(json.RawMessage(nil), b...)
}
