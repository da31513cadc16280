// Package store provides Store implementations.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/warp/sales-payroll/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	colls    map[generic.Collection]*collection
	archives []generic.ArchiveRecord
	settings map[string]string
	now      func() time.Time
}

type collection struct {
	order []string
	docs  map[string]generic.Document
}

func NewMemory() *Memory {
	return &Memory{
		colls:    make(map[generic.Collection]*collection),
		settings: make(map[string]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) List(_ context.Context, coll generic.Collection) ([]generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(coll), nil
}

func (m *Memory) listLocked(coll generic.Collection) []generic.Document {
	c := m.colls[coll]
	if c == nil {
		return nil
	}
	result := make([]generic.Document, 0, len(c.order))
	for _, k := range c.order {
		result = append(result, copyDoc(c.docs[k]))
	}
	return result
}

func (m *Memory) Get(_ context.Context, coll generic.Collection, key string) (*generic.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(coll, key), nil
}

func (m *Memory) getLocked(coll generic.Collection, key string) *generic.Document {
	c := m.colls[coll]
	if c == nil {
		return nil
	}
	d, ok := c.docs[key]
	if !ok {
		return nil
	}
	d = copyDoc(d)
	return &d
}

// Put upserts documents. Existing keys keep their position.
func (m *Memory) Put(_ context.Context, coll generic.Collection, docs ...generic.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(coll, docs)
	return nil
}

func (m *Memory) putLocked(coll generic.Collection, docs []generic.Document) {
	c := m.colls[coll]
	if c == nil {
		c = &collection{docs: make(map[string]generic.Document)}
		m.colls[coll] = c
	}
	for _, d := range docs {
		if d.UpdatedAt.IsZero() {
			d.UpdatedAt = m.now()
		}
		if _, ok := c.docs[d.Key]; !ok {
			c.order = append(c.order, d.Key)
		}
		c.docs[d.Key] = copyDoc(d)
	}
}

func (m *Memory) Delete(_ context.Context, coll generic.Collection, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteLocked(coll, keys)
	return nil
}

func (m *Memory) deleteLocked(coll generic.Collection, keys []string) {
	c := m.colls[coll]
	if c == nil || len(keys) == 0 {
		return
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := c.docs[k]; ok {
			drop[k] = true
			delete(c.docs, k)
		}
	}
	if len(drop) == 0 {
		return
	}
	kept := c.order[:0]
	for _, k := range c.order {
		if !drop[k] {
			kept = append(kept, k)
		}
	}
	c.order = kept
}

// =============================================================================
// ARCHIVES & SETTINGS
// =============================================================================

func (m *Memory) Archives(_ context.Context) ([]generic.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]generic.ArchiveRecord, len(m.archives))
	for i, a := range m.archives {
		result[i] = copyArchive(a)
	}
	return result, nil
}

func (m *Memory) Archive(_ context.Context, id string) (*generic.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.archives {
		if a.ID == id {
			a = copyArchive(a)
			return &a, nil
		}
	}
	return nil, nil
}

func (m *Memory) SaveArchive(_ context.Context, rec generic.ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveArchiveLocked(rec)
}

func (m *Memory) saveArchiveLocked(rec generic.ArchiveRecord) error {
	for _, a := range m.archives {
		if a.ID != rec.ID && generic.SameLabel(a.Label, rec.Label) {
			return generic.ErrDuplicateLabel
		}
	}
	now := m.now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	for i, a := range m.archives {
		if a.ID == rec.ID {
			m.archives[i] = copyArchive(rec)
			return nil
		}
	}
	m.archives = append(m.archives, copyArchive(rec))
	return nil
}

func (m *Memory) DeleteArchive(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteArchiveLocked(id)
	return nil
}

func (m *Memory) deleteArchiveLocked(id string) {
	for i, a := range m.archives {
		if a.ID == id {
			m.archives = append(m.archives[:i], m.archives[i+1:]...)
			return
		}
	}
}

func (m *Memory) Setting(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	return v, ok, nil
}

func (m *Memory) PutSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func copyDoc(d generic.Document) generic.Document {
	d.Body = append(json.RawMessage(nil), d.Body...)
	return d
}

func copyArchive(a generic.ArchiveRecord) generic.ArchiveRecord {
	a.Stats = append(json.RawMessage(nil), a.Stats...)
	return a
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	// Snapshot current state
	snapshot := tm.snapshot()

	// Execute function against a view that writes without re-locking
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		// Rollback
		tm.restore(snapshot)
		return err
	}

	// Commit (already done via direct writes)
	return nil
}

type memorySnapshot struct {
	colls    map[generic.Collection]*collection
	archives []generic.ArchiveRecord
	settings map[string]string
}

func (tm *TxMemory) snapshot() memorySnapshot {
	colls := make(map[generic.Collection]*collection, len(tm.colls))
	for name, c := range tm.colls {
		cp := &collection{order: append([]string(nil), c.order...), docs: make(map[string]generic.Document, len(c.docs))}
		for k, d := range c.docs {
			cp.docs[k] = copyDoc(d)
		}
		colls[name] = cp
	}
	archives := make([]generic.ArchiveRecord, len(tm.archives))
	for i, a := range tm.archives {
		archives[i] = copyArchive(a)
	}
	settings := make(map[string]string, len(tm.settings))
	for k, v := range tm.settings {
		settings[k] = v
	}
	return memorySnapshot{colls: colls, archives: archives, settings: settings}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.colls = s.colls
	tm.archives = s.archives
	tm.settings = s.settings
}

// txMemoryView runs with the parent's write lock already held.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) List(_ context.Context, coll generic.Collection) ([]generic.Document, error) {
	return tv.parent.listLocked(coll), nil
}

func (tv *txMemoryView) Get(_ context.Context, coll generic.Collection, key string) (*generic.Document, error) {
	return tv.parent.getLocked(coll, key), nil
}

func (tv *txMemoryView) Put(_ context.Context, coll generic.Collection, docs ...generic.Document) error {
	tv.parent.putLocked(coll, docs)
	return nil
}

func (tv *txMemoryView) Delete(_ context.Context, coll generic.Collection, keys ...string) error {
	tv.parent.deleteLocked(coll, keys)
	return nil
}

func (tv *txMemoryView) Archives(_ context.Context) ([]generic.ArchiveRecord, error) {
	result := make([]generic.ArchiveRecord, len(tv.parent.archives))
	for i, a := range tv.parent.archives {
		result[i] = copyArchive(a)
	}
	return result, nil
}

func (tv *txMemoryView) Archive(_ context.Context, id string) (*generic.ArchiveRecord, error) {
	for _, a := range tv.parent.archives {
		if a.ID == id {
			a = copyArchive(a)
			return &a, nil
		}
	}
	return nil, nil
}

func (tv *txMemoryView) SaveArchive(_ context.Context, rec generic.ArchiveRecord) error {
	return tv.parent.saveArchiveLocked(rec)
}

func (tv *txMemoryView) DeleteArchive(_ context.Context, id string) error {
	tv.parent.deleteArchiveLocked(id)
	return nil
}

func (tv *txMemoryView) Setting(_ context.Context, key string) (string, bool, error) {
	v, ok := tv.parent.settings[key]
	return v, ok, nil
}

func (tv *txMemoryView) PutSetting(_ context.Context, key, value string) error {
	tv.parent.settings[key] = value
	return nil
}
