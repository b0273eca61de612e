package store

import (
	"context"
	"sync"
	"time"

	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

// MemoryStore keeps records in process. Lag delays the visibility of a
// record's first write, mimicking an eventually consistent backend.
type MemoryStore struct {
	Lag time.Duration

	mu      sync.RWMutex
	records map[Key]types.SubjectRecord
	created map[Key]time.Time
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[Key]types.SubjectRecord),
		created: make(map[Key]time.Time),
		now:     time.Now,
	}
}

// Put replaces the record for key.
func (m *MemoryStore) Put(key Key, rec types.SubjectRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.created[key]; !ok {
		m.created[key] = m.now()
	}
	m.records[key] = cloneRecord(rec)
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key Key) (types.SubjectRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok || m.now().Sub(m.created[key]) < m.Lag {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// Consistency is Eventual when a visibility lag is configured.
func (m *MemoryStore) Consistency() Consistency {
	if m.Lag > 0 {
		return Eventual
	}
	return Strong
}

// Merge implements Store.
func (m *MemoryStore) Merge(_ context.Context, key Key, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = types.SubjectRecord{
			types.FieldSubjectID: key.SubjectID,
			types.FieldOwnerID:   key.OwnerID,
		}
		m.created[key] = m.now()
	}
	for k, v := range stamp(fields, m.now()) {
		rec[k] = v
	}
	m.records[key] = rec
	return nil
}

func cloneRecord(rec types.SubjectRecord) types.SubjectRecord {
	out := make(types.SubjectRecord, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
