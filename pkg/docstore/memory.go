package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps documents in process
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]Document
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]Document), now: now}
}

func (m *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return doc, nil
}

func (m *MemoryStore) Put(_ context.Context, collection, id string, data json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.docs[collection] == nil {
		m.docs[collection] = make(map[string]Document)
	}
	stored := make(json.RawMessage, len(data))
	copy(stored, data)
	m.docs[collection][id] = Document{ID: id, Data: stored, UpdatedAt: m.now()}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs[collection], id)
	return nil
}

func (m *MemoryStore) List(_ context.Context, collection string) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.docs[collection]))
	for _, doc := range m.docs[collection] {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MemoryStore) DeleteBefore(_ context.Context, collection string, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed int64
	for id, doc := range m.docs[collection] {
		if doc.UpdatedAt.Before(cutoff) {
			delete(m.docs[collection], id)
			removed++
		}
	}
	return removed, nil
}
