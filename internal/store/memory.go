package store

import (
	"sort"
	"sync"
)

// MemoryStore is the in-memory [Store] implementation.
//
// Change notification is not this type's job; pollers publish change
// events on the bus separately. The store only answers "what is the
// state right now" for the REST API.
type MemoryStore struct {
	mu        sync.RWMutex
	summaries map[string]Summary
}

// NewMemoryStore creates an empty in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		summaries: make(map[string]Summary),
	}
}

// Update stores a [Summary], replacing any previous value for the
// same provider.
func (m *MemoryStore) Update(s Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[s.Provider] = s
}

// Get returns the summary for one provider, if present.
func (m *MemoryStore) Get(provider string) (Summary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.summaries[provider]
	return s, ok
}

// GetAll returns a snapshot of all summaries, sorted by provider name.
func (m *MemoryStore) GetAll() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Summary, 0, len(m.summaries))
	for _, s := range m.summaries {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Provider < out[j].Provider
	})
	return out
}
