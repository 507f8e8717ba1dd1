package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storefront/model"
)

type memEntry struct {
	payload []byte
	expires time.Time
}

type memHistory struct {
	queries []string
	expires time.Time
}

// MemoryStore keeps session state in process. Values are stored encoded so
// callers never share memory with the store. Expired entries are invisible
// to reads and removed by PurgeExpired.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memEntry
	history map[string]memHistory
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		entries: map[string]memEntry{},
		history: map[string]memHistory{},
		now:     time.Now,
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) get(kind, sessionID string, dst any) error {
	m.mu.RLock()
	e, ok := m.entries[kind+":"+sessionID]
	m.mu.RUnlock()
	if !ok || !m.now().Before(e.expires) {
		return ErrNotFound
	}
	return json.Unmarshal(e.payload, dst)
}

func (m *MemoryStore) put(kind, sessionID string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[kind+":"+sessionID] = memEntry{payload: payload, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) del(kind, sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, kind+":"+sessionID)
}

func (m *MemoryStore) GetUser(_ context.Context, sessionID string) (*model.User, error) {
	var u model.User
	if err := m.get("user", sessionID, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (m *MemoryStore) SaveUser(_ context.Context, sessionID string, u *model.User) error {
	return m.put("user", sessionID, u)
}

func (m *MemoryStore) DeleteUser(_ context.Context, sessionID string) error {
	m.del("user", sessionID)
	return nil
}

func (m *MemoryStore) GetCart(_ context.Context, sessionID string) (*model.Cart, error) {
	var c model.Cart
	if err := m.get("cart", sessionID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (m *MemoryStore) SaveCart(_ context.Context, sessionID string, c *model.Cart) error {
	return m.put("cart", sessionID, c)
}

func (m *MemoryStore) DeleteCart(_ context.Context, sessionID string) error {
	m.del("cart", sessionID)
	return nil
}

func (m *MemoryStore) GetSearchHistory(_ context.Context, sessionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.history[sessionID]
	if !ok || len(h.queries) == 0 || !m.now().Before(h.expires) {
		return nil, ErrNotFound
	}
	return append([]string(nil), h.queries...), nil
}

func (m *MemoryStore) SaveSearchHistory(_ context.Context, sessionID string, queries []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[sessionID] = memHistory{
		queries: append([]string(nil), queries...),
		expires: m.now().Add(m.ttl),
	}
	return nil
}

func (m *MemoryStore) DeleteSearchHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.history, sessionID)
	return nil
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var n int64
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			n++
		}
	}
	for k, h := range m.history {
		if !now.Before(h.expires) {
			delete(m.history, k)
			n++
		}
	}
	return n, nil
}

// Len reports how many entries, histories included, the store holds.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries) + len(m.history)
}
