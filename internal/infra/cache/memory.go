package cache

import (
	"sync"
	"time"

	"taubsi/internal/domain"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory хранит кэш в памяти процесса для запуска без Redis.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

var _ domain.Cache = (*Memory)(nil)

// NewMemory создаёт кэш в памяти.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) alive(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *Memory) put(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
}

// Once выполняет функцию, если ключ ещё не задан.
func (m *Memory) Once(key string, ttl time.Duration, fn func() error) error {
	m.mu.Lock()
	if _, ok := m.alive(key); ok {
		m.mu.Unlock()
		return nil
	}
	m.put(key, []byte("1"), ttl)
	m.mu.Unlock()

	if err := fn(); err != nil {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return err
	}
	return nil
}

// Set задаёт значение.
func (m *Memory) Set(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(key, append([]byte(nil), value...), ttl)
	return nil
}

// Get возвращает значение или domain.ErrNotFound.
func (m *Memory) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.alive(key)
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}
