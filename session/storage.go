package session

import (
	"context"
	"sync"
)

// Storage is the durable single-key store the session blob lives in. The
// file-backed implementation is the normal one; MemoryStorage backs tests
// and ephemeral runs. Watch callbacks fire for every mutation of the key,
// including this process's own writes, matching the shared-store model
// where the writer's other listeners are notified too.
type Storage interface {
	// Load returns the current raw value and whether the key is present.
	Load() (raw []byte, present bool, err error)
	// Store replaces the value.
	Store(raw []byte) error
	// Clear removes the key. Clearing an absent key is not an error.
	Clear() error
	// Watch registers fn for change notifications until ctx is done.
	Watch(ctx context.Context, fn func(raw []byte, present bool)) error
}

// MemoryStorage is an in-process Storage. Every registered watcher sees
// every mutation, so two stores sharing one MemoryStorage behave like two
// tabs sharing one origin.
type MemoryStorage struct {
	mu       sync.Mutex
	raw      []byte
	present  bool
	watchers map[int]func([]byte, bool)
	nextID   int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{watchers: make(map[int]func([]byte, bool))}
}

func (m *MemoryStorage) Load() ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present {
		return nil, false, nil
	}
	cp := make([]byte, len(m.raw))
	copy(cp, m.raw)
	return cp, true, nil
}

func (m *MemoryStorage) Store(raw []byte) error {
	m.mu.Lock()
	m.raw = append([]byte(nil), raw...)
	m.present = true
	fns := m.snapshotWatchers()
	cp := append([]byte(nil), raw...)
	m.mu.Unlock()

	for _, fn := range fns {
		fn(cp, true)
	}
	return nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	m.raw = nil
	m.present = false
	fns := m.snapshotWatchers()
	m.mu.Unlock()

	for _, fn := range fns {
		fn(nil, false)
	}
	return nil
}

func (m *MemoryStorage) Watch(ctx context.Context, fn func([]byte, bool)) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}()
	return nil
}

// snapshotWatchers must be called with mu held.
func (m *MemoryStorage) snapshotWatchers() []func([]byte, bool) {
	fns := make([]func([]byte, bool), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	return fns
}
