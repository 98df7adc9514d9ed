package session

import (
	"context"
	"fmt"
	"sync"
)

// Store holds the session for the lifetime of this process and keeps it in
// step with the durable blob. All sign-in/sign-out mutations go through it;
// external mutations arrive through the storage watch and are re-validated
// on every firing. A corrupt or missing blob always means "logged out",
// never an error.
type Store struct {
	storage Storage

	mu      sync.RWMutex
	session Session
	subs    map[int]func(Session)
	nextSub int
}

// NewStore restores the session from storage and subscribes to external
// changes until ctx is done.
func NewStore(ctx context.Context, storage Storage) (*Store, error) {
	s := &Store{
		storage: storage,
		subs:    make(map[int]func(Session)),
	}
	raw, present, err := storage.Load()
	if err == nil && present {
		if v, derr := DecodeViewer(raw); derr == nil {
			s.session = Session{viewer: &v}
		}
	}
	if err := storage.Watch(ctx, s.onStorageChange); err != nil {
		return nil, fmt.Errorf("session: subscribe: %w", err)
	}
	return s, nil
}

// Current returns the session as this process currently knows it.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// SignIn persists the viewer and updates local state.
func (s *Store) SignIn(v Viewer) error {
	raw, err := EncodeViewer(v)
	if err != nil {
		return err
	}
	if err := s.storage.Store(raw); err != nil {
		return err
	}
	s.apply(Session{viewer: &v})
	return nil
}

// SignOut removes the persisted blob and clears local state. A sign-out
// here and one observed from another process converge on the same state.
func (s *Store) SignOut() error {
	if err := s.storage.Clear(); err != nil {
		return err
	}
	s.apply(Session{})
	return nil
}

// Subscribe registers fn for every session change, local or external. The
// returned cancel removes the subscription.
func (s *Store) Subscribe(fn func(Session)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) onStorageChange(raw []byte, present bool) {
	if !present {
		s.apply(Session{})
		return
	}
	v, err := DecodeViewer(raw)
	if err != nil {
		// Corrupt state reads as logged out.
		s.apply(Session{})
		return
	}
	s.apply(Session{viewer: &v})
}

// apply swaps in the new session and notifies subscribers, skipping
// notifications for no-op transitions (a local sign-in is also echoed back
// by the storage watch).
func (s *Store) apply(next Session) {
	s.mu.Lock()
	if sessionsEqual(s.session, next) {
		s.mu.Unlock()
		return
	}
	s.session = next
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(next)
	}
}
