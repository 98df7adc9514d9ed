package services

import (
	"context"
	"sync"
	"time"
)

// LoadKind enumerates the states of one fetch.
type LoadKind int

const (
	LoadLoading LoadKind = iota
	LoadSlow
	LoadLoaded
	LoadFailed
)

// LoadState is the state of one fetch. Value is meaningful only for
// LoadLoaded, Err only for LoadFailed.
type LoadState[T any] struct {
	Kind  LoadKind
	Value T
	Err   error
}

// Slot drives the fetches for one display slot. Each Fetch gets a fresh
// sequence number; a completion or slow-timer firing that does not match
// the latest sequence is discarded, so a slow early response can never
// overwrite a newer result. There is no network-level cancellation: stale
// work simply has nowhere to land.
type Slot[T any] struct {
	slowAfter time.Duration
	onChange  func(LoadState[T])

	mu    sync.Mutex
	seq   uint64
	state LoadState[T]
}

// NewSlot creates a slot reporting accepted transitions to onChange. A
// slowAfter of zero disables the slow-load notification.
func NewSlot[T any](slowAfter time.Duration, onChange func(LoadState[T])) *Slot[T] {
	return &Slot[T]{slowAfter: slowAfter, onChange: onChange}
}

// State returns the slot's current state.
func (s *Slot[T]) State() LoadState[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Fetch starts a new fetch, superseding any still in flight.
func (s *Slot[T]) Fetch(ctx context.Context, fn func(context.Context) (T, error)) {
	seq := s.start()
	if s.slowAfter > 0 {
		time.AfterFunc(s.slowAfter, func() { s.markSlow(seq) })
	}
	go func() {
		v, err := fn(ctx)
		s.complete(seq, v, err)
	}()
}

func (s *Slot[T]) start() uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.state = LoadState[T]{Kind: LoadLoading}
	st := s.state
	s.mu.Unlock()

	s.notify(st)
	return seq
}

func (s *Slot[T]) markSlow(seq uint64) {
	s.mu.Lock()
	if seq != s.seq || s.state.Kind != LoadLoading {
		// The response already won the race, or a newer fetch started.
		s.mu.Unlock()
		return
	}
	s.state = LoadState[T]{Kind: LoadSlow}
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

func (s *Slot[T]) complete(seq uint64, v T, err error) {
	s.mu.Lock()
	if seq != s.seq {
		// Stale response; discard.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = LoadState[T]{Kind: LoadFailed, Err: err}
	} else {
		s.state = LoadState[T]{Kind: LoadLoaded, Value: v}
	}
	st := s.state
	s.mu.Unlock()

	s.notify(st)
}

func (s *Slot[T]) notify(st LoadState[T]) {
	if s.onChange != nil {
		s.onChange(st)
	}
}
