package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

// Sequence bookkeeping is tested against the internal transitions directly
// so the interleavings are exact.

func TestSlotDiscardsStaleResponse(t *testing.T) {
	var states []LoadState[int]
	s := NewSlot(0, func(st LoadState[int]) { states = append(states, st) })

	seq1 := s.start()
	seq2 := s.start()

	s.complete(seq2, 22, nil) // newest fetch lands first
	s.complete(seq1, 11, nil) // slow earlier response arrives late

	st := s.State()
	if st.Kind != LoadLoaded || st.Value != 22 {
		t.Fatalf("final state = %+v, want Loaded(22)", st)
	}
	// Loading, Loading, Loaded — the stale completion produced nothing.
	if len(states) != 3 {
		t.Errorf("observed %d transitions, want 3: %+v", len(states), states)
	}
}

func TestSlotSlowTimerAfterTerminalIsNoOp(t *testing.T) {
	s := NewSlot[int](0, nil)

	seq := s.start()
	s.complete(seq, 5, nil)
	s.markSlow(seq)

	if st := s.State(); st.Kind != LoadLoaded || st.Value != 5 {
		t.Fatalf("state = %+v, want Loaded(5)", st)
	}

	seq = s.start()
	s.complete(seq, 0, errors.New("boom"))
	s.markSlow(seq)

	if st := s.State(); st.Kind != LoadFailed {
		t.Fatalf("state = %+v, want Failed", st)
	}
}

func TestSlotSlowTimerForSupersededFetchIsNoOp(t *testing.T) {
	s := NewSlot[int](0, nil)

	seq1 := s.start()
	_ = s.start() // new fetch supersedes seq1
	s.markSlow(seq1)

	if st := s.State(); st.Kind != LoadLoading {
		t.Fatalf("state = %+v, want Loading", st)
	}
}

func TestSlotFetchHappyPath(t *testing.T) {
	ch := make(chan LoadState[string], 4)
	s := NewSlot(0, func(st LoadState[string]) { ch <- st })

	s.Fetch(context.Background(), func(context.Context) (string, error) {
		return "done", nil
	})

	if st := waitState(t, ch); st.Kind != LoadLoading {
		t.Fatalf("first transition = %+v, want Loading", st)
	}
	st := waitState(t, ch)
	if st.Kind != LoadLoaded || st.Value != "done" {
		t.Fatalf("second transition = %+v, want Loaded(done)", st)
	}
}

func TestSlotFetchReportsSlowThenResult(t *testing.T) {
	ch := make(chan LoadState[string], 4)
	s := NewSlot(20*time.Millisecond, func(st LoadState[string]) { ch <- st })

	s.Fetch(context.Background(), func(context.Context) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "slowly", nil
	})

	if st := waitState(t, ch); st.Kind != LoadLoading {
		t.Fatalf("first transition = %+v, want Loading", st)
	}
	if st := waitState(t, ch); st.Kind != LoadSlow {
		t.Fatalf("second transition = %+v, want LoadingSlow", st)
	}
	st := waitState(t, ch)
	if st.Kind != LoadLoaded || st.Value != "slowly" {
		t.Fatalf("third transition = %+v, want Loaded(slowly)", st)
	}
}

func TestSlotFetchFailure(t *testing.T) {
	ch := make(chan LoadState[string], 4)
	s := NewSlot(0, func(st LoadState[string]) { ch <- st })

	boom := errors.New("boom")
	s.Fetch(context.Background(), func(context.Context) (string, error) {
		return "", boom
	})

	waitState(t, ch) // Loading
	st := waitState(t, ch)
	if st.Kind != LoadFailed || !errors.Is(st.Err, boom) {
		t.Fatalf("transition = %+v, want Failed(boom)", st)
	}
}

func waitState[T any](t *testing.T, ch <-chan LoadState[T]) LoadState[T] {
	t.Helper()
	select {
	case st := <-ch:
		return st
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for state transition")
		return LoadState[T]{}
	}
}
