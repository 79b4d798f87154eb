package cloudsync

import (
	"sync"
	"time"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseSyncing
	PhaseError
	PhaseRestoreInProgress
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSyncing:
		return "syncing"
	case PhaseError:
		return "error"
	case PhaseRestoreInProgress:
		return "restore_in_progress"
	}
	return "unknown"
}

// Status is one observable value of the engine state.
type Status struct {
	Phase   Phase
	Message string
	Since   time.Time
}

// State is the engine's observable status. One instance is shared by the
// Coordinator and the Restorer.
type State struct {
	mu   sync.Mutex
	cur  Status
	subs map[int]chan Status
	next int
	now  func() time.Time
}

func NewState() *State {
	return &State{
		cur:  Status{Phase: PhaseIdle},
		subs: make(map[int]chan Status),
		now:  time.Now,
	}
}

func (s *State) Get() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

func (s *State) set(p Phase, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cur = Status{Phase: p, Message: msg, Since: s.now()}
	for _, ch := range s.subs {
		// drop the stale value so a slow subscriber always sees the latest
		select {
		case <-ch:
		default:
		}
		ch <- s.cur
	}
}

// Subscribe returns a channel that receives every subsequent status (only
// the latest one is kept if the reader falls behind) and a cancel func.
func (s *State) Subscribe() (<-chan Status, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Status, 1)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}
