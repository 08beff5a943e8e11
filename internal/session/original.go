package session

import (
	"time"

	"spectate/server/internal/camera"
)

// OriginalState is what a viewer looked like before its first session.
type OriginalState struct {
	Mode       ControlMode
	Pose       camera.Pose
	Subject    string
	CapturedAt time.Time
}

// OriginalStore holds at most one original state per viewer. Acquire is
// idempotent: a force switch keeps the state captured by the first start.
// Release hands the state back exactly once.
type OriginalStore struct {
	states map[string]OriginalState
}

// NewOriginalStore constructs an empty store.
func NewOriginalStore() *OriginalStore {
	return &OriginalStore{states: make(map[string]OriginalState)}
}

// Acquire returns the stored state for viewer, capturing it first if absent.
// The boolean reports whether capture ran.
func (s *OriginalStore) Acquire(viewer string, capture func() OriginalState) (OriginalState, bool) {
	if state, ok := s.states[viewer]; ok {
		return state, false
	}
	state := capture()
	s.states[viewer] = state
	return state, true
}

// Release removes and returns the stored state.
func (s *OriginalStore) Release(viewer string) (OriginalState, bool) {
	state, ok := s.states[viewer]
	if ok {
		delete(s.states, viewer)
	}
	return state, ok
}

// Has reports whether a state is held for viewer.
func (s *OriginalStore) Has(viewer string) bool {
	_, ok := s.states[viewer]
	return ok
}

// Peek returns the stored state without releasing it.
func (s *OriginalStore) Peek(viewer string) (OriginalState, bool) {
	state, ok := s.states[viewer]
	return state, ok
}

// Len reports the number of held states.
func (s *OriginalStore) Len() int {
	return len(s.states)
}
