package app

import (
	"sync"

	"github.com/jmylchreest/tvplay/internal/models"
)

// StateStore holds the shell's view of the player, built by applying every
// update the player core emits.
type StateStore struct {
	mu    sync.RWMutex
	state models.PlayerState
}

// NewStateStore starts from the default player state.
func NewStateStore() *StateStore {
	return &StateStore{state: models.DefaultPlayerState()}
}

// Apply merges u and returns the resulting state.
func (s *StateStore) Apply(u models.PlayerUpdate) models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.Apply(u)
	return s.snapshotLocked()
}

// State returns a snapshot of the current state.
func (s *StateStore) State() models.PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *StateStore) snapshotLocked() models.PlayerState {
	st := s.state
	if st.CurrentChannel != nil {
		ch := *st.CurrentChannel
		st.CurrentChannel = &ch
	}
	return st
}
