package repository

import (
	"context"
	"sync"

	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// StateMemoryRepository keeps state in process memory. Used for tests and
// dry runs; nothing survives a restart.
type StateMemoryRepository struct {
	mu    sync.RWMutex
	state *types.PersistedState
	saves int
}

func NewStateMemoryRepository() *StateMemoryRepository {
	return &StateMemoryRepository{}
}

func (r *StateMemoryRepository) Load(ctx context.Context) (*types.PersistedState, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.state == nil {
		return types.NewPersistedState(), nil
	}
	return r.state.Clone(), nil
}

func (r *StateMemoryRepository) Save(ctx context.Context, state *types.PersistedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = stateOrFresh(state).Clone()
	r.saves++
	return nil
}

// Saves returns how many times Save was called
func (r *StateMemoryRepository) Saves() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}
