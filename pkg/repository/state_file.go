package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/rs/zerolog/log"
)

// StateFileRepository keeps state in a JSON file on local disk
type StateFileRepository struct {
	path string
}

func NewStateFileRepository(path string) StateRepository {
	return &StateFileRepository{path: path}
}

func (r *StateFileRepository) Load(ctx context.Context) (*types.PersistedState, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Info().Str("path", r.path).Msg("no state file, starting fresh")
		return types.NewPersistedState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state %s: %w", r.path, err)
	}

	return decodeState(data, r.path), nil
}

// Save writes to a temp file in the target's directory, syncs it and renames
// it over the target, so readers see either the old or the new file.
func (r *StateFileRepository) Save(ctx context.Context, state *types.PersistedState) error {
	data, err := json.MarshalIndent(stateOrFresh(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("replace state %s: %w", r.path, err)
	}
	return nil
}

// decodeState parses stored state, falling back to a fresh one when the data
// is corrupt
func decodeState(data []byte, source string) *types.PersistedState {
	state := types.NewPersistedState()
	if err := json.Unmarshal(data, state); err != nil {
		log.Warn().Err(err).Str("source", source).Msg("state unreadable, starting fresh")
		return types.NewPersistedState()
	}
	if state.Processed == nil {
		state.Processed = make(map[string]int64)
	}
	return state
}

func stateOrFresh(state *types.PersistedState) *types.PersistedState {
	if state == nil {
		return types.NewPersistedState()
	}
	if state.Processed == nil {
		cp := *state
		cp.Processed = make(map[string]int64)
		return &cp
	}
	return state
}
