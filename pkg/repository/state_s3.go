package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/rs/zerolog/log"
)

// StateS3Repository keeps state as a single JSON object
type StateS3Repository struct {
	store ObjectStore
	key   string
}

func NewStateS3Repository(store ObjectStore, key string) StateRepository {
	return &StateS3Repository{store: store, key: key}
}

func (r *StateS3Repository) Load(ctx context.Context) (*types.PersistedState, error) {
	data, err := r.store.GetObject(ctx, r.key)
	if errors.Is(err, types.ErrObjectNotFound) {
		log.Info().Str("key", r.key).Msg("no state object, starting fresh")
		return types.NewPersistedState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get state %s: %w", r.key, err)
	}

	return decodeState(data, r.key), nil
}

func (r *StateS3Repository) Save(ctx context.Context, state *types.PersistedState) error {
	data, err := json.MarshalIndent(stateOrFresh(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := r.store.PutObject(ctx, r.key, data); err != nil {
		return fmt.Errorf("put state %s: %w", r.key, err)
	}
	return nil
}
