package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// StateRedisRepository keeps the watermark in a string key and the processed
// set in a hash of message id to epoch milliseconds.
type StateRedisRepository struct {
	rdb    *common.RedisClient
	prefix string
}

func NewStateRedisRepository(rdb *common.RedisClient) StateRepository {
	prefix := rdb.KeyPrefix
	if prefix == "" {
		prefix = "gmail2tg"
	}
	return &StateRedisRepository{rdb: rdb, prefix: prefix}
}

func (r *StateRedisRepository) Load(ctx context.Context) (*types.PersistedState, error) {
	watermarkKey := common.Keys.StateWatermark(r.prefix)
	processedKey := common.Keys.StateProcessed(r.prefix)

	pipe := r.rdb.Pipeline()
	watermarkCmd := pipe.Get(ctx, watermarkKey)
	processedCmd := pipe.HGetAll(ctx, processedKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load state: %w", err)
	}

	state := types.NewPersistedState()

	raw, err := watermarkCmd.Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		return nil, fmt.Errorf("load watermark: %w", err)
	default:
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			log.Warn().Err(err).Str("key", watermarkKey).Msg("state unreadable, starting fresh")
			return types.NewPersistedState(), nil
		}
		state.StartAfter = &ms
	}

	entries, err := processedCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("load processed: %w", err)
	}
	for id, v := range entries {
		ts, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Warn().Err(err).Str("key", processedKey).Msg("state unreadable, starting fresh")
			return types.NewPersistedState(), nil
		}
		state.Processed[id] = ts
	}

	return state, nil
}

// Save replaces both keys inside one MULTI/EXEC transaction
func (r *StateRedisRepository) Save(ctx context.Context, state *types.PersistedState) error {
	state = stateOrFresh(state)
	watermarkKey := common.Keys.StateWatermark(r.prefix)
	processedKey := common.Keys.StateProcessed(r.prefix)

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if state.StartAfter != nil {
			pipe.Set(ctx, watermarkKey, *state.StartAfter, 0)
		} else {
			pipe.Del(ctx, watermarkKey)
		}

		pipe.Del(ctx, processedKey)
		if len(state.Processed) > 0 {
			values := make(map[string]any, len(state.Processed))
			for id, ts := range state.Processed {
				values[id] = ts
			}
			pipe.HSet(ctx, processedKey, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
