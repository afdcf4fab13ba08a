package repository

import (
	"fmt"

	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// NewStateRepository picks the backend named by cfg.Backend. rdb is required
// for the redis backend and objects for the s3 backend; both may be nil
// otherwise.
func NewStateRepository(cfg types.StateConfig, rdb *common.RedisClient, objects ObjectStore) (StateRepository, error) {
	switch cfg.Backend {
	case types.StateBackendFile, "":
		return NewStateFileRepository(cfg.Path), nil
	case types.StateBackendMemory:
		return NewStateMemoryRepository(), nil
	case types.StateBackendRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis backend needs a redis client")
		}
		return NewStateRedisRepository(rdb), nil
	case types.StateBackendS3:
		if objects == nil {
			return nil, fmt.Errorf("s3 backend needs an object store")
		}
		return NewStateS3Repository(objects, cfg.S3.Key), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}
