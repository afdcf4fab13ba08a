package repository

import (
	"github.com/alicebob/miniredis/v2"
	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/types"
)

// NewRedisClientForTest creates a Redis client backed by miniredis for testing
func NewRedisClientForTest() (*common.RedisClient, *miniredis.Miniredis, error) {
	s, err := miniredis.Run()
	if err != nil {
		return nil, nil, err
	}

	rdb, err := common.NewRedisClient(types.RedisConfig{
		Addrs:     []string{s.Addr()},
		Mode:      types.RedisModeSingle,
		KeyPrefix: "gmail2tg-test",
	})
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	return rdb, s, nil
}

// NewStateRedisRepositoryForTest creates a StateRepository backed by miniredis
func NewStateRedisRepositoryForTest(rdb *common.RedisClient) StateRepository {
	return NewStateRedisRepository(rdb)
}
