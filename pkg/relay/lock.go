package relay

import (
	"context"
	"errors"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/common"
)

// RedisTickLock is a TickLock held across ticks and refreshed on each one.
// Its ttl must outlive the pause between ticks.
type RedisTickLock struct {
	lock *common.RedisLock
	key  string
	ttl  time.Duration
}

func NewRedisTickLock(rdb *common.RedisClient, key string, ttl time.Duration) *RedisTickLock {
	return &RedisTickLock{lock: common.NewRedisLock(rdb), key: key, ttl: max(ttl, time.Second)}
}

// TickLockTTL covers one pause and one full tick, with slack
func TickLockTTL(cfg PollerConfig) time.Duration {
	cfg.applyDefaults()
	return 2*cfg.Interval + cfg.TickTimeout
}

func (l *RedisTickLock) Hold(ctx context.Context) (bool, error) {
	if l.lock.Held(l.key) {
		err := l.lock.Refresh(ctx, l.key, l.ttl)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, common.ErrLockNotObtained) {
			return false, err
		}
	}

	err := l.lock.Acquire(ctx, l.key, common.RedisLockOptions{TtlS: int(l.ttl / time.Second)})
	if errors.Is(err, common.ErrLockNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (l *RedisTickLock) Release() error {
	return l.lock.Release(l.key)
}
