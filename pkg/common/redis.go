package common

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotObtained = errors.New("lock not obtained")

type RedisClient struct {
	redis.UniversalClient
	KeyPrefix string
}

type RedisOption func(*redis.UniversalOptions)

func WithClientName(name string) RedisOption {
	return func(opts *redis.UniversalOptions) {
		opts.ClientName = name
	}
}

func NewRedisClient(config types.RedisConfig, options ...RedisOption) (*RedisClient, error) {
	if len(config.Addrs) == 0 {
		return nil, errors.New("no redis addresses configured")
	}

	opts := &redis.UniversalOptions{
		Addrs:        config.Addrs,
		Username:     config.Username,
		Password:     config.Password,
		ClientName:   config.ClientName,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	if config.EnableTLS {
		opts.TLSConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: config.InsecureSkipVerify,
		}
	}
	for _, opt := range options {
		opt(opts)
	}

	var client redis.UniversalClient
	if config.Mode == types.RedisModeCluster {
		client = redis.NewClusterClient(opts.Cluster())
	} else {
		client = redis.NewClient(opts.Simple())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisClient{UniversalClient: client, KeyPrefix: config.KeyPrefix}, nil
}

type RedisLockOptions struct {
	TtlS    int
	Retries int
}

// RedisLock tracks the distributed locks this process holds, by key
type RedisLock struct {
	client *redislock.Client
	mu     sync.Mutex
	locks  map[string]*redislock.Lock
}

func NewRedisLock(rdb *RedisClient) *RedisLock {
	return &RedisLock{
		client: redislock.New(rdb.UniversalClient),
		locks:  make(map[string]*redislock.Lock),
	}
}

// Acquire takes the lock at key. ErrLockNotObtained means another holder has
// it and opts.Retries attempts were exhausted.
func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) error {
	retry := redislock.NoRetry()
	if opts.Retries > 0 {
		retry = redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), opts.Retries)
	}

	lock, err := l.client.Obtain(ctx, key, time.Duration(opts.TtlS)*time.Second, &redislock.Options{RetryStrategy: retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrLockNotObtained
	}
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.locks[key] = lock
	l.mu.Unlock()
	return nil
}

// Refresh extends a held lock. A lock that expired and was taken by someone
// else is forgotten and reported as ErrLockNotObtained.
func (l *RedisLock) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	l.mu.Lock()
	lock, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return ErrLockNotObtained
	}

	err := lock.Refresh(ctx, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.forget(key)
		return ErrLockNotObtained
	}
	return err
}

func (l *RedisLock) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.locks[key]
	return ok
}

func (l *RedisLock) Release(key string) error {
	l.mu.Lock()
	lock, ok := l.locks[key]
	delete(l.locks, key)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return err
	}
	return nil
}

func (l *RedisLock) forget(key string) {
	l.mu.Lock()
	delete(l.locks, key)
	l.mu.Unlock()
}
