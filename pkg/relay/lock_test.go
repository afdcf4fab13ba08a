package relay

import (
	"context"
	"testing"
	"time"

	"github.com/beam-cloud/gmail2tg/pkg/common"
	"github.com/beam-cloud/gmail2tg/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickLockTTL(t *testing.T) {
	assert.Equal(t, 2*DefaultInterval+DefaultTickTimeout, TickLockTTL(PollerConfig{}))
	assert.Equal(t, 70*time.Second, TickLockTTL(PollerConfig{Interval: 5 * time.Second, TickTimeout: time.Minute}))
}

func TestRedisTickLock_HoldAndRefresh(t *testing.T) {
	rdb, s, err := repository.NewRedisClientForTest()
	require.NoError(t, err)
	defer s.Close()

	key := common.Keys.PollerLock(rdb.KeyPrefix, testChatID)
	a := NewRedisTickLock(rdb, key, 10*time.Second)
	b := NewRedisTickLock(rdb, key, 10*time.Second)
	ctx := context.Background()

	held, err := a.Hold(ctx)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = b.Hold(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	// Refreshing keeps the lock alive past its original ttl
	s.FastForward(8 * time.Second)
	held, err = a.Hold(ctx)
	require.NoError(t, err)
	assert.True(t, held)
	s.FastForward(8 * time.Second)

	held, err = b.Hold(ctx)
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, a.Release())
	held, err = b.Hold(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

func TestRedisTickLock_ExpiredHolderLosesLock(t *testing.T) {
	rdb, s, err := repository.NewRedisClientForTest()
	require.NoError(t, err)
	defer s.Close()

	key := common.Keys.PollerLock(rdb.KeyPrefix, testChatID)
	a := NewRedisTickLock(rdb, key, 5*time.Second)
	b := NewRedisTickLock(rdb, key, 5*time.Second)
	ctx := context.Background()

	held, err := a.Hold(ctx)
	require.NoError(t, err)
	require.True(t, held)

	s.FastForward(6 * time.Second)
	held, err = b.Hold(ctx)
	require.NoError(t, err)
	require.True(t, held)

	held, err = a.Hold(ctx)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestPoller_SingleDeliveryAcrossReplicas(t *testing.T) {
	rdb, s, err := repository.NewRedisClientForTest()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	clock := newTestClock()
	mailbox := newFakeMailbox("id1")
	notifier := newFakeNotifier()
	repo := repository.NewStateRedisRepositoryForTest(rdb)
	key := common.Keys.PollerLock(rdb.KeyPrefix, testChatID)
	cfg := PollerConfig{ChatID: testChatID, MarkerLabel: "TG_FORWARDED"}

	a := NewPoller(cfg, mailbox, notifier, repo, nil, WithClock(clock.Now), WithTickLock(NewRedisTickLock(rdb, key, 10*time.Second)))
	b := NewPoller(cfg, mailbox, notifier, repo, nil, WithClock(clock.Now), WithTickLock(NewRedisTickLock(rdb, key, 10*time.Second)))
	require.NoError(t, a.Startup(ctx))
	require.NoError(t, b.Startup(ctx))

	resA := a.Tick(ctx)
	resB := b.Tick(ctx)

	assert.False(t, resA.Standby)
	assert.Equal(t, 1, resA.Delivered)
	assert.True(t, resB.Standby)
	assert.True(t, b.Status().Standby)
	assert.Equal(t, []string{"id1"}, notifier.Subjects())

	// a stops, b takes over with the state a left behind
	a.releaseLock()
	mailbox.setListing("id2", "id1")
	resB = b.Tick(ctx)

	assert.False(t, resB.Standby)
	assert.Equal(t, 1, resB.Delivered)
	assert.Equal(t, []string{"id1", "id2"}, notifier.Subjects())

	state, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.True(t, state.IsProcessed("id1"))
	assert.True(t, state.IsProcessed("id2"))
}
