package redis_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/cache/redis"
	"github.com/alanyoungcy/mentionleague/internal/domain"
)

// newClient connects to MENTIONLEAGUE_TEST_REDIS or skips the test. Each test
// gets its own key prefix.
func newClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("MENTIONLEAGUE_TEST_REDIS")
	if addr == "" {
		t.Skip("MENTIONLEAGUE_TEST_REDIS not set")
	}
	c, err := redis.New(context.Background(), redis.ClientConfig{
		Addr:      addr,
		PoolSize:  4,
		KeyPrefix: fmt.Sprintf("mltest:%d", time.Now().UnixNano()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKey(t *testing.T) {
	c := newClient(t)
	assert.Contains(t, c.Key("lock", "league:write"), ":lock:league:write")
}

func TestLockManager(t *testing.T) {
	c := newClient(t)
	lm := redis.NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "league:write", time.Minute)
	require.NoError(t, err)

	_, err = lm.Acquire(ctx, "league:write", time.Minute)
	assert.ErrorIs(t, err, domain.ErrLockHeld)

	unlock()
	unlock()

	again, err := lm.Acquire(ctx, "league:write", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRateLimiter(t *testing.T) {
	c := newClient(t)
	rl := redis.NewRateLimiter(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTitleMapCache(t *testing.T) {
	c := newClient(t)
	tc := redis.NewTitleMapCache(c, time.Minute)
	ctx := context.Background()

	_, err := tc.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	m := domain.TitleMap{domain.CategorySay: {"Trillion": "KXTRUMPMENTION-26FEB28-TRIL"}}
	require.NoError(t, tc.Set(ctx, m))

	got, err := tc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	require.NoError(t, tc.Invalidate(ctx))
	_, err = tc.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSignalBusStream(t *testing.T) {
	c := newClient(t)
	bus := redis.NewSignalBusWithMaxLen(c, 100)
	ctx := context.Background()

	require.NoError(t, bus.StreamAppend(ctx, "league:events", []byte(`{"n":1}`)))
	require.NoError(t, bus.StreamAppend(ctx, "league:events", []byte(`{"n":2}`)))

	msgs, err := bus.StreamRead(ctx, "league:events", "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, `{"n":1}`, string(msgs[0].Payload))

	rest, err := bus.StreamRead(ctx, "league:events", msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, rest)
}

func TestSignalBusPubSub(t *testing.T) {
	c := newClient(t)
	bus := redis.NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.ChannelScores)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, domain.ChannelScores, []byte("hello")))

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}
