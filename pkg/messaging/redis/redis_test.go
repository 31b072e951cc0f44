package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/passpolicy/pkg/messaging"
)

func newTestBroker(t *testing.T) (*RedisBroker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBrokerWithClient(client, nil), mr
}

const dayKey = "password_policy:reminder_pass:2026-03-20"

func TestAcquireIsExclusive(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	release, err := b.Acquire(ctx, dayKey, 23*time.Hour)
	require.NoError(t, err)
	assert.True(t, mr.Exists(dayKey))
	assert.Equal(t, 23*time.Hour, mr.TTL(dayKey))

	_, err = b.Acquire(ctx, dayKey, 23*time.Hour)
	assert.ErrorIs(t, err, messaging.ErrLockHeld)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(dayKey))

	_, err = b.Acquire(ctx, dayKey, 23*time.Hour)
	assert.NoError(t, err)
}

func TestAcquireAfterExpiry(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	_, err := b.Acquire(ctx, dayKey, time.Hour)
	require.NoError(t, err)

	mr.FastForward(time.Hour + time.Second)

	_, err = b.Acquire(ctx, dayKey, time.Hour)
	assert.NoError(t, err)
}

func TestStaleReleaseKeepsNewHolder(t *testing.T) {
	b, mr := newTestBroker(t)
	ctx := context.Background()

	staleRelease, err := b.Acquire(ctx, dayKey, time.Hour)
	require.NoError(t, err)
	mr.FastForward(time.Hour + time.Second)

	_, err = b.Acquire(ctx, dayKey, time.Hour)
	require.NoError(t, err)
	holder, err := mr.Get(dayKey)
	require.NoError(t, err)

	require.NoError(t, staleRelease(ctx))

	current, err := mr.Get(dayKey)
	require.NoError(t, err)
	assert.Equal(t, holder, current)

	_, err = b.Acquire(ctx, dayKey, time.Hour)
	assert.ErrorIs(t, err, messaging.ErrLockHeld)
}

func TestReleaseTwiceIsHarmless(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx := context.Background()

	release, err := b.Acquire(ctx, dayKey, time.Hour)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
	assert.NoError(t, release(ctx))
}

func TestPublishAndSubscribe(t *testing.T) {
	b, _ := newTestBroker(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan []byte, 4)
	subErr := make(chan error, 1)
	go func() {
		subErr <- b.Subscribe(ctx, "password_policy.settings", func(_ context.Context, payload []byte) {
			received <- payload
		})
	}()

	// Publish until the subscriber is attached.
	msg := messaging.Message{Type: "password.settings_changed"}
	var got []byte
	require.Eventually(t, func() bool {
		if err := b.Publish(ctx, "password_policy.settings", msg); err != nil {
			return false
		}
		select {
		case got = <-received:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	var decoded messaging.Message
	require.NoError(t, json.Unmarshal(got, &decoded))
	assert.Equal(t, "password.settings_changed", decoded.Type)

	cancel()
	select {
	case err := <-subErr:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop after cancel")
	}
}

func TestPingReportsOutage(t *testing.T) {
	b, mr := newTestBroker(t)

	require.NoError(t, b.Ping(context.Background()))
	mr.Close()
	assert.Error(t, b.Ping(context.Background()))
}
