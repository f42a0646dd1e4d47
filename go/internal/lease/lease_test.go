package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseExclusivity(t *testing.T, a, b Locker) {
	ctx := context.Background()
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan bool)

	go func() {
		ran, err := a.TryRun(ctx, "sweep", 5*time.Second, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
		assert.NoError(t, err)
		done <- ran
	}()
	<-held

	ran, err := b.TryRun(ctx, "sweep", 5*time.Second, func(context.Context) error {
		t.Error("second holder must not run")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ran)

	ran, err = b.TryRun(ctx, "other", 5*time.Second, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran, "different names do not contend")

	close(release)
	assert.True(t, <-done)

	boom := errors.New("boom")
	ran, err = b.TryRun(ctx, "sweep", 5*time.Second, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestLocalLocker(t *testing.T) {
	l := NewLocalLocker()
	exerciseExclusivity(t, l, l)
}

func TestRedisLockerAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { c.Close() })
		return c
	}
	exerciseExclusivity(t,
		NewRedisLocker(newClient(), "transfermarket:lease:"),
		NewRedisLocker(newClient(), "transfermarket:lease:"),
	)
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	l := NewRedisLocker(client, "lease:")

	// Simulate a crashed holder that never released.
	require.NoError(t, client.Set(context.Background(), "lease:sweep", "dead-holder", time.Second).Err())
	ran, err := l.TryRun(context.Background(), "sweep", time.Second, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.False(t, ran)

	mr.FastForward(2 * time.Second)
	ran, err = l.TryRun(context.Background(), "sweep", time.Second, func(context.Context) error { return nil })
	require.NoError(t, err)
	assert.True(t, ran)
}
