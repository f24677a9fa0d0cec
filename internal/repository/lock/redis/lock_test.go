package redis

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (*locker, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewLocker(rc, 5*time.Second, 5*time.Millisecond, slog.Default()), s
}

func TestLockExcludesSecondHolder(t *testing.T) {
	l, s := newTestLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, s.Exists("room:r1:lock"))

	acquired := make(chan struct{})
	go func() {
		unlockSecond, err := l.Lock(ctx, "r1")
		if assert.NoError(t, err) {
			unlockSecond()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock not acquired after release")
	}
	assert.False(t, s.Exists("room:r1:lock"))
}

func TestLockIsPerRoom(t *testing.T) {
	l, _ := newTestLocker(t)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, "r1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	unlockOther, err := l.Lock(ctx, "r2")
	require.NoError(t, err)
	unlockOther()
}

func TestLockGivesUpWhenContextDone(t *testing.T) {
	l, _ := newTestLocker(t)

	unlock, err := l.Lock(context.Background(), "r1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "r1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnlockKeepsForeignLock(t *testing.T) {
	l, s := newTestLocker(t)

	unlock, err := l.Lock(context.Background(), "r1")
	require.NoError(t, err)

	// the lock expired and another process took it
	require.NoError(t, s.Set("room:r1:lock", "other-owner"))
	unlock()

	value, err := s.Get("room:r1:lock")
	require.NoError(t, err)
	assert.Equal(t, "other-owner", value)
}
