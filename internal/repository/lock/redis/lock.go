package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// locker is a per-room mutex shared by every process using the same redis.
// A lock expires after ttl if its holder never releases it.
type locker struct {
	rc            *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	logger        *slog.Logger
	releaseScript *redis.Script
}

func NewLocker(rc *redis.Client, ttl, retryInterval time.Duration, logger *slog.Logger) *locker {
	return &locker{
		rc:            rc,
		ttl:           ttl,
		retryInterval: retryInterval,
		logger:        logger,
		releaseScript: redis.NewScript(`
			if redis.call('GET', KEYS[1]) == ARGV[1] then
				return redis.call('DEL', KEYS[1])
			end
			return 0
		`),
	}
}

func (l locker) getLockKey(roomID string) string {
	return "room:" + roomID + ":lock"
}

// Lock blocks until the room lock is held or ctx is done.
func (l locker) Lock(ctx context.Context, roomID string) (func(), error) {
	key := l.getLockKey(roomID)
	token := uuid.NewString()

	for {
		acquired, err := l.rc.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire room lock: %w", err)
		}

		if acquired {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to acquire room lock: %w", ctx.Err())
		case <-time.After(l.retryInterval):
		}
	}

	return func() {
		if err := l.releaseScript.Run(context.WithoutCancel(ctx), l.rc, []string{key}, token).Err(); err != nil {
			l.logger.WarnContext(ctx, "failed to release room lock", "room_id", roomID, "error", err)
		}
	}, nil
}
