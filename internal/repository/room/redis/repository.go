package redis

import (
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type repo struct {
	rc     *redis.Client
	logger *slog.Logger
	// both scripts take KEYS[1] as the room hash and refuse to touch a room that does not exist
	hSetIfRoomExistsScript *redis.Script
	sAddIfRoomExistsScript *redis.Script
}

func NewRepo(rc *redis.Client, logger *slog.Logger) *repo {
	return &repo{
		rc:     rc,
		logger: logger,
		hSetIfRoomExistsScript: redis.NewScript(`
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return 0
			end
			redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
			return 1
		`),
		sAddIfRoomExistsScript: redis.NewScript(`
			if redis.call('EXISTS', KEYS[1]) == 0 then
				return 0
			end
			redis.call('SADD', KEYS[2], ARGV[1])
			return 1
		`),
	}
}

func (r repo) getRoomKey(roomID string) string {
	return "room:" + roomID
}

func (r repo) getMembersKey(roomID string) string {
	return "room:" + roomID + ":members"
}
