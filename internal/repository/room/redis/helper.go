package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	hostField             = "host"
	nameField             = "name"
	videoURLField         = "video_url"
	playbackStateField    = "playback_state"
	currentTimestampField = "current_timestamp"
	createdAtField        = "created_at"
)

func (r repo) executePipe(ctx context.Context, pipe redis.Pipeliner) error {
	cmds, err := pipe.Exec(ctx)
	if err != nil {
		for _, cmd := range cmds {
			if err := cmd.Err(); err != nil {
				return err
			}
		}

		return err
	}

	return nil
}

func (r repo) fieldToInt64(field string) int64 {
	i, _ := strconv.ParseInt(field, 10, 64)
	return i
}

func (r repo) fieldToFloat64(field string) float64 {
	f, _ := strconv.ParseFloat(field, 64)
	return f
}

func (r repo) float64ToField(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
