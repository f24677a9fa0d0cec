package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/theatre/internal/repository/room"
)

func (r repo) setRoomField(ctx context.Context, roomID, field, value string) error {
	updated, err := r.hSetIfRoomExistsScript.Run(ctx, r.rc, []string{r.getRoomKey(roomID)}, field, value).Int()
	if err != nil {
		return err
	}

	if updated == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}

func (r repo) SetPlaybackState(ctx context.Context, roomID string, state room.PlaybackState) error {
	if _, err := room.ParsePlaybackState(string(state)); err != nil {
		return err
	}

	if err := r.setRoomField(ctx, roomID, playbackStateField, string(state)); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set playback state: %w", err)
	}

	return nil
}

func (r repo) SetTimestamp(ctx context.Context, roomID string, timestamp float64) error {
	if timestamp < 0 {
		return fmt.Errorf("failed to set timestamp: negative value %v", timestamp)
	}

	if err := r.setRoomField(ctx, roomID, currentTimestampField, r.float64ToField(timestamp)); err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		return fmt.Errorf("failed to set timestamp: %w", err)
	}

	return nil
}
