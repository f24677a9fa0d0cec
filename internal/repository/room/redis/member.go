package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/theatre/internal/repository/room"
)

func (r repo) AddMember(ctx context.Context, params *room.AddMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	added, err := r.sAddIfRoomExistsScript.Run(ctx, r.rc,
		[]string{r.getRoomKey(params.RoomID), r.getMembersKey(params.RoomID)},
		params.UserID,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}

	if added == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}

func (r repo) IsMemberOf(ctx context.Context, roomID, userID string) (bool, error) {
	pipe := r.rc.Pipeline()
	existsCmd := pipe.Exists(ctx, r.getRoomKey(roomID))
	isMemberCmd := pipe.SIsMember(ctx, r.getMembersKey(roomID), userID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}

	if existsCmd.Val() == 0 {
		return false, room.ErrRoomNotFound
	}

	return isMemberCmd.Val(), nil
}

func (r repo) IsHostOf(ctx context.Context, roomID, userID string) (bool, error) {
	host, err := r.rc.HGet(ctx, r.getRoomKey(roomID), hostField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, room.ErrRoomNotFound
		}

		return false, fmt.Errorf("failed to get room host: %w", err)
	}

	return host == userID, nil
}
