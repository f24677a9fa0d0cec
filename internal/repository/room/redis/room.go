package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/theatre/internal/repository/room"
	omitnilpointers "github.com/sharetube/theatre/pkg/omit-nil-pointers"
)

func (r repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	roomKey := r.getRoomKey(params.RoomID)

	fields := omitnilpointers.OmitNilPointers(map[string]any{
		hostField:             params.Host,
		nameField:             params.Name,
		videoURLField:         params.VideoURL,
		playbackStateField:    string(room.PlaybackStatePaused),
		currentTimestampField: r.float64ToField(0),
		createdAtField:        time.Now().Unix(),
	})

	members := make([]any, 0, len(params.Members)+1)
	members = append(members, params.Host)
	for _, member := range params.Members {
		members = append(members, member)
	}

	err := r.rc.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, roomKey).Result()
		if err != nil {
			return err
		}

		if n > 0 {
			return room.ErrRoomAlreadyExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, roomKey, fields)
			pipe.SAdd(ctx, r.getMembersKey(params.RoomID), members...)
			return nil
		})

		return err
	}, roomKey)
	if err != nil {
		r.logger.DebugContext(ctx, "returned", "error", err)
		if errors.Is(err, room.ErrRoomAlreadyExists) {
			return err
		}

		return fmt.Errorf("failed to create room: %w", err)
	}

	return nil
}

func (r repo) GetRoom(ctx context.Context, roomID string) (room.Room, error) {
	pipe := r.rc.Pipeline()
	fieldsCmd := pipe.HGetAll(ctx, r.getRoomKey(roomID))
	membersCmd := pipe.SMembers(ctx, r.getMembersKey(roomID))

	if err := r.executePipe(ctx, pipe); err != nil {
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return room.Room{}, room.ErrRoomNotFound
	}

	state, err := room.ParsePlaybackState(fields[playbackStateField])
	if err != nil {
		return room.Room{}, err
	}

	var videoURL *string
	if url, ok := fields[videoURLField]; ok {
		videoURL = &url
	}

	return room.Room{
		ID:               roomID,
		Name:             fields[nameField],
		Host:             fields[hostField],
		Members:          membersCmd.Val(),
		VideoURL:         videoURL,
		PlaybackState:    state,
		CurrentTimestamp: r.fieldToFloat64(fields[currentTimestampField]),
		CreatedAt:        r.fieldToInt64(fields[createdAtField]),
	}, nil
}
