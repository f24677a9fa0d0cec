package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/theatre/internal/repository/room"
)

// IsMember fails closed: a missing room or a store error counts as not a member.
func (s service) IsMember(ctx context.Context, roomID, userID string) bool {
	isMember, err := callStore(ctx, s, func() (bool, error) {
		return s.roomRepo.IsMemberOf(ctx, roomID, userID)
	})
	if err != nil {
		if !errors.Is(err, room.ErrRoomNotFound) {
			s.logger.ErrorContext(ctx, "failed to check membership", "room_id", roomID, "user_id", userID, "error", err)
		}
		return false
	}

	return isMember
}

// IsHost fails closed the same way as IsMember.
func (s service) IsHost(ctx context.Context, roomID, userID string) bool {
	return s.checkHost(ctx, roomID, userID) == nil
}

func (s service) checkHost(ctx context.Context, roomID, userID string) error {
	isHost, err := callStore(ctx, s, func() (bool, error) {
		return s.roomRepo.IsHostOf(ctx, roomID, userID)
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return ErrRoomNotFound
		}

		s.logger.ErrorContext(ctx, "failed to check host", "room_id", roomID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to check host: %w", err)
	}

	if !isHost {
		return ErrNotHost
	}

	return nil
}
