package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/sharetube/theatre/internal/repository/connection"
	"github.com/sharetube/theatre/internal/repository/room"
)

type ConnectMemberParams struct {
	RoomID string
	UserID string
	Conn   connection.Conn
}

// ConnectMember admits a member's connection into the room group and queues the current
// room state to it. Registration and the snapshot happen under the room lock, so every
// later playback broadcast reaches the connection after its snapshot.
func (s service) ConnectMember(ctx context.Context, params *ConnectMemberParams) error {
	if !s.IsMember(ctx, params.RoomID, params.UserID) {
		return ErrNotMember
	}

	unlock, err := s.lockRoom(ctx, params.RoomID)
	if err != nil {
		return err
	}
	defer unlock()

	r, err := callStore(ctx, s, func() (room.Room, error) {
		return s.roomRepo.GetRoom(ctx, params.RoomID)
	})
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			return ErrNotMember
		}

		return fmt.Errorf("failed to get room: %w", err)
	}

	snapshot, err := newRoomStateMessage(r, params.UserID)
	if err != nil {
		return err
	}

	s.groupRepo.Join(params.RoomID, params.Conn)
	s.metrics.ActiveConnections.Inc()

	if err := params.Conn.Send(snapshot); err != nil {
		s.logger.WarnContext(ctx, "failed to queue room state", "error", err)
	}

	s.logger.InfoContext(ctx, "member connected", "members_online", s.groupRepo.Count(params.RoomID))
	return nil
}

type DisconnectMemberParams struct {
	RoomID string
	Conn   connection.Conn
}

// DisconnectMember is safe to call more than once for the same connection.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) {
	if !s.groupRepo.Leave(params.RoomID, params.Conn) {
		return
	}

	s.metrics.ActiveConnections.Dec()
	s.logger.InfoContext(ctx, "member disconnected", "members_online", s.groupRepo.Count(params.RoomID))
}
