package room

import (
	"context"

	"github.com/sharetube/theatre/internal/repository/connection"
)

type RelayMessageParams struct {
	RoomID  string
	Sender  connection.Conn
	Type    string
	Payload []byte
}

// RelayMessage forwards a non-playback message verbatim to the rest of the room.
// It is neither authorized nor persisted.
func (s service) RelayMessage(ctx context.Context, params *RelayMessageParams) {
	delivered := s.groupRepo.Broadcast(ctx, params.RoomID, params.Payload, params.Sender)
	s.metrics.Commands.WithLabelValues("relay", resultRelayed).Inc()
	s.logger.DebugContext(ctx, "message relayed", "type", params.Type, "delivered", delivered)
}
