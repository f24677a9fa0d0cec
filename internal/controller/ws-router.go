package controller

import (
	"context"

	"github.com/sharetube/theatre/internal/service/room"
	"github.com/sharetube/theatre/pkg/wsrouter"
	"golang.org/x/time/rate"
)

// session is the identity a connection was admitted with. It is fixed for the connection's lifetime.
type session struct {
	roomID  string
	userID  string
	client  *client
	limiter *rate.Limiter
}

func (c controller) getWSRouter(s *session) *wsrouter.WSRouter {
	mux := wsrouter.New()
	mux.Use(c.loggerWSMw(), c.rateLimitWSMw(s))

	// playback
	mux.Handle(room.CommandPlay, c.handlePlayback(s))
	mux.Handle(room.CommandPause, c.handlePlayback(s))
	mux.Handle(room.CommandSeek, c.handlePlayback(s))

	mux.HandleDefault(c.handleRelay(s))
	mux.HandleError(func(ctx context.Context, err error) {
		c.writeError(ctx, s, err)
	})

	return mux
}

func (c controller) writeError(ctx context.Context, s *session, err error) {
	msg, err := room.NewErrorMessage(c.errorReplyText(err))
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to build error reply", "error", err)
		return
	}

	if err := s.client.Send(msg); err != nil {
		c.logger.WarnContext(ctx, "failed to queue error reply", "error", err)
	}
}

func (c controller) handlePlayback(s *session) wsrouter.HandlerFunc {
	return func(ctx context.Context, msg wsrouter.Message) {
		if err := c.roomService.HandlePlayback(ctx, &room.HandlePlaybackParams{
			RoomID:   s.roomID,
			SenderID: s.userID,
			Sender:   s.client,
			Command:  msg.Type,
			Payload:  msg.Raw,
		}); err != nil {
			c.logger.InfoContext(ctx, "playback command rejected", "error", err)
			c.writeError(ctx, s, err)
		}
	}
}

func (c controller) handleRelay(s *session) wsrouter.HandlerFunc {
	return func(ctx context.Context, msg wsrouter.Message) {
		c.roomService.RelayMessage(ctx, &room.RelayMessageParams{
			RoomID:  s.roomID,
			Sender:  s.client,
			Type:    msg.Type,
			Payload: msg.Raw,
		})
	}
}
