package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sharetube/theatre/internal/service/room"
	"github.com/sharetube/theatre/pkg/ctxlogger"
	"golang.org/x/time/rate"
)

const writeWait = 10 * time.Second

func (c controller) pongWait() time.Duration {
	return c.wsConfig.PingPeriod * 10 / 9
}

func (c controller) reject(w http.ResponseWriter, r *http.Request, status int, reason string) {
	c.logger.InfoContext(r.Context(), "connection rejected", "reason", reason)
	c.metrics.RejectedConnections.WithLabelValues(reason).Inc()
	http.Error(w, http.StatusText(status), status)
}

func (c controller) connectRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "room-id")

	userID, err := c.authService.ParseToken(c.getAuthToken(r))
	if err != nil {
		c.logger.DebugContext(r.Context(), "failed to parse auth token", "error", err)
		c.reject(w, r, http.StatusUnauthorized, "unauthenticated")
		return
	}

	cl := newClient(c.wsConfig.SendBuffer)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = ctxlogger.AppendCtx(ctx,
		slog.String("room_id", roomID),
		slog.String("user_id", userID),
		slog.String("conn_id", cl.ID()),
	)
	r = r.WithContext(ctx)

	if err := c.roomService.ConnectMember(ctx, &room.ConnectMemberParams{
		RoomID: roomID,
		UserID: userID,
		Conn:   cl,
	}); err != nil {
		if errors.Is(err, room.ErrNotMember) {
			c.reject(w, r, http.StatusForbidden, "not_member")
			return
		}

		c.logger.ErrorContext(ctx, "failed to connect member", "error", err)
		c.reject(w, r, http.StatusInternalServerError, "internal")
		return
	}
	defer cl.close()
	defer c.roomService.DisconnectMember(context.WithoutCancel(ctx), &room.DisconnectMemberParams{
		RoomID: roomID,
		Conn:   cl,
	})

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()
	// unblocks the read loop on server shutdown
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetReadLimit(c.wsConfig.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	go c.writePump(ctx, cl, conn)

	s := &session{
		roomID:  roomID,
		userID:  userID,
		client:  cl,
		limiter: rate.NewLimiter(rate.Limit(c.wsConfig.CommandRate), c.wsConfig.CommandBurst),
	}
	if err := c.getWSRouter(s).ServeConn(ctx, conn); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.logger.InfoContext(ctx, "connection closed unexpectedly", "error", err)
			return
		}
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

// writePump is the only writer of conn. It exits when the client is closed or a write fails,
// closing conn so the read loop stops as well.
func (c controller) writePump(ctx context.Context, cl *client, conn *websocket.Conn) {
	ticker := time.NewTicker(c.wsConfig.PingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-cl.send:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.InfoContext(ctx, "failed to write message", "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.InfoContext(ctx, "failed to write ping", "error", err)
				return
			}
		}
	}
}
