package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/theatre/pkg/ctxlogger"
	"github.com/sharetube/theatre/pkg/wsrouter"
)

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, msg wsrouter.Message) {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", wsrouter.GetMessageTypeFromCtx(ctx)))
			c.logger.DebugContext(ctx, "websocket message received", "size", len(msg.Raw))

			start := time.Now()
			next(ctx, msg)

			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)
		}
	}
}

func (c controller) rateLimitWSMw(s *session) wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc) wsrouter.HandlerFunc {
		return func(ctx context.Context, msg wsrouter.Message) {
			if !s.limiter.Allow() {
				c.logger.InfoContext(ctx, "message dropped by rate limiter")
				c.writeError(ctx, s, errRateLimited)
				return
			}

			next(ctx, msg)
		}
	}
}
