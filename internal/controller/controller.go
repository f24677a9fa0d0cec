package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/service/room"
)

type iRoomService interface {
	ConnectMember(context.Context, *room.ConnectMemberParams) error
	DisconnectMember(context.Context, *room.DisconnectMemberParams)
	HandlePlayback(context.Context, *room.HandlePlaybackParams) error
	RelayMessage(context.Context, *room.RelayMessageParams)
}

type iAuthService interface {
	ParseToken(token string) (string, error)
}

type WSConfig struct {
	ReadLimit    int64
	PingPeriod   time.Duration
	SendBuffer   int
	CommandRate  float64
	CommandBurst int
}

type controller struct {
	roomService iRoomService
	authService iAuthService
	upgrader    websocket.Upgrader
	wsConfig    WSConfig
	gatherer    prometheus.Gatherer
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewController(roomService iRoomService, authService iAuthService, wsConfig WSConfig, gatherer prometheus.Gatherer, m *metrics.Metrics, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		authService: authService,
		wsConfig:    wsConfig,
		gatherer:    gatherer,
		metrics:     m,
		logger:      logger,
	}
}
