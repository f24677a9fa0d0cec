package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/theatre/internal/controller"
	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/repository/connection"
	"github.com/sharetube/theatre/internal/repository/connection/inmemory"
	connRedis "github.com/sharetube/theatre/internal/repository/connection/redis"
	lockRedis "github.com/sharetube/theatre/internal/repository/lock/redis"
	roomRedis "github.com/sharetube/theatre/internal/repository/room/redis"
	"github.com/sharetube/theatre/internal/service/auth"
	"github.com/sharetube/theatre/internal/service/room"
	"github.com/sharetube/theatre/pkg/ctxlogger"
	"github.com/sharetube/theatre/pkg/redisclient"
	"github.com/sharetube/theatre/pkg/validator"
)

type AppConfig struct {
	Secret           string        `json:"-" validate:"required"`
	Host             string        `json:"host"`
	Port             int           `json:"port" validate:"gte=1,lte=65535"`
	LogLevel         string        `json:"log_level" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	RedisHost        string        `json:"redis_host" validate:"required"`
	RedisPort        int           `json:"redis_port" validate:"gte=1,lte=65535"`
	RedisPassword    string        `json:"-"`
	RedisDB          int           `json:"redis_db" validate:"gte=0"`
	WSReadLimit      int64         `json:"ws_read_limit" validate:"gte=64"`
	WSPingPeriod     time.Duration `json:"ws_ping_period" validate:"gt=0s"`
	WSSendBuffer     int           `json:"ws_send_buffer" validate:"gte=1"`
	CommandRate      float64       `json:"command_rate" validate:"gt=0"`
	CommandBurst     int           `json:"command_burst" validate:"gte=1"`
	StoreConcurrency int64         `json:"store_concurrency" validate:"gte=1"`
	RelayEnabled     bool          `json:"relay_enabled"`
	RelayChannel     string        `json:"relay_channel" validate:"required_if=RelayEnabled true"`
	RoomLockTTL      time.Duration `json:"room_lock_ttl" validate:"gt=0s"`
}

func (cfg *AppConfig) Validate() error {
	return validator.NewValidator().Struct(cfg)
}

type groupRepo interface {
	Join(roomID string, conn connection.Conn)
	Leave(roomID string, conn connection.Conn) bool
	Broadcast(ctx context.Context, roomID string, msg []byte, exclude connection.Conn) int
	Count(roomID string) int
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// newHandler wires the room components on top of rc. Background workers stop when ctx is done.
func newHandler(ctx context.Context, cfg *AppConfig, rc *redis.Client, logger *slog.Logger) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var groups groupRepo = inmemory.NewRepo(logger, m)
	if cfg.RelayEnabled {
		relay := connRedis.NewRelay(groups, rc, cfg.RelayChannel, uuid.NewString(), logger, m)
		if err := relay.Start(ctx); err != nil {
			return nil, err
		}
		groups = relay
	}

	roomRepo := roomRedis.NewRepo(rc, logger)
	roomService := room.NewService(roomRepo, groups, cfg.StoreConcurrency, logger, m)
	if cfg.RelayEnabled {
		// other processes mutate the same rooms
		roomService.WithRoomLock(lockRedis.NewLocker(rc, cfg.RoomLockTTL, 10*time.Millisecond, logger))
	}
	authService := auth.NewService(cfg.Secret)

	c := controller.NewController(roomService, authService, controller.WSConfig{
		ReadLimit:    cfg.WSReadLimit,
		PingPeriod:   cfg.WSPingPeriod,
		SendBuffer:   cfg.WSSendBuffer,
		CommandRate:  cfg.CommandRate,
		CommandBurst: cfg.CommandBurst,
	}, reg, m, logger)

	return c.GetMux(), nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(os.Stdout, cfg.LogLevel)
	if err != nil {
		return err
	}

	rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	// cancelled on shutdown so open websocket sessions are closed
	appCtx, cancelApp := context.WithCancel(ctx)
	defer cancelApp()

	handler, err := newHandler(appCtx, cfg, rc, logger)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}

	server := &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:     handler,
		BaseContext: func(net.Listener) context.Context { return appCtx },
	}
	server.RegisterOnShutdown(cancelApp)

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
