package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sharetube/theatre/internal/metrics"
	"github.com/sharetube/theatre/internal/repository/connection"
	"github.com/sharetube/theatre/internal/repository/room"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNotMember    = errors.New("not a member of the room")
	ErrNotHost      = errors.New("not the host of the room")
	ErrRoomNotFound = errors.New("room not found")
)

type iRoomRepo interface {
	GetRoom(ctx context.Context, roomID string) (room.Room, error)
	IsMemberOf(ctx context.Context, roomID, userID string) (bool, error)
	IsHostOf(ctx context.Context, roomID, userID string) (bool, error)
	SetPlaybackState(ctx context.Context, roomID string, state room.PlaybackState) error
	SetTimestamp(ctx context.Context, roomID string, timestamp float64) error
}

type iGroupRepo interface {
	Join(roomID string, conn connection.Conn)
	Leave(roomID string, conn connection.Conn) bool
	Broadcast(ctx context.Context, roomID string, msg []byte, exclude connection.Conn) int
	Count(roomID string) int
}

// iRoomLock serializes room commands across processes.
type iRoomLock interface {
	Lock(ctx context.Context, roomID string) (unlock func(), err error)
}

type service struct {
	roomRepo  iRoomRepo
	groupRepo iGroupRepo
	locker    *roomLocker
	roomLock  iRoomLock
	storeSem  *semaphore.Weighted
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewService(roomRepo iRoomRepo, groupRepo iGroupRepo, storeConcurrency int64, logger *slog.Logger, m *metrics.Metrics) *service {
	return &service{
		roomRepo:  roomRepo,
		groupRepo: groupRepo,
		locker:    newRoomLocker(),
		storeSem:  semaphore.NewWeighted(storeConcurrency),
		metrics:   m,
		logger:    logger,
	}
}

// WithRoomLock makes every room critical section also hold l. Needed when several
// processes serve the same rooms.
func (s *service) WithRoomLock(l iRoomLock) *service {
	s.roomLock = l
	return s
}

func (s service) lockRoom(ctx context.Context, roomID string) (func(), error) {
	unlock := s.locker.lock(roomID)
	if s.roomLock == nil {
		return unlock, nil
	}

	unlockShared, err := s.roomLock.Lock(ctx, roomID)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to lock room: %w", err)
	}

	return func() {
		unlockShared()
		unlock()
	}, nil
}

// callStore runs fn while holding one of the store slots.
func callStore[T any](ctx context.Context, s service, fn func() (T, error)) (T, error) {
	if err := s.storeSem.Acquire(ctx, 1); err != nil {
		var zero T
		return zero, fmt.Errorf("failed to acquire store slot: %w", err)
	}
	defer s.storeSem.Release(1)

	return fn()
}

func (s service) execStore(ctx context.Context, fn func() error) error {
	_, err := callStore(ctx, s, func() (struct{}, error) {
		return struct{}{}, fn()
	})

	return err
}
