package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/sharetube/theatre/internal/repository/connection"
	"github.com/sharetube/theatre/internal/repository/room"
)

const (
	CommandPlay  = "play"
	CommandPause = "pause"
	CommandSeek  = "seek"
)

const (
	resultOK       = "ok"
	resultNotHost  = "not_host"
	resultNotFound = "not_found"
	resultFailed   = "failed"
	resultRelayed  = "relayed"
)

func IsPlaybackCommand(msgType string) bool {
	switch msgType {
	case CommandPlay, CommandPause, CommandSeek:
		return true
	default:
		return false
	}
}

type HandlePlaybackParams struct {
	RoomID   string
	SenderID string
	Sender   connection.Conn
	Command  string
	Payload  []byte
}

// HandlePlayback authorizes, applies and persists a playback command, then relays the
// original payload to the rest of the room. The whole sequence runs under the room lock.
func (s service) HandlePlayback(ctx context.Context, params *HandlePlaybackParams) error {
	if !IsPlaybackCommand(params.Command) {
		return fmt.Errorf("unknown playback command %q", params.Command)
	}

	unlock, err := s.lockRoom(ctx, params.RoomID)
	if err != nil {
		s.countCommand(params.Command, err)
		s.logger.ErrorContext(ctx, "failed to lock room", "error", err)
		return err
	}
	defer unlock()

	if err := s.checkHost(ctx, params.RoomID, params.SenderID); err != nil {
		s.countCommand(params.Command, err)
		return err
	}

	if err := s.applyCommand(ctx, params.RoomID, params.Command, params.Payload); err != nil {
		s.countCommand(params.Command, err)
		if errors.Is(err, room.ErrRoomNotFound) {
			return ErrRoomNotFound
		}

		s.logger.ErrorContext(ctx, "failed to apply command", "command", params.Command, "error", err)
		return fmt.Errorf("failed to apply command: %w", err)
	}

	delivered := s.groupRepo.Broadcast(ctx, params.RoomID, params.Payload, params.Sender)
	s.countCommand(params.Command, nil)
	s.logger.DebugContext(ctx, "command applied", "command", params.Command, "delivered", delivered)

	return nil
}

func (s service) applyCommand(ctx context.Context, roomID, command string, payload []byte) error {
	return s.execStore(ctx, func() error {
		switch command {
		case CommandPlay:
			return s.roomRepo.SetPlaybackState(ctx, roomID, room.PlaybackStatePlaying)
		case CommandPause:
			return s.roomRepo.SetPlaybackState(ctx, roomID, room.PlaybackStatePaused)
		default:
			return s.roomRepo.SetTimestamp(ctx, roomID, parseSeekTime(payload))
		}
	})
}

func (s service) countCommand(command string, err error) {
	result := resultOK
	switch {
	case err == nil:
	case errors.Is(err, ErrNotHost):
		result = resultNotHost
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, room.ErrRoomNotFound):
		result = resultNotFound
	default:
		result = resultFailed
	}

	s.metrics.Commands.WithLabelValues(command, result).Inc()
}

// parseSeekTime reads the "time" field of a seek payload. Absent or malformed values
// become 0, numeric strings are accepted and negative values are clamped to 0.
func parseSeekTime(payload []byte) float64 {
	var msg struct {
		Time json.RawMessage `json:"time"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil || len(msg.Time) == 0 {
		return 0
	}

	var t float64
	if err := json.Unmarshal(msg.Time, &t); err != nil {
		var s string
		if err := json.Unmarshal(msg.Time, &s); err != nil {
			return 0
		}

		t, err = strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
	}

	if math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}

	return max(0, t)
}
