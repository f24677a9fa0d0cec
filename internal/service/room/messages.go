package room

import (
	"encoding/json"
	"fmt"

	"github.com/sharetube/theatre/internal/repository/room"
)

const (
	TypeRoomState = "room_state"
	TypeError     = "error"
)

type RoomState struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Host             string             `json:"host"`
	PlaybackState    room.PlaybackState `json:"playback_state"`
	CurrentTimestamp float64            `json:"current_timestamp"`
	VideoURL         *string            `json:"video_url"`
}

type RoomStateMessage struct {
	Type   string    `json:"type"`
	Room   RoomState `json:"room"`
	IsHost bool      `json:"is_host"`
}

func newRoomStateMessage(r room.Room, userID string) ([]byte, error) {
	data, err := json.Marshal(RoomStateMessage{
		Type: TypeRoomState,
		Room: RoomState{
			ID:               r.ID,
			Name:             r.Name,
			Host:             r.Host,
			PlaybackState:    r.PlaybackState,
			CurrentTimestamp: r.CurrentTimestamp,
			VideoURL:         r.VideoURL,
		},
		IsHost: r.Host == userID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal room state: %w", err)
	}

	return data, nil
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMessage(message string) ([]byte, error) {
	data, err := json.Marshal(ErrorMessage{
		Type:    TypeError,
		Message: message,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal error message: %w", err)
	}

	return data, nil
}
