package room

import "fmt"

type PlaybackState string

const (
	PlaybackStatePaused  PlaybackState = "paused"
	PlaybackStatePlaying PlaybackState = "playing"
)

func ParsePlaybackState(s string) (PlaybackState, error) {
	switch PlaybackState(s) {
	case PlaybackStatePaused, PlaybackStatePlaying:
		return PlaybackState(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPlaybackState, s)
	}
}

type Room struct {
	ID               string
	Name             string
	Host             string
	Members          []string
	VideoURL         *string
	PlaybackState    PlaybackState
	CurrentTimestamp float64
	CreatedAt        int64
}
