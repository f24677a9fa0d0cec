package room

import "errors"

var (
	ErrRoomNotFound         = errors.New("room not found")
	ErrRoomAlreadyExists    = errors.New("room already exists")
	ErrInvalidPlaybackState = errors.New("invalid playback state")
)
