package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/sharetube/theatre/internal/repository/room"
)

type roomCreator interface {
	CreateRoom(ctx context.Context, params *room.CreateRoomParams) error
}

type tokenIssuer interface {
	IssueToken(userID string) (string, error)
}

type userToken struct {
	UserID string
	Token  string
}

// seedRoom creates the room and issues a token for the host followed by every member.
func seedRoom(ctx context.Context, rooms roomCreator, issuer tokenIssuer, params *room.CreateRoomParams) ([]userToken, error) {
	if err := rooms.CreateRoom(ctx, params); err != nil {
		return nil, fmt.Errorf("failed to seed room %s: %w", params.RoomID, err)
	}

	userIDs := append([]string{params.Host}, params.Members...)
	tokens := make([]userToken, 0, len(userIDs))
	for _, userID := range userIDs {
		userID = strings.TrimSpace(userID)
		token, err := issuer.IssueToken(userID)
		if err != nil {
			return nil, fmt.Errorf("failed to issue token for %s: %w", userID, err)
		}

		tokens = append(tokens, userToken{UserID: userID, Token: token})
	}

	return tokens, nil
}
