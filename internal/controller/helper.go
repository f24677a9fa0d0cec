package controller

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sharetube/theatre/internal/service/room"
	"github.com/sharetube/theatre/pkg/wsrouter"
)

var errRateLimited = errors.New("rate limit exceeded")

const authTokenQueryParam = "auth-token"

func (c controller) getAuthToken(r *http.Request) string {
	if token := r.URL.Query().Get(authTokenQueryParam); token != "" {
		return token
	}

	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return ""
	}

	return strings.TrimSpace(token)
}

func (c controller) errorReplyText(err error) string {
	switch {
	case errors.Is(err, room.ErrNotHost):
		return "You are not the host, you cannot control playback."
	case errors.Is(err, room.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, errRateLimited):
		return errRateLimited.Error()
	case errors.Is(err, wsrouter.ErrMalformedMessage):
		return wsrouter.ErrMalformedMessage.Error()
	case errors.Is(err, wsrouter.ErrMissingType):
		return wsrouter.ErrMissingType.Error()
	case errors.Is(err, wsrouter.ErrBinaryMessage):
		return wsrouter.ErrBinaryMessage.Error()
	default:
		return "failed to apply command"
	}
}
