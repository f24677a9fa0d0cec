package wsrouter

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gorilla/websocket"
)

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMissingType      = errors.New("message type is required")
	ErrUnknownType      = errors.New("unknown message type")
	ErrBinaryMessage    = errors.New("binary messages are not supported")
)

// Message is one inbound record. Raw holds the record exactly as it was received.
type Message struct {
	Type string
	Raw  []byte
}

type HandlerFunc func(ctx context.Context, msg Message)

type ErrorHandlerFunc func(ctx context.Context, err error)

type Middleware func(next HandlerFunc) HandlerFunc

// Reader is the read half of a websocket connection.
type Reader interface {
	ReadMessage() (messageType int, p []byte, err error)
}

type WSRouter struct {
	routes      map[string]HandlerFunc
	fallback    HandlerFunc
	onError     ErrorHandlerFunc
	middlewares []Middleware
}

func New() *WSRouter {
	return &WSRouter{
		routes:  make(map[string]HandlerFunc),
		onError: func(context.Context, error) {},
	}
}

func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) Handle(messageType string, handler HandlerFunc) {
	r.routes[messageType] = handler
}

// HandleDefault registers the handler for types without a route.
func (r *WSRouter) HandleDefault(handler HandlerFunc) {
	r.fallback = handler
}

func (r *WSRouter) HandleError(handler ErrorHandlerFunc) {
	r.onError = handler
}

// ServeConn reads and dispatches messages until the connection fails.
// It never closes the connection.
func (r *WSRouter) ServeConn(ctx context.Context, conn Reader) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType != websocket.TextMessage {
			r.onError(ctx, ErrBinaryMessage)
			continue
		}

		r.Dispatch(ctx, data)
	}
}

func (r *WSRouter) Dispatch(ctx context.Context, data []byte) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		r.onError(ctx, errors.Join(ErrMalformedMessage, err))
		return
	}

	if head.Type == nil || *head.Type == "" {
		r.onError(ctx, ErrMissingType)
		return
	}

	handler, ok := r.routes[*head.Type]
	if !ok {
		if r.fallback == nil {
			r.onError(ctx, ErrUnknownType)
			return
		}
		handler = r.fallback
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler(withMessageType(ctx, *head.Type), Message{Type: *head.Type, Raw: data})
}
