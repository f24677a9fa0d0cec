package connection

import "errors"

var (
	ErrClosed     = errors.New("connection closed")
	ErrBufferFull = errors.New("connection send buffer full")
)

// Conn is a non-owning handle to a live client session. Send must not block.
type Conn interface {
	ID() string
	Send(msg []byte) error
}
