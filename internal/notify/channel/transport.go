package channel

import (
	"context"
)

// Transport opens one live connection for a session.
type Transport interface {
	Dial(ctx context.Context, s Session) (Conn, error)
}

// Conn yields raw event envelopes until it fails or is closed.
// Read must return promptly once ctx is done.
type Conn interface {
	Read(ctx context.Context) ([]byte, error)
	Close() error
}
