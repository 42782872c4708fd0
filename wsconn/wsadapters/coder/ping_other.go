//go:build !js

package wsadaptercoder

import (
	"context"

	"github.com/coder/websocket"
)

// Native builds use the ping control frame.
func ping(ctx context.Context, conn *websocket.Conn) error {
	return conn.Ping(ctx)
}

// EmulatedPing reports whether Ping writes an empty binary message instead of a ping frame.
const EmulatedPing = false
