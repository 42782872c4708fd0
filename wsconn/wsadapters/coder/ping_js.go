//go:build js

package wsadaptercoder

import (
	"context"

	"github.com/coder/websocket"
)

// The host WebSocket object has no ping primitive: an empty binary message is written.
func ping(ctx context.Context, conn *websocket.Conn) error {
	return conn.Write(ctx, websocket.MessageBinary, []byte{})
}

// EmulatedPing reports whether Ping writes an empty binary message instead of a ping frame.
const EmulatedPing = true
