// Package wsadaptercoder contains a WebsocketConnectionAdapterInterface implementation for
// coder/websocket library (https://github.com/coder/websocket).
//
// When compiled for js/wasm, the library wraps the WebSocket object provided by the host
// (browser or JS runtime). The adapter then acts as the host-bridged transport. The host object
// has no ping primitive: Ping writes an empty binary message instead.
package wsadaptercoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"github.com/coder/websocket"
)

// Adapter for coder/websocket library
type CoderWebsocketConnectionAdapter struct {
	// Underlying websocket connection
	conn *websocket.Conn
	// Dial options to use when opening a connection
	opts *websocket.DialOptions
	// Internal mutex
	mu sync.Mutex
}

// # Description
//
// Factory which creates a new CoderWebsocketConnectionAdapter.
//
// # Inputs
//
//   - opts: Optional dial options to use when calling Dial method. Can be nil. Under js, only
//     the subprotocols are used by the host.
func NewCoderWebsocketConnectionAdapter(opts *websocket.DialOptions) *CoderWebsocketConnectionAdapter {
	return &CoderWebsocketConnectionAdapter{opts: opts}
}

// Open a connection to the websocket server. The host performs the handshake under js.
func (adapter *CoderWebsocketConnectionAdapter) Dial(ctx context.Context, target url.URL) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn != nil {
		return nil, fmt.Errorf("a connection has already been established")
	}
	conn, res, err := websocket.Dial(ctx, target.String(), adapter.opts)
	if err != nil {
		return res, err
	}
	adapter.conn = conn
	return res, nil
}

// Send a close message with the provided status code and reason, then drop the connection.
func (adapter *CoderWebsocketConnectionAdapter) Close(ctx context.Context, code wsadapters.StatusCode, reason string) error {
	adapter.mu.Lock()
	conn := adapter.conn
	adapter.conn = nil
	adapter.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("close failed: %w", wsadapters.ErrNoConnection)
	}
	done := make(chan error, 1)
	go func() {
		done <- conn.Close(websocket.StatusCode(code), reason)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("failed to close websocket: %w", net.ErrClosed)
		}
		return err
	}
}

// # Description
//
// Emit a ping. Native builds send a ping control frame and wait for the pong, which requires a
// concurrent Read. Under js an empty binary message is written.
func (adapter *CoderWebsocketConnectionAdapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("ping failed: %w", wsadapters.ErrNoConnection)
	}
	return ping(ctx, conn)
}

// # Description
//
// Read a single data message. Close messages and connection losses are converted to
// WebsocketCloseError and the connection is dropped.
func (adapter *CoderWebsocketConnectionAdapter) Read(ctx context.Context) (wsadapters.MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return -1, nil, err
	}
	conn := adapter.current()
	if conn == nil {
		return -1, nil, fmt.Errorf("read failed: %w", wsadapters.ErrNoConnection)
	}
	msgType, msg, err := conn.Read(ctx)
	if err == nil {
		if msgType == websocket.MessageText {
			return wsadapters.Text, msg, nil
		}
		return wsadapters.Binary, msg, nil
	}
	closeErr := websocket.CloseError{}
	switch {
	case errors.As(err, &closeErr):
		adapter.drop(conn)
		return -1, nil, wsadapters.WebsocketCloseError{
			Code:   wsadapters.StatusCode(closeErr.Code),
			Reason: closeErr.Reason,
			Err:    err,
		}
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		adapter.drop(conn)
		return -1, nil, wsadapters.WebsocketCloseError{
			Code:   wsadapters.AbnormalClosure,
			Reason: "websocket connection abnormal closure",
			Err:    err,
		}
	default:
		return -1, nil, err
	}
}

// Write a single data message.
func (adapter *CoderWebsocketConnectionAdapter) Write(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("write failed: %w", wsadapters.ErrNoConnection)
	}
	coderMsgType := websocket.MessageBinary
	if msgType == wsadapters.Text {
		coderMsgType = websocket.MessageText
	}
	return conn.Write(ctx, coderMsgType, msg)
}

// Return the underlying *websocket.Conn or nil.
func (adapter *CoderWebsocketConnectionAdapter) GetUnderlyingWebsocketConnection() any {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == nil {
		return nil
	}
	return adapter.conn
}

func (adapter *CoderWebsocketConnectionAdapter) current() *websocket.Conn {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	return adapter.conn
}

// Drop the provided connection if it is still the current one.
func (adapter *CoderWebsocketConnectionAdapter) drop(conn *websocket.Conn) {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == conn {
		adapter.conn = nil
	}
}
