// Package wsadapternhooyr contains a WebsocketConnectionAdapterInterface implementation for
// nhooyr/websocket library (https://github.com/nhooyr/websocket).
package wsadapternhooyr

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
	"nhooyr.io/websocket"
)

// Adapter for nhooyr/websocket library
type NhooyrWebsocketConnectionAdapter struct {
	// Underlying websocket connection
	conn *websocket.Conn
	// Dial options to use when opening a connection
	opts *websocket.DialOptions
	// Maximum size of a message read from the peer. Library default is used when <= 0.
	readLimit int64
	// Internal mutex
	mu sync.Mutex
}

// # Description
//
// Factory which creates a new NhooyrWebsocketConnectionAdapter.
//
// # Inputs
//
//   - opts: Optional dial options to use when calling Dial method. Can be nil.
//   - readLimit: Maximum size of a message read from the peer. Use 0 for library default.
func NewNhooyrWebsocketConnectionAdapter(opts *websocket.DialOptions, readLimit int64) *NhooyrWebsocketConnectionAdapter {
	return &NhooyrWebsocketConnectionAdapter{
		conn:      nil,
		opts:      opts,
		readLimit: readLimit,
		mu:        sync.Mutex{},
	}
}

// Open a connection to the websocket server and perform the websocket handshake.
func (adapter *NhooyrWebsocketConnectionAdapter) Dial(ctx context.Context, target url.URL) (*http.Response, error) {
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
	if adapter.readLimit > 0 {
		conn.SetReadLimit(adapter.readLimit)
	}
	adapter.conn = conn
	return res, nil
}

// # Description
//
// Send a close message with the provided status code and reason, then drop the connection.
//
// The library close handshake waits for the peer close message. The call returns the context
// error if ctx is done before the handshake completes. The handshake then keeps going in the
// background.
func (adapter *NhooyrWebsocketConnectionAdapter) Close(ctx context.Context, code wsadapters.StatusCode, reason string) error {
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
		if err != nil && websocket.CloseStatus(err) == -1 && isAlreadyClosed(err) {
			return fmt.Errorf("failed to close websocket: %w", net.ErrClosed)
		}
		return err
	}
}

// # Description
//
// Send a Ping message and block until the Pong response is received, ctx is done or the
// connection closes. A concurrent goroutine must call Read so the pong gets processed.
func (adapter *NhooyrWebsocketConnectionAdapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("ping failed: %w", wsadapters.ErrNoConnection)
	}
	return conn.Ping(ctx)
}

// # Description
//
// Read a single data message. Close messages and connection losses are converted to
// WebsocketCloseError and the connection is dropped.
func (adapter *NhooyrWebsocketConnectionAdapter) Read(ctx context.Context) (wsadapters.MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return -1, nil, err
	}
	conn := adapter.current()
	if conn == nil {
		return -1, nil, fmt.Errorf("read failed: %w", wsadapters.ErrNoConnection)
	}
	msgType, msg, err := conn.Read(ctx)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status == -1 && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
			return -1, nil, err
		}
		adapter.drop(conn)
		if status != -1 {
			closeErr := websocket.CloseError{}
			errors.As(err, &closeErr)
			return -1, nil, wsadapters.WebsocketCloseError{
				Code:   wsadapters.StatusCode(status),
				Reason: closeErr.Reason,
				Err:    err,
			}
		}
		return -1, nil, wsadapters.WebsocketCloseError{
			Code:   wsadapters.AbnormalClosure,
			Reason: "websocket connection abnormal closure",
			Err:    err,
		}
	}
	return convertFromNhooyrMsgTypes(msgType), msg, nil
}

// Write a single data message.
func (adapter *NhooyrWebsocketConnectionAdapter) Write(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("write failed: %w", wsadapters.ErrNoConnection)
	}
	return conn.Write(ctx, convertToNhooyrMsgTypes(msgType), msg)
}

// Return the underlying *websocket.Conn or nil.
func (adapter *NhooyrWebsocketConnectionAdapter) GetUnderlyingWebsocketConnection() any {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == nil {
		return nil
	}
	return adapter.conn
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

// Get the current connection. The mutex is not held during I/O so other goroutines can operate
// on the connection concurrently.
func (adapter *NhooyrWebsocketConnectionAdapter) current() *websocket.Conn {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	return adapter.conn
}

// Drop the provided connection if it is still the current one.
func (adapter *NhooyrWebsocketConnectionAdapter) drop(conn *websocket.Conn) {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == conn {
		adapter.conn = nil
	}
}

// The library does not export a sentinel for a close handshake already performed.
func isAlreadyClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || err.Error() == "failed to close WebSocket: already wrote close"
}

func convertToNhooyrMsgTypes(msgType wsadapters.MessageType) websocket.MessageType {
	if msgType == wsadapters.Text {
		return websocket.MessageText
	}
	return websocket.MessageBinary
}

func convertFromNhooyrMsgTypes(msgType websocket.MessageType) wsadapters.MessageType {
	if msgType == websocket.MessageText {
		return wsadapters.Text
	}
	return wsadapters.Binary
}
