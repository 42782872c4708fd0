// Package wsadaptergorilla contains a WebsocketConnectionAdapterInterface implementation for
// gorilla/websocket library (https://github.com/gorilla/websocket).
package wsadaptergorilla

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"github.com/gorilla/websocket"
)

const (
	// Deadline used for control frames when ctx has no deadline.
	defaultControlTimeout = 10 * time.Second
	// Delay granted to the peer to answer a close message before the socket is dropped.
	defaultCloseGracePeriod = 5 * time.Second
	// Maximum number of pending Ping calls.
	maxPendingPings = 16
)

// Adapter for gorilla/websocket library
type GorillaWebsocketConnectionAdapter struct {
	// Underlying websocket connection
	conn *websocket.Conn
	// Dialer to use when opening a connection
	dialer *websocket.Dialer
	// Headers to use when opening a connection
	requestHeader http.Header
	// Delay granted to the peer to answer a close message
	closeGracePeriod time.Duration
	// Internal mutex
	mu sync.Mutex
	// Gorilla connections support one concurrent writer for data messages
	writeMu sync.Mutex
	// Pending Ping calls, in emission order
	pingRequests chan *pingRequest
}

// Pending Ping call waiting for a pong or an error.
type pingRequest struct {
	// Buffered (1) so a notification is never lost while Ping is not yet receiving
	pong chan error
	// Done when the caller gave up
	ctx context.Context
}

// # Description
//
// Factory which creates a new GorillaWebsocketConnectionAdapter.
//
// # Inputs
//
//   - dialer: Optional dialer. Gorilla default dialer is used when nil.
//   - requestHeader: Headers used during Dial to specify the origin (Origin), subprotocols
//     (Sec-WebSocket-Protocol) and cookies (Cookie). Can be nil.
func NewGorillaWebsocketConnectionAdapter(dialer *websocket.Dialer, requestHeader http.Header) *GorillaWebsocketConnectionAdapter {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	return &GorillaWebsocketConnectionAdapter{
		conn:             nil,
		dialer:           dialer,
		requestHeader:    requestHeader,
		closeGracePeriod: defaultCloseGracePeriod,
		pingRequests:     make(chan *pingRequest, maxPendingPings),
	}
}

// Set the delay granted to the peer to answer a close message before the socket is dropped.
func (adapter *GorillaWebsocketConnectionAdapter) WithCloseGracePeriod(period time.Duration) *GorillaWebsocketConnectionAdapter {
	adapter.closeGracePeriod = period
	return adapter
}

// Open a connection to the websocket server and perform the websocket handshake.
func (adapter *GorillaWebsocketConnectionAdapter) Dial(ctx context.Context, target url.URL) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn != nil {
		return nil, fmt.Errorf("a connection has already been established")
	}
	conn, res, err := adapter.dialer.DialContext(ctx, target.String(), adapter.requestHeader)
	if err != nil {
		return res, err
	}
	conn.SetPongHandler(func(string) error {
		propagateToFirstActiveListener(adapter.pingRequests, nil)
		return nil
	})
	adapter.conn = conn
	return res, nil
}

// # Description
//
// Send a close message with the provided status code and reason and drop the connection.
//
// The socket is kept open during the close grace period so a concurrent Read can receive the
// peer close message. It is dropped once the period has elapsed.
func (adapter *GorillaWebsocketConnectionAdapter) Close(ctx context.Context, code wsadapters.StatusCode, reason string) error {
	adapter.mu.Lock()
	conn := adapter.conn
	adapter.conn = nil
	adapter.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("close failed: %w", wsadapters.ErrNoConnection)
	}
	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(int(code), reason), controlDeadline(ctx))
	propagateToAllActiveListener(adapter.pingRequests, wsadapters.WebsocketCloseError{
		Code:   code,
		Reason: reason,
		Err:    fmt.Errorf("client closed the connection"),
	})
	time.AfterFunc(adapter.closeGracePeriod, func() { conn.Close() })
	if errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("failed to close websocket: %w", net.ErrClosed)
	}
	return err
}

// # Description
//
// Send a Ping message and block until a Pong response is received, ctx is done or the
// connection closes. A concurrent goroutine must call Read so the pong gets processed.
func (adapter *GorillaWebsocketConnectionAdapter) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("ping failed: %w", wsadapters.ErrNoConnection)
	}
	req := &pingRequest{pong: make(chan error, 1), ctx: ctx}
	select {
	case adapter.pingRequests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	err := conn.WriteControl(websocket.PingMessage, nil, controlDeadline(ctx))
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-req.pong:
		return err
	}
}

// # Description
//
// Read a single data message. Control frames are processed by the connection handlers while
// reading: pings are answered, pongs unlock pending Ping calls and close messages are answered
// and reported as a WebsocketCloseError.
func (adapter *GorillaWebsocketConnectionAdapter) Read(ctx context.Context) (wsadapters.MessageType, []byte, error) {
	if err := ctx.Err(); err != nil {
		return -1, nil, err
	}
	conn := adapter.current()
	if conn == nil {
		return -1, nil, fmt.Errorf("read failed: %w", wsadapters.ErrNoConnection)
	}
	msgType, msg, err := conn.ReadMessage()
	if err != nil {
		var closeErr wsadapters.WebsocketCloseError
		ce := new(websocket.CloseError)
		switch {
		case errors.As(err, &ce):
			closeErr = wsadapters.WebsocketCloseError{
				Code:   wsadapters.StatusCode(ce.Code),
				Reason: ce.Text,
				Err:    err,
			}
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
			closeErr = wsadapters.WebsocketCloseError{
				Code:   wsadapters.AbnormalClosure,
				Reason: "websocket connection abnormal closure",
				Err:    err,
			}
		default:
			// Gorilla read errors are permanent: the connection is unusable from now on
			conn.Close()
			adapter.drop(conn)
			propagateToAllActiveListener(adapter.pingRequests, err)
			return -1, nil, err
		}
		conn.Close()
		adapter.drop(conn)
		propagateToAllActiveListener(adapter.pingRequests, closeErr)
		return -1, nil, closeErr
	}
	if msgType == websocket.TextMessage {
		return wsadapters.Text, msg, nil
	}
	return wsadapters.Binary, msg, nil
}

// Write a single data message. The write deadline is taken from ctx if any.
func (adapter *GorillaWebsocketConnectionAdapter) Write(ctx context.Context, msgType wsadapters.MessageType, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	conn := adapter.current()
	if conn == nil {
		return fmt.Errorf("write failed: %w", wsadapters.ErrNoConnection)
	}
	adapter.writeMu.Lock()
	defer adapter.writeMu.Unlock()
	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	gorillaMsgType := websocket.BinaryMessage
	if msgType == wsadapters.Text {
		gorillaMsgType = websocket.TextMessage
	}
	return conn.WriteMessage(gorillaMsgType, msg)
}

// Return the underlying *websocket.Conn or nil.
func (adapter *GorillaWebsocketConnectionAdapter) GetUnderlyingWebsocketConnection() any {
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

func (adapter *GorillaWebsocketConnectionAdapter) current() *websocket.Conn {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	return adapter.conn
}

// Drop the provided connection if it is still the current one.
func (adapter *GorillaWebsocketConnectionAdapter) drop(conn *websocket.Conn) {
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if adapter.conn == conn {
		adapter.conn = nil
	}
}

// Deadline for control frames: ctx deadline if any, default control timeout otherwise.
func controlDeadline(ctx context.Context) time.Time {
	if deadline, ok := ctx.Deadline(); ok {
		return deadline
	}
	return time.Now().Add(defaultControlTimeout)
}

// Propagate a notification to the first pending ping request whose caller is still waiting.
//
// The function returns false if the notification could not be propagated: either because no
// request was pending or because all pending requests were abandoned.
func propagateToFirstActiveListener(listeners chan *pingRequest, notification error) bool {
	for {
		select {
		case listener := <-listeners:
			if listener.ctx.Err() != nil {
				// Listener gave up (timeout) - try the next one
				continue
			}
			listener.pong <- notification
			return true
		default:
			return false
		}
	}
}

// Propagate a notification to all pending ping requests.
func propagateToAllActiveListener(listeners chan *pingRequest, notification error) {
	for {
		select {
		case listener := <-listeners:
			listener.pong <- notification
		default:
			return
		}
	}
}
