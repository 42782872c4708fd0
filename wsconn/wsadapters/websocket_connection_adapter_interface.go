// Package wsadapters defines the transport capability that a websocket connection facade expects
// from the underlying websocket implementation (native socket stacks or host-bridged objects).
package wsadapters

import (
	"context"
	"net/http"
	"net/url"
)

// Interface which describes the transport capability the connection controller is written
// against. One implementation is selected at construction time and owned by a single connection.
//
// Mapping with the transport events used by the connection controller:
//   - open: Dial returns without error.
//   - text/binary frame: Read returns a message of type Text or Binary.
//   - closed: Read returns a WebsocketCloseError.
//   - error: Read returns any other error. The connection stays open.
//
// Adapters are assumed to be thread-safe: Ping, Write and Close are called while another
// goroutine is blocked in Read.
type WebsocketConnectionAdapterInterface interface {
	// # Description
	//
	// Dial opens a connection to the websocket server and performs the websocket handshake.
	//
	// # Expected behaviour
	//
	//	- Dial MUST block until the handshake completes, fails or ctx is done.
	//	- Dial MUST keep the connection internally. It is used later by the other methods.
	//	- Dial MUST return an error if a connection is already established and Close has not
	//	  been called yet.
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing/timeout/cancellation purpose.
	//	- target: Target server URL.
	//
	// # Returns
	//
	// The server response to the handshake (can be nil) or an error if any.
	Dial(ctx context.Context, target url.URL) (*http.Response, error)
	// # Description
	//
	// Send a close message with the provided status code and an optional reason and drop the
	// connection.
	//
	// # Expected behaviour
	//
	//	- Close MUST block until the close message has been sent or an error occurs.
	//	- Close MUST return an error which wraps net.ErrClosed when there is no connection.
	//	- A goroutine blocked in Read MUST eventually return a WebsocketCloseError.
	//
	// # Inputs
	//
	//	- ctx: Context used for tracing/timeout purpose.
	//	- code: Status code to use in the close message.
	//	- reason: Optional close reason. Can be empty.
	//
	// # Returns
	//
	// nil in case of success, an error otherwise.
	Close(ctx context.Context, code StatusCode, reason string) error
	// # Description
	//
	// Emit a protocol level ping. Transports which expose a native ping primitive send an empty
	// ping control frame and wait for the pong. Transports without one send an empty data frame.
	//
	// # Expected behaviour
	//
	//	- Ping MUST return when the pong is received (native ping) or when the frame has been
	//	  written (emulated ping), when ctx is done or when the connection fails.
	//	- Native pings rely on a concurrent goroutine calling Read to process the pong.
	//
	// # Returns
	//
	// nil in case of success, the context error on timeout/cancellation or any other error.
	Ping(ctx context.Context) error
	// # Description
	//
	// Read a single message from the websocket server. Read blocks until a message is received
	// or until the connection closes.
	//
	// # Expected behaviour
	//
	//	- Read MUST handle defragmentation, decompression and control frames seamlessly.
	//	- Read MUST return a WebsocketCloseError when a close message is read or when the
	//	  connection is dropped without one (1006 AbnormalClosure). Read MUST then drop the
	//	  connection so a new one can be established.
	//
	// # Returns
	//
	//	- MessageType: received message type (Binary | Text)
	//	- []byte: message content
	//	- error: connection closure or failure
	Read(ctx context.Context) (MessageType, []byte, error)
	// # Description
	//
	// Write a single data message. Write blocks until the message is sent or until an error
	// occurs (context timeout, cancellation, connection closed, ...).
	//
	// # Expected behaviour
	//
	//	- Write MUST handle fragmentation, compression and TLS seamlessly.
	//	- Write MUST NOT be used to send control frames.
	Write(ctx context.Context, msgType MessageType, msg []byte) error
	// # Description
	//
	// Return the underlying websocket connection if any. Returned value has to be type asserted.
	GetUnderlyingWebsocketConnection() any
}
