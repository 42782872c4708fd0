package wsadapters

import (
	"errors"
	"fmt"
	"net"
)

/*************************************************************************************************/
/* WEBSOCKET CLOSE ERROR                                                                         */
/*************************************************************************************************/

// Error used by adapters to signal the connection has been closed.
type WebsocketCloseError struct {
	// Status code used or received when the connection was closed. 1006 is used when the
	// connection was dropped without a close message.
	//
	// https://www.rfc-editor.org/rfc/rfc6455.html#section-7.1.5
	Code StatusCode
	// Optional close reason.
	//
	// https://www.rfc-editor.org/rfc/rfc6455.html#section-7.1.6
	Reason string
	// Error returned by the underlying websocket library, if any.
	Err error
}

func (err WebsocketCloseError) Error() string {
	return fmt.Sprintf("connection has been closed: %d - %s", err.Code, err.Reason)
}

func (err WebsocketCloseError) Unwrap() error {
	return err.Err
}

// Error returned when a nil adapter is provided.
var ErrNilAdapter = errors.New("websocket connection adapter cannot be nil")

// Error returned by adapters when an operation requires a connection and none is up. It wraps
// net.ErrClosed.
var ErrNoConnection = fmt.Errorf("no connection is up: %w", net.ErrClosed)

// # Description
//
// Return true if the provided error signals the connection is gone: a WebsocketCloseError or an
// error which wraps net.ErrClosed.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	_, ok := AsCloseError(err)
	return ok || errors.Is(err, net.ErrClosed)
}

// # Description
//
// Find the first WebsocketCloseError in the error chain. Both value and pointer flavors are
// matched.
//
// # Returns
//
// The close error and true if one has been found.
func AsCloseError(err error) (WebsocketCloseError, bool) {
	closeErr := WebsocketCloseError{}
	if errors.As(err, &closeErr) {
		return closeErr, true
	}
	ptr := new(WebsocketCloseError)
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return WebsocketCloseError{}, false
}
