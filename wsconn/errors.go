package wsconn

import (
	"errors"
	"fmt"
)

/*************************************************************************************************/
/* INVALID TARGET ERROR                                                                          */
/*************************************************************************************************/

// Error returned by Connect when the target cannot be parsed into a connectable address.
type InvalidTargetError struct {
	// Provided target
	Target string
	// Embedded error
	Err error
}

func (err InvalidTargetError) Error() string {
	return fmt.Sprintf("invalid websocket target %q: %v", err.Target, err.Err)
}

func (err InvalidTargetError) Unwrap() error {
	return err.Err
}

var (
	// The target scheme is not one of ws, wss, http or https.
	ErrUnsupportedScheme = errors.New("unsupported scheme")
	// The target has no host.
	ErrMissingHost = errors.New("missing host")
	// Connect was called with a negative ping interval.
	ErrInvalidPingInterval = errors.New("ping interval must be positive or zero")
)

/*************************************************************************************************/
/* CONNECTION STATE ERROR                                                                        */
/*************************************************************************************************/

// Error returned when an operation is called while the connection is not in the expected state.
type ConnectionStateError struct {
	// Expected state
	Expected State
	// Actual state
	Actual State
}

func (err ConnectionStateError) Error() string {
	return fmt.Sprintf("connection is %s, expected %s", err.Actual, err.Expected)
}

/*************************************************************************************************/
/* ENCODING ERROR                                                                                */
/*************************************************************************************************/

// Error returned by SendValue and Send when the value cannot be encoded. Nothing is sent.
type EncodingError struct {
	// Embedded error
	Err error
}

func (err EncodingError) Error() string {
	return fmt.Sprintf("failed to encode value: %v", err.Err)
}

func (err EncodingError) Unwrap() error {
	return err.Err
}

/*************************************************************************************************/
/* TRANSPORT ERROR                                                                               */
/*************************************************************************************************/

// Non-fatal transport error reported to the diagnostic hook. The connection state is unchanged.
type TransportError struct {
	// Failed transport operation: dial, read, write or ping
	Op string
	// Embedded error
	Err error
}

func (err TransportError) Error() string {
	return fmt.Sprintf("websocket %s failed: %v", err.Op, err.Err)
}

func (err TransportError) Unwrap() error {
	return err.Err
}
