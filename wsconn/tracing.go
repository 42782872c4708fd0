package wsconn

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

/*************************************************************************************************/
/* TRACING RELATED CONSTANTS                                                                     */
/*************************************************************************************************/

// Constants used for tracing purpose.
const (
	// Package name used by library tracer and meter
	pkgName = "wsconn"
	// Package version
	pkgVersion = "0.1.0"

	// Namespace used by spans, events and attributes
	namespace = "wsconn"
	// Sub-namespace used by spans related to the connection background session
	sessionNamespace = namespace + ".session"
	// Sub-namespace used by spans related to user provided callbacks
	callbacksNamespace = namespace + ".callback"

	// Name of span used to trace Connect public method
	spanConnect = namespace + ".connect"
	// Name of span used to trace Close public method
	spanClose = namespace + ".close"
	// Name of span used to trace Send methods
	spanSend = namespace + ".send"
	// Name of span used to trace Ping public method
	spanPing = namespace + ".ping"
	// Name of span used to trace the session goroutine
	spanSessionRun = sessionNamespace + ".run"
	// Name of span used to trace the close performed in background after Close is called
	spanSessionClose = sessionNamespace + ".close"
	// Name of span used to trace OnConnected callback call
	spanOnConnected = callbacksNamespace + ".on_connected"
	// Name of span used to trace OnText callback call
	spanOnText = callbacksNamespace + ".on_text"
	// Name of span used to trace OnData callback call
	spanOnData = callbacksNamespace + ".on_data"
	// Name of span used to trace OnClose callback call
	spanOnClose = callbacksNamespace + ".on_close"
	// Name of span used to trace OnError callback call
	spanOnError = callbacksNamespace + ".on_error"

	// Event used in session span to signal the connection is open
	eventConnectionOpen = namespace + ".connection_open"
	// Event used in session span to signal the connection is closed
	eventConnectionClosed = namespace + ".connection_closed"
	// Event used in spans to signal an operation was skipped because the connection is not open
	eventSkipped = namespace + ".skipped"

	// Attribute used to store the connection ID
	attrConnectionId = namespace + ".connection_id"
	// Attribute used to store the target URL
	attrTarget = namespace + ".target"
	// Attribute used to store the ping interval
	attrPingInterval = namespace + ".ping_interval"
	// Attribute used to store the connection state
	attrState = namespace + ".state"
	// Attribute used to indicate close reason code
	attrCloseCode = namespace + ".close_code"
	// Attribute used to indicate close reason
	attrCloseReason = namespace + ".close_reason"
	// Attribute used to indicate message length
	attrMsgLength = namespace + ".message.length"
	// Attribute used to indicate message type
	attrMsgType = namespace + ".message.type"
	// Attribute used to indicate the failed transport operation
	attrTransportOp = namespace + ".transport.op"
)

// # Description
//
// The function records the input error in the provided span using span.RecordError(err) and set
// the span status with the provided code and description. The function returns the provided error.
//
// # Usage tips
//
// The function is meant to replace code blocks like this one:
//
//	if err != nil {
//			span.RecordError(err)
//			span.SetStatus(code, description)
//			return err
//	}
//
// By:
//
//	if err != nil {
//			return handleError(err, span, code, description)
//	}
func handleError(err error, span trace.Span, code codes.Code, description string) error {
	span.RecordError(err)
	span.SetStatus(code, description)
	return err
}

// # Description
//
// If the error is not nil, the function records the input error in the provided span and set the
// span status with an error code and description. In the other case, the span status is set with
// a Ok code. The function returns the provided error in all cases.
func handlePotentialError(err error, span trace.Span) error {
	if err != nil {
		return handleError(err, span, codes.Error, codes.Error.String())
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// Derive a context with the provided timeout. No timeout is applied when timeout is 0.
func withOptionalTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}
