package wsadapters

import (
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Constants used for tracing purpose
const (
	// Instrumentation library package name
	pkgName = "wsconn.wsadapters"
	// Instrumentation library package version
	pkgVersion = "0.1.0"
	// Namespace used by the spans, attributes and events
	namespace = "websocket"
	// Name of the span used to instrument Dial method call
	spanDial = namespace + ".dial"
	// Name of the span used to instrument Close method call
	spanClose = namespace + ".close"
	// Name of span used to instrument Ping method call
	spanPing = namespace + ".ping"
	// Name of span used to instrument Write method call
	spanWrite = namespace + ".write"
	// Name of span used to instrument Read method call
	spanRead = namespace + ".read"

	// Name of event used when a message has been received
	eventReceived = namespace + ".message.received"
	// Name of event used when Read reports the connection is closed
	eventClosed = namespace + ".connection.closed"

	// Name of the attribute used to provide a url
	attrUrl = "url.full"
	// Name of the attribute used to provide the handshake response status code
	attrHttpStatus = "http.response.status_code"
	// Name of the attribute used to provide a close connection code
	attrCloseCode = namespace + ".close.code"
	// Name of the attribute used to provide a close connection reason
	attrCloseReason = namespace + ".close.reason"
	// Name of the attribute used to provide the message byte size
	attrMessageByteSize = namespace + ".message.size"
	// Name of the attribute used to provide the message type
	attrMessageType = namespace + ".message.type"
)

// # Description
//
// Record the error in the span and set an error status when err is not nil. Set an Ok status
// otherwise. The provided error is returned in all cases.
func recordPotentialError(err error, span trace.Span) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, codes.Error.String())
		return err
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}
