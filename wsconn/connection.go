// Package wsconn provides a websocket connection facade which exposes one connection and event
// API whatever transport is used underneath.
//
// A Connection drives a single transport adapter through its lifecycle (idle, connecting, open,
// closing, closed), dispatches received frames to single-slot handlers and emits keepalive pings
// while the connection is open.
package wsconn

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/TradeWithIt/WebSocket/wsconn/keepalive"
	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"github.com/TradeWithIt/WebSocket/wsconn/wscodec"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

/*************************************************************************************************/
/* HANDLERS                                                                                      */
/*************************************************************************************************/

// Handler called once the connection is open.
type ConnectedHandler func(conn *Connection)

// Handler called for each text message received.
type TextHandler func(conn *Connection, text string)

// Handler called for each binary message received.
type DataHandler func(conn *Connection, data []byte)

// Handler called once the connection is closed.
type CloseHandler func(conn *Connection)

// Handler called for each non-fatal transport error (diagnostics).
type ErrorHandler func(conn *Connection, err error)

// Close code and reason observed when the connection closed.
type CloseMessageDetails struct {
	// Close status code
	CloseReason wsadapters.StatusCode
	// Close reason
	CloseMessage string
}

/*************************************************************************************************/
/* CONNECTION                                                                                    */
/*************************************************************************************************/

// Websocket connection facade.
//
// All methods are safe for concurrent use and can be called from handlers, except Wait. Handlers
// for open, frames and close are called from the connection background goroutine, in the order
// the transport delivers the events. Diagnostics are delivered from a separate goroutine. Handlers
// of a connection never run concurrently with each other.
type Connection struct {
	// Connection ID used in logs, spans and metrics
	id string
	// Transport adapter exclusively owned by the connection
	adapter wsadapters.WebsocketConnectionAdapterInterface
	// Configuration options
	opts *ConnectionOptions
	// Logger
	logger *zap.Logger
	// Tracer used to instrument the connection
	tracer trace.Tracer
	// Instruments used to record metrics
	metrics *connectionMetrics

	// Serializes handler calls
	callbackMu sync.Mutex

	// Internal mutex which guards all the fields below
	mu sync.Mutex
	// Current state
	state State
	// Target of the last Connect call
	target *url.URL
	// Keepalive interval. 0 disables keepalive.
	pingInterval time.Duration
	// Keepalive timer. Only set while open with a positive ping interval.
	keepalive *keepalive.Timer
	// Handler slots
	onConnected ConnectedHandler
	onText      TextHandler
	onData      DataHandler
	onClose     CloseHandler
	onError     ErrorHandler
	// Current session, nil before the first Connect
	session *session
	// Close details, set when closed
	closeDetails *CloseMessageDetails

	// Ensure OnConnected and OnClose are called at most once
	connectedOnce sync.Once
	closeOnce     sync.Once
}

// # Description
//
// Factory - Return a new, idle connection which will use the provided transport adapter.
//
// # Inputs
//
//   - adapter: Transport adapter. It is decorated for tracing purpose unless already decorated.
//   - opts: Configuration options. If nil, default options are used.
//   - tracerProvider: OpenTelemetry tracer provider to use. If nil, global TracerProvider is used.
//
// # Return
//
// The new connection or an error if the adapter is nil or if options are invalid.
func NewConnection(
	adapter wsadapters.WebsocketConnectionAdapterInterface,
	opts *ConnectionOptions,
	tracerProvider trace.TracerProvider) (*Connection, error) {
	if adapter == nil {
		return nil, wsadapters.ErrNilAdapter
	}
	if opts == nil {
		opts = NewConnectionOptions()
	}
	if err := Validate(opts); err != nil {
		return nil, err
	}
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	if _, ok := adapter.(*wsadapters.WebsocketConnectionAdapterInstrumentationDecorator); !ok {
		decorated, err := wsadapters.NewWebsocketConnectionAdapterInstrumentationDecorator(adapter, tracerProvider)
		if err != nil {
			return nil, err
		}
		adapter = decorated
	}
	meterProvider := opts.MeterProvider
	if meterProvider == nil {
		meterProvider = otel.GetMeterProvider()
	}
	metrics, err := newConnectionMetrics(meterProvider)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Connection{
		id:      id,
		adapter: adapter,
		opts:    opts,
		logger:  logger.With(zap.String("connection_id", id)),
		tracer:  tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
		metrics: metrics,
		state:   StateIdle,
	}, nil
}

// # Description
//
// Start connecting to the target and return immediately. The outcome is delivered through the
// handlers: onConnected once the connection is open, OnError with a TransportError if the dial
// fails (the connection then goes back to idle and can be connected again).
//
// # Inputs
//
//   - target: ws, wss, http or https URL of the websocket server.
//   - pingInterval: Interval between keepalive pings. 0 disables keepalive.
//   - onConnected: Handler called once the connection is open. Can be nil.
//
// # Return
//
//   - InvalidTargetError if the target cannot be parsed into a connectable address.
//   - ErrInvalidPingInterval if pingInterval is negative.
//   - ConnectionStateError if the connection is not idle.
func (c *Connection) Connect(target string, pingInterval time.Duration, onConnected ConnectedHandler) error {
	ctx, span := c.tracer.Start(context.Background(), spanConnect,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrConnectionId, c.id),
			attribute.String(attrTarget, target),
			attribute.String(attrPingInterval, pingInterval.String()),
		))
	defer span.End()
	u, err := parseTarget(target)
	if err != nil {
		return handleError(err, span, codes.Error, codes.Error.String())
	}
	if pingInterval < 0 {
		return handleError(ErrInvalidPingInterval, span, codes.Error, codes.Error.String())
	}
	c.mu.Lock()
	if c.state != StateIdle {
		err := ConnectionStateError{Expected: StateIdle, Actual: c.state}
		c.mu.Unlock()
		return handleError(err, span, codes.Error, codes.Error.String())
	}
	c.target = u
	c.pingInterval = pingInterval
	c.onConnected = onConnected
	s := newSession()
	c.session = s
	c.setState(ctx, StateConnecting)
	c.mu.Unlock()
	go s.runDiagnostics(c)
	go c.run(s, trace.LinkFromContext(ctx), *u)
	span.SetStatus(codes.Ok, codes.Ok.String())
	return nil
}

// Replace the handler called for each text message received.
func (c *Connection) OnText(handler TextHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onText = handler
}

// Replace the handler called for each binary message received.
func (c *Connection) OnData(handler DataHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onData = handler
}

// Replace the handler called once the connection is closed.
func (c *Connection) OnClose(handler CloseHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

// Replace the handler called for each non-fatal transport error. It is never called once the
// connection is closing or closed.
func (c *Connection) OnError(handler ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

// Send a text message. No-op unless the connection is open. Failures are reported to OnError.
func (c *Connection) SendText(text string) {
	c.send(wsadapters.Text, []byte(text))
}

// Send a binary message. No-op unless the connection is open. Failures are reported to OnError.
func (c *Connection) SendBinary(data []byte) {
	c.send(wsadapters.Binary, data)
}

// # Description
//
// Encode the value with the configured codec and send it as a binary message.
//
// # Return
//
// EncodingError if the value cannot be encoded: nothing is sent. Transport failures are reported
// to OnError like SendBinary.
func (c *Connection) SendValue(value any) error {
	data, err := c.codec().Marshal(value)
	if err != nil {
		return EncodingError{Err: err}
	}
	c.SendBinary(data)
	return nil
}

// Encode the value with the connection codec and send it as a binary message. See SendValue.
func Send[T any](c *Connection, value T) error {
	return c.SendValue(value)
}

// Emit a protocol ping. No-op unless the connection is open. Failures are reported to OnError.
func (c *Connection) Ping() {
	s, ok := c.beginOp()
	if !ok {
		return
	}
	defer s.ops.Done()
	ctx, span := c.tracer.Start(s.opsCtx, spanPing,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrConnectionId, c.id)))
	defer span.End()
	if ctx.Err() != nil {
		// Close has begun
		span.AddEvent(eventSkipped)
		return
	}
	pingCtx, cancel := withOptionalTimeout(ctx, msToDuration(c.opts.PingTimeoutMs))
	defer cancel()
	c.metrics.pingSent(ctx)
	if err := handlePotentialError(c.adapter.Ping(pingCtx), span); err != nil {
		c.reportError(ctx, s, TransportError{Op: "ping", Err: err})
	}
}

// # Description
//
// Close the connection. Idempotent and callable from any state and from handlers.
//
//   - Idle, closing or closed: no-op.
//   - Connecting: the dial is cancelled. The connection then goes closed and OnClose is called.
//   - Open: the keepalive timer is stopped and released, in-flight sends and pings are cancelled
//     and awaited, a going away (1001) close message is sent in background and the connection goes
//     closed. OnClose is then called.
//
// Once Close returns, no ping nor data message reaches the transport. Close does not wait for the
// close handshake. Use Wait to block until the connection is closed.
func (c *Connection) Close() {
	_, span := c.tracer.Start(context.Background(), spanClose,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(attrConnectionId, c.id)))
	defer span.End()
	c.mu.Lock()
	from := c.state
	span.SetAttributes(attribute.String(attrState, from.String()))
	switch from {
	case StateConnecting:
		s := c.session
		c.setState(s.ctx, StateClosing)
		c.mu.Unlock()
		s.cancel()
	case StateOpen:
		s := c.session
		timer := c.keepalive
		c.keepalive = nil
		c.setState(s.ctx, StateClosing)
		c.mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		s.drainOps()
		go c.closeSession(s, trace.LinkFromContext(trace.ContextWithSpan(context.Background(), span)))
	default:
		c.mu.Unlock()
		span.AddEvent(eventSkipped)
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// # Description
//
// Block until the current session has ended (connection closed, or back to idle after a failed
// dial) or until ctx is done. Return immediately if Connect has never been called.
//
// Wait must not be called from a handler.
func (c *Connection) Wait(ctx context.Context) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Return true if and only if the connection is open.
func (c *Connection) IsConnected() bool {
	return c.State() == StateOpen
}

// Return the current state of the connection.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Return the connection ID.
func (c *Connection) ID() string {
	return c.id
}

// Return the close code and reason observed when the connection closed, nil before.
func (c *Connection) CloseDetails() *CloseMessageDetails {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeDetails == nil {
		return nil
	}
	details := *c.closeDetails
	return &details
}

/*************************************************************************************************/
/* UTILS                                                                                         */
/*************************************************************************************************/

// Send a data message if the connection is open.
func (c *Connection) send(msgType wsadapters.MessageType, msg []byte) {
	s, ok := c.beginOp()
	if !ok {
		return
	}
	defer s.ops.Done()
	ctx, span := c.tracer.Start(s.opsCtx, spanSend,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrConnectionId, c.id),
			attribute.String(attrMsgType, msgType.String()),
			attribute.Int(attrMsgLength, len(msg)),
		))
	defer span.End()
	if ctx.Err() != nil {
		// Close has begun
		span.AddEvent(eventSkipped)
		return
	}
	writeCtx, cancel := withOptionalTimeout(ctx, msToDuration(c.opts.WriteTimeoutMs))
	defer cancel()
	if err := handlePotentialError(c.adapter.Write(writeCtx, msgType, msg), span); err != nil {
		c.reportError(ctx, s, TransportError{Op: "write", Err: err})
		return
	}
	c.metrics.frameSent(ctx, msgType)
}

// Register an in-flight transport operation on the current session. Return false if the
// connection is not open. The caller must call s.ops.Done when the operation returns.
func (c *Connection) beginOp() (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil, false
	}
	c.session.ops.Add(1)
	return c.session, true
}

// Return the codec used to encode values.
func (c *Connection) codec() wscodec.Codec {
	if c.opts.Codec != nil {
		return c.opts.Codec
	}
	return wscodec.Default()
}

// Change state, log and record the transition. Must be called with mu held.
func (c *Connection) setState(ctx context.Context, to State) {
	from := c.state
	c.state = to
	c.logger.Debug("state transition", zap.Stringer("from", from), zap.Stringer("to", to))
	c.metrics.transition(ctx, to)
}

// # Description
//
// Parse and check the target. http and https schemes are converted to ws and wss.
func parseTarget(target string) (*url.URL, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, InvalidTargetError{Target: target, Err: err}
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "http":
		u.Scheme = "ws"
	case "wss", "https":
		u.Scheme = "wss"
	default:
		return nil, InvalidTargetError{Target: target, Err: ErrUnsupportedScheme}
	}
	if u.Hostname() == "" {
		return nil, InvalidTargetError{Target: target, Err: ErrMissingHost}
	}
	return u, nil
}
