package wsconn

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/TradeWithIt/WebSocket/wsconn/keepalive"
	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Size of the queue of transport errors waiting to be delivered to OnError.
const diagnosticsQueueSize = 64

// Background session started by Connect.
type session struct {
	// Session context, cancelled when the session ends or when Close is called while connecting
	ctx    context.Context
	cancel context.CancelFunc
	// Parent of in-flight sends and pings, cancelled when the connection starts closing
	opsCtx    context.Context
	cancelOps context.CancelFunc
	// In-flight sends and pings. Registered with Connection.mu held, only while open.
	ops sync.WaitGroup
	// Closed when the session goroutine exits
	done chan struct{}
	// Transport errors waiting to be delivered to OnError
	errs chan TransportError
	// Closed when all transport errors have been delivered
	errsDone chan struct{}
	// Guarded by Connection.mu
	errsClosed bool
}

func newSession() *session {
	ctx, cancel := context.WithCancel(context.Background())
	opsCtx, cancelOps := context.WithCancel(ctx)
	return &session{
		ctx:       ctx,
		cancel:    cancel,
		opsCtx:    opsCtx,
		cancelOps: cancelOps,
		done:      make(chan struct{}),
		errs:      make(chan TransportError, diagnosticsQueueSize),
		errsDone:  make(chan struct{}),
	}
}

/*************************************************************************************************/
/* SESSION GOROUTINE                                                                             */
/*************************************************************************************************/

// # Description
//
// Session goroutine: open the transport, move to open, call OnConnected, start the keepalive and
// dispatch received frames until the connection closes.
func (c *Connection) run(s *session, link trace.Link, target url.URL) {
	defer close(s.done)
	ctx, span := c.tracer.Start(s.ctx, spanSessionRun,
		trace.WithNewRoot(),
		trace.WithLinks(link),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrConnectionId, c.id),
			attribute.String(attrTarget, target.String()),
		))
	defer span.End()
	logger := c.logger.With(zap.String("target", target.String()))

	dialCtx, cancel := withOptionalTimeout(ctx, msToDuration(c.opts.DialTimeoutMs))
	_, err := c.adapter.Dial(dialCtx, target)
	cancel()
	if err != nil {
		c.mu.Lock()
		if c.state != StateConnecting {
			// Close was called while dialing
			c.mu.Unlock()
			logger.Debug("dial interrupted by close", zap.Error(err))
			c.finish(ctx, s, nil)
			span.SetStatus(codes.Ok, codes.Ok.String())
			return
		}
		c.setState(ctx, StateIdle)
		c.mu.Unlock()
		c.reportError(ctx, s, TransportError{Op: "dial", Err: err})
		s.cancel()
		c.closeDiagnostics(s)
		handleError(err, span, codes.Error, codes.Error.String())
		return
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		c.mu.Unlock()
		logger.Debug("connection opened after close has been called")
		closeCtx, cancel := withOptionalTimeout(context.WithoutCancel(ctx), msToDuration(c.opts.CloseTimeoutMs))
		if err := c.adapter.Close(closeCtx, wsadapters.GoingAway, c.opts.CloseReason); err != nil {
			logger.Debug("failed to close transport", zap.Error(err))
		}
		cancel()
		c.finish(ctx, s, nil)
		span.SetStatus(codes.Ok, codes.Ok.String())
		return
	}
	c.setState(ctx, StateOpen)
	onConnected := c.onConnected
	c.mu.Unlock()
	span.AddEvent(eventConnectionOpen)
	logger.Info("connection open")

	c.connectedOnce.Do(func() {
		if onConnected != nil {
			c.callback(ctx, spanOnConnected, func() { onConnected(c) })
		}
	})
	c.startKeepalive(s)
	details := c.readLoop(ctx, s)
	span.AddEvent(eventConnectionClosed, trace.WithAttributes(
		attribute.Int(attrCloseCode, int(details.CloseReason)),
		attribute.String(attrCloseReason, details.CloseMessage),
	))
	c.finish(ctx, s, details)
	span.SetStatus(codes.Ok, codes.Ok.String())
}

// # Description
//
// Read frames and dispatch them until the transport closes. Return the observed close details.
func (c *Connection) readLoop(ctx context.Context, s *session) *CloseMessageDetails {
	failures := 0
	for {
		msgType, msg, err := c.adapter.Read(s.ctx)
		if err == nil {
			failures = 0
			c.dispatch(ctx, msgType, msg)
			continue
		}
		if closeErr, ok := wsadapters.AsCloseError(err); ok {
			return &CloseMessageDetails{CloseReason: closeErr.Code, CloseMessage: closeErr.Reason}
		}
		if s.ctx.Err() != nil {
			return &CloseMessageDetails{CloseReason: wsadapters.GoingAway, CloseMessage: c.opts.CloseReason}
		}
		if wsadapters.IsClosed(err) || errors.Is(err, io.EOF) {
			return &CloseMessageDetails{CloseReason: wsadapters.AbnormalClosure, CloseMessage: err.Error()}
		}
		failures++
		if failures > c.opts.MaxConsecutiveReadErrors {
			c.logger.Warn("too many consecutive read errors, dropping the connection", zap.Error(err))
			closeCtx, cancel := withOptionalTimeout(context.WithoutCancel(ctx), msToDuration(c.opts.CloseTimeoutMs))
			_ = c.adapter.Close(closeCtx, wsadapters.GoingAway, c.opts.CloseReason)
			cancel()
			return &CloseMessageDetails{
				CloseReason:  wsadapters.AbnormalClosure,
				CloseMessage: "too many consecutive read errors",
			}
		}
		c.reportError(ctx, s, TransportError{Op: "read", Err: err})
	}
}

// Dispatch a received frame to the matching handler. Frames are dropped unless the connection is
// open.
func (c *Connection) dispatch(ctx context.Context, msgType wsadapters.MessageType, msg []byte) {
	c.metrics.frameReceived(ctx, msgType)
	c.mu.Lock()
	if c.state != StateOpen {
		c.mu.Unlock()
		return
	}
	onText, onData := c.onText, c.onData
	c.mu.Unlock()
	switch msgType {
	case wsadapters.Text:
		if onText != nil {
			c.callback(ctx, spanOnText, func() { onText(c, string(msg)) })
		}
	default:
		if onData != nil {
			c.callback(ctx, spanOnData, func() { onData(c, msg) })
		}
	}
}

// # Description
//
// Move to closed, stop and release the keepalive timer, flush pending diagnostics and call
// OnClose once.
//
// When the close has been requested by Close, close details are the going away status and the
// configured close reason whatever the transport reported.
func (c *Connection) finish(ctx context.Context, s *session, details *CloseMessageDetails) {
	c.mu.Lock()
	if c.state == StateClosing || details == nil {
		details = &CloseMessageDetails{CloseReason: wsadapters.GoingAway, CloseMessage: c.opts.CloseReason}
	}
	timer := c.keepalive
	c.keepalive = nil
	c.closeDetails = details
	c.setState(ctx, StateClosed)
	onClose := c.onClose
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	s.drainOps()
	s.cancel()
	c.closeDiagnostics(s)
	c.logger.Info("connection closed",
		zap.Int("close_code", int(details.CloseReason)),
		zap.String("close_reason", details.CloseMessage))
	c.closeOnce.Do(func() {
		if onClose != nil {
			c.callback(ctx, spanOnClose, func() { onClose(c) })
		}
	})
}

// Cancel in-flight sends and pings and wait until they return. The connection must have left the
// open state so no new operation can register.
func (s *session) drainOps() {
	s.cancelOps()
	s.ops.Wait()
}

// Send a close message in background after Close has been called on an open connection.
func (c *Connection) closeSession(s *session, link trace.Link) {
	defer s.cancel()
	ctx, span := c.tracer.Start(context.WithoutCancel(s.ctx), spanSessionClose,
		trace.WithLinks(link),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String(attrConnectionId, c.id),
			attribute.Int(attrCloseCode, int(wsadapters.GoingAway)),
			attribute.String(attrCloseReason, c.opts.CloseReason),
		))
	defer span.End()
	closeCtx, cancel := withOptionalTimeout(ctx, msToDuration(c.opts.CloseTimeoutMs))
	defer cancel()
	err := c.adapter.Close(closeCtx, wsadapters.GoingAway, c.opts.CloseReason)
	if err != nil && !wsadapters.IsClosed(err) {
		c.logger.Debug("failed to send close message", zap.Error(err))
		handleError(err, span, codes.Error, codes.Error.String())
		return
	}
	span.SetStatus(codes.Ok, codes.Ok.String())
}

/*************************************************************************************************/
/* KEEPALIVE                                                                                     */
/*************************************************************************************************/

// Create the keepalive timer and emit the first ping if the connection is open and keepalive is
// enabled.
func (c *Connection) startKeepalive(s *session) {
	c.mu.Lock()
	if c.state != StateOpen || c.session != s || c.pingInterval <= 0 {
		c.mu.Unlock()
		return
	}
	timer := keepalive.NewSuspended(c.pingInterval, c.Ping)
	c.keepalive = timer
	c.mu.Unlock()
	// Native pings wait for a pong which is only processed by the read loop. The timer is armed
	// once the first ping completes. Resume is a no-op if Close already stopped it.
	go func() {
		c.Ping()
		timer.Resume()
	}()
}

/*************************************************************************************************/
/* DIAGNOSTICS                                                                                   */
/*************************************************************************************************/

// # Description
//
// Log a non-fatal transport error and queue it for delivery to OnError. Errors are dropped once
// the connection is closing or closed, or when the queue is full.
func (c *Connection) reportError(ctx context.Context, s *session, err TransportError) {
	c.metrics.transportError(ctx, err.Op)
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.errsClosed || c.state == StateClosing || c.state == StateClosed {
		c.logger.Debug("transport error ignored while closing",
			zap.String("op", err.Op), zap.Stringer("state", c.state), zap.Error(err))
		return
	}
	c.logger.Warn("transport error", zap.String("op", err.Op), zap.Stringer("state", c.state), zap.Error(err))
	select {
	case s.errs <- err:
	default:
		c.logger.Warn("diagnostics queue is full, transport error dropped", zap.Error(err))
	}
}

// Deliver queued transport errors to OnError until the queue is closed.
func (s *session) runDiagnostics(c *Connection) {
	defer close(s.errsDone)
	for err := range s.errs {
		c.mu.Lock()
		onError := c.onError
		c.mu.Unlock()
		if onError != nil {
			c.callback(s.ctx, spanOnError, func() { onError(c, err) },
				attribute.String(attrTransportOp, err.Op))
		}
	}
}

// Close the diagnostics queue of the session and wait until queued errors are delivered.
func (c *Connection) closeDiagnostics(s *session) {
	c.mu.Lock()
	if !s.errsClosed {
		s.errsClosed = true
		close(s.errs)
	}
	c.mu.Unlock()
	<-s.errsDone
}

// Call a user provided handler in a dedicated span. Handlers of a connection never overlap.
func (c *Connection) callback(ctx context.Context, name string, handler func(), attrs ...attribute.KeyValue) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	_, span := c.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(append(attrs, attribute.String(attrConnectionId, c.id))...))
	defer span.End()
	handler()
}
