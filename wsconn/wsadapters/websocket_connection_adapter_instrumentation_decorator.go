package wsadapters

import (
	"context"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Decorator which instruments any implementation of WebsocketConnectionAdapterInterface with
// one client span per adapter call.
type WebsocketConnectionAdapterInstrumentationDecorator struct {
	// Decorated adapter
	decorated WebsocketConnectionAdapterInterface
	// Tracer used for instrumentation
	tracer trace.Tracer
}

// # Description
//
// Wrap the provided adapter in an instrumentation decorator. The global tracer provider is used
// when tracerProvider is nil.
//
// # Returns
//
// The decorator or an error if the decorated adapter is nil.
func NewWebsocketConnectionAdapterInstrumentationDecorator(
	decorated WebsocketConnectionAdapterInterface,
	tracerProvider trace.TracerProvider,
) (*WebsocketConnectionAdapterInstrumentationDecorator, error) {
	if decorated == nil {
		return nil, ErrNilAdapter
	}
	if tracerProvider == nil {
		tracerProvider = otel.GetTracerProvider()
	}
	return &WebsocketConnectionAdapterInstrumentationDecorator{
		decorated: decorated,
		tracer:    tracerProvider.Tracer(pkgName, trace.WithInstrumentationVersion(pkgVersion)),
	}, nil
}

// Return the decorated adapter.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Decorated() WebsocketConnectionAdapterInterface {
	return decorator.decorated
}

func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Dial(ctx context.Context, target url.URL) (*http.Response, error) {
	ctx, span := decorator.tracer.Start(ctx, spanDial,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String(attrUrl, target.String())))
	defer span.End()
	resp, err := decorator.decorated.Dial(ctx, target)
	if resp != nil {
		span.SetAttributes(attribute.Int(attrHttpStatus, resp.StatusCode))
	}
	return resp, recordPotentialError(err, span)
}

func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Close(ctx context.Context, code StatusCode, reason string) error {
	ctx, span := decorator.tracer.Start(ctx, spanClose,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int(attrCloseCode, int(code)),
			attribute.String(attrCloseReason, reason),
		))
	defer span.End()
	return recordPotentialError(decorator.decorated.Close(ctx, code, reason), span)
}

func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Ping(ctx context.Context) error {
	ctx, span := decorator.tracer.Start(ctx, spanPing, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	return recordPotentialError(decorator.decorated.Ping(ctx), span)
}

// Closure reported by Read is not recorded as a span error: an event with the close code and
// reason is added instead.
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Read(ctx context.Context) (MessageType, []byte, error) {
	ctx, span := decorator.tracer.Start(ctx, spanRead, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	msgType, msg, err := decorator.decorated.Read(ctx)
	if err != nil {
		if closeErr, ok := AsCloseError(err); ok {
			span.AddEvent(eventClosed, trace.WithAttributes(
				attribute.Int(attrCloseCode, int(closeErr.Code)),
				attribute.String(attrCloseReason, closeErr.Reason),
			))
			span.SetStatus(codes.Ok, codes.Ok.String())
			return msgType, msg, err
		}
		return msgType, msg, recordPotentialError(err, span)
	}
	span.AddEvent(eventReceived, trace.WithAttributes(
		attribute.Int(attrMessageByteSize, len(msg)),
		attribute.String(attrMessageType, msgType.String()),
	))
	return msgType, msg, recordPotentialError(nil, span)
}

func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	ctx, span := decorator.tracer.Start(ctx, spanWrite,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int(attrMessageByteSize, len(msg)),
			attribute.String(attrMessageType, msgType.String()),
		))
	defer span.End()
	return recordPotentialError(decorator.decorated.Write(ctx, msgType, msg), span)
}

// Simple proxy for the non-instrumented getter
func (decorator *WebsocketConnectionAdapterInstrumentationDecorator) GetUnderlyingWebsocketConnection() any {
	return decorator.decorated.GetUnderlyingWebsocketConnection()
}
