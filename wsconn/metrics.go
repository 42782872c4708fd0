package wsconn

import (
	"context"

	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Names of the instruments used to record connection metrics.
const (
	metricFramesReceived   = namespace + ".frames.received"
	metricFramesSent       = namespace + ".frames.sent"
	metricPingsSent        = namespace + ".pings.sent"
	metricTransportErrors  = namespace + ".transport.errors"
	metricStateTransitions = namespace + ".state.transitions"
)

// Instruments used by a connection.
type connectionMetrics struct {
	framesReceived   metric.Int64Counter
	framesSent       metric.Int64Counter
	pingsSent        metric.Int64Counter
	transportErrors  metric.Int64Counter
	stateTransitions metric.Int64Counter
}

// Create the connection instruments from the provided meter provider.
func newConnectionMetrics(provider metric.MeterProvider) (*connectionMetrics, error) {
	meter := provider.Meter(pkgName, metric.WithInstrumentationVersion(pkgVersion))
	m := &connectionMetrics{}
	var err error
	if m.framesReceived, err = meter.Int64Counter(metricFramesReceived,
		metric.WithDescription("Number of data frames received"), metric.WithUnit("{frame}")); err != nil {
		return nil, err
	}
	if m.framesSent, err = meter.Int64Counter(metricFramesSent,
		metric.WithDescription("Number of data frames sent"), metric.WithUnit("{frame}")); err != nil {
		return nil, err
	}
	if m.pingsSent, err = meter.Int64Counter(metricPingsSent,
		metric.WithDescription("Number of pings emitted"), metric.WithUnit("{ping}")); err != nil {
		return nil, err
	}
	if m.transportErrors, err = meter.Int64Counter(metricTransportErrors,
		metric.WithDescription("Number of non-fatal transport errors"), metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.stateTransitions, err = meter.Int64Counter(metricStateTransitions,
		metric.WithDescription("Number of connection state transitions"), metric.WithUnit("{transition}")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *connectionMetrics) frameReceived(ctx context.Context, msgType wsadapters.MessageType) {
	m.framesReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("message.type", msgType.String())))
}

func (m *connectionMetrics) frameSent(ctx context.Context, msgType wsadapters.MessageType) {
	m.framesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("message.type", msgType.String())))
}

func (m *connectionMetrics) pingSent(ctx context.Context) {
	m.pingsSent.Add(ctx, 1)
}

func (m *connectionMetrics) transportError(ctx context.Context, op string) {
	m.transportErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *connectionMetrics) transition(ctx context.Context, to State) {
	m.stateTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("state", to.String())))
}
