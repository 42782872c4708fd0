package wsadapters

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

// Test suite for the instrumentation decorator
type InstrumentationDecoratorTestSuite struct {
	suite.Suite
	// Span recorder
	recorder *tracetest.SpanRecorder
	// Mocked adapter
	mock *WebsocketConnectionAdapterInterfaceMock
	// Decorator under test
	decorator *WebsocketConnectionAdapterInstrumentationDecorator
}

// Run InstrumentationDecoratorTestSuite
func TestInstrumentationDecoratorTestSuite(t *testing.T) {
	suite.Run(t, new(InstrumentationDecoratorTestSuite))
}

// Build a fresh decorator and span recorder before each test
func (suite *InstrumentationDecoratorTestSuite) SetupTest() {
	suite.recorder = tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(suite.recorder))
	suite.mock = NewWebsocketConnectionAdapterInterfaceMock()
	decorator, err := NewWebsocketConnectionAdapterInstrumentationDecorator(suite.mock, tp)
	suite.Require().NoError(err)
	suite.decorator = decorator
}

/*************************************************************************************************/
/* TESTS                                                                                         */
/*************************************************************************************************/

// Test the factory rejects a nil adapter and falls back on the global tracer provider.
func (suite *InstrumentationDecoratorTestSuite) TestFactory() {
	_, err := NewWebsocketConnectionAdapterInstrumentationDecorator(nil, nil)
	suite.Require().ErrorIs(err, ErrNilAdapter)
	decorator, err := NewWebsocketConnectionAdapterInstrumentationDecorator(suite.mock, nil)
	suite.Require().NoError(err)
	suite.Require().Same(suite.mock, decorator.Decorated())
}

// Test Dial success and failure are traced.
func (suite *InstrumentationDecoratorTestSuite) TestDial() {
	target := url.URL{Scheme: "ws", Host: "localhost:8080"}
	suite.mock.On("Dial", mock.Anything, target).Return(&http.Response{StatusCode: http.StatusSwitchingProtocols}, nil).Once()
	suite.mock.On("Dial", mock.Anything, target).Return(nil, errors.New("refused")).Once()

	resp, err := suite.decorator.Dial(context.Background(), target)
	suite.Require().NoError(err)
	suite.Require().Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	_, err = suite.decorator.Dial(context.Background(), target)
	suite.Require().Error(err)

	spans := suite.recorder.Ended()
	suite.Require().Len(spans, 2)
	suite.Require().Equal(spanDial, spans[0].Name())
	suite.Require().Equal(codes.Ok, spans[0].Status().Code)
	suite.Require().Equal(codes.Error, spans[1].Status().Code)
	suite.Require().Len(spans[1].Events(), 1)
}

// Test a closure reported by Read is traced as an event, not as an error.
func (suite *InstrumentationDecoratorTestSuite) TestReadClosure() {
	suite.mock.On("Read", mock.Anything).Return(Text, []byte("hi"), nil).Once()
	suite.mock.On("Read", mock.Anything).Return(0, nil, WebsocketCloseError{Code: NormalClosure, Reason: "bye"}).Once()

	_, _, err := suite.decorator.Read(context.Background())
	suite.Require().NoError(err)
	_, _, err = suite.decorator.Read(context.Background())
	suite.Require().Error(err)

	spans := suite.recorder.Ended()
	suite.Require().Len(spans, 2)
	suite.Require().Equal(eventReceived, spans[0].Events()[0].Name)
	suite.Require().Equal(eventClosed, spans[1].Events()[0].Name)
	suite.Require().Equal(codes.Ok, spans[1].Status().Code)
}

// Test Close, Ping, Write and getter are proxied.
func (suite *InstrumentationDecoratorTestSuite) TestProxies() {
	suite.mock.On("Close", mock.Anything, GoingAway, "going away").Return(nil).Once()
	suite.mock.On("Ping", mock.Anything).Return(context.DeadlineExceeded).Once()
	suite.mock.On("Write", mock.Anything, Binary, []byte{1, 2}).Return(nil).Once()
	suite.mock.On("GetUnderlyingWebsocketConnection").Return("conn").Once()

	suite.Require().NoError(suite.decorator.Close(context.Background(), GoingAway, "going away"))
	suite.Require().ErrorIs(suite.decorator.Ping(context.Background()), context.DeadlineExceeded)
	suite.Require().NoError(suite.decorator.Write(context.Background(), Binary, []byte{1, 2}))
	suite.Require().Equal("conn", suite.decorator.GetUnderlyingWebsocketConnection())

	names := []string{}
	for _, span := range suite.recorder.Ended() {
		names = append(names, span.Name())
	}
	require.Equal(suite.T(), []string{spanClose, spanPing, spanWrite}, names)
	suite.mock.AssertExpectations(suite.T())
}
