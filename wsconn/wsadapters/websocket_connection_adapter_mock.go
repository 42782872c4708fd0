package wsadapters

import (
	"context"
	"net/http"
	"net/url"

	"github.com/stretchr/testify/mock"
)

// Mock for WebsocketConnectionAdapterInterface, based on testify.
//
// Return values can be provided either typed or untyped (nil response, int message type).
type WebsocketConnectionAdapterInterfaceMock struct {
	mock.Mock
}

// Factory
func NewWebsocketConnectionAdapterInterfaceMock() *WebsocketConnectionAdapterInterfaceMock {
	return &WebsocketConnectionAdapterInterfaceMock{
		Mock: mock.Mock{},
	}
}

func (m *WebsocketConnectionAdapterInterfaceMock) Dial(ctx context.Context, target url.URL) (*http.Response, error) {
	args := m.Called(ctx, target)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

func (m *WebsocketConnectionAdapterInterfaceMock) Close(ctx context.Context, code StatusCode, reason string) error {
	args := m.Called(ctx, code, reason)
	return args.Error(0)
}

func (m *WebsocketConnectionAdapterInterfaceMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *WebsocketConnectionAdapterInterfaceMock) Read(ctx context.Context) (MessageType, []byte, error) {
	args := m.Called(ctx)
	var msgType MessageType
	switch v := args.Get(0).(type) {
	case MessageType:
		msgType = v
	case int:
		msgType = MessageType(v)
	}
	msg, _ := args.Get(1).([]byte)
	return msgType, msg, args.Error(2)
}

func (m *WebsocketConnectionAdapterInterfaceMock) Write(ctx context.Context, msgType MessageType, msg []byte) error {
	args := m.Called(ctx, msgType, msg)
	return args.Error(0)
}

func (m *WebsocketConnectionAdapterInterfaceMock) GetUnderlyingWebsocketConnection() any {
	args := m.Called()
	return args.Get(0)
}
