package wsadapternhooyr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/TradeWithIt/WebSocket/echowsserver"
	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

type NhooyrWebsocketConnectionAdapterTestSuite struct {
	suite.Suite
	// Echo server bound on a random port
	srv *echowsserver.EchoWebsocketServer
	// Echo server URL
	target url.URL
}

// Run NhooyrWebsocketConnectionAdapterTestSuite test suite
func TestNhooyrWebsocketConnectionAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(NhooyrWebsocketConnectionAdapterTestSuite))
}

func (suite *NhooyrWebsocketConnectionAdapterTestSuite) SetupTest() {
	suite.srv = echowsserver.NewEchoWebsocketServer(&http.Server{Addr: "localhost:0"}, zap.NewNop())
	suite.Require().NoError(suite.srv.Start())
	u, err := url.Parse(suite.srv.URL())
	suite.Require().NoError(err)
	suite.target = *u
}

func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TearDownTest() {
	_ = suite.srv.Stop()
}

/*************************************************************************************************/
/* TESTS                                                                                         */
/*************************************************************************************************/

// Test compliance with WebsocketConnectionAdapterInterface
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestInterfaceCompliance() {
	var instance any = NewNhooyrWebsocketConnectionAdapter(nil, 0)
	_, ok := instance.(wsadapters.WebsocketConnectionAdapterInterface)
	require.True(suite.T(), ok)
}

// Test Dial when there is already an active connection
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestDialWhenAlreadyConnected() {
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	resp, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)
	suite.Require().NotNil(resp)
	suite.Require().NotNil(adapter.GetUnderlyingWebsocketConnection())
	resp, err = adapter.Dial(ctx, suite.target)
	suite.Require().Error(err)
	suite.Require().Nil(resp)
	suite.Require().NoError(adapter.Close(ctx, wsadapters.NormalClosure, "bye"))
	suite.Require().Nil(adapter.GetUnderlyingWebsocketConnection())
}

// Test Dial when there is no server
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestDialWithoutPeer() {
	suite.Require().NoError(suite.srv.Stop())
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 0)
	_, err := adapter.Dial(context.Background(), suite.target)
	suite.Require().Error(err)
}

// Test methods fail with an error wrapping net.ErrClosed when there is no connection.
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestNoConnection() {
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 0)
	ctx := context.Background()
	suite.Require().ErrorIs(adapter.Close(ctx, wsadapters.NormalClosure, ""), net.ErrClosed)
	suite.Require().ErrorIs(adapter.Ping(ctx), net.ErrClosed)
	suite.Require().ErrorIs(adapter.Write(ctx, wsadapters.Text, []byte("x")), net.ErrClosed)
	_, _, err := adapter.Read(ctx)
	suite.Require().ErrorIs(err, net.ErrClosed)
}

// Test Read and Write with echoes of both message types and ping while reading.
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestEchoAndPing() {
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 1<<20)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)

	for _, msgType := range []wsadapters.MessageType{wsadapters.Text, wsadapters.Binary} {
		suite.Require().NoError(adapter.Write(ctx, msgType, []byte("hello world")))
		readType, msg, err := adapter.Read(ctx)
		suite.Require().NoError(err)
		suite.Require().Equal(msgType, readType)
		suite.Require().Equal("hello world", string(msg))
	}

	// Ping needs a concurrent reader to process the pong
	readErr := make(chan error, 1)
	go func() {
		_, _, err := adapter.Read(ctx)
		readErr <- err
	}()
	suite.Require().NoError(adapter.Ping(ctx))
	suite.Require().Equal(int64(1), suite.srv.PingCount())

	suite.Require().NoError(adapter.Close(ctx, wsadapters.GoingAway, "going away"))
	err = <-readErr
	closeErr := new(wsadapters.WebsocketCloseError)
	suite.Require().True(errors.As(err, closeErr))
}

// Test a close message from the server is reported as a WebsocketCloseError.
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestServerClose() {
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)
	suite.Require().NoError(adapter.Write(ctx, wsadapters.Text, []byte(echowsserver.CloseCommand)))
	_, _, err = adapter.Read(ctx)
	closeErr := new(wsadapters.WebsocketCloseError)
	suite.Require().True(errors.As(err, closeErr))
	suite.Require().Equal(wsadapters.NormalClosure, closeErr.Code)
	suite.Require().Equal(echowsserver.CloseCommandReason, closeErr.Reason)
	// Connection has been dropped, a new one can be established
	suite.Require().Nil(adapter.GetUnderlyingWebsocketConnection())
	_, err = adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)
	suite.Require().NoError(adapter.Close(ctx, wsadapters.NormalClosure, ""))
}

// Test a server going down is reported as an abnormal closure.
func (suite *NhooyrWebsocketConnectionAdapterTestSuite) TestServerLost() {
	adapter := NewNhooyrWebsocketConnectionAdapter(nil, 0)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.srv.Stop())
	_, _, err = adapter.Read(ctx)
	closeErr := new(wsadapters.WebsocketCloseError)
	suite.Require().True(errors.As(err, closeErr))
	suite.Require().Equal(wsadapters.AbnormalClosure, closeErr.Code)
}
