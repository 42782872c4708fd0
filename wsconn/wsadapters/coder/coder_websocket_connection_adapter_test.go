//go:build !js

package wsadaptercoder

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

type CoderWebsocketConnectionAdapterTestSuite struct {
	suite.Suite
	// Echo server bound on a random port
	srv *echowsserver.EchoWebsocketServer
	// Echo server URL
	target url.URL
}

// Run CoderWebsocketConnectionAdapterTestSuite test suite
func TestCoderWebsocketConnectionAdapterTestSuite(t *testing.T) {
	suite.Run(t, new(CoderWebsocketConnectionAdapterTestSuite))
}

func (suite *CoderWebsocketConnectionAdapterTestSuite) SetupTest() {
	suite.srv = echowsserver.NewEchoWebsocketServer(&http.Server{Addr: "localhost:0"}, zap.NewNop())
	suite.Require().NoError(suite.srv.Start())
	u, err := url.Parse(suite.srv.URL())
	suite.Require().NoError(err)
	suite.target = *u
}

func (suite *CoderWebsocketConnectionAdapterTestSuite) TearDownTest() {
	_ = suite.srv.Stop()
}

/*************************************************************************************************/
/* TESTS                                                                                         */
/*************************************************************************************************/

// Test compliance with WebsocketConnectionAdapterInterface
func (suite *CoderWebsocketConnectionAdapterTestSuite) TestInterfaceCompliance() {
	var instance any = NewCoderWebsocketConnectionAdapter(nil)
	_, ok := instance.(wsadapters.WebsocketConnectionAdapterInterface)
	require.True(suite.T(), ok)
	require.False(suite.T(), EmulatedPing)
}

// Test Dial twice and methods without connection.
func (suite *CoderWebsocketConnectionAdapterTestSuite) TestDialAndNoConnection() {
	adapter := NewCoderWebsocketConnectionAdapter(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	suite.Require().ErrorIs(adapter.Ping(ctx), net.ErrClosed)
	_, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)
	_, err = adapter.Dial(ctx, suite.target)
	suite.Require().Error(err)
	suite.Require().NoError(adapter.Close(ctx, wsadapters.NormalClosure, ""))
	suite.Require().ErrorIs(adapter.Close(ctx, wsadapters.NormalClosure, ""), net.ErrClosed)
	suite.Require().ErrorIs(adapter.Write(ctx, wsadapters.Text, []byte("x")), net.ErrClosed)
}

// Test echo, native ping and server initiated close.
func (suite *CoderWebsocketConnectionAdapterTestSuite) TestEchoPingAndServerClose() {
	adapter := NewCoderWebsocketConnectionAdapter(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err := adapter.Dial(ctx, suite.target)
	suite.Require().NoError(err)

	suite.Require().NoError(adapter.Write(ctx, wsadapters.Binary, []byte{0xCA, 0xFE}))
	msgType, msg, err := adapter.Read(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(wsadapters.Binary, msgType)
	suite.Require().Equal([]byte{0xCA, 0xFE}, msg)

	readErr := make(chan error, 1)
	go func() {
		_, _, err := adapter.Read(ctx)
		readErr <- err
	}()
	suite.Require().NoError(adapter.Ping(ctx))
	suite.Require().Equal(int64(1), suite.srv.PingCount())

	suite.Require().NoError(adapter.Write(ctx, wsadapters.Text, []byte(echowsserver.CloseCommand)))
	err = <-readErr
	closeErr := new(wsadapters.WebsocketCloseError)
	suite.Require().True(errors.As(err, closeErr))
	suite.Require().Equal(wsadapters.NormalClosure, closeErr.Code)
	suite.Require().Nil(adapter.GetUnderlyingWebsocketConnection())
}
