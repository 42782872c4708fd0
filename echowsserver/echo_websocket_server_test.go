package echowsserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

// Test suite for EchoWebsocketServer
type EchoWebsocketServerTestSuite struct {
	suite.Suite
	// Server under test, bound on a random port
	srv *EchoWebsocketServer
}

// Run EchoWebsocketServerTestSuite test suite
func TestEchoWebsocketServerTestSuite(t *testing.T) {
	suite.Run(t, new(EchoWebsocketServerTestSuite))
}

func (suite *EchoWebsocketServerTestSuite) SetupTest() {
	suite.srv = NewEchoWebsocketServer(&http.Server{Addr: "localhost:0"}, zap.NewNop())
	suite.Require().NoError(suite.srv.Start())
}

func (suite *EchoWebsocketServerTestSuite) TearDownTest() {
	// Stop may fail when a test already stopped the server
	_ = suite.srv.Stop()
}

/*************************************************************************************************/
/* TESTS                                                                                         */
/*************************************************************************************************/

// Test a client can connect, ping and lose its connection when the server stops.
func (suite *EchoWebsocketServerTestSuite) TestServerStartAndStop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, res, err := websocket.Dial(ctx, suite.srv.URL(), nil)
	suite.Require().NoError(err)
	suite.Require().NotNil(res)
	// Process incoming control frames in the background
	conn.CloseRead(ctx)
	suite.Require().NoError(conn.Ping(ctx))
	suite.Require().Equal(int64(1), suite.srv.PingCount())
	suite.Require().Equal(int64(1), suite.srv.SessionCount())
	suite.Require().NoError(suite.srv.Stop())
	suite.Require().Eventually(func() bool {
		pingCtx, pingCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer pingCancel()
		return conn.Ping(pingCtx) != nil
	}, 5*time.Second, 100*time.Millisecond)
}

// Test Start fails when the server is already started and Stop fails when not started.
func (suite *EchoWebsocketServerTestSuite) TestStartStopErrors() {
	suite.Require().Error(suite.srv.Start())
	suite.Require().NoError(suite.srv.Stop())
	suite.Require().Error(suite.srv.Stop())
}

// Test text and binary messages are echoed with the same type.
func (suite *EchoWebsocketServerTestSuite) TestEcho() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, suite.srv.URL(), nil)
	suite.Require().NoError(err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	suite.Require().NoError(conn.Write(ctx, websocket.MessageText, []byte("hello")))
	msgType, msg, err := conn.Read(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(websocket.MessageText, msgType)
	suite.Require().Equal("hello", string(msg))

	suite.Require().NoError(conn.Write(ctx, websocket.MessageBinary, []byte{0x01, 0x02}))
	msgType, msg, err = conn.Read(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(websocket.MessageBinary, msgType)
	suite.Require().Equal([]byte{0x01, 0x02}, msg)
}

// Test the close command makes the server close the connection with 1000 and a reason.
func (suite *EchoWebsocketServerTestSuite) TestCloseCommand() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, suite.srv.URL(), nil)
	suite.Require().NoError(err)

	suite.Require().NoError(conn.Write(ctx, websocket.MessageText, []byte(CloseCommand)))
	_, _, err = conn.Read(ctx)
	suite.Require().Error(err)
	require.Equal(suite.T(), websocket.StatusNormalClosure, websocket.CloseStatus(err))
	closeErr := websocket.CloseError{}
	suite.Require().ErrorAs(err, &closeErr)
	suite.Require().Equal(CloseCommandReason, closeErr.Reason)
}
