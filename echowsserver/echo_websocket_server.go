// Package echowsserver contains a simple echo websocket server used to exercise the websocket
// connection facade and its adapters.
package echowsserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Text message which makes the server close the connection with a 1000 status code.
	CloseCommand = "close"
	// Reason used in the close message sent when CloseCommand is received.
	CloseCommandReason = "bye"
	// Default address used when no http.Server is provided.
	DefaultAddr = "localhost:8080"
)

// Echo websocket server. Every data message is echoed back with the same type.
type EchoWebsocketServer struct {
	// Underlying http.Server
	httpServer *http.Server
	// Websocket upgrader
	upgrader websocket.Upgrader
	// Listener bound on Start
	listener net.Listener
	// Context bound to websocket server lifetime
	serverCtx context.Context
	// Cancel function used to stop server
	cancelServerCtx context.CancelFunc
	// Internal mutex used to coordinate start/stop
	startMu sync.Mutex
	// Number of ping messages received from clients
	pings atomic.Int64
	// Number of client sessions accepted
	sessions atomic.Int64
	// Logger
	logger *zap.Logger
}

// # Description
//
// Factory which creates a new, non-started EchoWebsocketServer.
//
// # Inputs
//
//   - httpServer: The underlying HTTP Server to use. Its handler is overridden. If nil, a
//     server listening on DefaultAddr is used. Use port 0 to bind a random port.
//   - logger: Logger to use. If nil, a no-op logger is used.
func NewEchoWebsocketServer(httpServer *http.Server, logger *zap.Logger) *EchoWebsocketServer {
	if httpServer == nil {
		httpServer = &http.Server{Addr: DefaultAddr}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	wssrv := &EchoWebsocketServer{
		httpServer: httpServer,
		upgrader:   websocket.Upgrader{},
		logger:     logger,
	}
	httpServer.Handler = wssrv
	return wssrv
}

// # Description
//
// Bind the server address and start accepting websocket connections in the background.
//
// # Returns
//
// An error if the server is already started or if the address cannot be bound.
func (srv *EchoWebsocketServer) Start() error {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.listener != nil {
		return fmt.Errorf("server already started")
	}
	listener, err := net.Listen("tcp", srv.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", srv.httpServer.Addr, err)
	}
	srv.listener = listener
	srv.serverCtx, srv.cancelServerCtx = context.WithCancel(context.Background())
	srv.logger.Info("echo server started", zap.String("addr", listener.Addr().String()))
	go func() {
		err := srv.httpServer.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			srv.logger.Error("echo server stopped unexpectedly", zap.Error(err))
		}
	}()
	return nil
}

// # Description
//
// Stop the server and drop all client connections.
func (srv *EchoWebsocketServer) Stop() error {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.listener == nil {
		return fmt.Errorf("server not started")
	}
	srv.cancelServerCtx()
	srv.listener = nil
	srv.logger.Info("echo server stopped")
	return srv.httpServer.Close()
}

// Return the address the server listens on, or the configured address when not started.
func (srv *EchoWebsocketServer) Addr() string {
	srv.startMu.Lock()
	defer srv.startMu.Unlock()
	if srv.listener != nil {
		return srv.listener.Addr().String()
	}
	return srv.httpServer.Addr
}

// Return the ws:// URL clients can use to reach the server.
func (srv *EchoWebsocketServer) URL() string {
	return "ws://" + srv.Addr()
}

// Return the number of ping messages received since the server was created.
func (srv *EchoWebsocketServer) PingCount() int64 {
	return srv.pings.Load()
}

// Return the number of client sessions accepted since the server was created.
func (srv *EchoWebsocketServer) SessionCount() int64 {
	return srv.sessions.Load()
}

// Server handler which accepts incoming websocket connections.
func (srv *EchoWebsocketServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		srv.logger.Warn("failed to accept client connection", zap.Error(err))
		return
	}
	srv.sessions.Add(1)
	logger := srv.logger.With(zap.String("session_id", uuid.NewString()))
	logger.Debug("new client connection", zap.String("remote", r.RemoteAddr))
	conn.SetPingHandler(func(appData string) error {
		srv.pings.Add(1)
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			return err
		}
		return nil
	})
	sessionCtx, cancel := context.WithCancel(srv.serverCtx)
	go srv.closeWatchdog(sessionCtx, conn)
	go func() {
		defer cancel()
		srv.runClientSession(logger, conn)
	}()
}

// Manage the client session and echo messages until the connection is closed.
func (srv *EchoWebsocketServer) runClientSession(logger *zap.Logger, conn *websocket.Conn) {
	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			ce := new(websocket.CloseError)
			if errors.As(err, &ce) {
				logger.Debug("connection closed by client", zap.Int("code", ce.Code), zap.String("reason", ce.Text))
			} else {
				logger.Debug("connection lost", zap.Error(err))
			}
			return
		}
		logger.Debug("message received", zap.Int("type", mt), zap.Int("size", len(message)))
		if mt == websocket.TextMessage && string(message) == CloseCommand {
			err = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, CloseCommandReason),
				time.Now().Add(time.Second))
			if err != nil {
				logger.Warn("failed to send close message", zap.Error(err))
				return
			}
			// Keep reading until the client acknowledges the close message
			continue
		}
		err = conn.WriteMessage(mt, message)
		if err != nil {
			logger.Debug("write error", zap.Error(err))
			return
		}
	}
}

// Wait for the session or server context to be done and drop the connection.
func (srv *EchoWebsocketServer) closeWatchdog(ctx context.Context, conn *websocket.Conn) {
	<-ctx.Done()
	conn.Close()
}
