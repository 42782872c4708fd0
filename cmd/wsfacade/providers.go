package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/TradeWithIt/WebSocket/echowsserver"
	"github.com/TradeWithIt/WebSocket/internal/cliconfig"
	"github.com/TradeWithIt/WebSocket/internal/logging"
	"github.com/TradeWithIt/WebSocket/internal/tracing"
	"github.com/TradeWithIt/WebSocket/wsconn"
	"github.com/TradeWithIt/WebSocket/wsconn/wsadapters"
	wsadaptercoder "github.com/TradeWithIt/WebSocket/wsconn/wsadapters/coder"
	wsadaptergorilla "github.com/TradeWithIt/WebSocket/wsconn/wsadapters/gorilla"
	wsadapternhooyr "github.com/TradeWithIt/WebSocket/wsconn/wsadapters/nhooyr"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build the application container. Logger and tracer provider are always provided.
func newApp(cfg *cliconfig.Config, opts ...fx.Option) *fx.App {
	return fx.New(append([]fx.Option{
		fx.Supply(cfg),
		fx.Provide(provideLogger, provideTracerProvider),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			fxLogger := &fxevent.ZapLogger{Logger: logger}
			fxLogger.UseLogLevel(zapcore.DebugLevel)
			return fxLogger
		}),
	}, opts...)...)
}

// Provide the logger and flush it when the application stops
func provideLogger(lc fx.Lifecycle, cfg *cliconfig.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync fails on terminals, nothing can be done about it
			_ = logger.Sync()
			return nil
		},
	})
	return logger, nil
}

// Provide the tracer provider and flush pending spans when the application stops
func provideTracerProvider(lc fx.Lifecycle, cfg *cliconfig.Config) (trace.TracerProvider, error) {
	tp, shutdown, err := tracing.NewTracerProvider(context.Background(), tracing.Config{
		Exporter:       cfg.TraceExporter,
		Endpoint:       cfg.OTLPEndpoint,
		Insecure:       cfg.OTLPInsecure,
		ServiceName:    "wsfacade",
		ServiceVersion: Version,
		Writer:         os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: shutdown})
	return tp, nil
}

// Provide the transport adapter selected in configuration
func provideAdapter(cfg *cliconfig.Config) (wsadapters.WebsocketConnectionAdapterInterface, error) {
	switch cfg.Transport {
	case "nhooyr":
		return wsadapternhooyr.NewNhooyrWebsocketConnectionAdapter(nil, 0), nil
	case "gorilla":
		return wsadaptergorilla.NewGorillaWebsocketConnectionAdapter(nil, nil), nil
	case "coder":
		return wsadaptercoder.NewCoderWebsocketConnectionAdapter(nil), nil
	default:
		return nil, fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}

// Provide the connection
func provideConnection(
	adapter wsadapters.WebsocketConnectionAdapterInterface,
	logger *zap.Logger,
	tracerProvider trace.TracerProvider) (*wsconn.Connection, error) {
	return wsconn.NewConnection(adapter, wsconn.NewConnectionOptions().WithLogger(logger), tracerProvider)
}

// Provide the echo server and register start/stop hooks to start/stop the server
func provideEchoServer(lc fx.Lifecycle, cfg *cliconfig.Config, logger *zap.Logger) *echowsserver.EchoWebsocketServer {
	srv := echowsserver.NewEchoWebsocketServer(&http.Server{Addr: cfg.Addr}, logger)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Stop()
		},
	})
	return srv
}
