package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/TradeWithIt/WebSocket/internal/cliconfig"
	"github.com/TradeWithIt/WebSocket/wsconn"
	"github.com/TradeWithIt/WebSocket/wsconn/wscodec"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// Lines starting with this prefix are decoded as JSON and sent with SendValue
	jsonPrefix = "json:"
	// Maximum delay to wait for the connection to close after an interrupt
	closeTimeout = 10 * time.Second
)

// Returned by the close waiter to stop the stdin pump once the session has ended.
var errSessionEnded = errors.New("session ended")

func newConnectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "connect [url]",
		Short: "Connect to a websocket server, send stdin lines and print received messages",
		Long: `Connect to a websocket server (ws, wss, http or https URL).

Each stdin line is sent as a text message. Lines starting with "json:" are decoded as JSON and
sent as a binary message encoded by the connection codec. The command exits on stdin EOF,
interrupt or when the server closes the connection.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliconfig.Load(cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Target = args[0]
			}
			if cfg.Target == "" {
				return errors.New("missing websocket server url")
			}
			var conn *wsconn.Connection
			var logger *zap.Logger
			app := newApp(cfg, fx.Provide(provideAdapter, provideConnection), fx.Populate(&conn, &logger))
			if err := app.Err(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				_ = app.Stop(stopCtx)
			}()
			return runSession(ctx, conn, logger, cfg.Target, cfg.PingInterval, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// # Description
//
// Connect, pump input lines to the connection and print received messages until the input ends,
// ctx is done or the connection is closed.
//
// # Returns
//
// An error if the target is invalid or if the connection could not be opened.
func runSession(
	ctx context.Context,
	conn *wsconn.Connection,
	logger *zap.Logger,
	target string,
	pingInterval time.Duration,
	in io.Reader,
	out io.Writer) error {
	var outMu sync.Mutex
	printf := func(format string, a ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(out, format, a...)
	}
	var errMu sync.Mutex
	var lastErr error
	conn.OnText(func(c *wsconn.Connection, text string) { printf("< %s\n", text) })
	conn.OnData(func(c *wsconn.Connection, data []byte) { printf("< [%d bytes] %s\n", len(data), data) })
	conn.OnError(func(c *wsconn.Connection, err error) {
		errMu.Lock()
		defer errMu.Unlock()
		lastErr = err
	})
	conn.OnClose(func(c *wsconn.Connection) {
		details := c.CloseDetails()
		printf("connection closed: %d %s\n", details.CloseReason, details.CloseMessage)
	})
	connected := make(chan struct{})
	err := conn.Connect(target, pingInterval, func(c *wsconn.Connection) {
		printf("connected to %s\n", target)
		close(connected)
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	lines := make(chan string)
	go scanLines(gctx, in, lines, logger)
	g.Go(func() error {
		return pump(gctx, conn, logger, connected, lines)
	})
	g.Go(func() error {
		if err := conn.Wait(gctx); err != nil {
			conn.Close()
			waitCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if err := conn.Wait(waitCtx); err != nil {
				logger.Warn("connection did not close in time", zap.Error(err))
			}
		}
		return errSessionEnded
	})
	if err := g.Wait(); !errors.Is(err, errSessionEnded) {
		return err
	}
	if conn.State() == wsconn.StateIdle {
		errMu.Lock()
		defer errMu.Unlock()
		return fmt.Errorf("failed to connect to %s: %w", target, lastErr)
	}
	return nil
}

// Send input lines once the connection is open. Close the connection when the input ends.
func pump(ctx context.Context, conn *wsconn.Connection, logger *zap.Logger, connected <-chan struct{}, lines <-chan string) error {
	select {
	case <-ctx.Done():
		return nil
	case <-connected:
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				conn.Close()
				return nil
			}
			sendLine(conn, logger, line)
		}
	}
}

// Send a line as a text message, or as an encoded value when it starts with jsonPrefix.
func sendLine(conn *wsconn.Connection, logger *zap.Logger, line string) {
	raw, isJSON := strings.CutPrefix(line, jsonPrefix)
	if !isJSON {
		conn.SendText(line)
		return
	}
	var value any
	if err := wscodec.Default().Unmarshal([]byte(raw), &value); err != nil {
		logger.Warn("invalid json input, line skipped", zap.Error(err))
		return
	}
	if err := conn.SendValue(value); err != nil {
		logger.Warn("failed to send value", zap.Error(err))
	}
}

// Read lines from the input until EOF or until ctx is done. lines is closed on EOF.
func scanLines(ctx context.Context, in io.Reader, lines chan<- string, logger *zap.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("failed to read input", zap.Error(err))
	}
	close(lines)
}
