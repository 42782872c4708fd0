package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/TradeWithIt/WebSocket/echowsserver"
	"github.com/TradeWithIt/WebSocket/internal/cliconfig"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newEchoServerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "echo-server",
		Short: "Run a websocket echo server",
		Long: `Run a websocket echo server which echoes every data message. A text message equal to "close"
makes the server close the connection with a normal closure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliconfig.Load(cmd.Flags())
			if err != nil {
				return err
			}
			var srv *echowsserver.EchoWebsocketServer
			app := newApp(cfg, fx.Provide(provideEchoServer), fx.Populate(&srv))
			if err := app.Err(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.Start(ctx); err != nil {
				return err
			}
			cmd.Printf("echo server listening on %s\n", srv.URL())
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
}
