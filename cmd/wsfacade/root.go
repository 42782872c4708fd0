package main

import (
	"github.com/TradeWithIt/WebSocket/internal/cliconfig"
	"github.com/spf13/cobra"
)

// Version is injected during build
var Version = "dev"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "wsfacade",
		Short: "wsfacade is a websocket client which runs on top of interchangeable transports",
		Long: `wsfacade opens a websocket connection with the selected transport (nhooyr, gorilla or coder),
sends stdin lines as text messages and prints received messages.

Configuration can be provided via flags, WSFACADE_* environment variables or a YAML
configuration file (--config).`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cliconfig.RegisterFlags(root.PersistentFlags())
	root.AddCommand(newConnectCommand(), newEchoServerCommand())
	return root
}
