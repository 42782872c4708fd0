package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	require.Equal(t, Defaults(), *cfg)

	cfg, err = Load(newFlags(t))
	require.NoError(t, err)
	require.Equal(t, Defaults(), *cfg)
}

func TestLoadPrecedence(t *testing.T) {
	file := filepath.Join(t.TempDir(), "wsfacade.yaml")
	content := "transport: gorilla\nping-interval: 5s\nlog-level: debug\ntarget: ws://example.com/ws\n"
	require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

	// File only
	cfg, err := Load(newFlags(t, "--config", file))
	require.NoError(t, err)
	require.Equal(t, "gorilla", cfg.Transport)
	require.Equal(t, 5*time.Second, cfg.PingInterval)
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "ws://example.com/ws", cfg.Target)

	// Environment overrides the file
	t.Setenv("WSFACADE_TRANSPORT", "coder")
	t.Setenv("WSFACADE_PING_INTERVAL", "1s")
	cfg, err = Load(newFlags(t, "--config", file))
	require.NoError(t, err)
	require.Equal(t, "coder", cfg.Transport)
	require.Equal(t, time.Second, cfg.PingInterval)

	// Flags override the environment
	cfg, err = Load(newFlags(t, "--config", file, "--transport", "nhooyr", "--ping-interval", "0s"))
	require.NoError(t, err)
	require.Equal(t, "nhooyr", cfg.Transport)
	require.Equal(t, time.Duration(0), cfg.PingInterval)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadInvalid(t *testing.T) {
	_, err := Load(newFlags(t, "--transport", "websocketpp"))
	require.ErrorContains(t, err, "Transport")

	_, err = Load(newFlags(t, "--log-format", "xml"))
	require.ErrorContains(t, err, "LogFormat")

	_, err = Load(newFlags(t, "--ping-interval", "-1s"))
	require.ErrorContains(t, err, "PingInterval")

	_, err = Load(newFlags(t, "--trace-exporter", "otlp", "--otlp-endpoint", ""))
	require.ErrorContains(t, err, "OTLPEndpoint")

	_, err = Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.yaml")))
	require.Error(t, err)
}
