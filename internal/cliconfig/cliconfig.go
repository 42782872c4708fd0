// Package cliconfig loads the command line tool configuration from flags, WSFACADE_* environment
// variables and an optional YAML configuration file.
//
// Precedence, from highest to lowest: flags explicitly set, environment variables, configuration
// file, flag defaults.
package cliconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Prefix of the environment variables, e.g. WSFACADE_PING_INTERVAL.
const EnvPrefix = "WSFACADE"

// Configuration keys. They are also the names of the flags.
const (
	KeyConfig        = "config"
	KeyTransport     = "transport"
	KeyPingInterval  = "ping-interval"
	KeyLogLevel      = "log-level"
	KeyLogFormat     = "log-format"
	KeyTraceExporter = "trace-exporter"
	KeyOTLPEndpoint  = "otlp-endpoint"
	KeyOTLPInsecure  = "otlp-insecure"
	KeyAddr          = "addr"
)

// Command line tool configuration.
type Config struct {
	// Target websocket server URL (connect command)
	Target string `mapstructure:"target"`
	// Transport adapter used by the connect command
	Transport string `mapstructure:"transport" validate:"oneof=nhooyr gorilla coder"`
	// Keepalive interval. 0 disables keepalive.
	PingInterval time.Duration `mapstructure:"ping-interval" validate:"gte=0"`
	// Log level
	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	// Log format
	LogFormat string `mapstructure:"log-format" validate:"oneof=json console"`
	// Trace exporter
	TraceExporter string `mapstructure:"trace-exporter" validate:"oneof=none stdout otlp"`
	// OTLP/HTTP collector host:port
	OTLPEndpoint string `mapstructure:"otlp-endpoint" validate:"required_if=TraceExporter otlp"`
	// Use plain HTTP to reach the collector
	OTLPInsecure bool `mapstructure:"otlp-insecure"`
	// Listen address of the echo server (echo-server command)
	Addr string `mapstructure:"addr" validate:"required"`
}

// Return the default configuration.
func Defaults() Config {
	return Config{
		Transport:     "nhooyr",
		PingInterval:  30 * time.Second,
		LogLevel:      "info",
		LogFormat:     "console",
		TraceExporter: "none",
		OTLPEndpoint:  "localhost:4318",
		OTLPInsecure:  true,
		Addr:          "localhost:8080",
	}
}

// Register the configuration flags with their default values.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Defaults()
	flags.String(KeyConfig, "", "Path to a YAML configuration file")
	flags.String(KeyTransport, d.Transport, "Transport adapter: nhooyr, gorilla or coder")
	flags.Duration(KeyPingInterval, d.PingInterval, "Interval between keepalive pings, 0 disables keepalive")
	flags.String(KeyLogLevel, d.LogLevel, "Log level: debug, info, warn or error")
	flags.String(KeyLogFormat, d.LogFormat, "Log format: json or console")
	flags.String(KeyTraceExporter, d.TraceExporter, "Trace exporter: none, stdout or otlp")
	flags.String(KeyOTLPEndpoint, d.OTLPEndpoint, "OTLP/HTTP collector host:port")
	flags.Bool(KeyOTLPInsecure, d.OTLPInsecure, "Use plain HTTP to reach the OTLP collector")
	flags.String(KeyAddr, d.Addr, "Echo server listen address")
}

// # Description
//
// Load and validate the configuration.
//
// # Inputs
//
//   - flags: Flag set which contains the flags registered by RegisterFlags. Can be nil.
//
// # Returns
//
// The configuration or an error if the configuration file cannot be read or if a value is invalid.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault(KeyTransport, d.Transport)
	v.SetDefault(KeyPingInterval, d.PingInterval)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFormat, d.LogFormat)
	v.SetDefault(KeyTraceExporter, d.TraceExporter)
	v.SetDefault(KeyOTLPEndpoint, d.OTLPEndpoint)
	v.SetDefault(KeyOTLPInsecure, d.OTLPInsecure)
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault("target", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}
	if file := v.GetString(KeyConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read configuration file %s: %w", file, err)
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s=%v)", fe.Field(), fe.Tag(), fe.Value()))
			}
			return nil, fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return nil, err
	}
	return cfg, nil
}
