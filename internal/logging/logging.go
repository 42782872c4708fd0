// Package logging builds the zap loggers used by the command line tool.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Supported log formats.
const (
	// JSON lines, production encoder
	FormatJSON = "json"
	// Human readable lines, development encoder
	FormatConsole = "console"
)

// # Description
//
// Build a logger which writes to stderr.
//
// # Inputs
//
//   - level: debug, info, warn or error (case insensitive).
//   - format: FormatJSON or FormatConsole.
//
// # Returns
//
// The logger or an error if the level or the format is unknown.
func New(level string, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	var cfg zap.Config
	switch format {
	case FormatJSON:
		cfg = zap.NewProductionConfig()
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return cfg.Build()
}
