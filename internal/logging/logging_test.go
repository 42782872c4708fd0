package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	logger, err := New("DEBUG", FormatConsole)
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New("warn", FormatJSON)
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewBadInputs(t *testing.T) {
	_, err := New("verbose", FormatJSON)
	require.Error(t, err)
	_, err = New("info", "xml")
	require.Error(t, err)
}
