package wsconn

import (
	"time"

	"github.com/TradeWithIt/WebSocket/wsconn/wscodec"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Default interval between two keepalive pings.
const DefaultPingInterval = 30 * time.Second

// Defines configuration options for a websocket connection.
//
// Use the factory function to get a new instance of the struct with nice defaults and then modify
// settings using With*** methods.
type ConnectionOptions struct {
	// Maximum delay (milliseconds) to open the connection and complete the handshake.
	//
	// Defaults to 30000 (30 seconds) - 0 disables the timeout.
	DialTimeoutMs int64 `validate:"gte=0"`
	// Maximum delay (milliseconds) to write a message.
	//
	// Defaults to 10000 (10 seconds) - 0 disables the timeout.
	WriteTimeoutMs int64 `validate:"gte=0"`
	// Maximum delay (milliseconds) to send a ping and receive the pong.
	//
	// Defaults to 10000 (10 seconds) - 0 disables the timeout.
	PingTimeoutMs int64 `validate:"gte=0"`
	// Maximum delay (milliseconds) to send the close message when Close is called.
	//
	// Defaults to 5000 (5 seconds) - 0 disables the timeout.
	CloseTimeoutMs int64 `validate:"gte=0"`
	// Reason sent with the going away (1001) close message when Close is called.
	//
	// Defaults to "going away". At most 123 characters.
	CloseReason string `validate:"max=123"`
	// Number of consecutive read errors after which the connection is considered lost.
	//
	// Defaults to 16. Must be at least 1.
	MaxConsecutiveReadErrors int `validate:"gte=1"`
	// Codec used by SendValue and Send. wscodec.Default() is used when nil.
	Codec wscodec.Codec `validate:"-"`
	// Logger. A no-op logger is used when nil.
	Logger *zap.Logger `validate:"-"`
	// Meter provider used to record connection metrics. The global one is used when nil.
	MeterProvider metric.MeterProvider `validate:"-"`
}

// Set opts.DialTimeoutMs and return the modified object. The method does not validate inputs.
func (opts *ConnectionOptions) WithDialTimeoutMs(value int64) *ConnectionOptions {
	opts.DialTimeoutMs = value
	return opts
}

// Set opts.WriteTimeoutMs and return the modified object. The method does not validate inputs.
func (opts *ConnectionOptions) WithWriteTimeoutMs(value int64) *ConnectionOptions {
	opts.WriteTimeoutMs = value
	return opts
}

// Set opts.PingTimeoutMs and return the modified object. The method does not validate inputs.
func (opts *ConnectionOptions) WithPingTimeoutMs(value int64) *ConnectionOptions {
	opts.PingTimeoutMs = value
	return opts
}

// Set opts.CloseTimeoutMs and return the modified object. The method does not validate inputs.
func (opts *ConnectionOptions) WithCloseTimeoutMs(value int64) *ConnectionOptions {
	opts.CloseTimeoutMs = value
	return opts
}

// Set opts.CloseReason and return the modified object. The method does not validate inputs.
func (opts *ConnectionOptions) WithCloseReason(value string) *ConnectionOptions {
	opts.CloseReason = value
	return opts
}

// # Description
//
// Set opts.MaxConsecutiveReadErrors and return the modified object. The method does not validate
// inputs.
//
// # MaxConsecutiveReadErrors
//
// Read errors which are not a closure are reported to the diagnostic hook and reading goes on.
// Once more than MaxConsecutiveReadErrors errors have been returned in a row, the connection is
// considered lost: it is closed and OnClose is called.
func (opts *ConnectionOptions) WithMaxConsecutiveReadErrors(value int) *ConnectionOptions {
	opts.MaxConsecutiveReadErrors = value
	return opts
}

// Set opts.Codec and return the modified object.
func (opts *ConnectionOptions) WithCodec(codec wscodec.Codec) *ConnectionOptions {
	opts.Codec = codec
	return opts
}

// Set opts.Logger and return the modified object.
func (opts *ConnectionOptions) WithLogger(logger *zap.Logger) *ConnectionOptions {
	opts.Logger = logger
	return opts
}

// Set opts.MeterProvider and return the modified object.
func (opts *ConnectionOptions) WithMeterProvider(provider metric.MeterProvider) *ConnectionOptions {
	opts.MeterProvider = provider
	return opts
}

// # Description
//
// Factory which creates a new ConnectionOptions object with nice defaults. Settings can then be
// modified by the user by using With*** methods.
//
// # Default settings
//
//   - DialTimeoutMs = 30000 (30 seconds).
//   - WriteTimeoutMs = 10000 (10 seconds).
//   - PingTimeoutMs = 10000 (10 seconds).
//   - CloseTimeoutMs = 5000 (5 seconds).
//   - CloseReason = "going away".
//   - MaxConsecutiveReadErrors = 16.
//   - Codec, Logger and MeterProvider are not set: defaults are resolved by NewConnection.
func NewConnectionOptions() *ConnectionOptions {
	return &ConnectionOptions{
		DialTimeoutMs:            30000,
		WriteTimeoutMs:           10000,
		PingTimeoutMs:            10000,
		CloseTimeoutMs:           5000,
		CloseReason:              "going away",
		MaxConsecutiveReadErrors: 16,
	}
}

// # Description
//
// Helper function which validates ConnectionOptions. Options are valid if:
//   - opts is not nil
//   - all timeouts are greater or equal to 0
//   - opts.CloseReason is at most 123 characters long
//   - opts.MaxConsecutiveReadErrors is greater or equal to 1
//
// # Returns
//
// InvalidValidationError for bad values passed in and nil or ValidationErrors as error otherwise.
func Validate(opts *ConnectionOptions) error {
	return validator.New().Struct(opts)
}

// Convert a timeout in milliseconds to a duration. 0 means no timeout.
func msToDuration(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
