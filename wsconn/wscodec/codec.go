// Package wscodec provides the JSON codec used to send typed values over a websocket connection.
//
// The codec is built on json-iterator and stays compatible with encoding/json tags, with three
// extensions:
//   - exported fields without an explicit json name use snake_case keys.
//   - time.Time values are encoded as RFC3339 UTC timestamps with second precision and decoded
//     from RFC3339 timestamps (with or without fractional seconds) or yyyy-MM-dd dates.
//   - float values are decoded from JSON numbers or from the "Infinity", "-Infinity" and "NaN"
//     strings.
package wscodec

import (
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Interface for the codecs used to encode values sent over a connection.
type Codec interface {
	// Encode the provided value.
	Marshal(v any) ([]byte, error)
	// Decode data into the value pointed by v.
	Unmarshal(data []byte, v any) error
}

// JSON codec built on json-iterator.
type JSONCodec struct {
	api jsoniter.API
}

// # Description
//
// Create a new JSON codec with snake_case keys, ISO-8601 dates and non-conforming floats
// support.
func New() *JSONCodec {
	api := jsoniter.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	api.RegisterExtension(&snakeCaseNamingExtension{})
	api.RegisterExtension(&typeExtension{})
	return &JSONCodec{api: api}
}

func (codec *JSONCodec) Marshal(v any) ([]byte, error) {
	return codec.api.Marshal(v)
}

func (codec *JSONCodec) Unmarshal(data []byte, v any) error {
	return codec.api.Unmarshal(data, v)
}

/*************************************************************************************************/
/* DEFAULT CODEC                                                                                 */
/*************************************************************************************************/

var (
	defaultCodec Codec = New()
	defaultMu    sync.RWMutex
)

// Return the process-wide default codec.
func Default() Codec {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultCodec
}

// Replace the process-wide default codec. A nil codec restores the built-in JSON codec.
func SetDefault(codec Codec) {
	if codec == nil {
		codec = New()
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultCodec = codec
}

/*************************************************************************************************/
/* DATE HELPERS                                                                                  */
/*************************************************************************************************/

const (
	// Layout used to encode timestamps
	TimestampLayout = "2006-01-02T15:04:05Z07:00"
	// Layout of date-only values
	DateLayout = "2006-01-02"
	// Layout of short human readable timestamps: h:mm MM/dd/yy
	ShortLayout = "3:04 01/02/06"
)

// Format t as a short human readable timestamp (h:mm MM/dd/yy) in UTC.
func FormatShort(t time.Time) string {
	return t.UTC().Format(ShortLayout)
}

// Format t as a yyyy-MM-dd date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Format t as a RFC3339 UTC timestamp with second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}
