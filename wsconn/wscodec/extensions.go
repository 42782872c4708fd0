package wscodec

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"
	"unicode"
	"unsafe"

	jsoniter "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

var (
	timeType    = reflect.TypeOf(time.Time{})
	float64Type = reflect.TypeOf(float64(0))
	float32Type = reflect.TypeOf(float32(0))
)

/*************************************************************************************************/
/* NAMING                                                                                        */
/*************************************************************************************************/

// Extension which renames exported fields without an explicit json name to snake_case.
type snakeCaseNamingExtension struct {
	jsoniter.DummyExtension
}

func (extension *snakeCaseNamingExtension) UpdateStructDescriptor(structDescriptor *jsoniter.StructDescriptor) {
	for _, binding := range structDescriptor.Fields {
		tag, hasTag := binding.Field.Tag().Lookup("json")
		if hasTag && strings.Split(tag, ",")[0] != "" {
			continue
		}
		name := SnakeCase(binding.Field.Name())
		binding.ToNames = []string{name}
		binding.FromNames = []string{name}
	}
}

// # Description
//
// Convert a Go identifier to snake_case. Acronyms are kept together: "UserID" gives "user_id"
// and "HTTPStatusCode" gives "http_status_code".
func SnakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextIsLower) {
					b.WriteRune('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

/*************************************************************************************************/
/* TYPES                                                                                         */
/*************************************************************************************************/

// Extension which provides the time.Time codec and the non-conforming float decoders.
type typeExtension struct {
	jsoniter.DummyExtension
}

func (extension *typeExtension) CreateEncoder(typ reflect2.Type) jsoniter.ValEncoder {
	if typ.Type1() == timeType {
		return &timeCodec{}
	}
	return nil
}

func (extension *typeExtension) CreateDecoder(typ reflect2.Type) jsoniter.ValDecoder {
	switch typ.Type1() {
	case timeType:
		return &timeCodec{}
	case float64Type:
		return &floatDecoder{bits: 64}
	case float32Type:
		return &floatDecoder{bits: 32}
	}
	return nil
}

// Codec for time.Time values
type timeCodec struct{}

func (codec *timeCodec) IsEmpty(ptr unsafe.Pointer) bool {
	return (*time.Time)(ptr).IsZero()
}

func (codec *timeCodec) Encode(ptr unsafe.Pointer, stream *jsoniter.Stream) {
	stream.WriteString(FormatTimestamp(*(*time.Time)(ptr)))
}

func (codec *timeCodec) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	if iter.WhatIsNext() == jsoniter.NilValue {
		iter.ReadNil()
		return
	}
	raw := iter.ReadString()
	if iter.Error != nil {
		return
	}
	t, err := ParseTime(raw)
	if err != nil {
		iter.ReportError("decode time.Time", err.Error())
		return
	}
	*(*time.Time)(ptr) = t
}

// # Description
//
// Parse a timestamp in one of the accepted formats: RFC3339, RFC3339 with fractional seconds or
// yyyy-MM-dd (midnight UTC).
func ParseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected RFC3339 timestamp or yyyy-MM-dd date", raw)
}

// Decoder for floats which accepts non-conforming values encoded as strings.
type floatDecoder struct {
	bits int
}

func (decoder *floatDecoder) Decode(ptr unsafe.Pointer, iter *jsoniter.Iterator) {
	var value float64
	switch iter.WhatIsNext() {
	case jsoniter.NilValue:
		iter.ReadNil()
		return
	case jsoniter.StringValue:
		raw := iter.ReadString()
		switch raw {
		case "Infinity":
			value = math.Inf(1)
		case "-Infinity":
			value = math.Inf(-1)
		case "NaN":
			value = math.NaN()
		default:
			iter.ReportError("decode float", fmt.Sprintf("unexpected string %q", raw))
			return
		}
	default:
		value = iter.ReadFloat64()
	}
	if iter.Error != nil {
		return
	}
	if decoder.bits == 32 {
		*(*float32)(ptr) = float32(value)
		return
	}
	*(*float64)(ptr) = value
}
