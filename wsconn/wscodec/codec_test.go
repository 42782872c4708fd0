package wscodec

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

/*************************************************************************************************/
/* TEST SUITE                                                                                    */
/*************************************************************************************************/

// Test suite for JSONCodec
type JSONCodecTestSuite struct {
	suite.Suite
	codec *JSONCodec
}

// Run JSONCodecTestSuite test suite
func TestJSONCodecTestSuite(t *testing.T) {
	suite.Run(t, new(JSONCodecTestSuite))
}

func (suite *JSONCodecTestSuite) SetupTest() {
	suite.codec = New()
}

// Type used to exercise the naming and time extensions
type order struct {
	OrderID     string
	LimitPrice  float64
	HTTPStatus  int
	CreatedAt   time.Time
	Explicit    string     `json:"ExplicitName"`
	OmitIfEmpty string     `json:",omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Ignored     string     `json:"-"`
}

/*************************************************************************************************/
/* TESTS                                                                                         */
/*************************************************************************************************/

// Test untagged fields are encoded with snake_case keys and times with RFC3339 seconds.
func (suite *JSONCodecTestSuite) TestEncode() {
	created := time.Date(2024, 3, 9, 14, 5, 7, 123456789, time.FixedZone("CET", 3600))
	data, err := suite.codec.Marshal(order{
		OrderID:    "abc",
		LimitPrice: 1.5,
		HTTPStatus: 200,
		CreatedAt:  created,
		Explicit:   "x",
		Ignored:    "secret",
	})
	suite.Require().NoError(err)
	suite.Require().JSONEq(`{
		"order_id": "abc",
		"limit_price": 1.5,
		"http_status": 200,
		"created_at": "2024-03-09T13:05:07Z",
		"ExplicitName": "x"
	}`, string(data))
}

// Test decoding snake_case keys, the accepted date formats and non-conforming floats.
func (suite *JSONCodecTestSuite) TestDecode() {
	payload := `{
		"order_id": "abc",
		"limit_price": "Infinity",
		"http_status": 404,
		"created_at": "2024-03-09T13:05:07.250+01:00",
		"ExplicitName": "x",
		"omit_if_empty": "y",
		"expires_at": "2024-03-10"
	}`
	var o order
	suite.Require().NoError(suite.codec.Unmarshal([]byte(payload), &o))
	suite.Require().Equal("abc", o.OrderID)
	suite.Require().True(math.IsInf(o.LimitPrice, 1))
	suite.Require().Equal(404, o.HTTPStatus)
	suite.Require().True(time.Date(2024, 3, 9, 12, 5, 7, 250000000, time.UTC).Equal(o.CreatedAt))
	suite.Require().Equal("x", o.Explicit)
	suite.Require().Equal("y", o.OmitIfEmpty)
	suite.Require().NotNil(o.ExpiresAt)
	suite.Require().Equal("2024-03-10", FormatDate(*o.ExpiresAt))
}

// Test non-conforming float strings and invalid values.
func (suite *JSONCodecTestSuite) TestFloats() {
	var values struct {
		A float64
		B float32
		C float64
		D float64
	}
	err := suite.codec.Unmarshal([]byte(`{"a":"-Infinity","b":"NaN","c":2.25,"d":null}`), &values)
	suite.Require().NoError(err)
	suite.Require().True(math.IsInf(values.A, -1))
	suite.Require().True(math.IsNaN(float64(values.B)))
	suite.Require().Equal(2.25, values.C)
	suite.Require().Zero(values.D)

	err = suite.codec.Unmarshal([]byte(`{"a":"infinite"}`), &values)
	suite.Require().Error(err)
}

// Test unsupported dates and unencodable values fail.
func (suite *JSONCodecTestSuite) TestErrors() {
	var o order
	suite.Require().Error(suite.codec.Unmarshal([]byte(`{"created_at":"09/03/2024"}`), &o))
	_, err := suite.codec.Marshal(make(chan int))
	suite.Require().Error(err)
	_, err = suite.codec.Marshal(math.NaN())
	suite.Require().Error(err)
}

// Test the default codec can be replaced and restored.
func (suite *JSONCodecTestSuite) TestDefault() {
	original := Default()
	suite.Require().NotNil(original)
	replacement := New()
	SetDefault(replacement)
	suite.Require().Same(replacement, Default())
	SetDefault(nil)
	suite.Require().NotSame(replacement, Default())
}

// Test identifiers conversion to snake_case.
func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"ID":             "id",
		"UserID":         "user_id",
		"HTTPStatusCode": "http_status_code",
		"LimitPrice":     "limit_price",
		"Field2Name":     "field2_name",
		"already_snake":  "already_snake",
	}
	for input, expected := range cases {
		require.Equal(t, expected, SnakeCase(input), input)
	}
}

// Test date helpers.
func TestDateHelpers(t *testing.T) {
	ts := time.Date(2023, 11, 5, 15, 4, 59, 999, time.UTC)
	require.Equal(t, "3:04 11/05/23", FormatShort(ts))
	require.Equal(t, "2023-11-05", FormatDate(ts))
	require.Equal(t, "2023-11-05T15:04:59Z", FormatTimestamp(ts))
	parsed, err := ParseTime("2023-11-05T15:04:59Z")
	require.NoError(t, err)
	require.True(t, parsed.Equal(ts.Truncate(time.Second)))
	_, err = ParseTime("yesterday")
	require.Error(t, err)
}
