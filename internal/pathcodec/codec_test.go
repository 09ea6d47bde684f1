package pathcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLayout = "processed/timeframe={timeframe}/exchange={exchange}/symbol={symbol}/year={year}/month={month}/day={day}"

var testTimeframes = []string{"1m", "5m", "15m", "1h", "1d"}

func newTestTemplate(t *testing.T) *Template {
	t.Helper()

	tmpl, err := Parse(testLayout, testTimeframes)
	require.NoError(t, err)
	return tmpl
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name   string
		layout string
	}{
		{"empty", ""},
		{"no fields", "processed/static"},
		{"unknown field", "x={bogus}"},
		{"duplicate field", "a={symbol}/b={symbol}"},
		{"unclosed brace", "a={symbol"},
		{"stray close brace", "a=symbol}"},
		{"two placeholders", "a={year}{month}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.layout, testTimeframes)
			assert.Error(t, err)
		})
	}
}

func TestTemplate_Root(t *testing.T) {
	tmpl := newTestTemplate(t)
	assert.Equal(t, "processed/", tmpl.Root())

	noRoot, err := Parse("timeframe={timeframe}/symbol={symbol}", testTimeframes)
	require.NoError(t, err)
	assert.Equal(t, "", noRoot.Root())
}

func TestTemplate_EncodeFull(t *testing.T) {
	tmpl := newTestTemplate(t)

	key, err := tmpl.Encode(Coordinate{
		Timeframe: "15m",
		Exchange:  "NSE",
		Symbol:    "NSE_CIPLA-EQ",
		Year:      2025,
		Month:     11,
		Day:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, "processed/timeframe=15m/exchange=NSE/symbol=NSE_CIPLA-EQ/year=2025/month=11/day=03/", key)
}

func TestTemplate_EncodePartialPrefix(t *testing.T) {
	tmpl := newTestTemplate(t)

	// Wildcard day yields the month prefix
	key, err := tmpl.Encode(Coordinate{
		Timeframe: "1d",
		Exchange:  "NSE",
		Symbol:    "NSE_INFY-EQ",
		Year:      2024,
		Month:     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "processed/timeframe=1d/exchange=NSE/symbol=NSE_INFY-EQ/year=2024/month=02/", key)

	// Everything wildcard yields the root
	key, err = tmpl.Encode(Coordinate{})
	require.NoError(t, err)
	assert.Equal(t, "processed/", key)
}

func TestTemplate_EncodeGapRejected(t *testing.T) {
	tmpl := newTestTemplate(t)

	// Day set while month is a wildcard
	_, err := tmpl.Encode(Coordinate{
		Timeframe: "1d",
		Exchange:  "NSE",
		Symbol:    "NSE_INFY-EQ",
		Year:      2024,
		Day:       7,
	})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)

	// Symbol set while timeframe is a wildcard
	_, err = tmpl.Encode(Coordinate{Symbol: "NSE_INFY-EQ"})
	assert.ErrorIs(t, err, ErrInvalidCoordinate)
}

func TestTemplate_EncodeValueValidation(t *testing.T) {
	tmpl := newTestTemplate(t)

	base := Coordinate{Timeframe: "1d", Exchange: "NSE", Symbol: "NSE_INFY-EQ", Year: 2024, Month: 6, Day: 15}

	tests := []struct {
		name   string
		mutate func(*Coordinate)
	}{
		{"unknown timeframe", func(c *Coordinate) { c.Timeframe = "42s" }},
		{"slash in symbol", func(c *Coordinate) { c.Symbol = "a/b" }},
		{"slash in exchange", func(c *Coordinate) { c.Exchange = "N/SE" }},
		{"month 13", func(c *Coordinate) { c.Month = 13 }},
		{"day 32", func(c *Coordinate) { c.Day = 32 }},
		{"year too small", func(c *Coordinate) { c.Year = 99 }},
		{"nonexistent date", func(c *Coordinate) { c.Month = 2; c.Day = 30 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			_, err := tmpl.Encode(c)
			assert.ErrorIs(t, err, ErrInvalidCoordinate)
		})
	}

	// Feb 29 on a leap year is fine
	c := base
	c.Year, c.Month, c.Day = 2024, 2, 29
	_, err := tmpl.Encode(c)
	assert.NoError(t, err)
}

func TestTemplate_Prefix(t *testing.T) {
	tmpl := newTestTemplate(t)

	// Unlike Encode, a set field after a wildcard is tolerated; the prefix
	// simply stops at the wildcard.
	prefix, err := tmpl.Prefix(Coordinate{Timeframe: "1d", Symbol: "NSE_INFY-EQ"})
	require.NoError(t, err)
	assert.Equal(t, "processed/timeframe=1d/", prefix)
}

func TestTemplate_Decode(t *testing.T) {
	tmpl := newTestTemplate(t)

	c, err := tmpl.Decode("processed/timeframe=15m/exchange=NSE/symbol=NSE_CIPLA-EQ/year=2025/month=11/day=03/part-00021-899d3b8a.parquet")
	require.NoError(t, err)
	assert.Equal(t, Coordinate{
		Timeframe: "15m",
		Exchange:  "NSE",
		Symbol:    "NSE_CIPLA-EQ",
		Year:      2025,
		Month:     11,
		Day:       3,
	}, c)
}

func TestTemplate_DecodeRejectsForeignKeys(t *testing.T) {
	tmpl := newTestTemplate(t)

	tests := []struct {
		name string
		key  string
	}{
		{"too short", "processed/timeframe=1d"},
		{"wrong root", "raw/timeframe=1d/exchange=NSE/symbol=S/year=2024/month=01/day=01/f"},
		{"wrong segment label", "processed/tf=1d/exchange=NSE/symbol=S/year=2024/month=01/day=01/f"},
		{"empty value", "processed/timeframe=/exchange=NSE/symbol=S/year=2024/month=01/day=01/f"},
		{"non-numeric year", "processed/timeframe=1d/exchange=NSE/symbol=S/year=abcd/month=01/day=01/f"},
		{"month out of range", "processed/timeframe=1d/exchange=NSE/symbol=S/year=2024/month=13/day=01/f"},
		{"unknown timeframe", "processed/timeframe=9y/exchange=NSE/symbol=S/year=2024/month=01/day=01/f"},
		{"impossible date", "processed/timeframe=1d/exchange=NSE/symbol=S/year=2023/month=02/day=29/f"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tmpl.Decode(tt.key)
			assert.ErrorIs(t, err, ErrUnparsablePath)
		})
	}
}

func TestTemplate_RoundTrip(t *testing.T) {
	tmpl := newTestTemplate(t)

	coords := []Coordinate{
		{Timeframe: "1m", Exchange: "NSE", Symbol: "NSE_TCS-EQ", Year: 2023, Month: 1, Day: 1},
		{Timeframe: "1d", Exchange: "BSE", Symbol: "BSE_RELIANCE-EQ", Year: 2025, Month: 12, Day: 31},
		{Timeframe: "15m", Exchange: "NSE", Symbol: "NSE_CIPLA-EQ", Year: 2024, Month: 2, Day: 29},
	}

	for _, want := range coords {
		key, err := tmpl.Encode(want)
		require.NoError(t, err)

		got, err := tmpl.Decode(key + "part-00000-deadbeef.parquet")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestCoordinate_Matches(t *testing.T) {
	full := Coordinate{Timeframe: "1d", Exchange: "NSE", Symbol: "NSE_INFY-EQ", Year: 2024, Month: 6, Day: 15}

	assert.True(t, Coordinate{}.Matches(full))
	assert.True(t, Coordinate{Symbol: "NSE_INFY-EQ"}.Matches(full))
	assert.True(t, Coordinate{Symbol: "NSE_INFY-EQ", Year: 2024}.Matches(full))
	assert.False(t, Coordinate{Symbol: "NSE_TCS-EQ"}.Matches(full))
	assert.False(t, Coordinate{Month: 7}.Matches(full))
}

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CIPLA", "NSE_CIPLA-EQ"},
		{"cipla", "NSE_CIPLA-EQ"},
		{"nse_cipla", "NSE_CIPLA-EQ"},
		{"NSE_CIPLA-EQ", "NSE_CIPLA-EQ"},
		{"  infy  ", "NSE_INFY-EQ"},
		{"NIFTY-I", "NSE_NIFTY-I"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeSymbol(tt.in, "NSE"), "input %q", tt.in)
	}

	assert.Equal(t, "CIPLA-EQ", NormalizeSymbol("cipla", ""))
}
