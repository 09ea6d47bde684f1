package preview

import (
	"bytes"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candle struct {
	Timestamp time.Time `parquet:"timestamp,timestamp"`
	Open      float64   `parquet:"open"`
	High      float64   `parquet:"high"`
	Low       float64   `parquet:"low"`
	Close     float64   `parquet:"close"`
	Volume    int64     `parquet:"volume"`
}

func encodeCandles(t *testing.T, candles []candle) []byte {
	t.Helper()

	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[candle](&buf)
	_, err := writer.Write(candles)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return buf.Bytes()
}

func TestRows(t *testing.T) {
	ts := time.Date(2025, 11, 3, 9, 15, 0, 0, time.UTC)
	data := encodeCandles(t, []candle{
		{Timestamp: ts, Open: 1540.5, High: 1551.0, Low: 1538.2, Close: 1549.9, Volume: 120345},
		{Timestamp: ts.Add(15 * time.Minute), Open: 1549.9, High: 1553.4, Low: 1547.0, Close: 1550.1, Volume: 98520},
	})

	records, err := Rows(data, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, 1540.5, first["open"])
	assert.Equal(t, int64(120345), first["volume"])
	assert.Contains(t, first["timestamp"], "2025-11-03T09:15:00")
}

func TestRows_LimitApplies(t *testing.T) {
	candles := make([]candle, 50)
	for i := range candles {
		candles[i] = candle{Timestamp: time.Now(), Close: float64(i)}
	}
	data := encodeCandles(t, candles)

	records, err := Rows(data, 7)
	require.NoError(t, err)
	assert.Len(t, records, 7)
}

func TestRows_EmptyFile(t *testing.T) {
	data := encodeCandles(t, nil)

	records, err := Rows(data, 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestRows_NotParquet(t *testing.T) {
	_, err := Rows([]byte("not a parquet file"), 10)
	assert.ErrorIs(t, err, ErrInvalidFormat)

	_, err = Rows(nil, 10)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}
