// Package preview decodes the leading rows of a parquet partition object
// into generic JSON-ready records. The gateway has no schema registry, so
// the file's own schema drives the decoding.
package preview

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// ErrInvalidFormat indicates bytes that are not a parquet file.
var ErrInvalidFormat = errors.New("preview: not a valid parquet file")

// Rows decodes up to limit rows from a parquet file held in memory.
func Rows(data []byte, limit int) ([]map[string]any, error) {
	if len(data) == 0 {
		return nil, ErrInvalidFormat
	}
	if limit <= 0 {
		limit = 10
	}

	file, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrInvalidFormat
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}

	if file.NumRows() == 0 {
		return []map[string]any{}, nil
	}

	schema := file.Schema()
	columns := leafColumns(schema)

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	records := make([]map[string]any, 0, limit)
	rows := make([]parquet.Row, 64)
	for len(records) < limit {
		n, err := reader.ReadRows(rows)
		for i := 0; i < n && len(records) < limit; i++ {
			records = append(records, rowToRecord(rows[i], columns))
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: read rows: %w", ErrInvalidFormat, err)
		}
	}

	return records, nil
}

// column describes one leaf of the file schema.
type column struct {
	name      string
	timestamp bool
	tsScale   int64 // nanoseconds per stored unit
}

// leafColumns flattens the schema into column-index order. Partition files
// are flat (OHLCV rows), so a field's column index is its position.
func leafColumns(schema *parquet.Schema) []column {
	fields := schema.Fields()
	columns := make([]column, len(fields))
	for i, f := range fields {
		col := column{name: f.Name()}
		if lt := f.Type().LogicalType(); lt != nil && lt.Timestamp != nil {
			col.timestamp = true
			col.tsScale = 1
			switch {
			case lt.Timestamp.Unit.Millis != nil:
				col.tsScale = int64(time.Millisecond)
			case lt.Timestamp.Unit.Micros != nil:
				col.tsScale = int64(time.Microsecond)
			}
		}
		columns[i] = col
	}
	return columns
}

// rowToRecord converts one parquet row to a generic record keyed by column
// name.
func rowToRecord(row parquet.Row, columns []column) map[string]any {
	record := make(map[string]any, len(columns))
	for _, value := range row {
		idx := int(value.Column())
		if idx < 0 || idx >= len(columns) {
			continue
		}
		col := columns[idx]

		if value.IsNull() {
			record[col.name] = nil
			continue
		}

		record[col.name] = goValue(value, col)
	}
	return record
}

// goValue converts a parquet value to its natural Go representation.
func goValue(value parquet.Value, col column) any {
	switch value.Kind() {
	case parquet.Boolean:
		return value.Boolean()
	case parquet.Int32:
		return value.Int32()
	case parquet.Int64:
		if col.timestamp {
			return time.Unix(0, value.Int64()*col.tsScale).UTC().Format(time.RFC3339Nano)
		}
		return value.Int64()
	case parquet.Float:
		return value.Float()
	case parquet.Double:
		return value.Double()
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(value.ByteArray())
	default:
		return value.String()
	}
}
