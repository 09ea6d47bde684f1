// Package pathcodec maps logical partition coordinates to physical object
// keys and back. The layout convention is external and may evolve; one
// configured template governs a deployment and nothing outside this package
// knows the key structure.
package pathcodec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidCoordinate indicates a coordinate that cannot be rendered:
	// a required field is missing before a later one, or a value fails
	// lexical validation.
	ErrInvalidCoordinate = errors.New("pathcodec: invalid coordinate")

	// ErrUnparsablePath indicates a key that does not match the template.
	// Listings treat such objects as foreign and skip them.
	ErrUnparsablePath = errors.New("pathcodec: path does not match layout template")
)

// Coordinate is a logical partition address. Zero-valued fields act as
// wildcards when the coordinate is used as a listing filter.
type Coordinate struct {
	Symbol    string `json:"symbol,omitempty"`
	Exchange  string `json:"exchange,omitempty"`
	Timeframe string `json:"timeframe,omitempty"`
	Year      int    `json:"year,omitempty"`
	Month     int    `json:"month,omitempty"`
	Day       int    `json:"day,omitempty"`
}

// Field names accepted in layout templates.
const (
	FieldTimeframe = "timeframe"
	FieldExchange  = "exchange"
	FieldSymbol    = "symbol"
	FieldYear      = "year"
	FieldMonth     = "month"
	FieldDay       = "day"
)

// set reports whether the named field carries a non-wildcard value.
func (c Coordinate) set(field string) bool {
	switch field {
	case FieldTimeframe:
		return c.Timeframe != ""
	case FieldExchange:
		return c.Exchange != ""
	case FieldSymbol:
		return c.Symbol != ""
	case FieldYear:
		return c.Year != 0
	case FieldMonth:
		return c.Month != 0
	case FieldDay:
		return c.Day != 0
	}
	return false
}

// Complete reports whether every field is specified, so the coordinate can
// address at most one partition.
func (c Coordinate) Complete() bool {
	return c.Timeframe != "" && c.Exchange != "" && c.Symbol != "" &&
		c.Year != 0 && c.Month != 0 && c.Day != 0
}

// Matches reports whether other satisfies every non-wildcard field of the
// filter coordinate.
func (c Coordinate) Matches(other Coordinate) bool {
	if c.Timeframe != "" && c.Timeframe != other.Timeframe {
		return false
	}
	if c.Exchange != "" && c.Exchange != other.Exchange {
		return false
	}
	if c.Symbol != "" && c.Symbol != other.Symbol {
		return false
	}
	if c.Year != 0 && c.Year != other.Year {
		return false
	}
	if c.Month != 0 && c.Month != other.Month {
		return false
	}
	if c.Day != 0 && c.Day != other.Day {
		return false
	}
	return true
}

// segment is one slash-delimited element of the template: a fixed literal,
// or a literal prefix followed by a field value ("year=" + value).
type segment struct {
	literal string
	field   string // empty for pure literals
}

// Template is the parsed, immutable layout convention. Loaded once at
// startup.
type Template struct {
	segments   []segment
	fields     []string // field names in template order
	timeframes map[string]bool
}

// Parse builds a Template from a layout string such as
//
//	processed/timeframe={timeframe}/exchange={exchange}/symbol={symbol}/year={year}/month={month}/day={day}
//
// Each slash-delimited element holds at most one {field} placeholder at its
// end. timeframes lists the recognized timeframe values.
func Parse(layout string, timeframes []string) (*Template, error) {
	if layout == "" {
		return nil, errors.New("pathcodec: empty layout template")
	}

	known := map[string]bool{
		FieldTimeframe: true, FieldExchange: true, FieldSymbol: true,
		FieldYear: true, FieldMonth: true, FieldDay: true,
	}

	t := &Template{timeframes: make(map[string]bool, len(timeframes))}
	for _, tf := range timeframes {
		t.timeframes[tf] = true
	}

	seen := make(map[string]bool)
	for _, raw := range strings.Split(strings.Trim(layout, "/"), "/") {
		open := strings.Index(raw, "{")
		if open < 0 {
			if strings.Contains(raw, "}") {
				return nil, fmt.Errorf("pathcodec: malformed template segment %q", raw)
			}
			t.segments = append(t.segments, segment{literal: raw})
			continue
		}

		if !strings.HasSuffix(raw, "}") || strings.Count(raw, "{") != 1 {
			return nil, fmt.Errorf("pathcodec: malformed template segment %q", raw)
		}

		field := raw[open+1 : len(raw)-1]
		if !known[field] {
			return nil, fmt.Errorf("pathcodec: unknown template field %q", field)
		}
		if seen[field] {
			return nil, fmt.Errorf("pathcodec: duplicate template field %q", field)
		}
		seen[field] = true

		t.segments = append(t.segments, segment{literal: raw[:open], field: field})
		t.fields = append(t.fields, field)
	}

	if len(t.fields) == 0 {
		return nil, errors.New("pathcodec: template has no fields")
	}

	return t, nil
}

// Root returns the static prefix before the first field segment. Symbol
// enumeration scans under it.
func (t *Template) Root() string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.field != "" {
			break
		}
		b.WriteString(seg.literal)
		b.WriteByte('/')
	}
	return b.String()
}

// Encode renders a coordinate into a key prefix. Wildcard fields end the
// rendering, producing a shorter prefix suitable for listing; a set field
// after a wildcard is rejected with ErrInvalidCoordinate since positional
// correctness determines key order.
func (t *Template) Encode(c Coordinate) (string, error) {
	prefix, stopped, err := t.render(c)
	if err != nil {
		return "", err
	}

	if stopped >= 0 {
		for _, field := range t.fields[stopped+1:] {
			if c.set(field) {
				return "", fmt.Errorf("%w: %s is set but %s is not",
					ErrInvalidCoordinate, field, t.fields[stopped])
			}
		}
	}

	return prefix, nil
}

// Prefix renders the longest leading prefix of the coordinate, ignoring set
// fields after the first wildcard. Listing filters use it together with
// Coordinate.Matches to narrow results the key order cannot.
func (t *Template) Prefix(c Coordinate) (string, error) {
	prefix, _, err := t.render(c)
	return prefix, err
}

// render walks the template until the first wildcard field. It returns the
// rendered prefix and the index (into t.fields) of the wildcard that stopped
// rendering, or -1 when every field was rendered.
func (t *Template) render(c Coordinate) (string, int, error) {
	var b strings.Builder
	fieldIdx := -1

	for _, seg := range t.segments {
		if seg.field == "" {
			b.WriteString(seg.literal)
			b.WriteByte('/')
			continue
		}

		fieldIdx++
		if !c.set(seg.field) {
			return b.String(), fieldIdx, nil
		}

		value, err := t.fieldValue(c, seg.field)
		if err != nil {
			return "", 0, err
		}

		b.WriteString(seg.literal)
		b.WriteString(value)
		b.WriteByte('/')
	}

	// Fully specified: the calendar date must exist
	if c.Year != 0 && c.Month != 0 && c.Day != 0 {
		if !validDate(c.Year, c.Month, c.Day) {
			return "", 0, fmt.Errorf("%w: %04d-%02d-%02d is not a calendar date",
				ErrInvalidCoordinate, c.Year, c.Month, c.Day)
		}
	}

	return b.String(), -1, nil
}

// fieldValue validates and renders one field. Numeric fields are fixed-width
// zero-padded so lexicographic key order matches chronological order.
func (t *Template) fieldValue(c Coordinate, field string) (string, error) {
	switch field {
	case FieldTimeframe:
		if !t.timeframes[c.Timeframe] {
			return "", fmt.Errorf("%w: unrecognized timeframe %q", ErrInvalidCoordinate, c.Timeframe)
		}
		return c.Timeframe, nil

	case FieldExchange:
		if strings.Contains(c.Exchange, "/") {
			return "", fmt.Errorf("%w: exchange must not contain '/'", ErrInvalidCoordinate)
		}
		return c.Exchange, nil

	case FieldSymbol:
		if strings.Contains(c.Symbol, "/") {
			return "", fmt.Errorf("%w: symbol must not contain '/'", ErrInvalidCoordinate)
		}
		return c.Symbol, nil

	case FieldYear:
		if c.Year < 1000 || c.Year > 9999 {
			return "", fmt.Errorf("%w: year %d outside [1000, 9999]", ErrInvalidCoordinate, c.Year)
		}
		return fmt.Sprintf("%04d", c.Year), nil

	case FieldMonth:
		if c.Month < 1 || c.Month > 12 {
			return "", fmt.Errorf("%w: month %d outside [1, 12]", ErrInvalidCoordinate, c.Month)
		}
		return fmt.Sprintf("%02d", c.Month), nil

	case FieldDay:
		if c.Day < 1 || c.Day > 31 {
			return "", fmt.Errorf("%w: day %d outside [1, 31]", ErrInvalidCoordinate, c.Day)
		}
		return fmt.Sprintf("%02d", c.Day), nil
	}

	return "", fmt.Errorf("%w: unknown field %q", ErrInvalidCoordinate, field)
}

// Decode parses a fully-specified key against the template. The trailing
// file segment is ignored. Keys from a different convention fail with
// ErrUnparsablePath; listings skip them rather than aborting.
func (t *Template) Decode(key string) (Coordinate, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) < len(t.segments) {
		return Coordinate{}, fmt.Errorf("%w: %q has %d segments, template needs %d",
			ErrUnparsablePath, key, len(parts), len(t.segments))
	}

	var c Coordinate
	for i, seg := range t.segments {
		part := parts[i]

		if seg.field == "" {
			if part != seg.literal {
				return Coordinate{}, fmt.Errorf("%w: segment %q does not match literal %q",
					ErrUnparsablePath, part, seg.literal)
			}
			continue
		}

		value, ok := strings.CutPrefix(part, seg.literal)
		if !ok || value == "" {
			return Coordinate{}, fmt.Errorf("%w: segment %q does not match %q",
				ErrUnparsablePath, part, seg.literal+"{"+seg.field+"}")
		}

		if err := assign(&c, seg.field, value); err != nil {
			return Coordinate{}, err
		}
	}

	if t.timeframes != nil && c.Timeframe != "" && !t.timeframes[c.Timeframe] {
		return Coordinate{}, fmt.Errorf("%w: unrecognized timeframe %q", ErrUnparsablePath, c.Timeframe)
	}
	if c.Year != 0 && c.Month != 0 && c.Day != 0 && !validDate(c.Year, c.Month, c.Day) {
		return Coordinate{}, fmt.Errorf("%w: %04d-%02d-%02d is not a calendar date",
			ErrUnparsablePath, c.Year, c.Month, c.Day)
	}

	return c, nil
}

// assign parses one decoded field value into the coordinate.
func assign(c *Coordinate, field, value string) error {
	switch field {
	case FieldTimeframe:
		c.Timeframe = value
	case FieldExchange:
		c.Exchange = value
	case FieldSymbol:
		c.Symbol = value
	case FieldYear, FieldMonth, FieldDay:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %s value %q is not numeric", ErrUnparsablePath, field, value)
		}
		switch field {
		case FieldYear:
			if n < 1000 || n > 9999 {
				return fmt.Errorf("%w: year %d outside [1000, 9999]", ErrUnparsablePath, n)
			}
			c.Year = n
		case FieldMonth:
			if n < 1 || n > 12 {
				return fmt.Errorf("%w: month %d outside [1, 12]", ErrUnparsablePath, n)
			}
			c.Month = n
		case FieldDay:
			if n < 1 || n > 31 {
				return fmt.Errorf("%w: day %d outside [1, 31]", ErrUnparsablePath, n)
			}
			c.Day = n
		}
	}
	return nil
}

// validDate reports whether y/m/d names a real calendar date.
func validDate(year, month, day int) bool {
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return d.Year() == year && d.Month() == time.Month(month) && d.Day() == day
}
