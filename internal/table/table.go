// Package table holds typed query results and serializes them into
// token-bounded text for language models.
package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/aibridge/internal/apierr"
)

// ColumnType is the declared SQL type of a result column.
type ColumnType string

const (
	TypeInt       ColumnType = "INT"
	TypeLong      ColumnType = "LONG"
	TypeShort     ColumnType = "SHORT"
	TypeByte      ColumnType = "BYTE"
	TypeFloat     ColumnType = "FLOAT"
	TypeDouble    ColumnType = "DOUBLE"
	TypeDecimal   ColumnType = "DECIMAL"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeDate      ColumnType = "DATE"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeBinary    ColumnType = "BINARY"
	TypeString    ColumnType = "STRING"
)

// TypedColumn is one entry of a result schema manifest.
type TypedColumn struct {
	Name     string     `json:"name"`
	TypeName ColumnType `json:"type_name"`
}

// Date is a calendar date without time or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// String renders d as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalJSON encodes d as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// ResultTable is an immutable header plus rows aligned positionally to it.
// A nil cell is SQL NULL regardless of the column type.
type ResultTable struct {
	Columns []TypedColumn
	Rows    [][]any
}

// Len returns the number of rows.
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Head returns a table sharing t's header and its first n rows.
func (t *ResultTable) Head(n int) *ResultTable {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	return &ResultTable{Columns: t.Columns, Rows: t.Rows[:n]}
}

// Coerce converts a raw remote cell into the Go value for its column type:
// integers to int64, floats and decimals to float64, booleans by a
// case-insensitive comparison with "true", dates and timestamps to the Date
// in their first ten characters, binary to the UTF-8 bytes of the string.
// Other types pass through as string. A nil raw value stays nil.
func Coerce(column TypedColumn, raw *string) (any, error) {
	if raw == nil {
		return nil, nil
	}
	value := *raw
	switch column.TypeName {
	case TypeInt, TypeLong, TypeShort, TypeByte:
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, apierr.Wrap(apierr.Decode, fmt.Sprintf("column %q: invalid %s", column.Name, column.TypeName), err)
		}
		return n, nil
	case TypeFloat, TypeDouble, TypeDecimal:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, apierr.Wrap(apierr.Decode, fmt.Sprintf("column %q: invalid %s", column.Name, column.TypeName), err)
		}
		return f, nil
	case TypeBoolean:
		return strings.ToLower(value) == "true", nil
	case TypeDate, TypeTimestamp:
		if len(value) < 10 {
			return nil, apierr.Newf(apierr.Decode, "column %q: invalid %s %q", column.Name, column.TypeName, value)
		}
		ts, err := time.Parse(time.DateOnly, value[:10])
		if err != nil {
			return nil, apierr.Wrap(apierr.Decode, fmt.Sprintf("column %q: invalid %s", column.Name, column.TypeName), err)
		}
		return Date{Year: ts.Year(), Month: ts.Month(), Day: ts.Day()}, nil
	case TypeBinary:
		return []byte(value), nil
	default:
		return value, nil
	}
}

// FromStatement builds a table from a schema manifest and the raw data
// array of a statement result. Every row must carry one cell per column.
func FromStatement(columns []TypedColumn, data [][]*string) (*ResultTable, error) {
	rows := make([][]any, 0, len(data))
	for i, raw := range data {
		if len(raw) != len(columns) {
			return nil, apierr.Newf(apierr.Decode, "row %d has %d cells, schema has %d columns", i, len(raw), len(columns))
		}
		row := make([]any, len(columns))
		for j, col := range columns {
			v, err := Coerce(col, raw[j])
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	return &ResultTable{Columns: columns, Rows: rows}, nil
}
