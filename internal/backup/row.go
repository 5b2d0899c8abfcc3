package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Row is one source record: column names in store order with their values.
type Row struct {
	Columns []string
	Values  []any
}

// NewRow pairs columns with values. Extra values are dropped, missing ones are nil.
func NewRow(columns []string, values []any) Row {
	vals := make([]any, len(columns))
	copy(vals, values)
	cols := make([]string, len(columns))
	copy(cols, columns)
	return Row{Columns: cols, Values: vals}
}

// Get returns the value of a column
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// MarshalJSON encodes the row as a JSON object, keeping column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		var v any
		if i < len(r.Values) {
			v = r.Values[i]
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
