package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"scheduled-backup/internal/backup"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Column types whose values are raw bytes rather than text
var binaryTypes = map[string]bool{
	"BINARY": true, "VARBINARY": true, "BIT": true, "GEOMETRY": true,
	"BLOB": true, "TINYBLOB": true, "MEDIUMBLOB": true, "LONGBLOB": true,
}

// TableReader reads source tables one page at a time
type TableReader struct {
	db *sql.DB
}

// NewTableReader creates a reader over db
func NewTableReader(db *sql.DB) *TableReader {
	return &TableReader{db: db}
}

// ReadPage returns up to limit rows of table starting at offset, in the store's natural order
func (r *TableReader) ReadPage(ctx context.Context, table string, offset, limit int) ([]backup.Row, error) {
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	query := fmt.Sprintf("SELECT * FROM %s LIMIT ? OFFSET ?", quoteIdentifier(table))
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s at offset %d: %w", table, offset, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types of %s: %w", table, err)
	}

	var page []backup.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table, err)
		}
		for i, v := range values {
			values[i] = normalizeValue(v, types[i])
		}
		page = append(page, backup.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return page, nil
}

// normalizeValue turns driver bytes into JSON-friendly values. Binary columns
// and bytes that are not valid UTF-8 stay []byte, which encodes as base64.
func normalizeValue(v any, columnType *sql.ColumnType) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	typeName := ""
	if columnType != nil {
		typeName = strings.ToUpper(columnType.DatabaseTypeName())
	}
	switch {
	case typeName == "JSON" && json.Valid(b):
		return json.RawMessage(append([]byte(nil), b...))
	case binaryTypes[typeName] || !utf8.Valid(b):
		return append([]byte(nil), b...)
	}
	return string(b)
}

func quoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
