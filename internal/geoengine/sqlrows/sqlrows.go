// Package sqlrows holds the SQL helpers shared by the geometry engines.
package sqlrows

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ondata/confini/pkg/errors"
	"github.com/ondata/confini/pkg/table"
)

// Ident quotes an SQL identifier.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Literal quotes an SQL string literal.
func Literal(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Queryer is the subset of *sql.DB the helpers need.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Table runs query and collects the result as a table of own columns.
// NULL becomes the empty string.
func Table(ctx context.Context, db Queryer, name, query string, args ...any) (*table.Table, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapIO("query", name, err)
	}
	defer func() { _ = rows.Close() }()

	names, err := rows.Columns()
	if err != nil {
		return nil, errors.WrapIO("query", name, err)
	}
	columns := make([]table.Column, len(names))
	for i, n := range names {
		columns[i] = table.Own(n)
	}
	t := table.New(name, columns...)

	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.WrapIO("scan", name, err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = Format(v)
		}
		if err := t.Append(row...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WrapIO("query", name, err)
	}
	return t, nil
}

// Format renders a scanned value as a cell.
func Format(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return fmt.Sprint(v)
	}
}
