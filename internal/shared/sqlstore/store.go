// Package sqlstore defines the SQL RPC contract shared by the remote D1 client and the local gorm store.
package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Statement is one parameterised SQL statement inside a batch.
type Statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// Row is a single result row keyed by column name.
type Row map[string]any

// Store executes read queries and multi-statement batches.
// Batch must apply all statements or none of them.
type Store interface {
	Query(ctx context.Context, sql string, params ...any) ([]Row, error)
	Batch(ctx context.Context, stmts []Statement) error
}

// NewStatement is a small helper for building batch entries.
func NewStatement(sql string, params ...any) Statement {
	if params == nil {
		params = []any{}
	}
	return Statement{SQL: sql, Params: params}
}

// Placeholders returns "?, ?, ?" for n parameters.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Deref unwraps pointer values such as the *interface{} drivers return for
// aggregate columns. A nil pointer becomes nil.
func Deref(v any) any {
	for v != nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Pointer {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		v = rv.Elem().Interface()
	}
	return v
}

// String returns the column as a string. Missing and NULL values return "".
func (r Row) String(col string) string {
	switch v := Deref(r[col]).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

// Float returns the column as float64.
func (r Row) Float(col string) (float64, error) {
	switch v := Deref(r[col]).(type) {
	case nil:
		return 0, fmt.Errorf("column %q is null", col)
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case json.Number:
		return v.Float64()
	case string:
		return strconv.ParseFloat(v, 64)
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	default:
		return 0, fmt.Errorf("column %q: unsupported type %T", col, v)
	}
}

// Int returns the column as int64.
func (r Row) Int(col string) (int64, error) {
	f, err := r.Float(col)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}
