package tablejoin

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ReadSQL runs query and loads the result set into a DataFrame.
func ReadSQL(ctx context.Context, db Querier, query string, args ...any) (*DataFrame, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	return ReadSQLRows(rows)
}

// ReadSQLRows loads the remaining rows of a result set into a DataFrame.
// Column dtypes follow the driver values: integers become Int64, reals
// Float64 (or Int64 mixed with Float64), text and blobs String, booleans Bool
// and times DateTime. SQL NULL becomes a null; a column of only NULLs has
// dtype Null. The caller still owns rows and must close it.
func ReadSQLRows(rows *sql.Rows) (*DataFrame, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	values := make([][]any, len(names))
	dest := make([]any, len(names))
	cells := make([]any, len(names))
	height := 0
	for rows.Next() {
		for i := range cells {
			cells[i] = nil
			dest[i] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row %d: %w", height, err)
		}
		for i, v := range cells {
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			values[i] = append(values[i], v)
		}
		height++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	columns := make([]*Series, len(names))
	for i, name := range names {
		col, err := buildSQLColumn(name, values[i], height)
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", name, err)
		}
		columns[i] = col
	}
	return NewDataFrame(columns...)
}

func inferSQLType(values []any) DType {
	kinds := make(map[DType]bool)
	for _, v := range values {
		switch v.(type) {
		case nil:
		case int64, int32, int:
			kinds[Int64] = true
		case float64, float32:
			kinds[Float64] = true
		case bool:
			kinds[Bool] = true
		case time.Time:
			kinds[DateTime] = true
		default:
			kinds[String] = true
		}
	}
	switch {
	case len(kinds) == 0:
		return Null
	case len(kinds) == 1:
		for k := range kinds {
			return k
		}
	case len(kinds) == 2 && kinds[Int64] && kinds[Float64]:
		return Float64
	}
	return String
}

func buildSQLColumn(name string, values []any, height int) (*Series, error) {
	dtype := inferSQLType(values)
	valid := make([]bool, height)
	for i, v := range values {
		valid[i] = v != nil
	}

	switch dtype {
	case Int64:
		data := make([]int64, height)
		for i, v := range values {
			switch x := v.(type) {
			case int64:
				data[i] = x
			case int32:
				data[i] = int64(x)
			case int:
				data[i] = int64(x)
			}
		}
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case Float64:
		data := make([]float64, height)
		for i, v := range values {
			switch x := v.(type) {
			case float64:
				data[i] = x
			case float32:
				data[i] = float64(x)
			case int64:
				data[i] = float64(x)
			case int32:
				data[i] = float64(x)
			case int:
				data[i] = float64(x)
			}
		}
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case Bool:
		data := make([]bool, height)
		for i, v := range values {
			data[i], _ = v.(bool)
		}
		return NewSeriesBoolWithNulls(name, data, valid), nil

	case DateTime:
		data := make([]time.Time, height)
		for i, v := range values {
			data[i], _ = v.(time.Time)
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case String:
		data := make([]string, height)
		for i, v := range values {
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				data[i] = s
			} else {
				data[i] = formatValue(v)
			}
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	case Null:
		return NewSeriesNull(name, height), nil

	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}
