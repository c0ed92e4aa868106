package tablejoin

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// JSONFormat specifies the JSON output format
type JSONFormat int

const (
	// JSONRecords outputs as array of row objects: [{"a":1,"b":2}, {"a":3,"b":4}]
	JSONRecords JSONFormat = iota
	// JSONColumns outputs as object of column arrays: {"a":[1,3],"b":[2,4]}
	JSONColumns
)

// JSONReadOptions configures JSON reading behavior
type JSONReadOptions struct {
	Format      JSONFormat       // Expected format
	ColumnTypes map[string]DType // Force column types
}

// DefaultJSONReadOptions returns default JSON reading options
func DefaultJSONReadOptions() JSONReadOptions {
	return JSONReadOptions{
		Format: JSONRecords,
	}
}

// ReadJSON reads a JSON file into a DataFrame
func ReadJSON(path string, opts ...JSONReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadJSONFromReader(f, opts...)
}

// ReadJSONFromReader reads JSON data from an io.Reader into a DataFrame.
// Column order follows the order keys first appear in the input.
func ReadJSONFromReader(r io.Reader, opts ...JSONReadOptions) (*DataFrame, error) {
	opt := DefaultJSONReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	var (
		names  []string
		values map[string][]any
		height int
		err    error
	)
	switch opt.Format {
	case JSONRecords:
		names, values, height, err = decodeJSONRecords(dec)
	case JSONColumns:
		names, values, height, err = decodeJSONColumns(dec)
	default:
		return nil, fmt.Errorf("unknown JSON format: %d", opt.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	columns := make([]*Series, len(names))
	for i, name := range names {
		vals := values[name]
		for len(vals) < height {
			vals = append(vals, nil)
		}
		dtype, ok := opt.ColumnTypes[name]
		if !ok {
			dtype = inferJSONType(vals)
		}
		col, err := buildJSONColumn(name, dtype, vals)
		if err != nil {
			return nil, fmt.Errorf("failed to build column '%s': %w", name, err)
		}
		columns[i] = col
	}
	return NewDataFrame(columns...)
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// decodeJSONRecords walks [{...}, ...] keeping first-seen key order. Keys
// missing from a record become nulls.
func decodeJSONRecords(dec *json.Decoder) ([]string, map[string][]any, int, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, nil, 0, err
	}
	var names []string
	values := make(map[string][]any)
	row := 0
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, 0, err
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, nil, 0, err
			}
			key := tok.(string)
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, nil, 0, err
			}
			col, seen := values[key]
			if !seen {
				names = append(names, key)
			}
			for len(col) < row {
				col = append(col, nil)
			}
			values[key] = append(col, v)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, 0, err
		}
		row++
	}
	if err := expectDelim(dec, ']'); err != nil {
		return nil, nil, 0, err
	}
	return names, values, row, nil
}

// decodeJSONColumns walks {"a": [...], ...}. Shorter columns are padded
// with nulls.
func decodeJSONColumns(dec *json.Decoder) ([]string, map[string][]any, int, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, 0, err
	}
	var names []string
	values := make(map[string][]any)
	height := 0
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, 0, err
		}
		key := tok.(string)
		var col []any
		if err := dec.Decode(&col); err != nil {
			return nil, nil, 0, fmt.Errorf("column %q: %w", key, err)
		}
		if _, seen := values[key]; !seen {
			names = append(names, key)
		}
		values[key] = col
		if len(col) > height {
			height = len(col)
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, 0, err
	}
	return names, values, height, nil
}

// inferJSONType picks Int64 when every number is integral, Float64 for other
// numbers, Bool or String for uniform columns and String for mixed ones.
func inferJSONType(values []any) DType {
	hasInt, hasFloat, hasBool, hasString, seen := false, false, false, false, false
	for _, val := range values {
		switch v := val.(type) {
		case nil:
			continue
		case json.Number:
			if _, err := v.Int64(); err == nil {
				hasInt = true
			} else {
				hasFloat = true
			}
		case bool:
			hasBool = true
		default:
			hasString = true
		}
		seen = true
	}
	switch {
	case !seen:
		return Null
	case hasString || (hasBool && (hasInt || hasFloat)):
		return String
	case hasBool:
		return Bool
	case hasFloat:
		return Float64
	default:
		return Int64
	}
}

func buildJSONColumn(name string, dtype DType, values []any) (*Series, error) {
	n := len(values)
	valid := make([]bool, n)

	switch dtype {
	case Float64, Float32:
		data := make([]float64, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			f, err := jsonFloat(val)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			data[i], valid[i] = f, true
		}
		if dtype == Float32 {
			narrow := make([]float32, n)
			for i, f := range data {
				narrow[i] = float32(f)
			}
			return NewSeriesFloat32WithNulls(name, narrow, valid), nil
		}
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case Int64, Int32:
		data := make([]int64, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			num, ok := val.(json.Number)
			if !ok {
				return nil, fmt.Errorf("row %d: cannot use %v as int64", i, val)
			}
			v, err := num.Int64()
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			data[i], valid[i] = v, true
		}
		if dtype == Int32 {
			narrow := make([]int32, n)
			for i, v := range data {
				narrow[i] = int32(v)
			}
			return NewSeriesInt32WithNulls(name, narrow, valid), nil
		}
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case Bool:
		data := make([]bool, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			b, ok := val.(bool)
			if !ok {
				return nil, fmt.Errorf("row %d: cannot use %v as bool", i, val)
			}
			data[i], valid[i] = b, true
		}
		return NewSeriesBoolWithNulls(name, data, valid), nil

	case DateTime:
		data := make([]time.Time, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			s, ok := val.(string)
			if !ok {
				return nil, fmt.Errorf("row %d: cannot use %v as datetime", i, val)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			data[i], valid[i] = t, true
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case String, Categorical:
		data := make([]string, n)
		for i, val := range values {
			if val == nil {
				continue
			}
			if s, ok := val.(string); ok {
				data[i] = s
			} else {
				data[i] = fmt.Sprintf("%v", val)
			}
			valid[i] = true
		}
		if dtype == Categorical {
			return NewSeriesCategoricalWithNulls(name, data, valid), nil
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	case Null:
		return NewSeriesNull(name, n), nil

	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

func jsonFloat(val any) (float64, error) {
	num, ok := val.(json.Number)
	if !ok {
		return 0, fmt.Errorf("cannot use %v as float64", val)
	}
	return strconv.ParseFloat(num.String(), 64)
}

// JSONWriteOptions configures JSON writing behavior
type JSONWriteOptions struct {
	Format JSONFormat // Output format
	Indent string     // Indent string (default "", no indent)
}

// DefaultJSONWriteOptions returns default JSON writing options
func DefaultJSONWriteOptions() JSONWriteOptions {
	return JSONWriteOptions{
		Format: JSONRecords,
		Indent: "",
	}
}

// WriteJSON writes a DataFrame to a JSON file
func (df *DataFrame) WriteJSON(path string, opts ...JSONWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return df.WriteJSONToWriter(f, opts...)
}

// orderedObject marshals its pairs in order, unlike a map.
type orderedObject struct {
	keys   []string
	values []any
}

func (o orderedObject) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(o.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// WriteJSONToWriter writes a DataFrame to an io.Writer. Nulls are written as
// JSON null and datetimes as RFC 3339 strings.
func (df *DataFrame) WriteJSONToWriter(w io.Writer, opts ...JSONWriteOptions) error {
	opt := DefaultJSONWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	var data any
	names := df.Columns()

	switch opt.Format {
	case JSONRecords:
		records := make([]orderedObject, df.Height())
		for i := range records {
			records[i] = orderedObject{keys: names, values: df.Row(i)}
		}
		data = records

	case JSONColumns:
		obj := orderedObject{keys: names, values: make([]any, len(names))}
		for j, col := range df.columns {
			vals := make([]any, col.Len())
			for i := range vals {
				vals[i] = col.Get(i)
			}
			obj.values[j] = vals
		}
		data = obj

	default:
		return fmt.Errorf("unknown JSON format: %d", opt.Format)
	}

	encoder := json.NewEncoder(w)
	if opt.Indent != "" {
		encoder.SetIndent("", opt.Indent)
	}

	return encoder.Encode(data)
}
