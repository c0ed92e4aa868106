package tablejoin

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVReadOptions configures CSV reading behavior
type CSVReadOptions struct {
	Delimiter   rune             // Field delimiter (default ',')
	HasHeader   bool             // First row is header (default true)
	ColumnNames []string         // Override column names
	ColumnTypes map[string]DType // Force column types
	InferTypes  bool             // Auto-detect types (default true)
	NullValues  []string         // Strings to treat as null
	SkipRows    int              // Skip first N rows
	MaxRows     int              // Max rows to read (0 = unlimited)
	TrimSpace   bool             // Trim whitespace from values
	Comment     rune             // Comment character (skip lines starting with this)
	Parallel    ParallelConfig   // When columns are built concurrently
}

// DefaultCSVReadOptions returns default CSV reading options
func DefaultCSVReadOptions() CSVReadOptions {
	return CSVReadOptions{
		Delimiter:  ',',
		HasHeader:  true,
		InferTypes: true,
		NullValues: []string{"", "null", "NULL", "NA", "N/A", "nan", "NaN"},
		TrimSpace:  true,
		Parallel:   DefaultParallelConfig(),
	}
}

// ReadCSV reads a CSV file into a DataFrame
func ReadCSV(path string, opts ...CSVReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadCSVFromReader(f, opts...)
}

// ReadCSVFromReader reads CSV data from an io.Reader into a DataFrame
func ReadCSVFromReader(r io.Reader, opts ...CSVReadOptions) (*DataFrame, error) {
	opt := DefaultCSVReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	reader := csv.NewReader(r)
	reader.Comma = opt.Delimiter
	if opt.Comment != 0 {
		reader.Comment = opt.Comment
	}
	reader.TrimLeadingSpace = opt.TrimSpace
	reader.FieldsPerRecord = -1

	for i := 0; i < opt.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip row %d: %w", i, err)
		}
	}

	var headers []string
	if opt.HasHeader {
		var err error
		headers, err = reader.Read()
		if err == io.EOF {
			return NewDataFrame()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read header: %w", err)
		}
	}
	if len(opt.ColumnNames) > 0 {
		headers = opt.ColumnNames
	}

	var records [][]string
	for {
		if opt.MaxRows > 0 && len(records) >= opt.MaxRows {
			break
		}
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(records), err)
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i := range record {
				headers[i] = fmt.Sprintf("column_%d", i)
			}
		}
		records = append(records, record)
	}

	nulls := make(map[string]bool, len(opt.NullValues))
	for _, nv := range opt.NullValues {
		nulls[nv] = true
	}

	columns := make([]*Series, len(headers))
	err := opt.Parallel.forEach(len(headers), len(records), func(i int) error {
		dtype, forced := opt.ColumnTypes[headers[i]]
		if !forced {
			dtype = String
			if opt.InferTypes {
				dtype = inferColumnType(records, i, nulls, opt.TrimSpace)
			}
		}
		col, err := buildColumn(headers[i], dtype, records, i, nulls, opt.TrimSpace)
		if err != nil {
			return fmt.Errorf("failed to build column '%s': %w", headers[i], err)
		}
		columns[i] = col
		return nil
	})
	if err != nil {
		return nil, err
	}

	return NewDataFrame(columns...)
}

// cell returns the field at colIdx and whether it holds a value.
func cell(record []string, colIdx int, nulls map[string]bool, trim bool) (string, bool) {
	if colIdx >= len(record) {
		return "", false
	}
	val := record[colIdx]
	if trim {
		val = strings.TrimSpace(val)
	}
	return val, !nulls[val]
}

func inferColumnType(records [][]string, colIdx int, nulls map[string]bool, trim bool) DType {
	hasInt := false
	hasFloat := false
	hasBool := false
	hasTime := false
	hasString := false
	seen := false

	for _, record := range records {
		val, ok := cell(record, colIdx, nulls, trim)
		if !ok {
			continue
		}
		seen = true

		if _, err := strconv.ParseInt(val, 10, 64); err == nil {
			hasInt = true
			continue
		}
		if _, err := strconv.ParseFloat(val, 64); err == nil {
			hasFloat = true
			continue
		}
		if lower := strings.ToLower(val); lower == "true" || lower == "false" {
			hasBool = true
			continue
		}
		if _, err := time.Parse(time.RFC3339Nano, val); err == nil {
			hasTime = true
			continue
		}
		hasString = true
	}

	switch {
	case !seen:
		return String
	case hasString:
		return String
	case hasBool && !hasInt && !hasFloat && !hasTime:
		return Bool
	case hasTime && !hasInt && !hasFloat && !hasBool:
		return DateTime
	case hasBool || hasTime:
		return String
	case hasFloat:
		return Float64
	default:
		return Int64
	}
}

func buildColumn(name string, dtype DType, records [][]string, colIdx int, nulls map[string]bool, trim bool) (*Series, error) {
	n := len(records)
	valid := make([]bool, n)

	switch dtype {
	case Float64, Float32:
		data := make([]float64, n)
		for i, record := range records {
			val, ok := cell(record, colIdx, nulls, trim)
			if !ok {
				continue
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as float64", i, val)
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
		for i, record := range records {
			val, ok := cell(record, colIdx, nulls, trim)
			if !ok {
				continue
			}
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as int64", i, val)
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
		for i, record := range records {
			val, ok := cell(record, colIdx, nulls, trim)
			if !ok {
				continue
			}
			switch strings.ToLower(val) {
			case "true", "1", "yes":
				data[i] = true
			case "false", "0", "no":
			default:
				return nil, fmt.Errorf("row %d: cannot parse '%s' as bool", i, val)
			}
			valid[i] = true
		}
		return NewSeriesBoolWithNulls(name, data, valid), nil

	case DateTime:
		data := make([]time.Time, n)
		for i, record := range records {
			val, ok := cell(record, colIdx, nulls, trim)
			if !ok {
				continue
			}
			t, err := time.Parse(time.RFC3339Nano, val)
			if err != nil {
				return nil, fmt.Errorf("row %d: cannot parse '%s' as datetime", i, val)
			}
			data[i], valid[i] = t, true
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case String, Categorical:
		data := make([]string, n)
		for i, record := range records {
			data[i], valid[i] = cell(record, colIdx, nulls, trim)
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

// CSVWriteOptions configures CSV writing behavior
type CSVWriteOptions struct {
	Delimiter   rune   // Field delimiter (default ',')
	WriteHeader bool   // Write header row (default true)
	NullString  string // String to write for null values (default "")
}

// DefaultCSVWriteOptions returns default CSV writing options
func DefaultCSVWriteOptions() CSVWriteOptions {
	return CSVWriteOptions{
		Delimiter:   ',',
		WriteHeader: true,
		NullString:  "",
	}
}

// WriteCSV writes a DataFrame to a CSV file
func (df *DataFrame) WriteCSV(path string, opts ...CSVWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := df.WriteCSVToWriter(w, opts...); err != nil {
		return err
	}
	return w.Flush()
}

// WriteCSVToWriter writes a DataFrame to an io.Writer
func (df *DataFrame) WriteCSVToWriter(w io.Writer, opts ...CSVWriteOptions) error {
	opt := DefaultCSVWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	writer := csv.NewWriter(w)
	writer.Comma = opt.Delimiter

	if opt.WriteHeader {
		if err := writer.Write(df.Columns()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	row := make([]string, df.Width())
	for i := 0; i < df.Height(); i++ {
		for j, col := range df.columns {
			val := col.Get(i)
			if val == nil {
				row[j] = opt.NullString
			} else {
				row[j] = formatValue(val)
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatValue(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case bool:
		return strconv.FormatBool(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("%v", val)
	}
}
