package tablejoin

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
)

// columnOrderKey is the file metadata entry holding the DataFrame column
// order, which the schema itself does not keep.
const columnOrderKey = "tablejoin.columns"

// ParquetReadOptions configures Parquet reading behavior
type ParquetReadOptions struct {
	Columns  []string       // Only read these columns (nil = all)
	MaxRows  int            // Max rows to read (0 = unlimited)
	Parallel ParallelConfig // When row groups are decoded concurrently
}

// DefaultParquetReadOptions returns default Parquet reading options
func DefaultParquetReadOptions() ParquetReadOptions {
	return ParquetReadOptions{Parallel: DefaultParallelConfig()}
}

// ReadParquet reads a Parquet file into a DataFrame
func ReadParquet(path string, opts ...ParquetReadOptions) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return ReadParquetFromReader(f, stat.Size(), opts...)
}

// colBuilder accumulates one column's values and validity while reading.
type colBuilder struct {
	dtype    DType
	f64Data  []float64
	f32Data  []float32
	i64Data  []int64
	i32Data  []int32
	boolData []bool
	strData  []string
	valid    []bool
}

func (b *colBuilder) appendValue(val parquet.Value) {
	null := val.IsNull()
	b.valid = append(b.valid, !null)

	switch b.dtype {
	case Float64:
		var v float64
		if !null {
			v = val.Double()
		}
		b.f64Data = append(b.f64Data, v)
	case Float32:
		var v float32
		if !null {
			v = val.Float()
		}
		b.f32Data = append(b.f32Data, v)
	case Int64, DateTime:
		var v int64
		if !null {
			v = val.Int64()
		}
		b.i64Data = append(b.i64Data, v)
	case Int32:
		var v int32
		if !null {
			v = val.Int32()
		}
		b.i32Data = append(b.i32Data, v)
	case Bool:
		b.boolData = append(b.boolData, !null && val.Boolean())
	default:
		var v string
		if !null {
			v = string(val.ByteArray())
		}
		b.strData = append(b.strData, v)
	}
}

func (b *colBuilder) appendBuilder(other *colBuilder) {
	b.f64Data = append(b.f64Data, other.f64Data...)
	b.f32Data = append(b.f32Data, other.f32Data...)
	b.i64Data = append(b.i64Data, other.i64Data...)
	b.i32Data = append(b.i32Data, other.i32Data...)
	b.boolData = append(b.boolData, other.boolData...)
	b.strData = append(b.strData, other.strData...)
	b.valid = append(b.valid, other.valid...)
}

func (b *colBuilder) series(name string, n int) *Series {
	valid := b.valid[:n]
	switch b.dtype {
	case Float64:
		return NewSeriesFloat64WithNulls(name, b.f64Data[:n], valid)
	case Float32:
		return NewSeriesFloat32WithNulls(name, b.f32Data[:n], valid)
	case Int64:
		return NewSeriesInt64WithNulls(name, b.i64Data[:n], valid)
	case Int32:
		return NewSeriesInt32WithNulls(name, b.i32Data[:n], valid)
	case Bool:
		return NewSeriesBoolWithNulls(name, b.boolData[:n], valid)
	case DateTime:
		times := make([]time.Time, n)
		for i, ns := range b.i64Data[:n] {
			times[i] = time.Unix(0, ns).UTC()
		}
		return NewSeriesDateTimeWithNulls(name, times, valid)
	default:
		return NewSeriesStringWithNulls(name, b.strData[:n], valid)
	}
}

// ReadParquetFromReader reads Parquet data from an io.ReaderAt into a DataFrame
func ReadParquetFromReader(r io.ReaderAt, size int64, opts ...ParquetReadOptions) (*DataFrame, error) {
	opt := DefaultParquetReadOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}

	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	schema := pf.Schema()

	// leaf column index by top-level field name
	colIndexMap := make(map[string]int)
	for i, path := range schema.Columns() {
		if len(path) > 0 {
			colIndexMap[path[0]] = i
		}
	}

	var colNames []string
	if len(opt.Columns) > 0 {
		colNames = opt.Columns
	} else {
		colNames = storedColumnOrder(pf, colIndexMap)
		if colNames == nil {
			for _, f := range schema.Fields() {
				colNames = append(colNames, f.Name())
			}
		}
	}

	dtypes := make([]DType, len(colNames))
	wanted := make(map[int]int, len(colNames)) // leaf index -> output position
	for i, name := range colNames {
		idx, ok := colIndexMap[name]
		if !ok {
			return nil, fmt.Errorf("column '%s' not found in parquet file", name)
		}
		wanted[idx] = i
		dtypes[i] = parquetFieldToDType(schema, name)
	}

	rowGroups := pf.RowGroups()
	perGroup := make([][]colBuilder, len(rowGroups))
	err = opt.Parallel.forEach(len(rowGroups), int(pf.NumRows()), func(g int) error {
		builders := make([]colBuilder, len(colNames))
		for i := range builders {
			builders[i].dtype = dtypes[i]
		}
		if err := readRowGroup(rowGroups[g], wanted, builders); err != nil {
			return fmt.Errorf("row group %d: %w", g, err)
		}
		perGroup[g] = builders
		return nil
	})
	if err != nil {
		return nil, err
	}

	merged := make([]colBuilder, len(colNames))
	for i := range merged {
		merged[i].dtype = dtypes[i]
		for _, builders := range perGroup {
			merged[i].appendBuilder(&builders[i])
		}
	}

	height := int(pf.NumRows())
	if len(merged) > 0 {
		height = len(merged[0].valid)
	}
	if opt.MaxRows > 0 && height > opt.MaxRows {
		height = opt.MaxRows
	}

	columns := make([]*Series, len(colNames))
	for i, name := range colNames {
		columns[i] = merged[i].series(name, height)
	}
	return NewDataFrame(columns...)
}

// storedColumnOrder returns the column order recorded by WriteParquet, or
// nil when the file has none or it does not match the schema.
func storedColumnOrder(pf *parquet.File, leaves map[string]int) []string {
	raw, ok := pf.Lookup(columnOrderKey)
	if !ok {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil || len(names) != len(leaves) {
		return nil
	}
	for _, n := range names {
		if _, ok := leaves[n]; !ok {
			return nil
		}
	}
	return names
}

func readRowGroup(rg parquet.RowGroup, wanted map[int]int, builders []colBuilder) error {
	rows := rg.Rows()
	defer rows.Close()

	rowBuf := make([]parquet.Row, 1000)
	for {
		n, err := rows.ReadRows(rowBuf)
		for _, row := range rowBuf[:n] {
			for _, v := range row {
				if pos, ok := wanted[v.Column()]; ok {
					builders[pos].appendValue(v)
				}
			}
		}
		if err == io.EOF || (err == nil && n == 0) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read rows: %w", err)
		}
	}
}

func parquetFieldToDType(schema *parquet.Schema, name string) DType {
	for _, field := range schema.Fields() {
		if field.Name() != name {
			continue
		}
		t := field.Type()
		if t == nil {
			return String
		}
		if lt := t.LogicalType(); lt != nil && lt.Timestamp != nil {
			return DateTime
		}
		switch t.Kind() {
		case parquet.Boolean:
			return Bool
		case parquet.Int32:
			return Int32
		case parquet.Int64:
			return Int64
		case parquet.Float:
			return Float32
		case parquet.Double:
			return Float64
		default:
			return String
		}
	}
	return String
}

// ParquetWriteOptions configures Parquet writing behavior
type ParquetWriteOptions struct {
	Compression  string // "snappy", "gzip", "zstd", "none" (default "snappy")
	RowGroupSize int    // Rows per write batch (default 1000)
}

// DefaultParquetWriteOptions returns default Parquet writing options
func DefaultParquetWriteOptions() ParquetWriteOptions {
	return ParquetWriteOptions{
		Compression:  "snappy",
		RowGroupSize: 1000,
	}
}

// WriteParquet writes a DataFrame to a Parquet file
func (df *DataFrame) WriteParquet(path string, opts ...ParquetWriteOptions) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := df.WriteParquetToWriter(f, opts...); err != nil {
		return err
	}
	return f.Close()
}

// WriteParquetToWriter writes a DataFrame to an io.Writer. Every column is
// written as an optional leaf so nulls survive the round trip. Categorical
// columns are stored as strings.
func (df *DataFrame) WriteParquetToWriter(w io.Writer, opts ...ParquetWriteOptions) error {
	opt := DefaultParquetWriteOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.RowGroupSize <= 0 {
		opt.RowGroupSize = 1000
	}

	if df.Width() == 0 {
		return fmt.Errorf("cannot write parquet: dataframe has no columns")
	}

	group := make(parquet.Group)
	for _, col := range df.columns {
		group[col.Name()] = parquet.Optional(dtypeToParquetNode(col.DType()))
	}
	schema := parquet.NewSchema("dataframe", group)

	// a Group orders its leaves by name, not by DataFrame position
	leafOf := make([]int, df.Width())
	for leaf, path := range schema.Columns() {
		if pos, ok := df.ColumnIndex(path[0]); ok {
			leafOf[pos] = leaf
		}
	}

	order, err := json.Marshal(df.Columns())
	if err != nil {
		return fmt.Errorf("failed to encode column order: %w", err)
	}
	writerOpts := []parquet.WriterOption{schema, parquet.KeyValueMetadata(columnOrderKey, string(order))}
	switch opt.Compression {
	case "snappy":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Snappy))
	case "gzip":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Gzip))
	case "zstd":
		writerOpts = append(writerOpts, parquet.Compression(&parquet.Zstd))
	}

	pw := parquet.NewWriter(w, writerOpts...)

	rows := make([]parquet.Row, 0, opt.RowGroupSize)
	for i := 0; i < df.Height(); i++ {
		row := make(parquet.Row, df.Width())
		for j, col := range df.columns {
			leaf := leafOf[j]
			if !col.IsValid(i) {
				row[leaf] = parquet.NullValue().Level(0, 0, leaf)
				continue
			}
			row[leaf] = toParquetValue(col, i).Level(0, 1, leaf)
		}
		rows = append(rows, row)

		if len(rows) >= opt.RowGroupSize {
			if _, err := pw.WriteRows(rows); err != nil {
				pw.Close()
				return fmt.Errorf("failed to write rows at %d: %w", i-len(rows)+1, err)
			}
			rows = rows[:0]
		}
	}

	if len(rows) > 0 {
		if _, err := pw.WriteRows(rows); err != nil {
			pw.Close()
			return fmt.Errorf("failed to write final rows: %w", err)
		}
	}

	return pw.Close()
}

func dtypeToParquetNode(dtype DType) parquet.Node {
	switch dtype {
	case Float64:
		return parquet.Leaf(parquet.DoubleType)
	case Float32:
		return parquet.Leaf(parquet.FloatType)
	case Int64:
		return parquet.Leaf(parquet.Int64Type)
	case Int32:
		return parquet.Leaf(parquet.Int32Type)
	case Bool:
		return parquet.Leaf(parquet.BooleanType)
	case DateTime:
		return parquet.Timestamp(parquet.Nanosecond)
	default:
		return parquet.String()
	}
}

func toParquetValue(s *Series, i int) parquet.Value {
	switch s.DType() {
	case Float64:
		return parquet.DoubleValue(s.Float64()[i])
	case Float32:
		return parquet.FloatValue(s.Float32()[i])
	case Int64, DateTime:
		return parquet.Int64Value(s.Int64()[i])
	case Int32:
		return parquet.Int32Value(s.Int32()[i])
	case Bool:
		return parquet.BooleanValue(s.Bool()[i])
	default:
		str, _ := s.GetString(i)
		return parquet.ByteArrayValue([]byte(str))
	}
}
