package tablejoin

import (
	"fmt"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ============================================================================
// Arrow Export
// ============================================================================

// ToArrow exports a DataFrame to an Arrow Record. Nulls become Arrow nulls.
// The caller is responsible for calling Release() on the returned Record.
func (df *DataFrame) ToArrow(mem memory.Allocator) (arrow.Record, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}

	fields := make([]arrow.Field, df.Width())
	for i, col := range df.columns {
		arrowType, err := dtypeToArrowType(col.DType())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		fields[i] = arrow.Field{Name: col.Name(), Type: arrowType, Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	arrays := make([]arrow.Array, df.Width())
	for i, col := range df.columns {
		arr, err := seriesToArrowArray(col, mem)
		if err != nil {
			for j := 0; j < i; j++ {
				arrays[j].Release()
			}
			return nil, fmt.Errorf("column %s: %w", col.Name(), err)
		}
		arrays[i] = arr
	}

	record := array.NewRecord(schema, arrays, int64(df.Height()))

	// Record retains the arrays
	for _, arr := range arrays {
		arr.Release()
	}

	return record, nil
}

// ToArrowTable exports a DataFrame to an Arrow Table.
// The caller is responsible for calling Release() on the returned Table.
func (df *DataFrame) ToArrowTable(mem memory.Allocator) (arrow.Table, error) {
	record, err := df.ToArrow(mem)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	return array.NewTableFromRecords(record.Schema(), []arrow.Record{record}), nil
}

var categoricalArrowType = &arrow.DictionaryType{
	IndexType: arrow.PrimitiveTypes.Int32,
	ValueType: arrow.BinaryTypes.String,
}

func dtypeToArrowType(dtype DType) (arrow.DataType, error) {
	switch dtype {
	case Float64:
		return arrow.PrimitiveTypes.Float64, nil
	case Float32:
		return arrow.PrimitiveTypes.Float32, nil
	case Int64:
		return arrow.PrimitiveTypes.Int64, nil
	case Int32:
		return arrow.PrimitiveTypes.Int32, nil
	case Bool:
		return arrow.FixedWidthTypes.Boolean, nil
	case String:
		return arrow.BinaryTypes.String, nil
	case DateTime:
		return arrow.FixedWidthTypes.Timestamp_ns, nil
	case Categorical:
		return categoricalArrowType, nil
	case Null:
		return arrow.Null, nil
	default:
		return nil, fmt.Errorf("unsupported dtype: %s", dtype)
	}
}

// arrowValidity returns nil when every value is present so builders skip
// the bitmap.
func arrowValidity(s *Series) []bool {
	if !s.HasNulls() {
		return nil
	}
	return s.Validity()
}

func seriesToArrowArray(s *Series, mem memory.Allocator) (arrow.Array, error) {
	valid := arrowValidity(s)

	switch s.DType() {
	case Float64:
		builder := array.NewFloat64Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.Float64(), valid)
		return builder.NewArray(), nil

	case Float32:
		builder := array.NewFloat32Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.Float32(), valid)
		return builder.NewArray(), nil

	case Int64:
		builder := array.NewInt64Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.Int64(), valid)
		return builder.NewArray(), nil

	case Int32:
		builder := array.NewInt32Builder(mem)
		defer builder.Release()
		builder.AppendValues(s.Int32(), valid)
		return builder.NewArray(), nil

	case Bool:
		builder := array.NewBooleanBuilder(mem)
		defer builder.Release()
		builder.AppendValues(s.Bool(), valid)
		return builder.NewArray(), nil

	case String:
		builder := array.NewStringBuilder(mem)
		defer builder.Release()
		builder.AppendValues(s.Strings(), valid)
		return builder.NewArray(), nil

	case DateTime:
		builder := array.NewTimestampBuilder(mem, arrow.FixedWidthTypes.Timestamp_ns.(*arrow.TimestampType))
		defer builder.Release()
		ts := make([]arrow.Timestamp, s.Len())
		for i, v := range s.Int64() {
			ts[i] = arrow.Timestamp(v)
		}
		builder.AppendValues(ts, valid)
		return builder.NewArray(), nil

	case Categorical:
		builder := array.NewDictionaryBuilder(mem, categoricalArrowType)
		defer builder.Release()
		dictBuilder := builder.(*array.BinaryDictionaryBuilder)

		categories := s.Categories()
		for _, idx := range s.CategoricalIndices() {
			if idx < 0 {
				dictBuilder.AppendNull()
				continue
			}
			if err := dictBuilder.AppendString(categories[idx]); err != nil {
				return nil, err
			}
		}
		return builder.NewArray(), nil

	case Null:
		return array.NewNull(s.Len()), nil

	default:
		return nil, fmt.Errorf("unsupported dtype for Arrow export: %s", s.DType())
	}
}

// ============================================================================
// Arrow Import
// ============================================================================

// NewDataFrameFromArrow creates a DataFrame from an Arrow Record.
func NewDataFrameFromArrow(record arrow.Record) (*DataFrame, error) {
	if record == nil {
		return nil, fmt.Errorf("record is nil")
	}

	schema := record.Schema()
	series := make([]*Series, int(record.NumCols()))
	for i := range series {
		name := schema.Field(i).Name
		s, err := arrowArrayToSeries(name, record.Column(i))
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
		series[i] = s
	}

	return NewDataFrame(series...)
}

// NewDataFrameFromArrowTable creates a DataFrame from an Arrow Table,
// concatenating the chunks of each column.
func NewDataFrameFromArrowTable(table arrow.Table) (*DataFrame, error) {
	if table == nil {
		return nil, fmt.Errorf("table is nil")
	}

	schema := table.Schema()
	series := make([]*Series, int(table.NumCols()))
	for i := range series {
		field := schema.Field(i)
		chunks := table.Column(i).Data().Chunks()

		var s *Series
		var err error
		switch len(chunks) {
		case 0:
			s = emptySeriesForArrowType(field.Name, field.Type)
		case 1:
			s, err = arrowArrayToSeries(field.Name, chunks[0])
		default:
			var combined arrow.Array
			combined, err = array.Concatenate(chunks, memory.DefaultAllocator)
			if err == nil {
				s, err = arrowArrayToSeries(field.Name, combined)
				combined.Release()
			}
		}
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", field.Name, err)
		}
		series[i] = s
	}

	return NewDataFrame(series...)
}

func emptySeriesForArrowType(name string, dt arrow.DataType) *Series {
	switch dt.ID() {
	case arrow.FLOAT64:
		return NewSeriesFloat64(name, nil)
	case arrow.FLOAT32:
		return NewSeriesFloat32(name, nil)
	case arrow.INT64:
		return NewSeriesInt64(name, nil)
	case arrow.INT32:
		return NewSeriesInt32(name, nil)
	case arrow.BOOL:
		return NewSeriesBool(name, nil)
	case arrow.TIMESTAMP:
		return NewSeriesDateTime(name, nil)
	case arrow.DICTIONARY:
		return NewSeriesCategorical(name, nil)
	case arrow.NULL:
		return NewSeriesNull(name, 0)
	default:
		return NewSeriesString(name, nil)
	}
}

// nullMask reads the validity bitmap of an Arrow array.
func nullMask(arr arrow.Array) []bool {
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}

func arrowArrayToSeries(name string, arr arrow.Array) (*Series, error) {
	valid := nullMask(arr)

	switch a := arr.(type) {
	case *array.Float64:
		data := make([]float64, a.Len())
		copy(data, a.Float64Values())
		return NewSeriesFloat64WithNulls(name, data, valid), nil

	case *array.Float32:
		data := make([]float32, a.Len())
		copy(data, a.Float32Values())
		return NewSeriesFloat32WithNulls(name, data, valid), nil

	case *array.Int64:
		data := make([]int64, a.Len())
		copy(data, a.Int64Values())
		return NewSeriesInt64WithNulls(name, data, valid), nil

	case *array.Int32:
		data := make([]int32, a.Len())
		copy(data, a.Int32Values())
		return NewSeriesInt32WithNulls(name, data, valid), nil

	case *array.Boolean:
		data := make([]bool, a.Len())
		for i := range data {
			data[i] = a.Value(i)
		}
		return NewSeriesBoolWithNulls(name, data, valid), nil

	case *array.String:
		data := make([]string, a.Len())
		for i := range data {
			if a.IsValid(i) {
				data[i] = a.Value(i)
			}
		}
		return NewSeriesStringWithNulls(name, data, valid), nil

	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		data := make([]time.Time, a.Len())
		for i := range data {
			if a.IsValid(i) {
				data[i] = a.Value(i).ToTime(unit)
			}
		}
		return NewSeriesDateTimeWithNulls(name, data, valid), nil

	case *array.Dictionary:
		dict, ok := a.Dictionary().(*array.String)
		if !ok {
			return nil, fmt.Errorf("unsupported dictionary value type: %T", a.Dictionary())
		}
		data := make([]string, a.Len())
		for i := range data {
			if a.IsValid(i) {
				data[i] = dict.Value(a.GetValueIndex(i))
			}
		}
		return NewSeriesCategoricalWithNulls(name, data, valid), nil

	case *array.Null:
		return NewSeriesNull(name, a.Len()), nil

	default:
		return nil, fmt.Errorf("unsupported Arrow array type: %T", arr)
	}
}

// ============================================================================
// Arrow IPC Files
// ============================================================================

// WriteArrowIPC writes the DataFrame as a single-record Arrow IPC file.
func (df *DataFrame) WriteArrowIPC(path string) error {
	record, err := df.ToArrow(memory.DefaultAllocator)
	if err != nil {
		return err
	}
	defer record.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(record.Schema()), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := w.Write(record); err != nil {
		w.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close arrow writer: %w", err)
	}
	return f.Close()
}

// ReadArrowIPC reads every record of an Arrow IPC file into one DataFrame.
func ReadArrowIPC(path string) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return nil, fmt.Errorf("failed to read arrow file: %w", err)
	}
	defer r.Close()

	records := make([]arrow.Record, 0, r.NumRecords())
	defer func() {
		for _, rec := range records {
			rec.Release()
		}
	}()
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.RecordAt(i)
		if err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		records = append(records, rec)
	}

	table := array.NewTableFromRecords(r.Schema(), records)
	defer table.Release()
	return NewDataFrameFromArrowTable(table)
}
