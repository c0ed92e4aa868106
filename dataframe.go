package tablejoin

import (
	"fmt"
)

// DataFrame is an ordered collection of equally long, uniquely named Series.
//
// A DataFrame is immutable: every operation returns a new DataFrame, and
// Series are shared between frames rather than copied.
type DataFrame struct {
	columns []*Series
	index   map[string]int
	height  int
}

// ============================================================================
// Creation
// ============================================================================

// NewDataFrame creates a DataFrame from the given columns.
// All series must have the same length and distinct names.
func NewDataFrame(series ...*Series) (*DataFrame, error) {
	df := &DataFrame{
		columns: make([]*Series, 0, len(series)),
		index:   make(map[string]int, len(series)),
	}

	for i, s := range series {
		if s == nil {
			return nil, fmt.Errorf("column %d is nil", i)
		}
		if i == 0 {
			df.height = s.Len()
		} else if s.Len() != df.height {
			return nil, fmt.Errorf("column '%s' has length %d, expected %d", s.Name(), s.Len(), df.height)
		}
		if _, dup := df.index[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate column name: %s", s.Name())
		}
		df.index[s.Name()] = len(df.columns)
		df.columns = append(df.columns, s)
	}

	return df, nil
}

// mustDataFrame is used where the columns are known to be consistent.
func mustDataFrame(series ...*Series) *DataFrame {
	df, err := NewDataFrame(series...)
	if err != nil {
		panic(err)
	}
	return df
}

// ============================================================================
// Access
// ============================================================================

// Height returns the number of rows in the DataFrame.
func (df *DataFrame) Height() int {
	return df.height
}

// Width returns the number of columns in the DataFrame.
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Shape returns (rows, columns).
func (df *DataFrame) Shape() (int, int) {
	return df.height, len(df.columns)
}

// Columns returns the column names in order.
func (df *DataFrame) Columns() []string {
	names := make([]string, len(df.columns))
	for i, s := range df.columns {
		names[i] = s.Name()
	}
	return names
}

// Column returns the Series at position i, or nil if out of range.
func (df *DataFrame) Column(i int) *Series {
	if i < 0 || i >= len(df.columns) {
		return nil
	}
	return df.columns[i]
}

// ColumnByName returns the Series with the given name, or nil if not found.
func (df *DataFrame) ColumnByName(name string) *Series {
	if i, ok := df.index[name]; ok {
		return df.columns[i]
	}
	return nil
}

// ColumnIndex returns the position of the named column.
func (df *DataFrame) ColumnIndex(name string) (int, bool) {
	i, ok := df.index[name]
	return i, ok
}

// HasColumn reports whether a column with the given name exists.
func (df *DataFrame) HasColumn(name string) bool {
	_, ok := df.index[name]
	return ok
}

// Schema returns the schema of the DataFrame.
func (df *DataFrame) Schema() *Schema {
	names := make([]string, len(df.columns))
	dtypes := make([]DType, len(df.columns))
	for i, s := range df.columns {
		names[i] = s.Name()
		dtypes[i] = s.DType()
	}
	return &Schema{names: names, dtypes: dtypes}
}

// ============================================================================
// Selection
// ============================================================================

// Select returns a new DataFrame with only the specified columns, in the
// order given.
func (df *DataFrame) Select(columns ...string) (*DataFrame, error) {
	out := make([]*Series, 0, len(columns))
	for _, name := range columns {
		s := df.ColumnByName(name)
		if s == nil {
			return nil, fmt.Errorf("column '%s' not found", name)
		}
		out = append(out, s)
	}
	return NewDataFrame(out...)
}

// Drop returns a new DataFrame without the specified columns.
// Names that don't exist are ignored.
func (df *DataFrame) Drop(columns ...string) *DataFrame {
	dropSet := make(map[string]bool, len(columns))
	for _, name := range columns {
		dropSet[name] = true
	}

	out := make([]*Series, 0, len(df.columns))
	for _, s := range df.columns {
		if !dropSet[s.Name()] {
			out = append(out, s)
		}
	}
	result := mustDataFrame(out...)
	if len(out) == 0 {
		result.height = df.height
	}
	return result
}

// Rename returns a new DataFrame with a column renamed.
func (df *DataFrame) Rename(oldName, newName string) (*DataFrame, error) {
	i, ok := df.index[oldName]
	if !ok {
		return nil, fmt.Errorf("column '%s' not found", oldName)
	}
	out := make([]*Series, len(df.columns))
	copy(out, df.columns)
	out[i] = out[i].Rename(newName)
	return NewDataFrame(out...)
}

// WithColumn returns a new DataFrame with the column added or replaced in
// place.
func (df *DataFrame) WithColumn(series *Series) (*DataFrame, error) {
	out := make([]*Series, len(df.columns))
	copy(out, df.columns)
	if i, ok := df.index[series.Name()]; ok {
		out[i] = series
	} else {
		out = append(out, series)
	}
	return NewDataFrame(out...)
}

// ============================================================================
// Row Operations
// ============================================================================

// Take returns a new DataFrame with the rows at the given indices. An index
// of -1 produces a row of nulls.
func (df *DataFrame) Take(indices []int) *DataFrame {
	out := make([]*Series, len(df.columns))
	for i, s := range df.columns {
		out[i] = s.Take(indices)
	}
	result := mustDataFrame(out...)
	result.height = len(indices)
	return result
}

// Slice returns a new DataFrame with rows from start to end (exclusive).
func (df *DataFrame) Slice(start, end int) *DataFrame {
	if start < 0 {
		start = 0
	}
	if end > df.height {
		end = df.height
	}
	if start > end {
		start = end
	}
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return df.Take(indices)
}

// Head returns a new DataFrame with the first n rows.
func (df *DataFrame) Head(n int) *DataFrame {
	return df.Slice(0, n)
}

// Tail returns a new DataFrame with the last n rows.
func (df *DataFrame) Tail(n int) *DataFrame {
	return df.Slice(df.height-n, df.height)
}

// Clone creates a shallow copy of the DataFrame.
// The underlying Series are shared, not copied.
func (df *DataFrame) Clone() *DataFrame {
	out := make([]*Series, len(df.columns))
	copy(out, df.columns)
	result := mustDataFrame(out...)
	result.height = df.height
	return result
}

// Row returns the values of row i in column order, nil for nulls.
func (df *DataFrame) Row(i int) []any {
	row := make([]any, len(df.columns))
	for j, s := range df.columns {
		row[j] = s.Get(i)
	}
	return row
}

// Equal reports whether two DataFrames have the same columns and values.
func (df *DataFrame) Equal(other *DataFrame) bool {
	if df.height != other.height || len(df.columns) != len(other.columns) {
		return false
	}
	for i, s := range df.columns {
		if !s.Equal(other.columns[i]) {
			return false
		}
	}
	return true
}
