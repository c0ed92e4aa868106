package tablejoin

import (
	"fmt"
	"time"
)

// Series is a named, immutable column of values sharing one DType.
//
// Values live in a typed backing slice; a nil validity mask means every
// value is present. Operations never modify a Series in place, they return
// a new one, so a Series can be shared freely between DataFrames.
type Series struct {
	name   string
	dtype  DType
	length int

	f64Data  []float64
	f32Data  []float32
	i64Data  []int64 // Int64 and DateTime (unix nanoseconds)
	i32Data  []int32
	boolData []bool
	strData  []string
	catData  *categoricalData

	valid []bool
}

// categoricalData is the dictionary encoding of a Categorical series.
type categoricalData struct {
	Categories []string
	Indices    []int32 // -1 marks a null
}

// ============================================================================
// Construction
// ============================================================================

// NewSeriesFloat64 creates a Float64 Series from a Go slice.
func NewSeriesFloat64(name string, data []float64) *Series {
	return &Series{name: name, dtype: Float64, length: len(data), f64Data: data}
}

// NewSeriesFloat32 creates a Float32 Series from a Go slice.
func NewSeriesFloat32(name string, data []float32) *Series {
	return &Series{name: name, dtype: Float32, length: len(data), f32Data: data}
}

// NewSeriesInt64 creates an Int64 Series from a Go slice.
func NewSeriesInt64(name string, data []int64) *Series {
	return &Series{name: name, dtype: Int64, length: len(data), i64Data: data}
}

// NewSeriesInt32 creates an Int32 Series from a Go slice.
func NewSeriesInt32(name string, data []int32) *Series {
	return &Series{name: name, dtype: Int32, length: len(data), i32Data: data}
}

// NewSeriesBool creates a Bool Series from a Go slice.
func NewSeriesBool(name string, data []bool) *Series {
	return &Series{name: name, dtype: Bool, length: len(data), boolData: data}
}

// NewSeriesString creates a String Series from a Go slice.
func NewSeriesString(name string, data []string) *Series {
	return &Series{name: name, dtype: String, length: len(data), strData: data}
}

// NewSeriesDateTime creates a DateTime Series. Values are stored as unix
// nanoseconds in UTC.
func NewSeriesDateTime(name string, data []time.Time) *Series {
	nanos := make([]int64, len(data))
	for i, t := range data {
		nanos[i] = t.UnixNano()
	}
	return &Series{name: name, dtype: DateTime, length: len(data), i64Data: nanos}
}

// NewSeriesNull creates a Null Series of n missing values.
func NewSeriesNull(name string, n int) *Series {
	return &Series{name: name, dtype: Null, length: n, valid: make([]bool, n)}
}

// NewSeriesFloat64WithNulls creates a Float64 Series with null values.
// The valid slice indicates which values are valid (true) vs null (false).
func NewSeriesFloat64WithNulls(name string, data []float64, valid []bool) *Series {
	return NewSeriesFloat64(name, data).withValidity(valid)
}

// NewSeriesFloat32WithNulls creates a Float32 Series with null values.
func NewSeriesFloat32WithNulls(name string, data []float32, valid []bool) *Series {
	return NewSeriesFloat32(name, data).withValidity(valid)
}

// NewSeriesInt64WithNulls creates an Int64 Series with null values.
func NewSeriesInt64WithNulls(name string, data []int64, valid []bool) *Series {
	return NewSeriesInt64(name, data).withValidity(valid)
}

// NewSeriesInt32WithNulls creates an Int32 Series with null values.
func NewSeriesInt32WithNulls(name string, data []int32, valid []bool) *Series {
	return NewSeriesInt32(name, data).withValidity(valid)
}

// NewSeriesBoolWithNulls creates a Bool Series with null values.
func NewSeriesBoolWithNulls(name string, data []bool, valid []bool) *Series {
	return NewSeriesBool(name, data).withValidity(valid)
}

// NewSeriesStringWithNulls creates a String Series with null values.
func NewSeriesStringWithNulls(name string, data []string, valid []bool) *Series {
	return NewSeriesString(name, data).withValidity(valid)
}

// NewSeriesDateTimeWithNulls creates a DateTime Series with null values.
func NewSeriesDateTimeWithNulls(name string, data []time.Time, valid []bool) *Series {
	return NewSeriesDateTime(name, data).withValidity(valid)
}

// NewSeriesCategorical creates a Categorical Series, building the dictionary
// in order of first appearance.
func NewSeriesCategorical(name string, data []string) *Series {
	return NewSeriesCategoricalWithNulls(name, data, nil)
}

// NewSeriesCategoricalWithNulls creates a Categorical Series where entries
// with valid[i] == false are null.
func NewSeriesCategoricalWithNulls(name string, data []string, valid []bool) *Series {
	lookup := make(map[string]int32)
	categories := make([]string, 0)
	indices := make([]int32, len(data))

	for i, v := range data {
		if valid != nil && i < len(valid) && !valid[i] {
			indices[i] = -1
			continue
		}
		idx, ok := lookup[v]
		if !ok {
			idx = int32(len(categories))
			lookup[v] = idx
			categories = append(categories, v)
		}
		indices[i] = idx
	}

	s := &Series{
		name:    name,
		dtype:   Categorical,
		length:  len(data),
		catData: &categoricalData{Categories: categories, Indices: indices},
	}
	return s.withValidity(valid)
}

// NewSeriesCategoricalWithCategories creates a Categorical Series using a
// fixed dictionary. Every value must be one of the given categories.
func NewSeriesCategoricalWithCategories(name string, data []string, categories []string) (*Series, error) {
	lookup := make(map[string]int32, len(categories))
	for i, c := range categories {
		if _, dup := lookup[c]; dup {
			return nil, fmt.Errorf("duplicate category: %q", c)
		}
		lookup[c] = int32(i)
	}

	indices := make([]int32, len(data))
	for i, v := range data {
		idx, ok := lookup[v]
		if !ok {
			return nil, fmt.Errorf("value %q at row %d is not a declared category", v, i)
		}
		indices[i] = idx
	}

	return &Series{
		name:    name,
		dtype:   Categorical,
		length:  len(data),
		catData: &categoricalData{Categories: append([]string{}, categories...), Indices: indices},
	}, nil
}

// withValidity attaches a validity mask. A mask with no nulls is dropped so
// HasNulls stays cheap.
func (s *Series) withValidity(valid []bool) *Series {
	if valid == nil {
		return s
	}
	mask := make([]bool, s.length)
	hasNull := false
	for i := 0; i < s.length; i++ {
		if i < len(valid) && valid[i] {
			mask[i] = true
		} else {
			hasNull = true
		}
	}
	if hasNull {
		s.valid = mask
	}
	return s
}

// ============================================================================
// Metadata
// ============================================================================

// Name returns the series name.
func (s *Series) Name() string {
	return s.name
}

// DType returns the data type.
func (s *Series) DType() DType {
	return s.dtype
}

// Len returns the number of elements.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return s.length
}

// IsValid returns true if the value at the given index is valid (not null).
// Returns false if index is out of bounds.
func (s *Series) IsValid(i int) bool {
	if i < 0 || i >= s.length {
		return false
	}
	if s.dtype == Categorical && s.catData.Indices[i] < 0 {
		return false
	}
	return s.valid == nil || s.valid[i]
}

// NullCount returns the number of null values.
func (s *Series) NullCount() int {
	count := 0
	for i := 0; i < s.length; i++ {
		if !s.IsValid(i) {
			count++
		}
	}
	return count
}

// HasNulls returns true if the series has any null values.
func (s *Series) HasNulls() bool {
	if s.valid != nil {
		return true
	}
	if s.dtype == Categorical {
		for _, idx := range s.catData.Indices {
			if idx < 0 {
				return true
			}
		}
	}
	return false
}

// Validity returns a copy of the validity mask (true = present).
func (s *Series) Validity() []bool {
	mask := make([]bool, s.length)
	for i := range mask {
		mask[i] = s.IsValid(i)
	}
	return mask
}

// ============================================================================
// Data Access
// ============================================================================

// The typed accessors return the backing slice. Callers must not modify it.

// Float64 returns the backing data of a Float64 series.
func (s *Series) Float64() []float64 { return s.f64Data }

// Float32 returns the backing data of a Float32 series.
func (s *Series) Float32() []float32 { return s.f32Data }

// Int64 returns the backing data of an Int64 or DateTime series.
func (s *Series) Int64() []int64 { return s.i64Data }

// Int32 returns the backing data of an Int32 series.
func (s *Series) Int32() []int32 { return s.i32Data }

// Bool returns the backing data of a Bool series.
func (s *Series) Bool() []bool { return s.boolData }

// Strings returns the backing data of a String series. For a Categorical
// series the decoded values are returned in a fresh slice.
func (s *Series) Strings() []string {
	if s.dtype == Categorical {
		out := make([]string, s.length)
		for i, idx := range s.catData.Indices {
			if idx >= 0 {
				out[i] = s.catData.Categories[idx]
			}
		}
		return out
	}
	return s.strData
}

// Categories returns the dictionary of a Categorical series.
func (s *Series) Categories() []string {
	if s.catData == nil {
		return nil
	}
	return s.catData.Categories
}

// CategoricalIndices returns the dictionary indices of a Categorical series.
func (s *Series) CategoricalIndices() []int32 {
	if s.catData == nil {
		return nil
	}
	return s.catData.Indices
}

// Get returns the value at index i boxed in an interface, or nil when the
// value is null or out of range.
func (s *Series) Get(i int) any {
	if !s.IsValid(i) {
		return nil
	}
	switch s.dtype {
	case Float64:
		return s.f64Data[i]
	case Float32:
		return s.f32Data[i]
	case Int64:
		return s.i64Data[i]
	case Int32:
		return s.i32Data[i]
	case Bool:
		return s.boolData[i]
	case String:
		return s.strData[i]
	case DateTime:
		return time.Unix(0, s.i64Data[i]).UTC()
	case Categorical:
		return s.catData.Categories[s.catData.Indices[i]]
	default:
		return nil
	}
}

// GetString returns the value at index i as a string, and false if null.
func (s *Series) GetString(i int) (string, bool) {
	v := s.Get(i)
	if v == nil {
		return "", false
	}
	if str, ok := v.(string); ok {
		return str, true
	}
	return fmt.Sprintf("%v", v), true
}

// GetInt64 returns the value at index i as an int64, and false if null or
// not an integer series.
func (s *Series) GetInt64(i int) (int64, bool) {
	if !s.IsValid(i) {
		return 0, false
	}
	switch s.dtype {
	case Int64:
		return s.i64Data[i], true
	case Int32:
		return int64(s.i32Data[i]), true
	default:
		return 0, false
	}
}

// GetFloat64 returns the value at index i as a float64, and false if null or
// not numeric.
func (s *Series) GetFloat64(i int) (float64, bool) {
	if !s.IsValid(i) {
		return 0, false
	}
	switch s.dtype {
	case Float64:
		return s.f64Data[i], true
	case Float32:
		return float64(s.f32Data[i]), true
	case Int64:
		return float64(s.i64Data[i]), true
	case Int32:
		return float64(s.i32Data[i]), true
	default:
		return 0, false
	}
}

// ============================================================================
// Transformations
// ============================================================================

// Rename returns a copy of the series under a new name. The backing data is
// shared, which is safe because series are never modified in place.
func (s *Series) Rename(name string) *Series {
	out := *s
	out.name = name
	return &out
}

// Take gathers the rows at the given indices into a new series. An index of
// -1 produces a null.
func (s *Series) Take(indices []int) *Series {
	return s.take(s.name, indices)
}

func (s *Series) take(name string, indices []int) *Series {
	n := len(indices)
	out := &Series{name: name, dtype: s.dtype, length: n}

	var valid []bool
	markNull := func(i int) {
		if valid == nil {
			valid = make([]bool, n)
			for j := 0; j < i; j++ {
				valid[j] = true
			}
		}
	}
	markValid := func(i int) {
		if valid != nil {
			valid[i] = true
		}
	}

	switch s.dtype {
	case Float64:
		out.f64Data = make([]float64, n)
	case Float32:
		out.f32Data = make([]float32, n)
	case Int64, DateTime:
		out.i64Data = make([]int64, n)
	case Int32:
		out.i32Data = make([]int32, n)
	case Bool:
		out.boolData = make([]bool, n)
	case String:
		out.strData = make([]string, n)
	case Categorical:
		out.catData = &categoricalData{Categories: s.catData.Categories, Indices: make([]int32, n)}
	}

	for i, idx := range indices {
		if idx < 0 || !s.IsValid(idx) {
			markNull(i)
			if s.dtype == Categorical {
				out.catData.Indices[i] = -1
			}
			continue
		}
		markValid(i)
		switch s.dtype {
		case Float64:
			out.f64Data[i] = s.f64Data[idx]
		case Float32:
			out.f32Data[i] = s.f32Data[idx]
		case Int64, DateTime:
			out.i64Data[i] = s.i64Data[idx]
		case Int32:
			out.i32Data[i] = s.i32Data[idx]
		case Bool:
			out.boolData[i] = s.boolData[idx]
		case String:
			out.strData[i] = s.strData[idx]
		case Categorical:
			out.catData.Indices[i] = s.catData.Indices[idx]
		}
	}

	if s.dtype == Null {
		valid = make([]bool, n)
	}
	out.valid = valid
	return out
}

// Slice returns a new Series containing elements [start, end).
func (s *Series) Slice(start, end int) *Series {
	if start < 0 {
		start = 0
	}
	if end > s.length {
		end = s.length
	}
	if start > end {
		start = end
	}
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return s.Take(indices)
}

// Head returns a new Series with the first n elements.
func (s *Series) Head(n int) *Series {
	return s.Slice(0, n)
}

// String renders a short description of the series.
func (s *Series) String() string {
	return fmt.Sprintf("Series[%s](%s, len=%d, nulls=%d)", s.name, s.dtype, s.length, s.NullCount())
}

// Equal reports whether two series have the same name, dtype, validity and
// values. Categorical series compare by decoded value.
func (s *Series) Equal(other *Series) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.name != other.name || s.dtype != other.dtype || s.length != other.length {
		return false
	}
	for i := 0; i < s.length; i++ {
		if s.IsValid(i) != other.IsValid(i) {
			return false
		}
		if !s.IsValid(i) {
			continue
		}
		a, b := s.Get(i), other.Get(i)
		if ta, ok := a.(time.Time); ok {
			if !ta.Equal(b.(time.Time)) {
				return false
			}
			continue
		}
		if a != b {
			return false
		}
	}
	return true
}
