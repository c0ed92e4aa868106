package tablejoin

import (
	"fmt"
	"strings"
)

// DType is the element type of a column. Join keys are compared after both
// sides are widened to a common DType.
type DType uint8

const (
	// Integer keys widen to Int64 and mixed numeric keys to Float64.
	Float64 DType = iota
	Float32
	Int64
	Int32

	Bool
	String
	// DateTime holds nanoseconds since the Unix epoch and keys like Int64.
	DateTime

	// Null marks an all-missing column of unknown type, such as a CSV or
	// JSON column with no values. It pairs with any key type and never
	// matches.
	Null

	// Categorical keys compare by their string values, so they join with
	// String keys.
	Categorical
)

// String returns the name used in display headers and file metadata.
func (d DType) String() string {
	switch d {
	case Float64:
		return "Float64"
	case Float32:
		return "Float32"
	case Int64:
		return "Int64"
	case Int32:
		return "Int32"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case DateTime:
		return "DateTime"
	case Null:
		return "Null"
	case Categorical:
		return "Categorical"
	default:
		return fmt.Sprintf("Unknown(%d)", d)
	}
}

// ParseDType maps a dtype name (case-insensitive) back to its DType.
func ParseDType(name string) (DType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float64", "f64", "double":
		return Float64, nil
	case "float32", "f32", "float":
		return Float32, nil
	case "int64", "i64":
		return Int64, nil
	case "int32", "i32":
		return Int32, nil
	case "bool", "boolean":
		return Bool, nil
	case "string", "str", "utf8":
		return String, nil
	case "datetime", "timestamp":
		return DateTime, nil
	case "null":
		return Null, nil
	case "categorical", "category":
		return Categorical, nil
	default:
		return Null, fmt.Errorf("unknown dtype: %q", name)
	}
}

// IsNumeric reports whether keys of this dtype can pair with other numeric keys.
func (d DType) IsNumeric() bool {
	switch d {
	case Float64, Float32, Int64, Int32:
		return true
	default:
		return false
	}
}

// IsFloat reports whether NaN can occur in the column.
func (d DType) IsFloat() bool {
	return d == Float64 || d == Float32
}

// IsInteger reports whether keys of this dtype widen to Int64.
func (d DType) IsInteger() bool {
	return d == Int64 || d == Int32
}

// IsStringLike reports whether values of this dtype are strings,
// either plain or dictionary-encoded.
func (d DType) IsStringLike() bool {
	return d == String || d == Categorical
}

// Size is the width of one element in bytes, or -1 for strings.
func (d DType) Size() int {
	switch d {
	case Float64, Int64, DateTime:
		return 8
	case Float32, Int32:
		return 4
	case Bool:
		return 1
	case String, Categorical:
		return -1
	default:
		return 0
	}
}

// Schema lists the column names and dtypes of a DataFrame in order.
type Schema struct {
	names  []string
	dtypes []DType
}

// NewSchema pairs names with dtypes. Names must be unique.
func NewSchema(names []string, dtypes []DType) (*Schema, error) {
	if len(names) != len(dtypes) {
		return nil, fmt.Errorf("names and dtypes must have same length: %d != %d", len(names), len(dtypes))
	}

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("duplicate column name: %s", name)
		}
		seen[name] = true
	}

	return &Schema{
		names:  append([]string{}, names...),
		dtypes: append([]DType{}, dtypes...),
	}, nil
}

// Len is the column count.
func (s *Schema) Len() int {
	return len(s.names)
}

// Names returns a copy of the column names.
func (s *Schema) Names() []string {
	return append([]string{}, s.names...)
}

// DTypes returns a copy of the column dtypes.
func (s *Schema) DTypes() []DType {
	return append([]DType{}, s.dtypes...)
}

// GetDType looks a column up by name.
func (s *Schema) GetDType(name string) (DType, bool) {
	for i, n := range s.names {
		if n == name {
			return s.dtypes[i], true
		}
	}
	return Null, false
}

// GetIndex returns the 0-based position of a named column, the same
// position a #N key refers to.
func (s *Schema) GetIndex(name string) (int, bool) {
	for i, n := range s.names {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

func (s *Schema) String() string {
	var b strings.Builder
	b.WriteString("Schema{\n")
	for i, name := range s.names {
		fmt.Fprintf(&b, "  %s: %s\n", name, s.dtypes[i])
	}
	b.WriteString("}")
	return b.String()
}
