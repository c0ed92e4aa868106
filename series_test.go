package tablejoin

import (
	"testing"
	"time"
)

func TestNewSeriesTyped(t *testing.T) {
	tests := []struct {
		series *Series
		dtype  DType
		length int
		first  any
	}{
		{NewSeriesFloat64("f64", []float64{1.5, 2.5}), Float64, 2, 1.5},
		{NewSeriesFloat32("f32", []float32{0.5}), Float32, 1, float32(0.5)},
		{NewSeriesInt64("i64", []int64{7, 8, 9}), Int64, 3, int64(7)},
		{NewSeriesInt32("i32", []int32{4}), Int32, 1, int32(4)},
		{NewSeriesBool("b", []bool{true, false}), Bool, 2, true},
		{NewSeriesString("s", []string{"x"}), String, 1, "x"},
		{NewSeriesCategorical("c", []string{"lo", "hi", "lo"}), Categorical, 3, "lo"},
	}

	for _, tt := range tests {
		if tt.series.DType() != tt.dtype {
			t.Errorf("%s: dtype = %s, want %s", tt.series.Name(), tt.series.DType(), tt.dtype)
		}
		if tt.series.Len() != tt.length {
			t.Errorf("%s: len = %d, want %d", tt.series.Name(), tt.series.Len(), tt.length)
		}
		if got := tt.series.Get(0); got != tt.first {
			t.Errorf("%s: Get(0) = %v, want %v", tt.series.Name(), got, tt.first)
		}
		if tt.series.HasNulls() {
			t.Errorf("%s: unexpected nulls", tt.series.Name())
		}
	}
}

func TestSeriesWithNulls(t *testing.T) {
	s := NewSeriesInt64WithNulls("x", []int64{1, 2, 3}, []bool{true, false, true})

	if s.NullCount() != 1 {
		t.Errorf("expected 1 null, got %d", s.NullCount())
	}
	if s.IsValid(1) {
		t.Error("expected index 1 to be null")
	}
	if s.Get(1) != nil {
		t.Errorf("expected nil for null value, got %v", s.Get(1))
	}
	if s.IsValid(-1) || s.IsValid(3) {
		t.Error("out of range indices must not be valid")
	}

	allValid := NewSeriesInt64WithNulls("y", []int64{1, 2}, []bool{true, true})
	if allValid.HasNulls() {
		t.Error("an all-true mask should be dropped")
	}

	short := NewSeriesStringWithNulls("z", []string{"a", "b", "c"}, []bool{true})
	if short.NullCount() != 2 {
		t.Errorf("missing mask entries count as null, got %d nulls", short.NullCount())
	}
}

func TestSeriesNull(t *testing.T) {
	s := NewSeriesNull("empty", 3)
	if s.DType() != Null || s.Len() != 3 || s.NullCount() != 3 {
		t.Errorf("unexpected null series: %s", s)
	}
	taken := s.Take([]int{0, 2})
	if taken.Len() != 2 || taken.NullCount() != 2 {
		t.Errorf("take of a null series must stay null: %s", taken)
	}
}

func TestSeriesCategorical(t *testing.T) {
	s := NewSeriesCategoricalWithNulls("c", []string{"b", "a", "", "b"}, []bool{true, true, false, true})

	if got := s.Categories(); len(got) != 2 || got[0] != "b" || got[1] != "a" {
		t.Errorf("categories should follow first appearance, got %v", got)
	}
	if idx := s.CategoricalIndices(); idx[2] != -1 {
		t.Errorf("null should be encoded as -1, got %d", idx[2])
	}
	if s.NullCount() != 1 {
		t.Errorf("expected 1 null, got %d", s.NullCount())
	}
	if strs := s.Strings(); strs[3] != "b" || strs[2] != "" {
		t.Errorf("unexpected decoded values %v", strs)
	}

	fixed, err := NewSeriesCategoricalWithCategories("f", []string{"lo", "hi"}, []string{"hi", "lo", "mid"})
	if err != nil {
		t.Fatalf("NewSeriesCategoricalWithCategories: %v", err)
	}
	if fixed.CategoricalIndices()[0] != 1 {
		t.Errorf("expected index of lo to be 1, got %d", fixed.CategoricalIndices()[0])
	}
	if _, err := NewSeriesCategoricalWithCategories("f", []string{"x"}, []string{"y"}); err == nil {
		t.Error("expected error for undeclared category")
	}
	if _, err := NewSeriesCategoricalWithCategories("f", nil, []string{"y", "y"}); err == nil {
		t.Error("expected error for duplicate category")
	}
}

func TestSeriesDateTime(t *testing.T) {
	ts := time.Date(2023, 7, 14, 9, 30, 0, 0, time.UTC)
	s := NewSeriesDateTimeWithNulls("ts", []time.Time{ts, {}}, []bool{true, false})

	got, ok := s.Get(0).(time.Time)
	if !ok || !got.Equal(ts) {
		t.Errorf("Get(0) = %v, want %v", s.Get(0), ts)
	}
	if s.Int64()[0] != ts.UnixNano() {
		t.Errorf("expected unix nanos backing, got %d", s.Int64()[0])
	}
	if s.Get(1) != nil {
		t.Error("expected null at index 1")
	}
}

func TestSeriesTypedGetters(t *testing.T) {
	i32 := NewSeriesInt32("n", []int32{5})
	if v, ok := i32.GetInt64(0); !ok || v != 5 {
		t.Errorf("GetInt64 = %d, %v", v, ok)
	}
	if v, ok := i32.GetFloat64(0); !ok || v != 5 {
		t.Errorf("GetFloat64 = %f, %v", v, ok)
	}
	if _, ok := NewSeriesString("s", []string{"5"}).GetInt64(0); ok {
		t.Error("GetInt64 on a string series must fail")
	}
	if v, ok := NewSeriesBool("b", []bool{true}).GetString(0); !ok || v != "true" {
		t.Errorf("GetString = %q, %v", v, ok)
	}
	if _, ok := NewSeriesStringWithNulls("s", []string{"a"}, []bool{false}).GetString(0); ok {
		t.Error("GetString on a null must report false")
	}
}

func TestSeriesTake(t *testing.T) {
	tests := []struct {
		name   string
		series *Series
	}{
		{"float64", NewSeriesFloat64("v", []float64{1, 2, 3})},
		{"float32", NewSeriesFloat32("v", []float32{1, 2, 3})},
		{"int64", NewSeriesInt64("v", []int64{1, 2, 3})},
		{"int32", NewSeriesInt32("v", []int32{1, 2, 3})},
		{"bool", NewSeriesBool("v", []bool{true, false, true})},
		{"string", NewSeriesString("v", []string{"a", "b", "c"})},
		{"categorical", NewSeriesCategorical("v", []string{"a", "b", "c"})},
		{"datetime", NewSeriesDateTime("v", []time.Time{time.Unix(1, 0), time.Unix(2, 0), time.Unix(3, 0)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taken := tt.series.Take([]int{2, -1, 0})
			if taken.Len() != 3 {
				t.Fatalf("expected 3 values, got %d", taken.Len())
			}
			if taken.IsValid(1) {
				t.Error("index -1 must produce a null")
			}
			if !taken.IsValid(0) || !taken.IsValid(2) {
				t.Error("taken values must stay valid")
			}
			if !equalValue(taken.Get(0), tt.series.Get(2)) || !equalValue(taken.Get(2), tt.series.Get(0)) {
				t.Errorf("take reordered values wrongly: %v", []any{taken.Get(0), taken.Get(2)})
			}
		})
	}
}

func equalValue(a, b any) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func TestSeriesTakeKeepsNulls(t *testing.T) {
	s := NewSeriesStringWithNulls("s", []string{"a", "", "c"}, []bool{true, false, true})
	taken := s.Take([]int{1, 2})
	if taken.IsValid(0) || !taken.IsValid(1) {
		t.Errorf("unexpected validity %v", taken.Validity())
	}
}

func TestSeriesSliceHead(t *testing.T) {
	s := NewSeriesInt64("n", []int64{1, 2, 3, 4, 5})

	if got := s.Slice(1, 3); got.Len() != 2 || got.Get(0) != int64(2) {
		t.Errorf("Slice(1, 3) = %s", got)
	}
	if got := s.Slice(-5, 100); got.Len() != 5 {
		t.Errorf("Slice should clamp, got %d values", got.Len())
	}
	if got := s.Slice(4, 2); got.Len() != 0 {
		t.Errorf("inverted slice should be empty, got %d values", got.Len())
	}
	if got := s.Head(2); got.Len() != 2 || got.Get(1) != int64(2) {
		t.Errorf("Head(2) = %s", got)
	}
}

func TestSeriesRenameShares(t *testing.T) {
	s := NewSeriesInt64("a", []int64{1})
	r := s.Rename("b")
	if s.Name() != "a" || r.Name() != "b" {
		t.Errorf("rename must not modify the original: %s, %s", s.Name(), r.Name())
	}
	if r.Get(0) != int64(1) {
		t.Error("renamed series lost its data")
	}
}

func TestSeriesEqual(t *testing.T) {
	a := NewSeriesStringWithNulls("s", []string{"x", "ignored"}, []bool{true, false})
	b := NewSeriesStringWithNulls("s", []string{"x", "other"}, []bool{true, false})
	if !a.Equal(b) {
		t.Error("values behind nulls must not affect equality")
	}
	if a.Equal(a.Rename("t")) {
		t.Error("different names must not be equal")
	}

	cat := NewSeriesCategorical("c", []string{"p", "q"})
	cat2, _ := NewSeriesCategoricalWithCategories("c", []string{"p", "q"}, []string{"q", "p"})
	if !cat.Equal(cat2) {
		t.Error("categoricals should compare by decoded value")
	}

	var nilSeries *Series
	if nilSeries.Equal(a) || !nilSeries.Equal(nil) {
		t.Error("nil handling in Equal is wrong")
	}
}
