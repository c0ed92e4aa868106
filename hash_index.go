package tablejoin

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ============================================================================
// Key Normalisation
// ============================================================================

// compatibleKeyType returns the dtype both sides of a key pair are compared
// as, or false if the pair cannot be compared.
func compatibleKeyType(left, right DType) (DType, bool) {
	switch {
	case left == Null || right == Null:
		return Null, true
	case left.IsStringLike() && right.IsStringLike():
		return String, true
	case left == right:
		return left, true
	case left.IsInteger() && right.IsInteger():
		return Int64, true
	case left.IsNumeric() && right.IsNumeric():
		return Float64, true
	default:
		return Null, false
	}
}

// castKey converts a key series to the comparison dtype. The result is a new
// series; the input is left untouched.
func castKey(s *Series, target DType) *Series {
	if s.DType() == target {
		return s
	}
	n := s.Len()
	valid := s.Validity()

	switch target {
	case Int64:
		data := make([]int64, n)
		for i := 0; i < n; i++ {
			data[i], _ = s.GetInt64(i)
		}
		return NewSeriesInt64WithNulls(s.Name(), data, valid)
	case Float64:
		data := make([]float64, n)
		for i := 0; i < n; i++ {
			data[i], _ = s.GetFloat64(i)
		}
		return NewSeriesFloat64WithNulls(s.Name(), data, valid)
	case String:
		return NewSeriesStringWithNulls(s.Name(), s.Strings(), valid)
	case Null:
		return NewSeriesNull(s.Name(), n)
	default:
		return s
	}
}

// shadowUpper returns an uppercased copy of a String key series used only
// for matching.
func shadowUpper(s *Series) *Series {
	caser := cases.Upper(language.Und)
	src := s.Strings()
	data := make([]string, len(src))
	for i, v := range src {
		if s.IsValid(i) {
			data[i] = caser.String(v)
		}
	}
	return NewSeriesStringWithNulls(s.Name(), data, s.Validity())
}

// ============================================================================
// Hash Index
// ============================================================================

// keyIndex maps the hash of a composite key to the right-side rows holding it.
type keyIndex struct {
	buckets map[uint64][]int
}

// keyHasher hashes composite keys row by row with xxhash.
type keyHasher struct {
	cols   []*Series
	digest *xxhash.Digest
	buf    [8]byte
}

func newKeyHasher(cols []*Series) *keyHasher {
	return &keyHasher{cols: cols, digest: xxhash.New()}
}

// hasNullKey reports whether any key of the row is null. NaN counts as null
// because it never equals itself.
func hasNullKey(cols []*Series, row int) bool {
	for _, c := range cols {
		if !c.IsValid(row) {
			return true
		}
		switch c.DType() {
		case Float64:
			if math.IsNaN(c.Float64()[row]) {
				return true
			}
		case Float32:
			if math.IsNaN(float64(c.Float32()[row])) {
				return true
			}
		}
	}
	return false
}

func (h *keyHasher) putUint64(v uint64) {
	binary.LittleEndian.PutUint64(h.buf[:], v)
	_, _ = h.digest.Write(h.buf[:])
}

// hashRow hashes the key values of one row. The row must not hold nulls.
func (h *keyHasher) hashRow(row int) uint64 {
	h.digest.Reset()
	for _, c := range h.cols {
		switch c.DType() {
		case Float64:
			f := c.Float64()[row]
			if f == 0 {
				f = 0 // fold -0 into +0
			}
			h.putUint64(math.Float64bits(f))
		case Float32:
			f := c.Float32()[row]
			if f == 0 {
				f = 0
			}
			h.putUint64(uint64(math.Float32bits(f)))
		case Int64, DateTime:
			h.putUint64(uint64(c.Int64()[row]))
		case Int32:
			h.putUint64(uint64(int64(c.Int32()[row])))
		case Bool:
			if c.Bool()[row] {
				h.putUint64(1)
			} else {
				h.putUint64(0)
			}
		case String:
			s := c.Strings()[row]
			h.putUint64(uint64(len(s)))
			_, _ = h.digest.WriteString(s)
		}
	}
	return h.digest.Sum64()
}

// buildKeyIndex indexes every row of the right keys except rows with a null
// key, which are returned separately in row order.
func buildKeyIndex(cols []*Series, height int) (*keyIndex, []int) {
	idx := &keyIndex{buckets: make(map[uint64][]int, height)}
	var nullRows []int
	h := newKeyHasher(cols)
	for row := 0; row < height; row++ {
		if hasNullKey(cols, row) {
			nullRows = append(nullRows, row)
			continue
		}
		hash := h.hashRow(row)
		idx.buckets[hash] = append(idx.buckets[hash], row)
	}
	return idx, nullRows
}

// keysMatch compares normalised key values of a left and a right row.
// Both sides have identical dtypes by construction.
func keysMatch(leftCols []*Series, leftRow int, rightCols []*Series, rightRow int) bool {
	for i := range leftCols {
		if !valuesEqual(leftCols[i], leftRow, rightCols[i], rightRow) {
			return false
		}
	}
	return true
}

// valuesEqual compares values at specific rows without boxing.
func valuesEqual(left *Series, leftRow int, right *Series, rightRow int) bool {
	switch left.DType() {
	case Float64:
		return left.Float64()[leftRow] == right.Float64()[rightRow]
	case Float32:
		return left.Float32()[leftRow] == right.Float32()[rightRow]
	case Int64, DateTime:
		return left.Int64()[leftRow] == right.Int64()[rightRow]
	case Int32:
		return left.Int32()[leftRow] == right.Int32()[rightRow]
	case Bool:
		return left.Bool()[leftRow] == right.Bool()[rightRow]
	case String:
		return left.Strings()[leftRow] == right.Strings()[rightRow]
	default:
		return false
	}
}
