package tablejoin

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/vmihailenco/msgpack/v5"
)

// snapshotVersion is bumped whenever the snapshot layout changes.
const snapshotVersion = 1

// snapshot is the MessagePack layout of a DataFrame: one entry per column
// carrying its dtype, validity and typed values.
type snapshot struct {
	Version int              `msgpack:"version"`
	Height  int              `msgpack:"height"`
	Columns []snapshotColumn `msgpack:"columns"`
}

type snapshotColumn struct {
	Name       string    `msgpack:"name"`
	DType      string    `msgpack:"dtype"`
	Valid      []bool    `msgpack:"valid,omitempty"`
	F64        []float64 `msgpack:"f64,omitempty"`
	F32        []float32 `msgpack:"f32,omitempty"`
	I64        []int64   `msgpack:"i64,omitempty"`
	I32        []int32   `msgpack:"i32,omitempty"`
	Bools      []bool    `msgpack:"bools,omitempty"`
	Strings    []string  `msgpack:"strings,omitempty"`
	Categories []string  `msgpack:"categories,omitempty"`
	Indices    []int32   `msgpack:"indices,omitempty"`
}

func toSnapshotColumn(s *Series) snapshotColumn {
	c := snapshotColumn{Name: s.Name(), DType: s.DType().String()}
	if s.DType() != Categorical && s.HasNulls() {
		c.Valid = s.Validity()
	}
	switch s.DType() {
	case Float64:
		c.F64 = s.Float64()
	case Float32:
		c.F32 = s.Float32()
	case Int64, DateTime:
		c.I64 = s.Int64()
	case Int32:
		c.I32 = s.Int32()
	case Bool:
		c.Bools = s.Bool()
	case String:
		c.Strings = s.Strings()
	case Categorical:
		c.Categories = s.Categories()
		c.Indices = s.CategoricalIndices()
	}
	return c
}

func (c snapshotColumn) series(height int) (*Series, error) {
	dtype, err := ParseDType(c.DType)
	if err != nil {
		return nil, err
	}

	lengthOf := func(n int) error {
		if n != height {
			return fmt.Errorf("column %s has %d values, expected %d", c.Name, n, height)
		}
		return nil
	}

	var s *Series
	switch dtype {
	case Float64:
		if err := lengthOf(len(c.F64)); err != nil {
			return nil, err
		}
		s = NewSeriesFloat64(c.Name, c.F64)
	case Float32:
		if err := lengthOf(len(c.F32)); err != nil {
			return nil, err
		}
		s = NewSeriesFloat32(c.Name, c.F32)
	case Int64, DateTime:
		if err := lengthOf(len(c.I64)); err != nil {
			return nil, err
		}
		s = NewSeriesInt64(c.Name, c.I64)
		s.dtype = dtype
	case Int32:
		if err := lengthOf(len(c.I32)); err != nil {
			return nil, err
		}
		s = NewSeriesInt32(c.Name, c.I32)
	case Bool:
		if err := lengthOf(len(c.Bools)); err != nil {
			return nil, err
		}
		s = NewSeriesBool(c.Name, c.Bools)
	case String:
		if err := lengthOf(len(c.Strings)); err != nil {
			return nil, err
		}
		s = NewSeriesString(c.Name, c.Strings)
	case Categorical:
		if err := lengthOf(len(c.Indices)); err != nil {
			return nil, err
		}
		for _, idx := range c.Indices {
			if int(idx) >= len(c.Categories) {
				return nil, fmt.Errorf("column %s: category index %d out of range", c.Name, idx)
			}
		}
		s = &Series{
			name:    c.Name,
			dtype:   Categorical,
			length:  len(c.Indices),
			catData: &categoricalData{Categories: c.Categories, Indices: c.Indices},
		}
	case Null:
		s = NewSeriesNull(c.Name, height)
	default:
		return nil, fmt.Errorf("column %s: unsupported dtype %s", c.Name, dtype)
	}

	if c.Valid != nil {
		if len(c.Valid) != height {
			return nil, fmt.Errorf("column %s has %d validity entries, expected %d", c.Name, len(c.Valid), height)
		}
		s = s.withValidity(c.Valid)
	}
	return s, nil
}

// WriteMsgpack writes a MessagePack snapshot of the DataFrame to a file.
func (df *DataFrame) WriteMsgpack(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := df.WriteMsgpackToWriter(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// WriteMsgpackToWriter writes a MessagePack snapshot of the DataFrame.
// The snapshot keeps dtypes, nulls and categorical dictionaries exactly.
func (df *DataFrame) WriteMsgpackToWriter(w io.Writer) error {
	snap := snapshot{
		Version: snapshotVersion,
		Height:  df.Height(),
		Columns: make([]snapshotColumn, df.Width()),
	}
	for i, col := range df.columns {
		snap.Columns[i] = toSnapshotColumn(col)
	}
	if err := msgpack.NewEncoder(w).Encode(&snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// ReadMsgpack reads a snapshot written by WriteMsgpack.
func ReadMsgpack(path string) (*DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return ReadMsgpackFromReader(bufio.NewReader(f))
}

// ReadMsgpackFromReader reads a snapshot written by WriteMsgpackToWriter.
func ReadMsgpackFromReader(r io.Reader) (*DataFrame, error) {
	var snap snapshot
	if err := msgpack.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	if snap.Height < 0 {
		return nil, fmt.Errorf("invalid snapshot height %d", snap.Height)
	}

	columns := make([]*Series, len(snap.Columns))
	for i, c := range snap.Columns {
		s, err := c.series(snap.Height)
		if err != nil {
			return nil, err
		}
		columns[i] = s
	}
	return NewDataFrame(columns...)
}
