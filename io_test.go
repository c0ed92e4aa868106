package tablejoin

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// sampleFrame covers every dtype, with nulls in most columns.
func sampleFrame(t *testing.T) *DataFrame {
	t.Helper()
	ts := time.Date(2024, 5, 6, 7, 8, 9, 123000000, time.UTC)
	return mustFrame(t,
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesInt32WithNulls("qty", []int32{10, 0, 30}, []bool{true, false, true}),
		NewSeriesFloat64WithNulls("score", []float64{1.5, 0, -2.25}, []bool{true, false, true}),
		NewSeriesFloat32("ratio", []float32{0.5, 0.25, 1}),
		NewSeriesBoolWithNulls("active", []bool{true, false, false}, []bool{true, true, false}),
		NewSeriesStringWithNulls("name", []string{"alice", "", "carol"}, []bool{true, false, true}),
		NewSeriesCategoricalWithNulls("tier", []string{"gold", "", "gold"}, []bool{true, false, true}),
		NewSeriesDateTimeWithNulls("seen", []time.Time{ts, {}, ts.Add(time.Hour)}, []bool{true, false, true}),
	)
}

// ============================================================================
// CSV
// ============================================================================

func TestReadCSVInference(t *testing.T) {
	input := strings.Join([]string{
		"id,name,score,active,when,mixed,empty",
		"1,alice,1.5,true,2024-01-02T03:04:05Z,1,",
		"2,,NA,false,,true,",
		"3,carol,2,TRUE,2024-01-03T00:00:00Z,x,NULL",
	}, "\n")

	df, err := ReadCSVFromReader(strings.NewReader(input))
	require.NoError(t, err)

	want := map[string]DType{
		"id":     Int64,
		"name":   String,
		"score":  Float64,
		"active": Bool,
		"when":   DateTime,
		"mixed":  String,
		"empty":  String,
	}
	for name, dtype := range want {
		col := df.ColumnByName(name)
		require.NotNil(t, col, name)
		assert.Equal(t, dtype, col.DType(), name)
	}

	assert.Equal(t, []string{"id", "name", "score", "active", "when", "mixed", "empty"}, df.Columns())
	assert.Equal(t, []any{int64(2), nil, nil, false, nil, "true", nil}, df.Row(1))
	assert.Equal(t, true, df.ColumnByName("active").Get(2))
	assert.Equal(t, 3, df.ColumnByName("empty").NullCount())
}

func TestReadCSVBoolIntMixIsString(t *testing.T) {
	df, err := ReadCSVFromReader(strings.NewReader("flag\n1\ntrue\n"))
	require.NoError(t, err)
	assert.Equal(t, String, df.Column(0).DType())
}

func TestReadCSVOptions(t *testing.T) {
	input := "# generated\nskip me\n1;x; 7\n2;y;8\n3;z;9\n"

	opts := DefaultCSVReadOptions()
	opts.Delimiter = ';'
	opts.Comment = '#'
	opts.SkipRows = 1
	opts.HasHeader = false
	opts.MaxRows = 2
	opts.ColumnTypes = map[string]DType{"column_2": Int32, "column_1": Categorical}

	df, err := ReadCSVFromReader(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"column_0", "column_1", "column_2"}, df.Columns())
	assert.Equal(t, 2, df.Height())
	assert.Equal(t, Int32, df.Column(2).DType())
	assert.Equal(t, Categorical, df.Column(1).DType())
	assert.Equal(t, int32(7), df.Column(2).Get(0))

	opts.ColumnNames = []string{"a", "b", "c"}
	opts.ColumnTypes = nil
	named, err := ReadCSVFromReader(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, named.Columns())
}

func TestReadCSVNoInference(t *testing.T) {
	opts := DefaultCSVReadOptions()
	opts.InferTypes = false
	df, err := ReadCSVFromReader(strings.NewReader("n\n1\n2\n"), opts)
	require.NoError(t, err)
	assert.Equal(t, String, df.Column(0).DType())
}

func TestReadCSVForcedTypeError(t *testing.T) {
	opts := DefaultCSVReadOptions()
	opts.ColumnTypes = map[string]DType{"n": Int64}
	_, err := ReadCSVFromReader(strings.NewReader("n\n1\nabc\n"), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse 'abc' as int64")
}

func TestReadCSVEmpty(t *testing.T) {
	df, err := ReadCSVFromReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, df.Width())

	headerOnly, err := ReadCSVFromReader(strings.NewReader("a,b\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, headerOnly.Columns())
	assert.Equal(t, 0, headerOnly.Height())
}

func TestCSVRoundTrip(t *testing.T) {
	df := mustFrame(t,
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesFloat64WithNulls("score", []float64{1.5, 0, 2}, []bool{true, false, true}),
		NewSeriesBool("ok", []bool{true, false, true}),
		NewSeriesStringWithNulls("name", []string{"a,b", "", "c"}, []bool{true, false, true}),
		NewSeriesDateTime("ts", []time.Time{
			time.Date(2024, 1, 1, 0, 0, 0, 500, time.UTC),
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
		}),
	)

	path := filepath.Join(t.TempDir(), "frame.csv")
	require.NoError(t, df.WriteCSV(path))

	back, err := ReadCSV(path)
	require.NoError(t, err)
	assert.True(t, df.Equal(back), "round trip changed the frame:\n%s\n%s", df, back)
}

func TestWriteCSVOptions(t *testing.T) {
	df := mustFrame(t,
		NewSeriesInt64("a", []int64{1, 2}),
		NewSeriesStringWithNulls("b", []string{"x", ""}, []bool{true, false}),
	)

	var buf bytes.Buffer
	require.NoError(t, df.WriteCSVToWriter(&buf, CSVWriteOptions{Delimiter: '|', NullString: "NA"}))
	assert.Equal(t, "1|x\n2|NA\n", buf.String())
}

// ============================================================================
// JSON
// ============================================================================

func TestReadJSONRecords(t *testing.T) {
	input := `[
		{"id": 1, "name": "a", "score": 1.5},
		{"id": 2, "score": 2, "extra": true},
		{"id": 3, "name": null}
	]`

	df, err := ReadJSONFromReader(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "score", "extra"}, df.Columns())
	assert.Equal(t, Int64, df.ColumnByName("id").DType())
	assert.Equal(t, String, df.ColumnByName("name").DType())
	assert.Equal(t, Float64, df.ColumnByName("score").DType())
	assert.Equal(t, Bool, df.ColumnByName("extra").DType())

	assert.Equal(t, []any{int64(2), nil, 2.0, true}, df.Row(1))
	assert.Equal(t, []any{int64(3), nil, nil, nil}, df.Row(2))
}

func TestReadJSONColumns(t *testing.T) {
	input := `{"a": [1, 2, 3], "b": ["x", null], "c": [null, null, null], "d": [1, "two", true]}`

	df, err := ReadJSONFromReader(strings.NewReader(input), JSONReadOptions{Format: JSONColumns})
	require.NoError(t, err)

	assert.Equal(t, 3, df.Height())
	assert.Equal(t, []string{"a", "b", "c", "d"}, df.Columns())
	assert.Equal(t, 2, df.ColumnByName("b").NullCount(), "short columns are padded with nulls")
	assert.Equal(t, Null, df.ColumnByName("c").DType())
	assert.Equal(t, String, df.ColumnByName("d").DType())
	assert.Equal(t, "two", df.ColumnByName("d").Get(1))
}

func TestReadJSONForcedTypes(t *testing.T) {
	input := `[{"ts": "2024-02-03T04:05:06Z", "code": "x", "n": 4}]`
	opts := JSONReadOptions{ColumnTypes: map[string]DType{"ts": DateTime, "code": Categorical, "n": Int32}}

	df, err := ReadJSONFromReader(strings.NewReader(input), opts)
	require.NoError(t, err)
	assert.Equal(t, DateTime, df.ColumnByName("ts").DType())
	assert.Equal(t, Categorical, df.ColumnByName("code").DType())
	assert.Equal(t, int32(4), df.ColumnByName("n").Get(0))

	_, err = ReadJSONFromReader(strings.NewReader(`[{"n": 1.5}]`), JSONReadOptions{ColumnTypes: map[string]DType{"n": Int64}})
	assert.Error(t, err)
}

func TestReadJSONMalformed(t *testing.T) {
	for _, input := range []string{`{"a": 1}`, `[1, 2]`, `[{"a": 1}`, ``} {
		_, err := ReadJSONFromReader(strings.NewReader(input))
		assert.Error(t, err, input)
	}
}

func TestWriteJSONKeepsColumnOrder(t *testing.T) {
	df := mustFrame(t,
		NewSeriesInt64("z", []int64{1, 2}),
		NewSeriesStringWithNulls("a", []string{"x", ""}, []bool{true, false}),
	)

	var buf bytes.Buffer
	require.NoError(t, df.WriteJSONToWriter(&buf))
	assert.Equal(t, `[{"z":1,"a":"x"},{"z":2,"a":null}]`+"\n", buf.String())

	buf.Reset()
	require.NoError(t, df.WriteJSONToWriter(&buf, JSONWriteOptions{Format: JSONColumns}))
	assert.Equal(t, `{"z":[1,2],"a":["x",null]}`+"\n", buf.String())

	buf.Reset()
	require.NoError(t, df.WriteJSONToWriter(&buf, JSONWriteOptions{Format: JSONRecords, Indent: "  "}))
	assert.True(t, json.Valid(buf.Bytes()))
	assert.Contains(t, buf.String(), "\n  {")
}

func TestJSONRoundTrip(t *testing.T) {
	df := mustFrame(t,
		NewSeriesInt64("id", []int64{1, 2}),
		NewSeriesFloat64("score", []float64{1.5, 2.5}),
		NewSeriesBoolWithNulls("ok", []bool{true, false}, []bool{true, false}),
		NewSeriesString("name", []string{"a", "b"}),
		NewSeriesDateTime("ts", []time.Time{time.Unix(0, 0).UTC(), time.Unix(60, 0).UTC()}),
	)

	for _, format := range []JSONFormat{JSONRecords, JSONColumns} {
		path := filepath.Join(t.TempDir(), "frame.json")
		require.NoError(t, df.WriteJSON(path, JSONWriteOptions{Format: format}))

		back, err := ReadJSON(path, JSONReadOptions{Format: format, ColumnTypes: map[string]DType{"ts": DateTime}})
		require.NoError(t, err)
		assert.True(t, df.Equal(back), "round trip changed the frame:\n%s\n%s", df, back)
	}
}

// ============================================================================
// MessagePack
// ============================================================================

func TestMsgpackRoundTrip(t *testing.T) {
	df := sampleFrame(t)
	df, err := df.WithColumn(NewSeriesNull("nothing", df.Height()))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "frame.msgpack")
	require.NoError(t, df.WriteMsgpack(path))

	back, err := ReadMsgpack(path)
	require.NoError(t, err)
	assert.True(t, df.Equal(back), "round trip changed the frame:\n%s\n%s", df, back)
	assert.Equal(t, df.Schema().DTypes(), back.Schema().DTypes())
	assert.Equal(t, df.ColumnByName("tier").Categories(), back.ColumnByName("tier").Categories())
}

func TestMsgpackRejectsBadSnapshots(t *testing.T) {
	encode := func(snap snapshot) *bytes.Buffer {
		var buf bytes.Buffer
		require.NoError(t, msgpack.NewEncoder(&buf).Encode(&snap))
		return &buf
	}

	tests := map[string]snapshot{
		"version": {Version: 99},
		"length": {Version: snapshotVersion, Height: 2, Columns: []snapshotColumn{
			{Name: "a", DType: "Int64", I64: []int64{1}},
		}},
		"category index": {Version: snapshotVersion, Height: 1, Columns: []snapshotColumn{
			{Name: "c", DType: "Categorical", Categories: []string{"x"}, Indices: []int32{4}},
		}},
		"validity": {Version: snapshotVersion, Height: 2, Columns: []snapshotColumn{
			{Name: "a", DType: "Int64", I64: []int64{1, 2}, Valid: []bool{true}},
		}},
		"dtype": {Version: snapshotVersion, Height: 0, Columns: []snapshotColumn{
			{Name: "a", DType: "Decimal"},
		}},
		"negative height": {Version: snapshotVersion, Height: -1, Columns: []snapshotColumn{
			{Name: "x", DType: "Null"},
		}},
	}

	for name, snap := range tests {
		t.Run(name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = ReadMsgpackFromReader(encode(snap)) })
			assert.Error(t, err)
		})
	}

	_, err := ReadMsgpackFromReader(strings.NewReader("not msgpack"))
	assert.Error(t, err)
}

// ============================================================================
// File dispatch
// ============================================================================

func TestDetectFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"a.csv":           FormatCSV,
		"b.TSV":           FormatCSV,
		"c.json":          FormatJSON,
		"d.arrow":         FormatArrow,
		"e.feather":       FormatArrow,
		"f.parquet":       FormatParquet,
		"g.pq":            FormatParquet,
		"dir/h.msgpack":   FormatMsgpack,
		"dir/i.mp":        FormatMsgpack,
		"/abs/path/j.ipc": FormatArrow,
	}
	for path, want := range tests {
		got, err := DetectFormat(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := DetectFormat("table.xlsx")
	assert.EqualError(t, err, `unsupported file extension ".xlsx"`)
}

func TestReadWriteFileAllFormats(t *testing.T) {
	df := mustFrame(t,
		NewSeriesInt64("id", []int64{1, 2, 3}),
		NewSeriesStringWithNulls("name", []string{"a", "", "c"}, []bool{true, false, true}),
		NewSeriesFloat64("score", []float64{0.5, 1.5, 2.5}),
	)

	dir := t.TempDir()
	for _, ext := range []string{".csv", ".tsv", ".json", ".arrow", ".parquet", ".msgpack"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(dir, "frame"+ext)
			require.NoError(t, WriteFile(path, df))

			back, err := ReadFile(path)
			require.NoError(t, err)
			assert.True(t, df.Equal(back), "round trip through %s changed the frame:\n%s", ext, back)
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "frame.tsv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "id\tname\tscore\n"))

	_, err = ReadFile(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
	assert.Error(t, WriteFile(filepath.Join(dir, "frame.txt"), df))
}
