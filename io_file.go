package tablejoin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// FileFormat identifies a table file format by its extension.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatJSON    FileFormat = "json"
	FormatArrow   FileFormat = "arrow"
	FormatParquet FileFormat = "parquet"
	FormatMsgpack FileFormat = "msgpack"
)

// DetectFormat maps a file extension to its FileFormat.
func DetectFormat(path string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".arrow", ".ipc", ".feather":
		return FormatArrow, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	case ".msgpack", ".mp":
		return FormatMsgpack, nil
	default:
		return "", fmt.Errorf("unsupported file extension %q", filepath.Ext(path))
	}
}

// ReadFile loads a table, picking the reader from the file extension.
// Tab-separated files are read with a tab delimiter.
func ReadFile(path string) (*DataFrame, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		opts := DefaultCSVReadOptions()
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return ReadCSV(path, opts)
	case FormatJSON:
		return ReadJSON(path)
	case FormatArrow:
		return ReadArrowIPC(path)
	case FormatParquet:
		return ReadParquet(path)
	default:
		return ReadMsgpack(path)
	}
}

// WriteFile saves df, picking the writer from the file extension.
func WriteFile(path string, df *DataFrame) error {
	format, err := DetectFormat(path)
	if err != nil {
		return err
	}
	switch format {
	case FormatCSV:
		opts := DefaultCSVWriteOptions()
		if strings.EqualFold(filepath.Ext(path), ".tsv") {
			opts.Delimiter = '\t'
		}
		return df.WriteCSV(path, opts)
	case FormatJSON:
		return df.WriteJSON(path)
	case FormatArrow:
		return df.WriteArrowIPC(path)
	case FormatParquet:
		return df.WriteParquet(path)
	default:
		return df.WriteMsgpack(path)
	}
}
