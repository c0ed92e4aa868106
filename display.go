package tablejoin

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// DisplayConfig controls how DataFrames are formatted when printed.
type DisplayConfig struct {
	// MaxRows is the maximum number of rows to display.
	// If the DataFrame has more rows, it shows head and tail rows with "…" in between.
	// Default: 10 (5 head + 5 tail)
	MaxRows int

	// MaxCols is the maximum number of columns to display.
	// If the DataFrame has more columns, middle columns are replaced with "…".
	// Default: 10
	MaxCols int

	// MaxColWidth is the maximum width for column content.
	// Default: 25
	MaxColWidth int

	// FloatPrecision is the number of decimal places for float values.
	// Default: 4
	FloatPrecision int

	// ShowDTypes controls whether to display data types under column names.
	ShowDTypes bool

	// ShowShape controls whether to display the shape (rows × columns) header.
	ShowShape bool

	// TableStyle is one of "rounded", "light", "ascii", "markdown".
	TableStyle string
}

// DefaultDisplayConfig returns the default display configuration.
func DefaultDisplayConfig() DisplayConfig {
	return DisplayConfig{
		MaxRows:        10,
		MaxCols:        10,
		MaxColWidth:    25,
		FloatPrecision: 4,
		ShowDTypes:     true,
		ShowShape:      true,
		TableStyle:     "rounded",
	}
}

const ellipsis = "…"

// String renders the DataFrame with the default display configuration.
func (df *DataFrame) String() string {
	var b strings.Builder
	_ = df.Render(&b, DefaultDisplayConfig())
	return b.String()
}

// Render writes a bordered table of df to w.
func (df *DataFrame) Render(w io.Writer, cfg DisplayConfig) error {
	if cfg.ShowShape {
		if _, err := fmt.Fprintf(w, "shape: (%d, %d)\n", df.Height(), df.Width()); err != nil {
			return err
		}
	}

	cols := visibleColumns(df.Width(), cfg.MaxCols)
	rows := visibleRows(df.Height(), cfg.MaxRows)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(tableStyle(cfg.TableStyle))
	t.Style().Format.Header = text.FormatDefault

	header := make(table.Row, len(cols))
	dtypes := make(table.Row, len(cols))
	for i, c := range cols {
		if c < 0 {
			header[i], dtypes[i] = ellipsis, ""
			continue
		}
		s := df.Column(c)
		header[i] = s.Name()
		dtypes[i] = strings.ToLower(s.DType().String())
	}
	if cfg.ShowDTypes {
		t.AppendHeader(header, table.RowConfig{})
		t.AppendHeader(dtypes)
	} else {
		t.AppendHeader(header)
	}

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			switch {
			case r < 0 || c < 0:
				row[i] = ellipsis
			default:
				row[i] = formatCell(df.Column(c), r, cfg)
			}
		}
		t.AppendRow(row)
	}

	if cfg.MaxColWidth > 0 {
		configs := make([]table.ColumnConfig, len(cols))
		for i := range cols {
			configs[i] = table.ColumnConfig{Number: i + 1, WidthMax: cfg.MaxColWidth, WidthMaxEnforcer: text.Trim}
		}
		t.SetColumnConfigs(configs)
	}

	if cfg.TableStyle == "markdown" {
		t.RenderMarkdown()
	} else {
		t.Render()
	}
	return nil
}

func tableStyle(name string) table.Style {
	switch name {
	case "light":
		return table.StyleLight
	case "ascii":
		return table.StyleDefault
	default:
		return table.StyleRounded
	}
}

// visibleColumns returns column positions to show, -1 marking the elided gap.
func visibleColumns(width, maxCols int) []int {
	return visibleRange(width, maxCols)
}

// visibleRows returns row positions to show, -1 marking the elided gap.
func visibleRows(height, maxRows int) []int {
	return visibleRange(height, maxRows)
}

func visibleRange(n, limit int) []int {
	if limit <= 0 || n <= limit {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	head := (limit + 1) / 2
	tail := limit - head
	out := make([]int, 0, limit+1)
	for i := 0; i < head; i++ {
		out = append(out, i)
	}
	out = append(out, -1)
	for i := n - tail; i < n; i++ {
		out = append(out, i)
	}
	return out
}

func formatCell(s *Series, row int, cfg DisplayConfig) string {
	v := s.Get(row)
	switch x := v.(type) {
	case nil:
		return "null"
	case float64:
		return strconv.FormatFloat(x, 'f', cfg.FloatPrecision, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', cfg.FloatPrecision, 32)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", x)
	}
}
