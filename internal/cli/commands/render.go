package commands

import (
	"fmt"
	"io"

	"github.com/NerdMeNot/tablejoin"
)

// writeTable prints df to w in the requested stdout format.
func writeTable(w io.Writer, df *tablejoin.DataFrame, format string, maxRows int) error {
	switch format {
	case "csv":
		return df.WriteCSVToWriter(w)
	case "json":
		return df.WriteJSONToWriter(w, tablejoin.JSONWriteOptions{Format: tablejoin.JSONRecords, Indent: "  "})
	case "table", "markdown", "":
		cfg := tablejoin.DefaultDisplayConfig()
		cfg.MaxRows = maxRows
		cfg.MaxCols = 0
		cfg.MaxColWidth = 0
		if format == "markdown" {
			cfg.TableStyle = "markdown"
			cfg.ShowShape = false
			cfg.ShowDTypes = false
		}
		return df.Render(w, cfg)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
