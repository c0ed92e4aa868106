package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NerdMeNot/tablejoin"
	"github.com/NerdMeNot/tablejoin/internal/config"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect FILE",
		Short: "Show the schema and first rows of a table file",
		Long: `Load a table file and print its shape, column types and null counts,
followed by a preview of its rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			df, err := tablejoin.ReadFile(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s: %d rows x %d columns\n", args[0], df.Height(), df.Width())
			for i := 0; i < df.Width(); i++ {
				col := df.Column(i)
				_, _ = fmt.Fprintf(out, "  #%d %-20s %-12s nulls=%d\n", i, col.Name(), col.DType(), col.NullCount())
			}
			_, _ = fmt.Fprintln(out)

			display := tablejoin.DefaultDisplayConfig()
			display.MaxRows = cfg.MaxRows
			display.ShowShape = false
			return df.Render(out, display)
		},
	}
}
