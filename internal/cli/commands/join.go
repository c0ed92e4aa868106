package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NerdMeNot/tablejoin"
	"github.com/NerdMeNot/tablejoin/internal/config"
	"github.com/NerdMeNot/tablejoin/internal/logging"
)

// NewJoinCommand creates the join command.
func NewJoinCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join two table files",
		Long: `Join two tables on one or more key columns and print or save the result.

Keys are column names or 0-based positions written as #N. Write \#N for a
column literally named #N. --on uses the same keys on both sides; --left-on
and --right-on pair keys up by position.

Examples:
  tablejoin join --left orders.csv --right customers.parquet --on customer_id
  tablejoin join --left a.csv --right b.csv --left-on id,region --right-on ID,REGION --how outer
  tablejoin join --left a.csv --right b.csv --on name --ignore-case --output out.parquet`,
		Args: cobra.NoArgs,
		RunE: runJoin,
	}

	cmd.Flags().String("left", "", "Left input file")
	cmd.Flags().String("right", "", "Right input file")
	cmd.Flags().String("on", "", "Key columns shared by both sides (comma-separated)")
	cmd.Flags().String("left-on", "", "Left key columns (comma-separated)")
	cmd.Flags().String("right-on", "", "Right key columns (comma-separated)")
	cmd.Flags().String("how", "", "Join type (inner|left|outer|semi)")
	cmd.Flags().Bool("ignore-case", false, "Match string keys regardless of letter case")
	cmd.Flags().Bool("keep-right-keys", false, "Keep the right key columns in the result")
	cmd.Flags().StringP("output", "o", "", "Write the result to a file instead of stdout")
	cmd.Flags().String("format", "", "Stdout format (table|csv|json|markdown)")
	cmd.Flags().Int("max-rows", 0, "Rows shown by the table formats (0 = all)")
	cmd.Flags().Int("parallel-min-rows", 0, "Result rows needed before columns are gathered concurrently")
	cmd.Flags().Bool("no-parallel", false, "Gather result columns sequentially")

	_ = cmd.RegisterFlagCompletionFunc("how", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"inner", "left", "outer", "semi"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runJoin(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	if err := cfg.ValidateJoin(); err != nil {
		return err
	}
	opts, err := joinOptions(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	var left, right *tablejoin.DataFrame
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		df, err := tablejoin.ReadFile(cfg.Left)
		if err != nil {
			return fmt.Errorf("left input %s: %w", cfg.Left, err)
		}
		left = df
		return nil
	})
	g.Go(func() error {
		df, err := tablejoin.ReadFile(cfg.Right)
		if err != nil {
			return fmt.Errorf("right input %s: %w", cfg.Right, err)
		}
		right = df
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Debug("inputs loaded",
		"left_rows", left.Height(), "right_rows", right.Height(),
		"elapsed", time.Since(start))

	joiner := tablejoin.NewJoiner(
		tablejoin.WithLogger(logger),
		tablejoin.WithParallelConfig(tablejoin.ParallelConfig{
			MinRowsForParallel: cfg.Parallel.MinRows,
			Enabled:            cfg.Parallel.Enabled,
		}),
	)
	result, err := joiner.Join(left, right, opts)
	if err != nil {
		return err
	}
	logger.Info("join complete",
		"how", opts.JoinType().String(),
		"rows", result.Height(), "columns", result.Width(),
		"elapsed", time.Since(start))

	if cfg.Output != "" {
		if err := tablejoin.WriteFile(cfg.Output, result); err != nil {
			return fmt.Errorf("failed to write %s: %w", cfg.Output, err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", result.Height(), cfg.Output)
		return nil
	}
	return writeTable(cmd.OutOrStdout(), result, cfg.Format, cfg.MaxRows)
}

// joinOptions turns the loaded config into tablejoin.JoinOptions.
func joinOptions(cfg *config.Config) (tablejoin.JoinOptions, error) {
	how, err := tablejoin.ParseJoinType(cfg.How)
	if err != nil {
		return tablejoin.JoinOptions{}, err
	}
	leftKeys, rightKeys := cfg.KeyColumns()
	return tablejoin.LeftOn(columnRefs(leftKeys)...).
		RightOn(columnRefs(rightKeys)...).
		How(how).
		CaseSensitive(cfg.CaseSensitive).
		KeepRightKeys(cfg.KeepRightKeys), nil
}

func columnRefs(keys []string) []tablejoin.ColumnRef {
	refs := make([]tablejoin.ColumnRef, len(keys))
	for i, k := range keys {
		refs[i] = tablejoin.ParseColumnRef(k)
	}
	return refs
}
