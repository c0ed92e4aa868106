package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NerdMeNot/tablejoin"
)

// NewSuffixCommand creates the suffix command.
func NewSuffixCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "suffix LEFT RIGHT",
		Short: "Print the suffix a join would give colliding right columns",
		Long: `Print the suffix ("_R", "_R1", ...) that joining LEFT with RIGHT appends to
right-table columns whose names already exist in the left table.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			left, err := tablejoin.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("left input %s: %w", args[0], err)
			}
			right, err := tablejoin.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("right input %s: %w", args[1], err)
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tablejoin.RightSuffix(left, right))
			return nil
		},
	}
}
