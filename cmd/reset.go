package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset [output]",
	Short: "Remove splits from an output, or from all outputs",
	Long: `Remove the split layout of one output, or every split when no output
is named. With nothing left split, the binary config is removed and the
window manager is restarted without the interception library.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned layout without applying it")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	trees, err := currentTrees()
	if err != nil {
		return err
	}
	if len(args) == 1 {
		if _, ok := trees[args[0]]; !ok {
			fmt.Printf("%s has no splits\n", args[0])
			return nil
		}
		delete(trees, args[0])
	} else {
		trees = nil
	}

	plan, err := buildPlan(trees)
	if err != nil {
		return err
	}
	if dryRun {
		printPlan(plan)
		return nil
	}
	return newCoordinator().Apply(plan)
}
