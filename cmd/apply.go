package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/coordinator"
	"github.com/bnema/xsplit/internal/session"
	"github.com/bnema/xsplit/internal/settings"
	"github.com/bnema/xsplit/internal/split"
	"github.com/bnema/xsplit/internal/xrandr"
)

var dryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply <output> <layout>",
	Short: "Split an output into virtual monitors",
	Long: `Apply a split layout to one output, keeping other outputs as they are.

Layouts are nested split expressions: "l" is an undivided region,
"v60(l,l)" cuts vertically at 60% and "h40(l,l)" horizontally at 40%.
Cuts nest, e.g. "v60(l,h40(l,l))".`,
	Args: cobra.ExactArgs(2),
	RunE: runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the planned layout without applying it")
	rootCmd.AddCommand(applyCmd)
}

func runApply(cmd *cobra.Command, args []string) error {
	output, layout := args[0], args[1]

	tree, err := split.ParseLayout(layout)
	if err != nil {
		return fmt.Errorf("invalid layout %q: %w", layout, err)
	}

	trees, err := currentTrees()
	if err != nil {
		return err
	}
	trees[output] = tree

	plan, err := buildPlan(trees)
	if err != nil {
		return err
	}
	if !hasOutput(plan, output) {
		return fmt.Errorf("output %q is not connected and active", output)
	}

	if dryRun {
		printPlan(plan)
		return nil
	}
	return newCoordinator().Apply(plan)
}

// currentTrees loads the split trees already persisted in the binary
// config, so applying to one output preserves the others.
func currentTrees() (map[string]*split.Node, error) {
	entries, err := config.ReadFile(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to read current config: %w", err)
	}
	trees := make(map[string]*split.Node, len(entries))
	for _, e := range entries {
		trees[e.Name] = e.ToSplit()
	}
	return trees, nil
}

// buildPlan queries the un-intercepted server so the plan is built
// against real outputs even while the interception library is active.
func buildPlan(trees map[string]*split.Node) (*coordinator.Plan, error) {
	outputs, err := xrandr.New("").QueryReal()
	if err != nil {
		return nil, fmt.Errorf("failed to query outputs: %w", err)
	}
	return coordinator.NewPlan(outputs, trees), nil
}

func hasOutput(plan *coordinator.Plan, name string) bool {
	for _, out := range plan.Outputs {
		if out.Name == name {
			return true
		}
	}
	return false
}

func configPath() string {
	if p := settings.Get().Engine.ConfigPath; p != "" {
		return p
	}
	return config.Path()
}

func monitorsPath() string {
	if p := settings.Get().Session.MonitorsFile; p != "" {
		return p
	}
	return session.Path()
}

func newCoordinator() *coordinator.Coordinator {
	s := settings.Get()
	return coordinator.New(coordinator.SystemProcess{}, xrandr.New(""), coordinator.Options{
		ProcessName:    s.WindowManager.ProcessName,
		RestartCommand: s.WindowManager.RestartCommand,
		PreloadLibrary: s.WindowManager.PreloadLibrary,
		SettleTimeout:  s.WindowManager.SettleTimeout,
		FreezeTimeout:  s.WindowManager.FreezeTimeout,
		ConfigPath:     configPath(),
		MonitorsPath:   monitorsPath(),
	})
}

func printPlan(plan *coordinator.Plan) {
	for _, out := range plan.Outputs {
		if out.Tree == nil || out.Tree.IsLeaf() {
			fmt.Printf("%s: unsplit (%dx%d+%d+%d)\n", out.Name, out.Width, out.Height, out.X, out.Y)
			continue
		}
		fmt.Printf("%s: %s\n", out.Name, out.Tree.Layout())
	}
	for _, r := range plan.Regions() {
		fmt.Printf("  setmonitor %s %s %s\n", r.Name, r.Region.SetMonitorGeometry(), r.Output)
	}
}
