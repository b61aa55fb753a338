package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/xsplit/internal/engine"
	"github.com/bnema/xsplit/internal/fakes"
	"github.com/bnema/xsplit/internal/settings"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run the interception engine once and print its merged view",
	Long: `Connect to the X server, load the binary split config the way the
interception library does, and print the merged resource view a client
behind it would see. Debugging aid for config problems.`,
	RunE: runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	backend, err := engine.NewXGBBackend()
	if err != nil {
		return err
	}
	defer backend.Close()

	s := settings.Get()
	eng := engine.New(backend, engine.Options{
		ConfigPath:   configPath(),
		PollInterval: s.Engine.PollInterval,
	})
	if err := eng.Attach(); err != nil {
		return err
	}

	res, err := eng.ScreenResources()
	if err != nil {
		return fmt.Errorf("failed to enumerate resources: %w", err)
	}

	fmt.Printf("engine state: %s\n", eng.State())
	fmt.Printf("outputs (%d):\n", len(res.Outputs))
	for _, id := range res.Outputs {
		info, err := eng.OutputInfo(id)
		if err != nil {
			fmt.Printf("  %#x: %v\n", id, err)
			continue
		}
		kind := "real"
		if fakes.IsFake(id) {
			kind = "virtual"
		}
		fmt.Printf("  %#x %-12s %s\n", id, info.Name, kind)
	}
	fmt.Printf("crtcs: %d, modes: %d\n", len(res.Crtcs), len(res.Modes))

	table := eng.Table()
	if table.Empty() {
		fmt.Println("no split config bound, pass-through")
		return nil
	}
	fmt.Printf("virtual regions (%d):\n", len(table.Outputs()))
	for _, out := range table.Outputs() {
		fmt.Printf("  %-12s %dx%d+%d+%d\n", out.Name, out.Width, out.Height, out.X, out.Y)
	}
	return nil
}
