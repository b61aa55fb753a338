package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/split"
	"github.com/bnema/xsplit/internal/ui"
	"github.com/bnema/xsplit/internal/xrandr"
)

// MonitorsInfo represents the monitors command output
type MonitorsInfo struct {
	Outputs []OutputInfo `json:"outputs"`
	Error   string       `json:"error,omitempty"`
}

// OutputInfo represents one physical output and its virtual regions
type OutputInfo struct {
	Name    string       `json:"name"`
	X       int          `json:"x"`
	Y       int          `json:"y"`
	Width   int          `json:"width"`
	Height  int          `json:"height"`
	Primary bool         `json:"primary"`
	Layout  string       `json:"layout,omitempty"`
	Regions []RegionInfo `json:"regions,omitempty"`
}

// RegionInfo represents one virtual monitor region
type RegionInfo struct {
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

var jsonOutput bool

var monitorsCmd = &cobra.Command{
	Use:   "monitors",
	Short: "Show outputs and their virtual regions",
	Long:  `Display the connected outputs together with the virtual monitor regions of the current split configuration.`,
	RunE:  runMonitors,
}

func init() {
	monitorsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(monitorsCmd)
}

func runMonitors(cmd *cobra.Command, args []string) error {
	outputs, err := xrandr.New("").QueryReal()
	if err != nil {
		if jsonOutput {
			return json.NewEncoder(os.Stdout).Encode(MonitorsInfo{Error: err.Error()})
		}
		return fmt.Errorf("failed to query outputs: %w", err)
	}
	entries, err := config.ReadFile(configPath())
	if err != nil {
		return err
	}
	byName := make(map[string]config.OutputConfig, len(entries))
	for _, e := range entries {
		byName[e.Name] = e
	}

	info := MonitorsInfo{}
	for _, out := range outputs {
		if !out.Connected || !out.Active || split.IsRegionName(out.Name) {
			continue
		}
		oi := OutputInfo{
			Name:    out.Name,
			X:       out.X,
			Y:       out.Y,
			Width:   out.Width,
			Height:  out.Height,
			Primary: out.Primary,
		}
		if e, ok := byName[out.Name]; ok && !e.Tree.IsLeaf() {
			oi.Layout = e.ToSplit().Layout()
			for i, r := range e.Tree.Rects(e.Width, e.Height) {
				oi.Regions = append(oi.Regions, RegionInfo{
					Name:   split.RegionName(out.Name, i),
					X:      out.X + r.X,
					Y:      out.Y + r.Y,
					Width:  r.W,
					Height: r.H,
				})
			}
		}
		info.Outputs = append(info.Outputs, oi)
	}

	if jsonOutput {
		return json.NewEncoder(os.Stdout).Encode(info)
	}

	if len(info.Outputs) == 0 {
		fmt.Println("No active outputs detected")
		return nil
	}
	for _, out := range info.Outputs {
		head := fmt.Sprintf("%s: %dx%d+%d+%d", out.Name, out.Width, out.Height, out.X, out.Y)
		if out.Primary {
			head += " primary"
		}
		fmt.Println(ui.SubheaderStyle.Render(head))
		if out.Layout != "" {
			fmt.Println(ui.InfoStyle.Render("  layout: " + out.Layout))
		}
		for _, r := range out.Regions {
			fmt.Println(ui.TextStyle.Render(
				fmt.Sprintf("  %-12s %dx%d+%d+%d", r.Name, r.Width, r.Height, r.X, r.Y)))
		}
	}
	return nil
}
