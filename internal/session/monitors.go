// Package session writes the window manager's display persistence file
// so it agrees with the virtual layout. Without it the manager re-reads
// its own stale file on the next display event and reverts positions.
package session

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/xsplit/internal/logger"
	"github.com/bnema/xsplit/internal/split"
)

// FileName is the persistence file consumed by the window manager.
const FileName = "cinnamon-monitors.xml"

// Path returns the persistence file location honoring XDG_CONFIG_HOME.
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, FileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, ".config", FileName)
}

// OutputLayout is the applied state of one active output. Tree is nil
// for an unsplit output.
type OutputLayout struct {
	Name    string
	X, Y    int
	Width   int
	Height  int
	Rate    float64
	Primary bool
	EDIDHex string
	// Physical size in millimetres, zero when unreported.
	WidthMM, HeightMM int
	Tree              *split.Node
}

type monitorsFile struct {
	XMLName        xml.Name        `xml:"monitors"`
	Version        string          `xml:"version,attr"`
	Configurations []configuration `xml:"configuration"`
}

type configuration struct {
	Monitors []logicalMonitor `xml:"logicalmonitor"`
}

type logicalMonitor struct {
	X       int     `xml:"x"`
	Y       int     `xml:"y"`
	Scale   int     `xml:"scale"`
	Primary string  `xml:"primary,omitempty"`
	Monitor monitor `xml:"monitor"`
}

type monitor struct {
	Spec monitorSpec `xml:"monitorspec"`
	Mode monitorMode `xml:"mode"`
}

type monitorSpec struct {
	Connector string `xml:"connector"`
	Vendor    string `xml:"vendor"`
	Product   string `xml:"product"`
	Serial    string `xml:"serial"`
}

type monitorMode struct {
	Width  int     `xml:"width"`
	Height int     `xml:"height"`
	Rate   float64 `xml:"rate"`
}

// WriteMonitorsFile writes the persistence file with two configuration
// blocks: one matching the virtual layout the manager sees while the
// interception library is loaded, and one matching the bare outputs for
// sessions without it. The manager picks whichever block matches the
// connectors it detects.
func WriteMonitorsFile(path string, outputs []OutputLayout) error {
	doc := monitorsFile{
		Version: "2",
		Configurations: []configuration{
			splitConfiguration(outputs),
			unsplitConfiguration(outputs),
		},
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal monitors file: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write monitors file: %w", err)
	}
	logger.Info("wrote display persistence file", "path", path)
	return nil
}

func splitConfiguration(outputs []OutputLayout) configuration {
	var cfg configuration
	for _, out := range outputs {
		if out.Tree == nil || out.Tree.IsLeaf() {
			cfg.Monitors = append(cfg.Monitors, realMonitor(out))
			continue
		}
		regions := split.ResolveRegions(out.Tree, out.Width, out.Height,
			out.X, out.Y, out.WidthMM, out.HeightMM)
		for i, r := range regions {
			// Virtual regions have no hardware behind them; the
			// manager matches them by connector name alone.
			cfg.Monitors = append(cfg.Monitors, logicalMonitor{
				X:     r.X,
				Y:     r.Y,
				Scale: 1,
				Monitor: monitor{
					Spec: monitorSpec{
						Connector: split.RegionName(out.Name, i),
						Vendor:    "unknown",
						Product:   "unknown",
						Serial:    "unknown",
					},
					Mode: monitorMode{Width: r.W, Height: r.H, Rate: rate(out)},
				},
			})
		}
	}
	return cfg
}

func unsplitConfiguration(outputs []OutputLayout) configuration {
	var cfg configuration
	for _, out := range outputs {
		cfg.Monitors = append(cfg.Monitors, realMonitor(out))
	}
	return cfg
}

func realMonitor(out OutputLayout) logicalMonitor {
	id := ParseEDIDIdentity(out.EDIDHex)
	lm := logicalMonitor{
		X:     out.X,
		Y:     out.Y,
		Scale: 1,
		Monitor: monitor{
			Spec: monitorSpec{
				Connector: out.Name,
				Vendor:    id.Vendor,
				Product:   id.Product,
				Serial:    id.Serial,
			},
			Mode: monitorMode{Width: out.Width, Height: out.Height, Rate: rate(out)},
		},
	}
	if out.Primary {
		lm.Primary = "yes"
	}
	return lm
}

func rate(out OutputLayout) float64 {
	if out.Rate > 0 {
		return out.Rate
	}
	return 60.0
}
