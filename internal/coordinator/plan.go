package coordinator

import (
	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/session"
	"github.com/bnema/xsplit/internal/split"
	"github.com/bnema/xsplit/internal/xrandr"
)

// Plan is the desired display layout: every active output, with a
// split tree on the ones being partitioned.
type Plan struct {
	Outputs []session.OutputLayout
}

// PlannedRegion is one virtual monitor to create.
type PlannedRegion struct {
	Name   string
	Output string
	Region split.Region
}

// NewPlan builds a plan from the queried outputs and the desired trees,
// keyed by output name. Outputs without a tree entry stay unsplit;
// virtual regions in the query are ignored, their parents carry the
// state.
func NewPlan(outputs []xrandr.Output, trees map[string]*split.Node) *Plan {
	plan := &Plan{}
	for _, out := range outputs {
		if !out.Connected || !out.Active || split.IsRegionName(out.Name) {
			continue
		}
		plan.Outputs = append(plan.Outputs, session.OutputLayout{
			Name:     out.Name,
			X:        out.X,
			Y:        out.Y,
			Width:    out.Width,
			Height:   out.Height,
			Primary:  out.Primary,
			Rate:     out.Rate,
			EDIDHex:  out.EDIDHex,
			WidthMM:  out.WidthMM,
			HeightMM: out.HeightMM,
			Tree:     trees[out.Name],
		})
	}
	return plan
}

// HasSplits reports whether any output is partitioned.
func (p *Plan) HasSplits() bool {
	for _, out := range p.Outputs {
		if out.Tree != nil && !out.Tree.IsLeaf() {
			return true
		}
	}
	return false
}

// Regions returns every virtual monitor the plan creates, in region
// order per output.
func (p *Plan) Regions() []PlannedRegion {
	var regions []PlannedRegion
	for _, out := range p.Outputs {
		if out.Tree == nil || out.Tree.IsLeaf() {
			continue
		}
		resolved := split.ResolveRegions(out.Tree, out.Width, out.Height,
			out.X, out.Y, out.WidthMM, out.HeightMM)
		for i, r := range resolved {
			// Only the first region may claim the real output: creating
			// a monitor over an output tears down any other monitor
			// sharing it, so the rest are backed by "none".
			backing := "none"
			if i == 0 {
				backing = out.Name
			}
			regions = append(regions, PlannedRegion{
				Name:   split.RegionName(out.Name, i),
				Output: backing,
				Region: r,
			})
		}
	}
	return regions
}

// RegionCount is the number of virtual monitors the plan creates.
func (p *Plan) RegionCount() int {
	return len(p.Regions())
}

// ConfigEntries returns the binary config entries for the split
// outputs, empty when nothing is split.
func (p *Plan) ConfigEntries() []config.OutputConfig {
	var entries []config.OutputConfig
	for _, out := range p.Outputs {
		if out.Tree == nil || out.Tree.IsLeaf() {
			continue
		}
		entries = append(entries, config.FromSplit(out.Name, out.EDIDHex,
			uint32(out.Width), uint32(out.Height), out.Tree))
	}
	return entries
}
