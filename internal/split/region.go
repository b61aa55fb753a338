package split

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is one resolved virtual monitor region inside the X screen's
// global coordinate space, including the proportional share of the
// output's physical dimensions.
type Region struct {
	X, Y int
	W, H int
	// Physical size in millimetres, split proportionally with the
	// pixels. Zero when the output reports no physical size.
	WidthMM, HeightMM int
}

// RegionName derives the connector-style name of region i of an output,
// e.g. "DP-1~0". Indexing follows resolve order.
func RegionName(output string, i int) string {
	return fmt.Sprintf("%s~%d", output, i)
}

// IsRegionName reports whether name follows the derived region naming,
// an output name with a numeric "~i" suffix.
func IsRegionName(name string) bool {
	i := strings.LastIndex(name, "~")
	if i < 1 || i == len(name)-1 {
		return false
	}
	_, err := strconv.Atoi(name[i+1:])
	return err == nil
}

// ParseRegionName splits a region name into its output and index,
// reporting false for names that are not region names.
func ParseRegionName(name string) (string, int, bool) {
	i := strings.LastIndex(name, "~")
	if i < 1 || i == len(name)-1 {
		return "", 0, false
	}
	idx, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return "", 0, false
	}
	return name[:i], idx, true
}

// SetMonitorGeometry formats the region as an xrandr --setmonitor
// geometry argument: W/mmWxH/mmH+x+y.
func (r Region) SetMonitorGeometry() string {
	return fmt.Sprintf("%d/%dx%d/%d+%d+%d", r.W, r.WidthMM, r.H, r.HeightMM, r.X, r.Y)
}

// ResolveRegions resolves the tree against an output of w x h pixels and
// wmm x hmm physical millimetres placed at (offX, offY), returning the
// ordered regions for virtual monitor creation.
func ResolveRegions(n *Node, w, h, offX, offY, wmm, hmm int) []Region {
	regions := make([]Region, 0, n.Leaves())
	regionsInto(n, offX, offY, w, h, wmm, hmm, &regions)
	return regions
}

func regionsInto(n *Node, x, y, w, h, wmm, hmm int, regions *[]Region) {
	if n.IsLeaf() {
		*regions = append(*regions, Region{X: x, Y: y, W: w, H: h, WidthMM: wmm, HeightMM: hmm})
		return
	}
	switch n.Dir {
	case Vertical:
		cut := Cut(w, n.Prop)
		mmCut := 0
		if wmm > 0 {
			mmCut = Cut(wmm, n.Prop)
		}
		regionsInto(n.Before, x, y, cut, h, mmCut, hmm, regions)
		regionsInto(n.After, x+cut, y, w-cut, h, wmm-mmCut, hmm, regions)
	default: // Horizontal
		cut := Cut(h, n.Prop)
		mmCut := 0
		if hmm > 0 {
			mmCut = Cut(hmm, n.Prop)
		}
		regionsInto(n.Before, x, y, w, cut, wmm, mmCut, regions)
		regionsInto(n.After, x, y+cut, w, h-cut, wmm, hmm-mmCut, regions)
	}
}
