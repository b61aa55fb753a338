package split

import (
	"testing"
)

func TestResolveSingleLeaf(t *testing.T) {
	rects := Resolve(Leaf(), 1920, 1080)
	if len(rects) != 1 {
		t.Fatalf("expected 1 rect, got %d", len(rects))
	}
	want := Rect{X: 0, Y: 0, W: 1920, H: 1080}
	if rects[0] != want {
		t.Errorf("expected %+v, got %+v", want, rects[0])
	}
}

func TestResolveNestedSplits(t *testing.T) {
	// Vertical 60/40, right side split horizontally 40/60.
	tree := Split(Vertical, 0.6, Leaf(), Split(Horizontal, 0.4, Leaf(), Leaf()))

	rects := Resolve(tree, 1920, 1080)
	want := []Rect{
		{X: 0, Y: 0, W: 1152, H: 1080},
		{X: 1152, Y: 0, W: 768, H: 432},
		{X: 1152, Y: 432, W: 768, H: 648},
	}
	if len(rects) != len(want) {
		t.Fatalf("expected %d rects, got %d", len(want), len(rects))
	}
	for i := range want {
		if rects[i] != want[i] {
			t.Errorf("rect %d: expected %+v, got %+v", i, want[i], rects[i])
		}
	}
}

func TestResolveExactTiling(t *testing.T) {
	trees := map[string]*Node{
		"leaf":      Leaf(),
		"even":      Split(Vertical, 0.5, nil, nil),
		"odd":       Split(Vertical, 0.333, nil, nil),
		"nested":    Split(Horizontal, 0.7, Split(Vertical, 0.21, nil, nil), nil),
		"deep":      Split(Vertical, 0.5, Split(Horizontal, 0.5, Split(Vertical, 0.5, nil, nil), nil), nil),
		"tiny-prop": Split(Horizontal, 0.01, nil, nil),
	}
	sizes := [][2]int{{1920, 1080}, {3840, 2160}, {1366, 768}, {17, 13}, {4, 4}}

	for name, tree := range trees {
		for _, size := range sizes {
			w, h := size[0], size[1]
			if w < tree.Leaves() || h < tree.Leaves() {
				continue
			}
			rects := Resolve(tree, w, h)
			if len(rects) != tree.Leaves() {
				t.Errorf("%s %dx%d: expected %d rects, got %d", name, w, h, tree.Leaves(), len(rects))
			}
			area := 0
			for i, r := range rects {
				if r.W < 0 || r.H < 0 {
					t.Errorf("%s %dx%d: rect %d has negative extent: %+v", name, w, h, i, r)
				}
				if r.X < 0 || r.Y < 0 || r.X+r.W > w || r.Y+r.H > h {
					t.Errorf("%s %dx%d: rect %d outside parent: %+v", name, w, h, i, r)
				}
				area += r.W * r.H
			}
			// Same total area plus pairwise disjointness means the
			// rects tile the parent exactly.
			if area != w*h {
				t.Errorf("%s %dx%d: rects cover area %d, parent is %d", name, w, h, area, w*h)
			}
			for i := range rects {
				for j := i + 1; j < len(rects); j++ {
					if overlaps(rects[i], rects[j]) {
						t.Errorf("%s %dx%d: rects %d and %d overlap: %+v %+v",
							name, w, h, i, j, rects[i], rects[j])
					}
				}
			}
		}
	}
}

func overlaps(a, b Rect) bool {
	return a.X < b.X+b.W && b.X < a.X+a.W && a.Y < b.Y+b.H && b.Y < a.Y+a.H
}

func TestLeaves(t *testing.T) {
	tests := []struct {
		name string
		tree *Node
		want int
	}{
		{"leaf", Leaf(), 1},
		{"single split", Split(Vertical, 0.5, nil, nil), 2},
		{"nested", Split(Vertical, 0.6, Leaf(), Split(Horizontal, 0.4, nil, nil)), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tree.Leaves(); got != tt.want {
				t.Errorf("expected %d leaves, got %d", tt.want, got)
			}
		})
	}
}

func TestInsertThenRemoveRoundTrips(t *testing.T) {
	orig := Leaf()

	withSplit, err := InsertSplit(orig, 0, Horizontal, 0.5)
	if err != nil {
		t.Fatalf("InsertSplit() error = %v", err)
	}
	if withSplit.IsLeaf() || withSplit.Dir != Horizontal || withSplit.Prop != 0.5 {
		t.Fatalf("unexpected tree after insert: %+v", withSplit)
	}
	if !orig.IsLeaf() {
		t.Error("InsertSplit modified its input")
	}

	back, err := RemoveSplit(withSplit, 0)
	if err != nil {
		t.Fatalf("RemoveSplit() error = %v", err)
	}
	if !back.Equal(orig) {
		t.Errorf("expected tree equal to original leaf, got %+v", back)
	}
	if withSplit.IsLeaf() {
		t.Error("RemoveSplit modified its input")
	}
}

func TestInsertSplitErrors(t *testing.T) {
	tests := []struct {
		name string
		leaf int
		prop float64
	}{
		{"leaf out of range", 5, 0.5},
		{"negative leaf", -1, 0.5},
		{"proportion zero", 0, 0},
		{"proportion one", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := InsertSplit(Leaf(), tt.leaf, Vertical, tt.prop); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRemoveSplitErrors(t *testing.T) {
	if _, err := RemoveSplit(Leaf(), 0); err == nil {
		t.Error("expected error removing split from a leaf")
	}
	tree := Split(Vertical, 0.5, nil, nil)
	if _, err := RemoveSplit(tree, 1); err == nil {
		t.Error("expected error for split index past the only split")
	}
}

func TestInsertSplitTargetsResolveOrder(t *testing.T) {
	// Split the second leaf of a vertical split: the right region.
	tree := Split(Vertical, 0.6, nil, nil)
	got, err := InsertSplit(tree, 1, Horizontal, 0.4)
	if err != nil {
		t.Fatalf("InsertSplit() error = %v", err)
	}
	want := Split(Vertical, 0.6, Leaf(), Split(Horizontal, 0.4, nil, nil))
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want.Layout(), got.Layout())
	}
}

func TestCloneIsDeep(t *testing.T) {
	tree := Split(Vertical, 0.6, Leaf(), Split(Horizontal, 0.4, nil, nil))
	clone := tree.Clone()
	clone.After.Prop = 0.9
	if tree.After.Prop != 0.4 {
		t.Error("mutating a clone affected the original")
	}
	if !tree.Equal(tree.Clone()) {
		t.Error("clone not structurally equal to original")
	}
}

func TestResolveRegionsSplitsMillimetres(t *testing.T) {
	tree := Split(Vertical, 0.5, nil, nil)
	regions := ResolveRegions(tree, 1920, 1080, 100, 200, 600, 340)
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	want := []Region{
		{X: 100, Y: 200, W: 960, H: 1080, WidthMM: 300, HeightMM: 340},
		{X: 1060, Y: 200, W: 960, H: 1080, WidthMM: 300, HeightMM: 340},
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("region %d: expected %+v, got %+v", i, want[i], regions[i])
		}
	}
}

func TestSetMonitorGeometry(t *testing.T) {
	r := Region{X: 1152, Y: 0, W: 768, H: 432, WidthMM: 240, HeightMM: 135}
	if got, want := r.SetMonitorGeometry(), "768/240x432/135+1152+0"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestRegionName(t *testing.T) {
	if got, want := RegionName("DP-1", 0), "DP-1~0"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if got, want := RegionName("HDMI-A-2", 3), "HDMI-A-2~3"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
