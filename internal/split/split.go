// Package split implements the resolution-independent split tree that
// partitions one output into virtual monitor regions.
package split

import (
	"fmt"
	"math"
)

// Direction of the dividing line of a split node.
type Direction byte

const (
	// Horizontal is a horizontal dividing line: the node splits its
	// region into a top and a bottom child.
	Horizontal Direction = 'H'
	// Vertical is a vertical dividing line: the node splits its region
	// into a left and a right child.
	Vertical Direction = 'V'
)

func (d Direction) String() string {
	switch d {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	}
	return fmt.Sprintf("direction(%q)", byte(d))
}

// Node is one node of a split tree. A node with no children is a leaf
// region; an internal node divides its region into exactly two children
// at Prop, measured along the axis perpendicular to the dividing line.
// Proportions are ratios, not pixels, so the same tree re-resolves
// correctly when the output's mode changes.
type Node struct {
	Dir    Direction
	Prop   float64
	Before *Node // left or top child
	After  *Node // right or bottom child
}

// Leaf returns a new terminal region.
func Leaf() *Node { return &Node{} }

// Split returns a new internal node with the given children. Nil
// children are replaced by fresh leaves.
func Split(dir Direction, prop float64, before, after *Node) *Node {
	if before == nil {
		before = Leaf()
	}
	if after == nil {
		after = Leaf()
	}
	return &Node{Dir: dir, Prop: prop, Before: before, After: after}
}

// IsLeaf reports whether n is a terminal region.
func (n *Node) IsLeaf() bool { return n.Before == nil && n.After == nil }

// Leaves returns the number of terminal regions. A tree with N leaves
// has exactly N-1 split nodes.
func (n *Node) Leaves() int {
	if n.IsLeaf() {
		return 1
	}
	return n.Before.Leaves() + n.After.Leaves()
}

// Clone returns a deep copy. All operations on trees are pure, so
// independent holders never share mutable state.
func (n *Node) Clone() *Node {
	if n.IsLeaf() {
		return Leaf()
	}
	return &Node{Dir: n.Dir, Prop: n.Prop, Before: n.Before.Clone(), After: n.After.Clone()}
}

// Equal reports structural equality: same shape, directions and
// proportions.
func (n *Node) Equal(o *Node) bool {
	if n.IsLeaf() || o.IsLeaf() {
		return n.IsLeaf() && o.IsLeaf()
	}
	return n.Dir == o.Dir && n.Prop == o.Prop &&
		n.Before.Equal(o.Before) && n.After.Equal(o.After)
}

// Rect is an axis-aligned region in pixels, relative to the parent
// output's origin.
type Rect struct {
	X, Y int
	W, H int
}

// Resolve turns the tree into the ordered leaf rectangles of a w x h
// output. Traversal is before-first. Each cut is rounded to the nearest
// pixel; the rounding residual goes to the after child, so the
// rectangles always tile the parent exactly with no gap or overlap.
func Resolve(n *Node, w, h int) []Rect {
	rects := make([]Rect, 0, n.Leaves())
	resolveInto(n, 0, 0, w, h, &rects)
	return rects
}

func resolveInto(n *Node, x, y, w, h int, rects *[]Rect) {
	if n.IsLeaf() {
		*rects = append(*rects, Rect{X: x, Y: y, W: w, H: h})
		return
	}
	switch n.Dir {
	case Vertical:
		cut := Cut(w, n.Prop)
		resolveInto(n.Before, x, y, cut, h, rects)
		resolveInto(n.After, x+cut, y, w-cut, h, rects)
	default: // Horizontal
		cut := Cut(h, n.Prop)
		resolveInto(n.Before, x, y, w, cut, rects)
		resolveInto(n.After, x, y+cut, w, h-cut, rects)
	}
}

// Cut rounds a proportional cut of extent to the nearest pixel.
func Cut(extent int, prop float64) int {
	return int(math.Round(float64(extent) * prop))
}

// InsertSplit replaces the leaf at index (in resolve order) with a split
// whose children are two fresh leaves. It returns a new tree; the input
// is not modified.
func InsertSplit(n *Node, leaf int, dir Direction, prop float64) (*Node, error) {
	if prop <= 0 || prop >= 1 {
		return nil, fmt.Errorf("split proportion %v outside (0, 1)", prop)
	}
	if dir != Horizontal && dir != Vertical {
		return nil, fmt.Errorf("invalid split %s", dir)
	}
	out := n.Clone()
	idx := 0
	if !replaceLeaf(out, leaf, &idx, dir, prop) {
		return nil, fmt.Errorf("leaf %d not found (tree has %d leaves)", leaf, n.Leaves())
	}
	return out, nil
}

func replaceLeaf(n *Node, target int, idx *int, dir Direction, prop float64) bool {
	if n.IsLeaf() {
		if *idx == target {
			n.Dir = dir
			n.Prop = prop
			n.Before = Leaf()
			n.After = Leaf()
			return true
		}
		*idx++
		return false
	}
	return replaceLeaf(n.Before, target, idx, dir, prop) ||
		replaceLeaf(n.After, target, idx, dir, prop)
}

// RemoveSplit collapses the internal node at index (in pre-order among
// internal nodes) back into a single leaf. It returns a new tree; the
// input is not modified.
func RemoveSplit(n *Node, split int) (*Node, error) {
	out := n.Clone()
	idx := 0
	if !collapseSplit(out, split, &idx) {
		return nil, fmt.Errorf("split %d not found (tree has %d splits)", split, n.Leaves()-1)
	}
	return out, nil
}

func collapseSplit(n *Node, target int, idx *int) bool {
	if n.IsLeaf() {
		return false
	}
	if *idx == target {
		n.Dir = 0
		n.Prop = 0
		n.Before = nil
		n.After = nil
		return true
	}
	*idx++
	return collapseSplit(n.Before, target, idx) || collapseSplit(n.After, target, idx)
}
