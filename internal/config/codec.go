// Package config implements the binary split configuration that carries
// resolved geometry from the CLI to the interception engine. The format
// is fixed-layout and deterministic: the same configuration always
// serializes to the same bytes, so readers can detect change by raw
// comparison.
//
// Wire format, little-endian, one entry per split output:
//
//	Entry := length:u32 name:[128]byte edid:[768]byte
//	         width:u32 height:u32 leafCount:u32 tree
//	Node  := 'N'
//	       | 'H' pos:u32 Node Node
//	       | 'V' pos:u32 Node Node
//
// length counts every byte after itself. Cut positions are pre-resolved
// pixels relative to the node's own region, so a reader reconstructs
// leaf rectangles by offset accumulation alone, without the original
// proportions.
package config

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bnema/xsplit/internal/split"
)

const (
	nameLen = 128
	edidLen = 768

	tagLeaf       = 'N'
	tagHorizontal = 'H'
	tagVertical   = 'V'
)

// fixedLen is the byte count of an entry before the tree data, not
// counting the length field itself.
const fixedLen = nameLen + edidLen + 4 + 4 + 4

// ErrCorrupt is wrapped by every decode failure caused by malformed
// input, as opposed to I/O errors.
var ErrCorrupt = errors.New("corrupt split config")

// OutputConfig is one real output's split state as persisted: identity
// plus the pre-resolved cut tree. A single leaf tree means unsplit.
type OutputConfig struct {
	// Name is the output's connector name, e.g. "DP-1".
	Name string
	// EDIDHex is the hex-encoded identity blob of the output. Opaque,
	// only round-tripped; may be empty.
	EDIDHex string
	Width   uint32
	Height  uint32
	Tree    *CutNode
}

// CutNode is a split tree node with resolved pixel cuts. A nil-children
// node is a leaf. Pos is the pixel offset of the dividing line from the
// node's own region origin: from the left for vertical cuts, from the
// top for horizontal ones.
type CutNode struct {
	Dir    split.Direction
	Pos    uint32
	Before *CutNode
	After  *CutNode
}

// IsLeaf reports whether n is a terminal region.
func (n *CutNode) IsLeaf() bool { return n.Before == nil && n.After == nil }

// Leaves returns the number of terminal regions.
func (n *CutNode) Leaves() uint32 {
	if n.IsLeaf() {
		return 1
	}
	return n.Before.Leaves() + n.After.Leaves()
}

// Rects reconstructs the ordered leaf rectangles of a w x h region by
// accumulating cut offsets.
func (n *CutNode) Rects(w, h uint32) []split.Rect {
	rects := make([]split.Rect, 0, n.Leaves())
	n.rectsInto(0, 0, int(w), int(h), &rects)
	return rects
}

func (n *CutNode) rectsInto(x, y, w, h int, rects *[]split.Rect) {
	if n.IsLeaf() {
		*rects = append(*rects, split.Rect{X: x, Y: y, W: w, H: h})
		return
	}
	pos := int(n.Pos)
	switch n.Dir {
	case split.Vertical:
		n.Before.rectsInto(x, y, pos, h, rects)
		n.After.rectsInto(x+pos, y, w-pos, h, rects)
	default: // split.Horizontal
		n.Before.rectsInto(x, y, w, pos, rects)
		n.After.rectsInto(x, y+pos, w, h-pos, rects)
	}
}

// FromSplit resolves a proportion tree into an entry, rounding each cut
// exactly as split.Resolve does so the codec's rectangles match the
// resolver's.
func FromSplit(name, edidHex string, width, height uint32, tree *split.Node) OutputConfig {
	return OutputConfig{
		Name:    name,
		EDIDHex: edidHex,
		Width:   width,
		Height:  height,
		Tree:    cutsFrom(tree, int(width), int(height)),
	}
}

func cutsFrom(n *split.Node, w, h int) *CutNode {
	if n.IsLeaf() {
		return &CutNode{}
	}
	switch n.Dir {
	case split.Vertical:
		pos := split.Cut(w, n.Prop)
		return &CutNode{
			Dir:    split.Vertical,
			Pos:    uint32(pos),
			Before: cutsFrom(n.Before, pos, h),
			After:  cutsFrom(n.After, w-pos, h),
		}
	default: // split.Horizontal
		pos := split.Cut(h, n.Prop)
		return &CutNode{
			Dir:    split.Horizontal,
			Pos:    uint32(pos),
			Before: cutsFrom(n.Before, w, pos),
			After:  cutsFrom(n.After, w, h-pos),
		}
	}
}

// ToSplit converts the entry's pixel-cut tree back into a proportional
// tree against the entry's recorded mode, the inverse of FromSplit for
// editing an existing configuration.
func (c OutputConfig) ToSplit() *split.Node {
	return splitFrom(c.Tree, int(c.Width), int(c.Height))
}

func splitFrom(n *CutNode, w, h int) *split.Node {
	if n == nil || n.IsLeaf() {
		return split.Leaf()
	}
	pos := int(n.Pos)
	if n.Dir == split.Vertical {
		prop := 0.5
		if w > 0 {
			prop = float64(pos) / float64(w)
		}
		return split.Split(split.Vertical, prop,
			splitFrom(n.Before, pos, h), splitFrom(n.After, w-pos, h))
	}
	prop := 0.5
	if h > 0 {
		prop = float64(pos) / float64(h)
	}
	return split.Split(split.Horizontal, prop,
		splitFrom(n.Before, w, pos), splitFrom(n.After, w, h-pos))
}

// Encode serializes the entries. Field order and padding are fixed, so
// equal configurations produce identical byte streams.
func Encode(entries []OutputConfig) ([]byte, error) {
	var buf bytes.Buffer
	for i, e := range entries {
		if len(e.Name) > nameLen {
			return nil, fmt.Errorf("entry %d: output name %q exceeds %d bytes", i, e.Name, nameLen)
		}
		if len(e.EDIDHex) > edidLen {
			return nil, fmt.Errorf("entry %d: EDID blob of %d bytes exceeds %d", i, len(e.EDIDHex), edidLen)
		}
		if e.Tree == nil {
			return nil, fmt.Errorf("entry %d: missing split tree", i)
		}

		tree := encodeTree(e.Tree)
		writeU32(&buf, uint32(fixedLen+len(tree)))
		writePadded(&buf, e.Name, nameLen)
		writePadded(&buf, e.EDIDHex, edidLen)
		writeU32(&buf, e.Width)
		writeU32(&buf, e.Height)
		writeU32(&buf, e.Tree.Leaves())
		buf.Write(tree)
	}
	return buf.Bytes(), nil
}

func encodeTree(n *CutNode) []byte {
	if n.IsLeaf() {
		return []byte{tagLeaf}
	}
	out := make([]byte, 5)
	out[0] = byte(n.Dir)
	binary.LittleEndian.PutUint32(out[1:], n.Pos)
	out = append(out, encodeTree(n.Before)...)
	return append(out, encodeTree(n.After)...)
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writePadded(buf *bytes.Buffer, s string, n int) {
	buf.WriteString(s)
	for i := len(s); i < n; i++ {
		buf.WriteByte(0)
	}
}

// Decode parses a byte stream into entries. Any entry whose declared
// length does not match the consumed byte count, or that carries a node
// tag outside {N, H, V}, fails the whole decode with an ErrCorrupt
// wrapped error; callers keep serving their previous state.
func Decode(data []byte) ([]OutputConfig, error) {
	var entries []OutputConfig
	off := 0
	for off < len(data) {
		if len(data)-off < 4 {
			return nil, fmt.Errorf("%w: truncated length field at offset %d", ErrCorrupt, off)
		}
		length := int(binary.LittleEndian.Uint32(data[off:]))
		off += 4
		if length < fixedLen || length > len(data)-off {
			return nil, fmt.Errorf("%w: entry length %d at offset %d out of bounds", ErrCorrupt, length, off-4)
		}
		entry := data[off : off+length]

		e := OutputConfig{
			Name:    unpad(entry[:nameLen]),
			EDIDHex: unpad(entry[nameLen : nameLen+edidLen]),
			Width:   binary.LittleEndian.Uint32(entry[nameLen+edidLen:]),
			Height:  binary.LittleEndian.Uint32(entry[nameLen+edidLen+4:]),
		}
		leafCount := binary.LittleEndian.Uint32(entry[nameLen+edidLen+8:])

		tree, consumed, err := decodeTree(entry[fixedLen:])
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", e.Name, err)
		}
		if consumed != length-fixedLen {
			return nil, fmt.Errorf("%w: entry %q declares %d bytes but tree consumed %d",
				ErrCorrupt, e.Name, length-fixedLen, consumed)
		}
		if got := tree.Leaves(); got != leafCount {
			return nil, fmt.Errorf("%w: entry %q declares %d leaves but tree has %d",
				ErrCorrupt, e.Name, leafCount, got)
		}
		e.Tree = tree
		entries = append(entries, e)
		off += length
	}
	return entries, nil
}

func decodeTree(data []byte) (*CutNode, int, error) {
	if len(data) == 0 {
		return nil, 0, fmt.Errorf("%w: truncated tree", ErrCorrupt)
	}
	switch data[0] {
	case tagLeaf:
		return &CutNode{}, 1, nil
	case tagHorizontal, tagVertical:
		if len(data) < 5 {
			return nil, 0, fmt.Errorf("%w: truncated cut position", ErrCorrupt)
		}
		pos := binary.LittleEndian.Uint32(data[1:])
		before, n1, err := decodeTree(data[5:])
		if err != nil {
			return nil, 0, err
		}
		after, n2, err := decodeTree(data[5+n1:])
		if err != nil {
			return nil, 0, err
		}
		return &CutNode{
			Dir:    split.Direction(data[0]),
			Pos:    pos,
			Before: before,
			After:  after,
		}, 5 + n1 + n2, nil
	default:
		return nil, 0, fmt.Errorf("%w: invalid node tag %q", ErrCorrupt, data[0])
	}
}

func unpad(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
