package split

import (
	"fmt"
	"math"
)

// Layout strings are the CLI's compact form of a split tree:
//
//	l               a leaf region
//	v60(l,l)        vertical line at 60% of the width
//	h40(l,l)        horizontal line at 40% of the height
//
// Nesting follows the tree, e.g. v60(l,h40(l,l)). Percentages are whole
// numbers and are clamped to [10, 90], matching the snap rule of the
// split editor this grammar replaces on the command line.

// Layout formats the tree as a layout string.
func (n *Node) Layout() string {
	if n.IsLeaf() {
		return "l"
	}
	c := byte('h')
	if n.Dir == Vertical {
		c = 'v'
	}
	return fmt.Sprintf("%c%d(%s,%s)", c, int(math.Round(n.Prop*100)),
		n.Before.Layout(), n.After.Layout())
}

// ParseLayout parses a layout string into a tree.
func ParseLayout(s string) (*Node, error) {
	p := &layoutParser{src: s}
	n, err := p.parseNode()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("layout %q: trailing input at offset %d", s, p.pos)
	}
	return n, nil
}

type layoutParser struct {
	src string
	pos int
}

func (p *layoutParser) parseNode() (*Node, error) {
	if p.pos >= len(p.src) {
		return nil, fmt.Errorf("layout %q: unexpected end of input", p.src)
	}
	switch c := p.src[p.pos]; c {
	case 'l':
		p.pos++
		return Leaf(), nil
	case 'v', 'h':
		p.pos++
		dir := Horizontal
		if c == 'v' {
			dir = Vertical
		}
		pct, err := p.parsePercent()
		if err != nil {
			return nil, err
		}
		if err := p.expect('('); err != nil {
			return nil, err
		}
		before, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		after, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return Split(dir, float64(pct)/100, before, after), nil
	default:
		return nil, fmt.Errorf("layout %q: unexpected %q at offset %d", p.src, c, p.pos)
	}
}

func (p *layoutParser) parsePercent() (int, error) {
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 0, fmt.Errorf("layout %q: expected percentage at offset %d", p.src, start)
	}
	pct := 0
	for _, c := range p.src[start:p.pos] {
		pct = pct*10 + int(c-'0')
	}
	// Snap to the editor's usable range.
	if pct < 10 {
		pct = 10
	}
	if pct > 90 {
		pct = 90
	}
	return pct, nil
}

func (p *layoutParser) expect(c byte) error {
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		got := "end of input"
		if p.pos < len(p.src) {
			got = fmt.Sprintf("%q", p.src[p.pos])
		}
		return fmt.Errorf("layout %q: expected %q at offset %d, got %s", p.src, c, p.pos, got)
	}
	p.pos++
	return nil
}
