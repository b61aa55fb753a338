package fakes

import (
	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/logger"
	"github.com/bnema/xsplit/internal/split"
)

// ParentOutput is the slice of real-output state the table builder
// needs: identity, placement and the id of the CRTC driving it.
type ParentOutput struct {
	ID     ResourceID
	Crtc   ResourceID
	Name   string
	X, Y   int
	Width  uint32
	Height uint32
	// Physical size in millimetres; zero when unreported.
	WidthMM, HeightMM int
}

// OutputRecord is one fake output, representing a leaf region of a real
// output. Rebuilt from the binary config on every reload, never
// persisted.
type OutputRecord struct {
	ID   ResourceID
	Crtc ResourceID
	Mode ResourceID
	// Name is the synthetic connector name, e.g. "DP-1~2".
	Name string
	// Parent is the real output this region belongs to.
	Parent ResourceID
	Leaf   int
	// Region in screen coordinates.
	X, Y              int
	Width, Height     uint32
	WidthMM, HeightMM int
}

// CrtcRecord is the fake CRTC paired with a fake output. Configuration
// calls against it update these fields in memory and succeed without
// touching the server.
type CrtcRecord struct {
	ID     ResourceID
	Output ResourceID
	Mode   ResourceID
	X, Y   int
	Width  uint32
	Height uint32
}

// ModeRecord is the fabricated mode sized to one leaf region.
type ModeRecord struct {
	ID     ResourceID
	Name   string
	Width  uint32
	Height uint32
}

// Table is the live set of fake records plus the real outputs they
// replace. It is immutable after Build; reloads swap in a whole new
// table.
type Table struct {
	outputs []*OutputRecord
	crtcs   []*CrtcRecord
	modes   []*ModeRecord
	byID    map[ResourceID]interface{}
	// replaced holds the real outputs hidden by their fakes, keyed by
	// output id, with the driving CRTC ids alongside.
	replacedOutputs map[ResourceID]bool
	replacedCrtcs   map[ResourceID]bool
}

// BuildTable constructs the fake record set for the decoded config
// against the currently connected outputs. Entries that do not match a
// connected output (by name and current mode size) are skipped: they
// describe a topology that no longer exists. An entry resolving to a
// zero-area region is rejected and its output falls back to a single
// unsplit leaf.
func BuildTable(ns *Namespace, entries []config.OutputConfig, parents []ParentOutput) *Table {
	t := &Table{
		byID:            make(map[ResourceID]interface{}),
		replacedOutputs: make(map[ResourceID]bool),
		replacedCrtcs:   make(map[ResourceID]bool),
	}
	byName := make(map[string]ParentOutput, len(parents))
	for _, p := range parents {
		byName[p.Name] = p
	}

	for _, e := range entries {
		if e.Tree.IsLeaf() {
			continue
		}
		parent, ok := byName[e.Name]
		if !ok {
			logger.Warnf("split config for %q matches no connected output, skipping", e.Name)
			continue
		}
		if parent.Width != e.Width || parent.Height != e.Height {
			logger.Warnf("split config for %q is for %dx%d but output is %dx%d, skipping",
				e.Name, e.Width, e.Height, parent.Width, parent.Height)
			continue
		}

		rects := e.Tree.Rects(e.Width, e.Height)
		if degenerate(rects) {
			logger.Warnf("split config for %q yields a zero-area region, treating as unsplit", e.Name)
			continue
		}

		for i, r := range rects {
			mmW, mmH := 0, 0
			if parent.WidthMM > 0 {
				mmW = parent.WidthMM * r.W / int(e.Width)
			}
			if parent.HeightMM > 0 {
				mmH = parent.HeightMM * r.H / int(e.Height)
			}
			out := &OutputRecord{
				ID:       ns.OutputID(e.Name, i),
				Crtc:     ns.CrtcID(e.Name, i),
				Mode:     ns.ModeID(e.Name, i),
				Name:     split.RegionName(e.Name, i),
				Parent:   parent.ID,
				Leaf:     i,
				X:        parent.X + r.X,
				Y:        parent.Y + r.Y,
				Width:    uint32(r.W),
				Height:   uint32(r.H),
				WidthMM:  mmW,
				HeightMM: mmH,
			}
			crtc := &CrtcRecord{
				ID:     out.Crtc,
				Output: out.ID,
				Mode:   out.Mode,
				X:      out.X,
				Y:      out.Y,
				Width:  out.Width,
				Height: out.Height,
			}
			mode := &ModeRecord{
				ID:     out.Mode,
				Name:   out.Name,
				Width:  out.Width,
				Height: out.Height,
			}
			t.outputs = append(t.outputs, out)
			t.crtcs = append(t.crtcs, crtc)
			t.modes = append(t.modes, mode)
			for _, id := range []ResourceID{out.ID, crtc.ID, mode.ID} {
				if _, dup := t.byID[id]; dup {
					panic("fakes: duplicate id in live table")
				}
			}
			t.byID[out.ID] = out
			t.byID[crtc.ID] = crtc
			t.byID[mode.ID] = mode
		}
		t.replacedOutputs[parent.ID] = true
		if parent.Crtc != 0 {
			t.replacedCrtcs[parent.Crtc] = true
		}
	}
	return t
}

func degenerate(rects []split.Rect) bool {
	for _, r := range rects {
		if r.W <= 0 || r.H <= 0 {
			return true
		}
	}
	return false
}

// EmptyTable returns a table with no fakes: pass-through.
func EmptyTable() *Table {
	return BuildTable(NewNamespace(), nil, nil)
}

// Outputs returns the fake outputs in region order.
func (t *Table) Outputs() []*OutputRecord { return t.outputs }

// Crtcs returns the fake CRTCs in region order.
func (t *Table) Crtcs() []*CrtcRecord { return t.crtcs }

// Modes returns the fabricated modes in region order.
func (t *Table) Modes() []*ModeRecord { return t.modes }

// Empty reports whether the table holds no fakes.
func (t *Table) Empty() bool { return len(t.outputs) == 0 }

// ReplacesOutput reports whether the given real output is hidden by its
// fake regions.
func (t *Table) ReplacesOutput(id ResourceID) bool { return t.replacedOutputs[id] }

// ReplacesCrtc reports whether the given real CRTC is hidden.
func (t *Table) ReplacesCrtc(id ResourceID) bool { return t.replacedCrtcs[id] }

// Lookup resolves a fake id to its record: *OutputRecord, *CrtcRecord
// or *ModeRecord. Stale ids return ErrNotFound.
func (t *Table) Lookup(id ResourceID) (interface{}, error) {
	rec, ok := t.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Output returns the fake output record for id, or ErrNotFound.
func (t *Table) Output(id ResourceID) (*OutputRecord, error) {
	rec, err := t.Lookup(id)
	if err != nil {
		return nil, err
	}
	out, ok := rec.(*OutputRecord)
	if !ok {
		return nil, ErrNotFound
	}
	return out, nil
}

// Crtc returns the fake CRTC record for id, or ErrNotFound.
func (t *Table) Crtc(id ResourceID) (*CrtcRecord, error) {
	rec, err := t.Lookup(id)
	if err != nil {
		return nil, err
	}
	crtc, ok := rec.(*CrtcRecord)
	if !ok {
		return nil, ErrNotFound
	}
	return crtc, nil
}

// Mode returns the fabricated mode record for id, or ErrNotFound.
func (t *Table) Mode(id ResourceID) (*ModeRecord, error) {
	rec, err := t.Lookup(id)
	if err != nil {
		return nil, err
	}
	mode, ok := rec.(*ModeRecord)
	if !ok {
		return nil, ErrNotFound
	}
	return mode, nil
}
