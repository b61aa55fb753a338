// Package fakes manages the synthetic resource identifiers and records
// backing virtual outputs. Fake ids live in a reserved namespace the
// display server can never issue, so they are recognizable on sight and
// never collide with real resources.
package fakes

import (
	"errors"
	"fmt"
	"sync"
)

// ResourceID is a 32-bit protocol resource identifier, real or fake.
type ResourceID uint32

// ReservedMask marks the synthetic namespace. The X server allocates
// ids under the client's id base, which never has all four top bits
// set, so an id matching the full mask cannot come from the server.
const ReservedMask ResourceID = 0xF0000000

const (
	kindOutput = 0
	kindCrtc   = 1
	kindMode   = 2

	kindShift = 24
	slotShift = 12
	slotMax   = 1<<12 - 1
	leafMax   = 1<<12 - 1
)

// IsFake reports whether id belongs to the synthetic namespace.
func IsFake(id ResourceID) bool {
	return id&ReservedMask == ReservedMask
}

// Class tags an identifier as server-issued or synthetic.
type Class int

const (
	ClassReal Class = iota
	ClassFake
)

func (c Class) String() string {
	if c == ClassFake {
		return "fake"
	}
	return "real"
}

// Classify returns the class of an identifier.
func Classify(id ResourceID) Class {
	if IsFake(id) {
		return ClassFake
	}
	return ClassReal
}

// ErrNotFound is returned by lookups for ids with no live record, e.g.
// a fake id cached by the window manager across a reload that removed
// its region.
var ErrNotFound = errors.New("no such fake resource")

// Namespace allocates deterministic fake ids. The same (parent, leaf)
// pair always yields the same id for the life of the process: parent
// outputs get a stable slot on first sight and slots are never reused,
// so ids survive config reloads and re-resolution without orphaning
// identifiers the window manager has cached.
type Namespace struct {
	mu    sync.Mutex
	slots map[string]uint32
}

// NewNamespace returns an empty allocator.
func NewNamespace() *Namespace {
	return &Namespace{slots: make(map[string]uint32)}
}

// OutputID returns the fake output id for leaf region i of parent.
func (ns *Namespace) OutputID(parent string, leaf int) ResourceID {
	return ns.id(kindOutput, parent, leaf)
}

// CrtcID returns the fake CRTC id for leaf region i of parent.
func (ns *Namespace) CrtcID(parent string, leaf int) ResourceID {
	return ns.id(kindCrtc, parent, leaf)
}

// ModeID returns the fake mode id for leaf region i of parent.
func (ns *Namespace) ModeID(parent string, leaf int) ResourceID {
	return ns.id(kindMode, parent, leaf)
}

func (ns *Namespace) id(kind uint32, parent string, leaf int) ResourceID {
	if leaf < 0 || leaf > leafMax {
		// An allocator invariant violation is a logic error, not a
		// user-fixable condition.
		panic(fmt.Sprintf("fakes: leaf index %d outside id space", leaf))
	}
	ns.mu.Lock()
	slot, ok := ns.slots[parent]
	if !ok {
		slot = uint32(len(ns.slots))
		if slot > slotMax {
			ns.mu.Unlock()
			panic(fmt.Sprintf("fakes: parent slot space exhausted at %q", parent))
		}
		ns.slots[parent] = slot
	}
	ns.mu.Unlock()
	return ReservedMask | ResourceID(kind<<kindShift) | ResourceID(slot<<slotShift) | ResourceID(leaf)
}
