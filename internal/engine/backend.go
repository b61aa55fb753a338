package engine

import (
	"fmt"

	"github.com/bnema/xsplit/internal/fakes"
)

// Connection state of an output, mirroring the protocol's values.
type Connection byte

const (
	Connected Connection = iota
	Disconnected
	UnknownConnection
)

// ScreenResources is the resource enumeration reply: every output, CRTC
// and mode the caller may reference.
type ScreenResources struct {
	Outputs []fakes.ResourceID
	Crtcs   []fakes.ResourceID
	Modes   []ModeInfo
}

// ModeInfo describes one display mode.
type ModeInfo struct {
	ID     fakes.ResourceID
	Name   string
	Width  uint32
	Height uint32
}

// OutputInfo is the per-output information reply.
type OutputInfo struct {
	ID         fakes.ResourceID
	Name       string
	Crtc       fakes.ResourceID
	Connection Connection
	Modes      []fakes.ResourceID
	WidthMM    uint32
	HeightMM   uint32
}

// CrtcInfo is the per-CRTC information reply.
type CrtcInfo struct {
	ID      fakes.ResourceID
	X, Y    int
	Width   uint32
	Height  uint32
	Mode    fakes.ResourceID
	Outputs []fakes.ResourceID
}

// CrtcConfig is a CRTC configuration request.
type CrtcConfig struct {
	Crtc    fakes.ResourceID
	X, Y    int
	Mode    fakes.ResourceID
	Outputs []fakes.ResourceID
}

// OutputProperty is one property of an output.
type OutputProperty struct {
	Name string
	Data []byte
}

// Backend is the intercepted call surface against the real display
// server. The engine wraps a Backend and serves the merged real+fake
// view through the same shape, so a consumer cannot tell the two apart.
type Backend interface {
	ScreenResources() (*ScreenResources, error)
	OutputInfo(id fakes.ResourceID) (*OutputInfo, error)
	CrtcInfo(id fakes.ResourceID) (*CrtcInfo, error)
	ConfigureCrtc(cfg *CrtcConfig) error
	OutputProperties(id fakes.ResourceID) ([]OutputProperty, error)
}

// ErrorCode classifies protocol resource errors.
type ErrorCode byte

const (
	BadOutput ErrorCode = iota
	BadCrtc
	BadMode
)

func (c ErrorCode) String() string {
	switch c {
	case BadOutput:
		return "BadOutput"
	case BadCrtc:
		return "BadCrtc"
	case BadMode:
		return "BadMode"
	}
	return fmt.Sprintf("ErrorCode(%d)", byte(c))
}

// ResourceError is the protocol's "invalid resource" error, carrying
// the offending identifier.
type ResourceError struct {
	Code ErrorCode
	ID   fakes.ResourceID
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s: invalid resource %#x", e.Code, e.ID)
}
