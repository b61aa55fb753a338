package engine

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bnema/xsplit/internal/fakes"
)

// XGBBackend talks to the live X server over the RandR extension.
type XGBBackend struct {
	conn *xgb.Conn
	root xproto.Window
}

// NewXGBBackend connects to the display server named by $DISPLAY.
func NewXGBBackend() (*XGBBackend, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}
	if err := randr.Init(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("RandR extension unavailable: %w", err)
	}
	return &XGBBackend{
		conn: conn,
		root: xproto.Setup(conn).DefaultScreen(conn).Root,
	}, nil
}

// Close drops the server connection.
func (b *XGBBackend) Close() {
	b.conn.Close()
}

func (b *XGBBackend) ScreenResources() (*ScreenResources, error) {
	reply, err := randr.GetScreenResources(b.conn, b.root).Reply()
	if err != nil {
		return nil, err
	}
	res := &ScreenResources{
		Outputs: make([]fakes.ResourceID, len(reply.Outputs)),
		Crtcs:   make([]fakes.ResourceID, len(reply.Crtcs)),
		Modes:   make([]ModeInfo, len(reply.Modes)),
	}
	for i, id := range reply.Outputs {
		res.Outputs[i] = fakes.ResourceID(id)
	}
	for i, id := range reply.Crtcs {
		res.Crtcs[i] = fakes.ResourceID(id)
	}
	// Mode names are concatenated after the mode list; NameLen slices
	// them back apart.
	names := reply.Names
	for i, m := range reply.Modes {
		name := ""
		if int(m.NameLen) <= len(names) {
			name = string(names[:m.NameLen])
			names = names[m.NameLen:]
		}
		res.Modes[i] = ModeInfo{
			ID:     fakes.ResourceID(m.Id),
			Name:   name,
			Width:  uint32(m.Width),
			Height: uint32(m.Height),
		}
	}
	return res, nil
}

func (b *XGBBackend) OutputInfo(id fakes.ResourceID) (*OutputInfo, error) {
	reply, err := randr.GetOutputInfo(b.conn, randr.Output(id), 0).Reply()
	if err != nil {
		return nil, err
	}
	info := &OutputInfo{
		ID:       id,
		Name:     string(reply.Name),
		Crtc:     fakes.ResourceID(reply.Crtc),
		Modes:    make([]fakes.ResourceID, len(reply.Modes)),
		WidthMM:  reply.MmWidth,
		HeightMM: reply.MmHeight,
	}
	switch reply.Connection {
	case randr.ConnectionConnected:
		info.Connection = Connected
	case randr.ConnectionDisconnected:
		info.Connection = Disconnected
	default:
		info.Connection = UnknownConnection
	}
	for i, m := range reply.Modes {
		info.Modes[i] = fakes.ResourceID(m)
	}
	return info, nil
}

func (b *XGBBackend) CrtcInfo(id fakes.ResourceID) (*CrtcInfo, error) {
	reply, err := randr.GetCrtcInfo(b.conn, randr.Crtc(id), 0).Reply()
	if err != nil {
		return nil, err
	}
	info := &CrtcInfo{
		ID:      id,
		X:       int(reply.X),
		Y:       int(reply.Y),
		Width:   uint32(reply.Width),
		Height:  uint32(reply.Height),
		Mode:    fakes.ResourceID(reply.Mode),
		Outputs: make([]fakes.ResourceID, len(reply.Outputs)),
	}
	for i, o := range reply.Outputs {
		info.Outputs[i] = fakes.ResourceID(o)
	}
	return info, nil
}

func (b *XGBBackend) ConfigureCrtc(cfg *CrtcConfig) error {
	outputs := make([]randr.Output, len(cfg.Outputs))
	for i, o := range cfg.Outputs {
		outputs[i] = randr.Output(o)
	}
	reply, err := randr.SetCrtcConfig(b.conn, randr.Crtc(cfg.Crtc), 0, 0,
		int16(cfg.X), int16(cfg.Y), randr.Mode(cfg.Mode),
		randr.RotationRotate0, outputs).Reply()
	if err != nil {
		return err
	}
	if reply.Status != randr.SetConfigSuccess {
		return fmt.Errorf("crtc %#x configuration refused (status %d)", cfg.Crtc, reply.Status)
	}
	return nil
}

func (b *XGBBackend) OutputProperties(id fakes.ResourceID) ([]OutputProperty, error) {
	reply, err := randr.ListOutputProperties(b.conn, randr.Output(id)).Reply()
	if err != nil {
		return nil, err
	}
	props := make([]OutputProperty, 0, len(reply.Atoms))
	for _, atom := range reply.Atoms {
		nameReply, err := xproto.GetAtomName(b.conn, atom).Reply()
		if err != nil {
			return nil, err
		}
		valReply, err := randr.GetOutputProperty(b.conn, randr.Output(id),
			atom, xproto.AtomNone, 0, 8192, false, false).Reply()
		if err != nil {
			return nil, err
		}
		props = append(props, OutputProperty{
			Name: nameReply.Name,
			Data: valReply.Data,
		})
	}
	return props, nil
}
