package engine

import (
	"errors"

	"github.com/bnema/xsplit/internal/fakes"
)

// ScreenResources answers resource enumeration with real objects merged
// with the fakes, hiding real outputs and CRTCs that splits replace.
func (e *Engine) ScreenResources() (*ScreenResources, error) {
	res, err := e.dispatch(e.hooks, CallScreenResources, &Invocation{
		passthrough: func(*Invocation) (interface{}, error) { return e.backend.ScreenResources() },
	})
	if err != nil {
		return nil, err
	}
	return res.(*ScreenResources), nil
}

// OutputInfo answers per-output queries, routed to the real backend or
// the fake record table depending on the id's class.
func (e *Engine) OutputInfo(id fakes.ResourceID) (*OutputInfo, error) {
	res, err := e.dispatch(e.hooks, CallOutputInfo, &Invocation{
		ID:          id,
		passthrough: func(inv *Invocation) (interface{}, error) { return e.backend.OutputInfo(inv.ID) },
	})
	if err != nil {
		return nil, err
	}
	return res.(*OutputInfo), nil
}

// CrtcInfo answers per-CRTC queries, routed like OutputInfo.
func (e *Engine) CrtcInfo(id fakes.ResourceID) (*CrtcInfo, error) {
	res, err := e.dispatch(e.hooks, CallCrtcInfo, &Invocation{
		ID:          id,
		passthrough: func(inv *Invocation) (interface{}, error) { return e.backend.CrtcInfo(inv.ID) },
	})
	if err != nil {
		return nil, err
	}
	return res.(*CrtcInfo), nil
}

// ConfigureCrtc applies a CRTC configuration. Fake CRTCs succeed as a
// no-op with only the in-memory record updated; real CRTCs pass
// through untouched.
func (e *Engine) ConfigureCrtc(cfg *CrtcConfig) error {
	_, err := e.dispatch(e.hooks, CallConfigureCrtc, &Invocation{
		ID:          cfg.Crtc,
		Config:      cfg,
		passthrough: e.configurePassthrough,
	})
	return err
}

// OutputProperties lists an output's properties. Fake outputs have no
// identity data to report and answer with an empty set.
func (e *Engine) OutputProperties(id fakes.ResourceID) ([]OutputProperty, error) {
	res, err := e.dispatch(e.hooks, CallOutputProperties, &Invocation{
		ID:          id,
		passthrough: func(inv *Invocation) (interface{}, error) { return e.backend.OutputProperties(inv.ID) },
	})
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	return res.([]OutputProperty), nil
}

// FilterError is the generic protocol-error handler: invalid-resource
// errors naming a fake id are suppressed (the real server has never
// heard of those ids), everything else is returned unchanged.
func (e *Engine) FilterError(err error) error {
	res, _ := e.dispatch(e.hooks, CallError, &Invocation{
		Err:         err,
		passthrough: func(inv *Invocation) (interface{}, error) { return inv.Err, nil },
	})
	if res == nil {
		return nil
	}
	return res.(error)
}

// LowConfigureCrtc is the low-level binding's CRTC configuration path.
func (e *Engine) LowConfigureCrtc(cfg *CrtcConfig) error {
	_, err := e.dispatch(e.low, CallLowConfigureCrtc, &Invocation{
		ID:          cfg.Crtc,
		Config:      cfg,
		passthrough: e.configurePassthrough,
	})
	return err
}

// LowSetCrtcTransform is the low-level binding's transform call.
func (e *Engine) LowSetCrtcTransform(id fakes.ResourceID) error {
	_, err := e.dispatch(e.low, CallLowCrtcTransform, &Invocation{
		ID:          id,
		passthrough: noopPassthrough,
	})
	return err
}

// LowChangeOutputProperty is the low-level binding's property-change
// call.
func (e *Engine) LowChangeOutputProperty(id fakes.ResourceID) error {
	_, err := e.dispatch(e.low, CallLowChangeProperty, &Invocation{
		ID:          id,
		passthrough: noopPassthrough,
	})
	return err
}

// configurePassthrough forwards a CRTC configuration to the backend
// unchanged.
func (e *Engine) configurePassthrough(inv *Invocation) (interface{}, error) {
	return nil, e.backend.ConfigureCrtc(inv.Config)
}

// noopPassthrough succeeds without touching the backend, for calls the
// backend surface does not carry.
func noopPassthrough(*Invocation) (interface{}, error) {
	return nil, nil
}

func (e *Engine) hookScreenResources(inv *Invocation) (interface{}, error) {
	live, err := e.backend.ScreenResources()
	if err != nil {
		return nil, err
	}
	table := e.Table()
	merged := &ScreenResources{
		Outputs: make([]fakes.ResourceID, 0, len(live.Outputs)+len(table.Outputs())),
		Crtcs:   make([]fakes.ResourceID, 0, len(live.Crtcs)+len(table.Crtcs())),
		Modes:   make([]ModeInfo, 0, len(live.Modes)+len(table.Modes())),
	}
	for _, id := range live.Outputs {
		if !table.ReplacesOutput(id) {
			merged.Outputs = append(merged.Outputs, id)
		}
	}
	for _, id := range live.Crtcs {
		if !table.ReplacesCrtc(id) {
			merged.Crtcs = append(merged.Crtcs, id)
		}
	}
	merged.Modes = append(merged.Modes, live.Modes...)
	for _, out := range table.Outputs() {
		merged.Outputs = append(merged.Outputs, out.ID)
	}
	for _, crtc := range table.Crtcs() {
		merged.Crtcs = append(merged.Crtcs, crtc.ID)
	}
	for _, mode := range table.Modes() {
		merged.Modes = append(merged.Modes, ModeInfo{
			ID:     mode.ID,
			Name:   mode.Name,
			Width:  mode.Width,
			Height: mode.Height,
		})
	}
	return merged, nil
}

func (e *Engine) hookOutputInfo(inv *Invocation) (interface{}, error) {
	if fakes.Classify(inv.ID) == fakes.ClassReal {
		return e.backend.OutputInfo(inv.ID)
	}
	out, err := e.Table().Output(inv.ID)
	if err != nil {
		// Stale id from before a reload: the standard invalid
		// resource response, not a crash.
		return nil, e.notFound(BadOutput, inv.ID, err)
	}
	return &OutputInfo{
		ID:         out.ID,
		Name:       out.Name,
		Crtc:       out.Crtc,
		Connection: Connected,
		Modes:      []fakes.ResourceID{out.Mode},
		WidthMM:    uint32(out.WidthMM),
		HeightMM:   uint32(out.HeightMM),
	}, nil
}

func (e *Engine) hookCrtcInfo(inv *Invocation) (interface{}, error) {
	if fakes.Classify(inv.ID) == fakes.ClassReal {
		return e.backend.CrtcInfo(inv.ID)
	}
	crtc, err := e.Table().Crtc(inv.ID)
	if err != nil {
		return nil, e.notFound(BadCrtc, inv.ID, err)
	}
	return &CrtcInfo{
		ID:      crtc.ID,
		X:       crtc.X,
		Y:       crtc.Y,
		Width:   crtc.Width,
		Height:  crtc.Height,
		Mode:    crtc.Mode,
		Outputs: []fakes.ResourceID{crtc.Output},
	}, nil
}

func (e *Engine) hookConfigureCrtc(inv *Invocation) (interface{}, error) {
	cfg := inv.Config
	if fakes.Classify(cfg.Crtc) == fakes.ClassReal {
		return nil, e.backend.ConfigureCrtc(cfg)
	}
	crtc, err := e.Table().Crtc(cfg.Crtc)
	if err != nil {
		return nil, e.notFound(BadCrtc, cfg.Crtc, err)
	}
	// Silent success: only the in-memory record moves, the server
	// never sees the request.
	crtc.X = cfg.X
	crtc.Y = cfg.Y
	if cfg.Mode != 0 {
		crtc.Mode = cfg.Mode
	}
	e.log.Debug("fake crtc configured in memory", "crtc", cfg.Crtc, "x", cfg.X, "y", cfg.Y)
	return nil, nil
}

func (e *Engine) hookOutputProperties(inv *Invocation) (interface{}, error) {
	if fakes.Classify(inv.ID) == fakes.ClassReal {
		return e.backend.OutputProperties(inv.ID)
	}
	if _, err := e.Table().Output(inv.ID); err != nil {
		return nil, e.notFound(BadOutput, inv.ID, err)
	}
	return []OutputProperty{}, nil
}

func (e *Engine) hookError(inv *Invocation) (interface{}, error) {
	var resErr *ResourceError
	if errors.As(inv.Err, &resErr) && fakes.IsFake(resErr.ID) {
		e.log.Debug("suppressed invalid-resource error for fake id",
			"code", resErr.Code, "id", resErr.ID)
		return nil, nil
	}
	return inv.Err, nil
}

func (e *Engine) hookCrtcTransform(inv *Invocation) (interface{}, error) {
	if fakes.Classify(inv.ID) == fakes.ClassReal {
		// The backend surface has no transform call; unhooked real
		// traffic on this path is outside the intercepted subset.
		return nil, nil
	}
	if _, err := e.Table().Crtc(inv.ID); err != nil {
		return nil, e.notFound(BadCrtc, inv.ID, err)
	}
	return nil, nil
}

func (e *Engine) hookChangeProperty(inv *Invocation) (interface{}, error) {
	if fakes.Classify(inv.ID) == fakes.ClassReal {
		return nil, nil
	}
	if _, err := e.Table().Output(inv.ID); err != nil {
		return nil, e.notFound(BadOutput, inv.ID, err)
	}
	return nil, nil
}

func (e *Engine) notFound(code ErrorCode, id fakes.ResourceID, err error) error {
	if errors.Is(err, fakes.ErrNotFound) {
		return &ResourceError{Code: code, ID: id}
	}
	return err
}
