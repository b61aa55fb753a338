// Package engine implements the interception layer that answers display
// protocol queries with a merged view of real hardware and the virtual
// outputs described by the binary split config.
//
// The engine runs on whatever thread invokes the intercepted call; it
// never blocks beyond a single file stat. Reloads swap a fully built
// record table in one atomic store, so callers either see the old state
// or the new one, never a partial mix.
package engine

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/fakes"
	"github.com/bnema/xsplit/internal/logger"
)

// State of the engine within an intercepted process.
type State int32

const (
	// Unloaded: constructed, hooks not yet installed.
	Unloaded State = iota
	// Loaded: hooks installed at attach time.
	Loaded
	// ConfigBound: at least one config load succeeded.
	ConfigBound
	// Serving: steady state, answering intercepted calls.
	Serving
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case ConfigBound:
		return "config-bound"
	case Serving:
		return "serving"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Call names one intercepted entry point. The dispatch tables are
// keyed by Call; anything without a hook passes through to the real
// backend untouched.
type Call string

const (
	CallScreenResources  Call = "screen-resources"
	CallOutputInfo       Call = "output-info"
	CallCrtcInfo         Call = "crtc-info"
	CallConfigureCrtc    Call = "configure-crtc"
	CallOutputProperties Call = "output-properties"
	CallError            Call = "error"

	// Low-level binding path. Some window managers bypass the client
	// library for these specific operations; only these three are
	// covered there.
	CallLowConfigureCrtc  Call = "low/configure-crtc"
	CallLowCrtcTransform  Call = "low/crtc-transform"
	CallLowChangeProperty Call = "low/change-output-property"
)

// Invocation carries the arguments of one intercepted call through the
// dispatch table.
type Invocation struct {
	ID     fakes.ResourceID
	Config *CrtcConfig
	Err    error

	passthrough func(*Invocation) (interface{}, error)
}

// Hook handles one intercepted call.
type Hook func(*Invocation) (interface{}, error)

// Options configures an Engine.
type Options struct {
	// ConfigPath overrides the default binary config location.
	ConfigPath string
	// PollInterval throttles config mtime checks. Zero means the
	// default of 500ms.
	PollInterval time.Duration
}

// Engine intercepts display protocol calls for one process.
type Engine struct {
	backend Backend
	ns      *fakes.Namespace
	log     *log.Logger

	state atomic.Int32
	table atomic.Pointer[fakes.Table]

	hooks map[Call]Hook
	low   map[Call]Hook

	cfgPath      string
	pollInterval time.Duration

	// reload bookkeeping, guarded by mu; hooks only touch the atomics.
	mu        sync.Mutex
	lastCheck time.Time
	lastMtime time.Time
	lastRaw   []byte
}

// New returns an engine in the Unloaded state.
func New(backend Backend, opts Options) *Engine {
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.Path()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	e := &Engine{
		backend:      backend,
		ns:           fakes.NewNamespace(),
		log:          logger.With("component", "engine"),
		cfgPath:      opts.ConfigPath,
		pollInterval: opts.PollInterval,
	}
	e.table.Store(fakes.EmptyTable())
	return e
}

// State returns the engine's current state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Table returns the live fake record table.
func (e *Engine) Table() *fakes.Table {
	return e.table.Load()
}

// Attach installs the hook tables and attempts the first config load.
// A missing or malformed config is not fatal: the engine starts in
// pass-through and binds on a later poll.
func (e *Engine) Attach() error {
	if !e.state.CompareAndSwap(int32(Unloaded), int32(Loaded)) {
		return fmt.Errorf("engine already attached (state %s)", e.State())
	}
	e.hooks = map[Call]Hook{
		CallScreenResources:  e.hookScreenResources,
		CallOutputInfo:       e.hookOutputInfo,
		CallCrtcInfo:         e.hookCrtcInfo,
		CallConfigureCrtc:    e.hookConfigureCrtc,
		CallOutputProperties: e.hookOutputProperties,
		CallError:            e.hookError,
	}
	e.low = map[Call]Hook{
		CallLowConfigureCrtc:  e.hookConfigureCrtc,
		CallLowCrtcTransform:  e.hookCrtcTransform,
		CallLowChangeProperty: e.hookChangeProperty,
	}
	e.log.Debug("hooks installed", "calls", len(e.hooks)+len(e.low))
	e.maybeReload(true)
	return nil
}

// dispatch routes a call through a hook table, passing through when no
// hook is registered for it.
func (e *Engine) dispatch(table map[Call]Hook, call Call, inv *Invocation) (interface{}, error) {
	if s := e.State(); s == Unloaded {
		return nil, fmt.Errorf("engine not attached")
	}
	e.maybeReload(false)
	if h, ok := table[call]; ok {
		res, err := h(inv)
		e.state.CompareAndSwap(int32(ConfigBound), int32(Serving))
		return res, err
	}
	if inv.passthrough == nil {
		return nil, fmt.Errorf("no hook and no pass-through for call %q", call)
	}
	return inv.passthrough(inv)
}

// maybeReload polls the config file's modification time and swaps in a
// freshly built record table when it advanced. Stale or unreadable
// configs never tear down the last-good table.
func (e *Engine) maybeReload(force bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now()
	if !force && now.Sub(e.lastCheck) < e.pollInterval {
		return
	}
	e.lastCheck = now

	st, err := os.Stat(e.cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Pass-through mode. An empty table is still a valid
			// binding: the config tool removes the file when no
			// output is split.
			if !e.Table().Empty() {
				e.log.Info("config removed, entering pass-through")
				e.swap(fakes.EmptyTable(), nil, time.Time{})
			}
			return
		}
		e.log.Warn("config stat failed, keeping last-good state", "err", err)
		return
	}
	if !force && st.ModTime().Equal(e.lastMtime) {
		return
	}

	raw, err := os.ReadFile(e.cfgPath)
	if err != nil {
		e.log.Warn("config read failed, keeping last-good state", "err", err)
		return
	}
	if bytes.Equal(raw, e.lastRaw) {
		// Touched but unchanged; encoding is deterministic, so byte
		// equality means config equality.
		e.lastMtime = st.ModTime()
		return
	}

	entries, err := config.Decode(raw)
	if err != nil {
		e.log.Warn("config rejected, keeping last-good state", "err", err)
		return
	}
	parents, err := e.queryParents()
	if err != nil {
		e.log.Warn("output query failed, keeping last-good state", "err", err)
		return
	}

	table := fakes.BuildTable(e.ns, entries, parents)
	e.swap(table, raw, st.ModTime())
	e.log.Info("config loaded", "entries", len(entries), "fakes", len(table.Outputs()))
}

// swap publishes a new table. Must hold mu.
func (e *Engine) swap(table *fakes.Table, raw []byte, mtime time.Time) {
	e.table.Store(table)
	e.lastRaw = raw
	e.lastMtime = mtime
	e.state.CompareAndSwap(int32(Loaded), int32(ConfigBound))
}

// queryParents assembles the real-output placement the table builder
// needs, straight from the backend.
func (e *Engine) queryParents() ([]fakes.ParentOutput, error) {
	res, err := e.backend.ScreenResources()
	if err != nil {
		return nil, fmt.Errorf("screen resources: %w", err)
	}
	var parents []fakes.ParentOutput
	for _, id := range res.Outputs {
		info, err := e.backend.OutputInfo(id)
		if err != nil {
			return nil, fmt.Errorf("output %#x: %w", id, err)
		}
		if info.Connection != Connected || info.Crtc == 0 {
			continue
		}
		crtc, err := e.backend.CrtcInfo(info.Crtc)
		if err != nil {
			return nil, fmt.Errorf("crtc %#x: %w", info.Crtc, err)
		}
		parents = append(parents, fakes.ParentOutput{
			ID:       id,
			Crtc:     info.Crtc,
			Name:     info.Name,
			X:        crtc.X,
			Y:        crtc.Y,
			Width:    crtc.Width,
			Height:   crtc.Height,
			WidthMM:  int(info.WidthMM),
			HeightMM: int(info.HeightMM),
		})
	}
	return parents, nil
}

// Reload forces an immediate config re-check, bypassing the poll
// throttle. Used by the probe command and tests.
func (e *Engine) Reload() {
	e.maybeReload(true)
}
