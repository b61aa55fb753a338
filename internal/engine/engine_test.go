package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/fakes"
	"github.com/bnema/xsplit/internal/split"
)

const (
	realOutputDP   = fakes.ResourceID(0x4d)
	realCrtcDP     = fakes.ResourceID(0x3f)
	realOutputHDMI = fakes.ResourceID(0x4e)
	realCrtcHDMI   = fakes.ResourceID(0x40)
	realMode1080   = fakes.ResourceID(0x51)
	realMode1440   = fakes.ResourceID(0x52)
)

// stubBackend is a canned two-output server: DP-1 at 1920x1080+0+0 and
// HDMI-A-1 at 2560x1440+1920+0.
type stubBackend struct {
	configured []CrtcConfig
	propCalls  int
}

func (s *stubBackend) ScreenResources() (*ScreenResources, error) {
	return &ScreenResources{
		Outputs: []fakes.ResourceID{realOutputDP, realOutputHDMI},
		Crtcs:   []fakes.ResourceID{realCrtcDP, realCrtcHDMI},
		Modes: []ModeInfo{
			{ID: realMode1080, Name: "1920x1080", Width: 1920, Height: 1080},
			{ID: realMode1440, Name: "2560x1440", Width: 2560, Height: 1440},
		},
	}, nil
}

func (s *stubBackend) OutputInfo(id fakes.ResourceID) (*OutputInfo, error) {
	switch id {
	case realOutputDP:
		return &OutputInfo{
			ID: id, Name: "DP-1", Crtc: realCrtcDP, Connection: Connected,
			Modes: []fakes.ResourceID{realMode1080}, WidthMM: 600, HeightMM: 340,
		}, nil
	case realOutputHDMI:
		return &OutputInfo{
			ID: id, Name: "HDMI-A-1", Crtc: realCrtcHDMI, Connection: Connected,
			Modes: []fakes.ResourceID{realMode1440},
		}, nil
	}
	return nil, &ResourceError{Code: BadOutput, ID: id}
}

func (s *stubBackend) CrtcInfo(id fakes.ResourceID) (*CrtcInfo, error) {
	switch id {
	case realCrtcDP:
		return &CrtcInfo{
			ID: id, X: 0, Y: 0, Width: 1920, Height: 1080,
			Mode: realMode1080, Outputs: []fakes.ResourceID{realOutputDP},
		}, nil
	case realCrtcHDMI:
		return &CrtcInfo{
			ID: id, X: 1920, Y: 0, Width: 2560, Height: 1440,
			Mode: realMode1440, Outputs: []fakes.ResourceID{realOutputHDMI},
		}, nil
	}
	return nil, &ResourceError{Code: BadCrtc, ID: id}
}

func (s *stubBackend) ConfigureCrtc(cfg *CrtcConfig) error {
	s.configured = append(s.configured, *cfg)
	return nil
}

func (s *stubBackend) OutputProperties(id fakes.ResourceID) ([]OutputProperty, error) {
	s.propCalls++
	return []OutputProperty{{Name: "EDID", Data: []byte{0x00, 0xff}}}, nil
}

func writeSplitConfig(t *testing.T, path, layout string) {
	t.Helper()
	tree, err := split.ParseLayout(layout)
	require.NoError(t, err)
	entries := []config.OutputConfig{config.FromSplit("DP-1", "", 1920, 1080, tree)}
	require.NoError(t, config.WriteFile(path, entries))
}

func newTestEngine(t *testing.T) (*Engine, *stubBackend, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), config.FileName)
	backend := &stubBackend{}
	e := New(backend, Options{ConfigPath: path, PollInterval: time.Millisecond})
	return e, backend, path
}

func TestStateMachine(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.Equal(t, Unloaded, e.State())

	require.NoError(t, e.Attach())
	require.Equal(t, Loaded, e.State(), "no config yet, engine stays unbound")
	require.Error(t, e.Attach(), "second attach must fail")

	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()
	require.Equal(t, ConfigBound, e.State())

	_, err := e.ScreenResources()
	require.NoError(t, err)
	require.Equal(t, Serving, e.State())
}

func TestDispatchBeforeAttach(t *testing.T) {
	e, _, _ := newTestEngine(t)
	_, err := e.ScreenResources()
	require.Error(t, err)
}

func TestScreenResourcesMergesFakes(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,h40(l,l))")
	e.Reload()

	res, err := e.ScreenResources()
	require.NoError(t, err)

	// DP-1 and its CRTC are replaced by three fakes each; HDMI-A-1
	// stays as-is.
	require.NotContains(t, res.Outputs, realOutputDP)
	require.NotContains(t, res.Crtcs, realCrtcDP)
	require.Contains(t, res.Outputs, realOutputHDMI)
	require.Contains(t, res.Crtcs, realCrtcHDMI)
	require.Len(t, res.Outputs, 4)
	require.Len(t, res.Crtcs, 4)
	require.Len(t, res.Modes, 5)

	fakeCount := 0
	for _, id := range res.Outputs {
		if fakes.IsFake(id) {
			fakeCount++
		}
	}
	require.Equal(t, 3, fakeCount)
}

func TestOutputInfoRouting(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()

	t.Run("real id goes to the backend", func(t *testing.T) {
		info, err := e.OutputInfo(realOutputHDMI)
		require.NoError(t, err)
		require.Equal(t, "HDMI-A-1", info.Name)
	})

	t.Run("fake id answered from the record table", func(t *testing.T) {
		fakeID := e.Table().Outputs()[0].ID
		info, err := e.OutputInfo(fakeID)
		require.NoError(t, err)
		require.Equal(t, "DP-1~0", info.Name)
		require.Equal(t, Connected, info.Connection)
		require.Len(t, info.Modes, 1)
		require.True(t, fakes.IsFake(info.Crtc))
	})

	t.Run("stale fake id yields invalid resource", func(t *testing.T) {
		stale := fakes.ReservedMask | 0xfff
		_, err := e.OutputInfo(stale)
		var resErr *ResourceError
		require.True(t, errors.As(err, &resErr))
		require.Equal(t, BadOutput, resErr.Code)
		require.Equal(t, stale, resErr.ID)
	})
}

func TestConfigureCrtc(t *testing.T) {
	e, backend, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()

	t.Run("fake crtc is a silent in-memory no-op", func(t *testing.T) {
		crtc := e.Table().Crtcs()[0]
		err := e.ConfigureCrtc(&CrtcConfig{Crtc: crtc.ID, X: 42, Y: 7})
		require.NoError(t, err)
		require.Empty(t, backend.configured, "server must never see fake crtc requests")

		info, err := e.CrtcInfo(crtc.ID)
		require.NoError(t, err)
		require.Equal(t, 42, info.X)
		require.Equal(t, 7, info.Y)
	})

	t.Run("real crtc passes through untouched", func(t *testing.T) {
		err := e.ConfigureCrtc(&CrtcConfig{Crtc: realCrtcHDMI, X: 1920, Mode: realMode1440})
		require.NoError(t, err)
		require.Len(t, backend.configured, 1)
		require.Equal(t, realCrtcHDMI, backend.configured[0].Crtc)
	})
}

func TestOutputProperties(t *testing.T) {
	e, backend, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()

	props, err := e.OutputProperties(e.Table().Outputs()[0].ID)
	require.NoError(t, err)
	require.Empty(t, props, "fake outputs report no identity data")
	require.Zero(t, backend.propCalls)

	props, err = e.OutputProperties(realOutputHDMI)
	require.NoError(t, err)
	require.Len(t, props, 1)
	require.Equal(t, 1, backend.propCalls)
}

func TestFilterError(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()

	fakeErr := &ResourceError{Code: BadOutput, ID: fakes.ReservedMask | 5}
	require.NoError(t, e.FilterError(fakeErr), "errors naming fake ids are suppressed")

	realErr := &ResourceError{Code: BadCrtc, ID: 0x99}
	require.Equal(t, error(realErr), e.FilterError(realErr))

	other := fmt.Errorf("connection reset")
	require.Equal(t, other, e.FilterError(other))
}

func TestCorruptReloadKeepsLastGoodTable(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,h40(l,l))")
	e.Reload()
	require.Len(t, e.Table().Outputs(), 3)
	before := e.Table()

	// Corrupt the tree stream with an unknown tag byte.
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] = 'X'
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	e.Reload()

	require.Same(t, before, e.Table(), "corrupt config must not tear down the live table")
	require.Len(t, e.Table().Outputs(), 3)
}

func TestTruncatedReloadKeepsLastGoodTable(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()
	before := e.Table()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw[:len(raw)/2], 0o644))
	e.Reload()

	require.Same(t, before, e.Table())
}

func TestConfigRemovalEntersPassThrough(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()
	require.False(t, e.Table().Empty())

	require.NoError(t, os.Remove(path))
	e.Reload()
	require.True(t, e.Table().Empty())

	res, err := e.ScreenResources()
	require.NoError(t, err)
	require.Contains(t, res.Outputs, realOutputDP)
	require.Len(t, res.Outputs, 2)
}

func TestReloadKeepsFakeIDsStable(t *testing.T) {
	e, _, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()
	first := e.Table().Outputs()[0].ID

	// Rewrite with a different proportion: same (parent, leaf) pairs,
	// so cached ids stay valid.
	writeSplitConfig(t, path, "v40(l,l)")
	e.Reload()
	require.Equal(t, first, e.Table().Outputs()[0].ID)
	out, err := e.Table().Output(first)
	require.NoError(t, err)
	require.Equal(t, uint32(768), out.Width)
}

func TestLowLevelHooks(t *testing.T) {
	e, backend, path := newTestEngine(t)
	require.NoError(t, e.Attach())
	writeSplitConfig(t, path, "v60(l,l)")
	e.Reload()

	crtc := e.Table().Crtcs()[0]
	require.NoError(t, e.LowConfigureCrtc(&CrtcConfig{Crtc: crtc.ID, X: 3}))
	require.Empty(t, backend.configured)

	require.NoError(t, e.LowSetCrtcTransform(crtc.ID))
	require.NoError(t, e.LowChangeOutputProperty(e.Table().Outputs()[0].ID))

	var resErr *ResourceError
	err := e.LowSetCrtcTransform(fakes.ReservedMask | 0xabc)
	require.True(t, errors.As(err, &resErr))
}

func TestDispatchPassesThroughUnhookedCall(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Attach())

	// An unhooked call falls through to the caller-supplied forwarder.
	delete(e.hooks, CallOutputInfo)
	info, err := e.OutputInfo(realOutputDP)
	require.NoError(t, err)
	require.Equal(t, "DP-1", info.Name)

	delete(e.hooks, CallError)
	sentinel := errors.New("unrelated")
	require.Equal(t, sentinel, e.FilterError(sentinel))
}

func TestDispatchErrorsWithoutPassthrough(t *testing.T) {
	e, _, _ := newTestEngine(t)
	require.NoError(t, e.Attach())

	_, err := e.dispatch(e.hooks, Call("no-such-call"), &Invocation{})
	require.Error(t, err)
}
