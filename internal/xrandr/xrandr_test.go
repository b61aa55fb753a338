package xrandr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/xsplit/internal/logger"
)

const verboseSample = `Screen 0: minimum 320 x 200, current 4480 x 1440, maximum 16384 x 16384
DP-1 connected primary 1920x1080+0+0 (0x4b) normal (normal left inverted right x axis y axis) 600mm x 340mm
	Identifier: 0x42
	EDID:
		00ffffffffffff0010acbaa042524530
		0e1e010380351e78eaad75a9544d9d26
		105054a54b00714f8180a9c0d1c00101
	Brightness: 1.0
  1920x1080 (0x4b) 148.500MHz +HSync +VSync *current +preferred
        h: width  1920 start 2008 end 2052 total 2200 skew    0 clock  67.50KHz
        v: height 1080 start 1084 end 1089 total 1125           clock  60.00Hz
  1280x720 (0x4e) 74.250MHz +HSync +VSync
        h: width  1280 start 1390 end 1430 total 1650 skew    0 clock  45.00KHz
        v: height  720 start  725 end  730 total  900           clock  50.00Hz
HDMI-A-1 connected 2560x1440+1920+0 (0x4c) normal (normal left inverted right x axis y axis) 600mm x 340mm
	EDID:
		00ffffffffffff001e6dc25a01010101
	Brightness: 1.0
  2560x1440 (0x4c) 592.500MHz +HSync -VSync *current +preferred
        h: width  2560 start 2568 end 2600 total 2666 skew    0 clock 222.26KHz
        v: height 1440 start 1443 end 1448 total 1545           clock 143.86Hz
DP-2 disconnected (normal left inverted right x axis y axis)
	Identifier: 0x44
DP-1~0 unknown connection 1152x1080+0+0 (0x4d) normal (normal) 0mm x 0mm
  1152x1080 (0x4d) 0.000MHz *current
`

const monitorsSample = `Monitors: 3
 0: +*DP-1~0 1152/360x1080/340+0+0  DP-1~0
 1: +DP-1~1 768/240x1080/340+1152+0  DP-1~1
 2: +HDMI-A-1 2560/600x1440/340+1920+0  HDMI-A-1
`

func TestParseQuery(t *testing.T) {
	outputs, err := ParseQuery(verboseSample)
	require.NoError(t, err)
	require.Len(t, outputs, 4)

	dp := outputs[0]
	assert.Equal(t, "DP-1", dp.Name)
	assert.True(t, dp.Connected)
	assert.True(t, dp.Active)
	assert.True(t, dp.Primary)
	assert.Equal(t, 1920, dp.Width)
	assert.Equal(t, 1080, dp.Height)
	assert.Equal(t, 0, dp.X)
	assert.Equal(t, 600, dp.WidthMM)
	assert.Equal(t, 340, dp.HeightMM)
	assert.True(t, strings.HasPrefix(dp.EDIDHex, "00ffffffffffff0010ac"))
	assert.Len(t, dp.EDIDHex, 96)
	assert.InDelta(t, 60.0, dp.Rate, 0.001, "rate from the current mode, not the 50Hz one")

	hdmi := outputs[1]
	assert.Equal(t, "HDMI-A-1", hdmi.Name)
	assert.False(t, hdmi.Primary)
	assert.Equal(t, 1920, hdmi.X)
	assert.Equal(t, "00ffffffffffff001e6dc25a01010101", hdmi.EDIDHex)
	assert.InDelta(t, 143.86, hdmi.Rate, 0.001)

	dp2 := outputs[2]
	assert.Equal(t, "DP-2", dp2.Name)
	assert.False(t, dp2.Connected)
	assert.False(t, dp2.Active)
	assert.Empty(t, dp2.EDIDHex)

	virt := outputs[3]
	assert.Equal(t, "DP-1~0", virt.Name)
	assert.True(t, virt.Connected, "unknown connection counts as connected")
	assert.True(t, virt.Active)
	assert.Equal(t, 1152, virt.Width)
	assert.Empty(t, virt.EDIDHex, "virtual regions carry no EDID")
	assert.Zero(t, virt.Rate, "no vertical clock line for virtual regions")
}

func TestParseMonitors(t *testing.T) {
	monitors, err := ParseMonitors(monitorsSample)
	require.NoError(t, err)
	require.Len(t, monitors, 3)

	assert.Equal(t, Monitor{
		Index: 0, Name: "DP-1~0", Primary: true,
		Width: 1152, WidthMM: 360, Height: 1080, HeightMM: 340,
		X: 0, Y: 0, Output: "DP-1~0",
	}, monitors[0])

	assert.False(t, monitors[1].Primary)
	assert.Equal(t, 1152, monitors[1].X)
	assert.Equal(t, "HDMI-A-1", monitors[2].Name)
}

func TestParseMonitorsRejectsGarbage(t *testing.T) {
	_, err := ParseMonitors("Monitors: 1\n 0: busted line\n")
	require.Error(t, err)
}

// recordingClient captures invocations instead of running xrandr.
func recordingClient(env []string, outputs map[string]string) (*Client, *[][]string) {
	var calls [][]string
	c := &Client{
		env: env,
		log: logger.With("component", "xrandr"),
		run: func(runEnv []string, args ...string) ([]byte, error) {
			call := append([]string{}, args...)
			call = append(call, runEnv...)
			calls = append(calls, call)
			return []byte(outputs[args[0]]), nil
		},
	}
	return c, &calls
}

func TestSetMonitorStripsPreload(t *testing.T) {
	env := []string{"DISPLAY=:0", "LD_PRELOAD=/usr/lib/libxsplit.so", "HOME=/home/u"}
	c, calls := recordingClient(env, nil)

	require.NoError(t, c.SetMonitor("DP-1~0", "1152/360x1080/340+0+0", "DP-1"))
	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, []string{"--setmonitor", "DP-1~0", "1152/360x1080/340+0+0", "DP-1"}, call[:4])
	for _, kv := range call[4:] {
		assert.False(t, strings.HasPrefix(kv, "LD_PRELOAD="))
	}
}

func TestQueryKeepsPreload(t *testing.T) {
	env := []string{"DISPLAY=:0", "LD_PRELOAD=/usr/lib/libxsplit.so"}
	c, calls := recordingClient(env, map[string]string{"--verbose": verboseSample})

	_, err := c.Query()
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	assert.Contains(t, (*calls)[0], "LD_PRELOAD=/usr/lib/libxsplit.so")
}

func TestDeleteVirtualMonitors(t *testing.T) {
	c, calls := recordingClient(nil, map[string]string{"--listmonitors": monitorsSample})

	require.NoError(t, c.DeleteVirtualMonitors())

	var deleted []string
	for _, call := range *calls {
		if call[0] == "--delmonitor" {
			deleted = append(deleted, call[1])
		}
	}
	assert.Equal(t, []string{"DP-1~0", "DP-1~1"}, deleted)
}
