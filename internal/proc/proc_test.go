package proc

import (
	"errors"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindSelf(t *testing.T) {
	p, err := Find(processName(t))
	require.NoError(t, err)
	assert.Equal(t, int32(os.Getpid()), p.Pid)
}

// processName returns this test binary's comm name.
func processName(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile("/proc/self/comm")
	require.NoError(t, err)
	return string(data[:len(data)-1])
}

func TestFindMissing(t *testing.T) {
	_, err := Find("xsplit-no-such-process")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning))
}

func TestFreezeThawStopped(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	require.NoError(t, cmd.Start())
	pid := int32(cmd.Process.Pid)
	defer func() {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
	}()

	stopped, err := Stopped(pid)
	require.NoError(t, err)
	assert.False(t, stopped)

	require.NoError(t, Freeze(pid))
	require.Eventually(t, func() bool {
		stopped, err := Stopped(pid)
		return err == nil && stopped
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, Thaw(pid))
	require.Eventually(t, func() bool {
		stopped, err := Stopped(pid)
		return err == nil && !stopped
	}, 2*time.Second, 20*time.Millisecond)
}

func TestPreloadAttachedSelf(t *testing.T) {
	pid := int32(os.Getpid())

	attached, err := PreloadAttached(pid, "libxsplit.so")
	require.NoError(t, err)
	assert.False(t, attached)

	// Every Linux process maps libc or the Go runtime's vdso.
	attached, err = PreloadAttached(pid, "vdso")
	require.NoError(t, err)
	assert.True(t, attached)
}

func TestMapsContain(t *testing.T) {
	maps := `7f1a00000000-7f1a00021000 rw-p 00000000 00:00 0
7f1a1c000000-7f1a1c1f0000 r-xp 00000000 08:01 131 /usr/lib/libc.so.6
7f1a1d000000-7f1a1d010000 r-xp 00000000 08:01 407 /usr/local/lib/libxsplit.so
`
	assert.True(t, MapsContain(maps, "libxsplit.so"))
	assert.True(t, MapsContain(maps, "libc.so.6"))
	assert.False(t, MapsContain(maps, "libXrandr.so.2"))
	assert.False(t, MapsContain(maps, ""), "empty library name must not count as attached")
}

func TestPreloadEnv(t *testing.T) {
	tests := []struct {
		name string
		env  []string
		want string
	}{
		{
			name: "no existing preload",
			env:  []string{"HOME=/home/u"},
			want: "LD_PRELOAD=/lib/libxsplit.so",
		},
		{
			name: "prepends to existing",
			env:  []string{"LD_PRELOAD=/lib/other.so"},
			want: "LD_PRELOAD=/lib/libxsplit.so:/lib/other.so",
		},
		{
			name: "already present",
			env:  []string{"LD_PRELOAD=/lib/libxsplit.so:/lib/other.so"},
			want: "LD_PRELOAD=/lib/libxsplit.so:/lib/other.so",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := preloadEnv(tt.env, "/lib/libxsplit.so")
			assert.Contains(t, got, tt.want)
			count := 0
			for _, kv := range got {
				if len(kv) >= 11 && kv[:11] == "LD_PRELOAD=" {
					count++
				}
			}
			assert.Equal(t, 1, count)
		})
	}
}
