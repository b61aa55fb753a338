// Package proc locates and controls the window manager process:
// freezing it around reconfiguration and restarting it with or without
// the interception library preloaded.
package proc

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/bnema/xsplit/internal/logger"
)

// ErrNotRunning is returned when no live process matches the name.
var ErrNotRunning = errors.New("process not running")

// Find returns the first live process with the given name. Zombies are
// skipped: a window manager mid-restart leaves one behind and it must
// not be mistaken for the running instance.
func Find(name string) (*process.Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil || pname != name {
			continue
		}
		if isZombie(p) {
			continue
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotRunning, name)
}

func isZombie(p *process.Process) bool {
	statuses, err := p.Status()
	if err != nil {
		return false
	}
	for _, s := range statuses {
		if s == process.Zombie {
			return true
		}
	}
	return false
}

// Freeze stops the process with SIGSTOP. The process stays frozen until
// Thaw; the kernel queues display events for it in the meantime.
func Freeze(pid int32) error {
	logger.Debug("freezing process", "pid", pid)
	if err := unix.Kill(int(pid), unix.SIGSTOP); err != nil {
		return fmt.Errorf("failed to stop pid %d: %w", pid, err)
	}
	return nil
}

// Thaw resumes a frozen process with SIGCONT.
func Thaw(pid int32) error {
	logger.Debug("resuming process", "pid", pid)
	if err := unix.Kill(int(pid), unix.SIGCONT); err != nil {
		return fmt.Errorf("failed to resume pid %d: %w", pid, err)
	}
	return nil
}

// Stopped reports whether the process is currently in the stopped
// state.
func Stopped(pid int32) (bool, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return false, fmt.Errorf("%w: pid %d", ErrNotRunning, pid)
	}
	statuses, err := p.Status()
	if err != nil {
		return false, fmt.Errorf("failed to read status of pid %d: %w", pid, err)
	}
	for _, s := range statuses {
		if s == process.Stop {
			return true, nil
		}
	}
	return false, nil
}

// PreloadAttached reports whether the process has the named library
// mapped, by scanning its memory maps.
func PreloadAttached(pid int32, library string) (bool, error) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return false, fmt.Errorf("failed to read maps of pid %d: %w", pid, err)
	}
	return MapsContain(string(data), library), nil
}

// MapsContain reports whether a /proc/<pid>/maps dump references the
// named library. An empty name matches nothing; every line contains the
// empty string.
func MapsContain(maps, library string) bool {
	if library == "" {
		return false
	}
	for _, line := range strings.Split(maps, "\n") {
		if strings.Contains(line, library) {
			return true
		}
	}
	return false
}

// RestartWithPreload launches the restart command in a new session with
// the library prepended to LD_PRELOAD. The replaced instance exits on
// its own; the caller waits for the new one to settle.
func RestartWithPreload(command []string, library string) error {
	if len(command) == 0 {
		return errors.New("empty restart command")
	}
	env := preloadEnv(os.Environ(), library)
	logger.Info("restarting with preload", "command", strings.Join(command, " "), "library", library)
	return launch(command, env)
}

// RestartWithoutPreload launches the restart command with LD_PRELOAD
// stripped, restoring un-intercepted behavior.
func RestartWithoutPreload(command []string) error {
	if len(command) == 0 {
		return errors.New("empty restart command")
	}
	env := make([]string, 0, len(os.Environ()))
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "LD_PRELOAD=") {
			continue
		}
		env = append(env, kv)
	}
	logger.Info("restarting without preload", "command", strings.Join(command, " "))
	return launch(command, env)
}

// preloadEnv prepends the library to LD_PRELOAD, once.
func preloadEnv(env []string, library string) []string {
	out := make([]string, 0, len(env)+1)
	found := false
	for _, kv := range env {
		if existing, ok := strings.CutPrefix(kv, "LD_PRELOAD="); ok {
			found = true
			if !containsPath(existing, library) {
				kv = "LD_PRELOAD=" + library + ":" + existing
			}
		}
		out = append(out, kv)
	}
	if !found {
		out = append(out, "LD_PRELOAD="+library)
	}
	return out
}

func containsPath(preload, library string) bool {
	for _, p := range strings.Split(preload, ":") {
		if p == library {
			return true
		}
	}
	return false
}

func launch(command []string, env []string) error {
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = env
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", command[0], err)
	}
	// Detach: the new session outlives us.
	return cmd.Process.Release()
}
