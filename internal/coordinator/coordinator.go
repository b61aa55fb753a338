// Package coordinator sequences a layout change: freeze the window
// manager, rebuild the virtual monitor objects, swap the binary config,
// resume the manager and rewrite its persistence file. The manager is
// frozen for the whole reconfiguration window so it observes one
// consistent jump instead of a stream of partial states.
package coordinator

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bnema/xsplit/internal/config"
	"github.com/bnema/xsplit/internal/logger"
	"github.com/bnema/xsplit/internal/session"
	"github.com/bnema/xsplit/internal/split"
	"github.com/bnema/xsplit/internal/xrandr"
)

// ProcessController is the window-manager control surface.
type ProcessController interface {
	Find(name string) (int32, error)
	Freeze(pid int32) error
	Thaw(pid int32) error
	Stopped(pid int32) (bool, error)
	PreloadAttached(pid int32, library string) (bool, error)
	RestartWithPreload(command []string, library string) error
	RestartWithoutPreload(command []string) error
}

// MonitorClient is the xrandr command surface the coordinator drives.
type MonitorClient interface {
	ListMonitors() ([]xrandr.Monitor, error)
	SetMonitor(name, geometry, output string) error
	DelMonitor(name string) error
}

// Options configures a Coordinator. Zero fields fall back to defaults.
type Options struct {
	ProcessName    string
	RestartCommand []string
	PreloadLibrary string
	// SettleTimeout bounds the wait for a restarted manager to come
	// back runnable.
	SettleTimeout time.Duration
	// FreezeTimeout bounds the wait for SIGSTOP to take effect.
	FreezeTimeout time.Duration
	ConfigPath    string
	MonitorsPath  string
	// PollInterval paces the bounded waits.
	PollInterval time.Duration
	// VerifyAttempts bounds the post-apply geometry correction loop.
	VerifyAttempts int
}

// Coordinator applies layout plans.
type Coordinator struct {
	proc ProcessController
	mon  MonitorClient
	opts Options
	log  *log.Logger
}

// New returns a coordinator over the given control surfaces.
func New(proc ProcessController, mon MonitorClient, opts Options) *Coordinator {
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 15 * time.Second
	}
	if opts.FreezeTimeout <= 0 {
		opts.FreezeTimeout = 2 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.VerifyAttempts <= 0 {
		opts.VerifyAttempts = 3
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.Path()
	}
	if opts.MonitorsPath == "" {
		opts.MonitorsPath = session.Path()
	}
	return &Coordinator{
		proc: proc,
		mon:  mon,
		opts: opts,
		log:  logger.With("component", "coordinator"),
	}
}

// Apply runs the full reconfiguration sequence for the plan. The
// manager is resumed on every return path; if the process dies
// uninterruptibly while frozen, a manual SIGCONT recovers it.
func (c *Coordinator) Apply(plan *Plan) error {
	pid, err := c.ensurePreloadState(plan)
	if err != nil {
		return err
	}

	resume := func() {}
	if pid != 0 {
		if err := c.freeze(pid); err != nil {
			return err
		}
		// Resume no matter how the sequence below ends.
		resumed := false
		resume = func() {
			if !resumed {
				resumed = true
				c.thaw(pid)
			}
		}
		defer resume()
	}

	if err := c.rebuildMonitors(plan); err != nil {
		return err
	}
	if err := c.writeConfig(plan); err != nil {
		return err
	}
	c.verifyMonitors(plan)

	resume()
	if err := session.WriteMonitorsFile(c.opts.MonitorsPath, plan.Outputs); err != nil {
		return err
	}

	c.log.Info("layout applied", "outputs", len(plan.Outputs), "regions", plan.RegionCount())
	return nil
}

// ensurePreloadState reconciles the manager's preload attachment with
// the plan and returns the pid to freeze, zero when no manager runs.
func (c *Coordinator) ensurePreloadState(plan *Plan) (int32, error) {
	pid, err := c.proc.Find(c.opts.ProcessName)
	if err != nil {
		c.log.Warn("window manager not running, applying without freeze",
			"process", c.opts.ProcessName)
		return 0, nil
	}

	if c.opts.PreloadLibrary == "" {
		// No library configured: preload management is disabled, the
		// manager is frozen and resumed as-is.
		return pid, nil
	}

	attached, err := c.proc.PreloadAttached(pid, c.opts.PreloadLibrary)
	if err != nil {
		c.log.Warn("cannot inspect manager maps, assuming detached", "pid", pid, "err", err)
		attached = false
	}

	switch {
	case plan.HasSplits() && !attached:
		c.log.Info("restarting manager with interception library", "pid", pid)
		if err := c.proc.RestartWithPreload(c.opts.RestartCommand, c.opts.PreloadLibrary); err != nil {
			return 0, fmt.Errorf("failed to restart manager: %w", err)
		}
		return c.awaitSettle()
	case !plan.HasSplits() && attached:
		c.log.Info("no splits remain, restarting manager without interception", "pid", pid)
		if err := c.proc.RestartWithoutPreload(c.opts.RestartCommand); err != nil {
			return 0, fmt.Errorf("failed to restart manager: %w", err)
		}
		return c.awaitSettle()
	}
	return pid, nil
}

// awaitSettle polls for the restarted manager to be found and runnable.
func (c *Coordinator) awaitSettle() (int32, error) {
	var pid int32
	ok := c.pollUntil(func() bool {
		p, err := c.proc.Find(c.opts.ProcessName)
		if err != nil {
			return false
		}
		stopped, err := c.proc.Stopped(p)
		if err != nil || stopped {
			return false
		}
		pid = p
		return true
	}, c.opts.SettleTimeout)
	if !ok {
		return 0, fmt.Errorf("manager %q did not settle within %s",
			c.opts.ProcessName, c.opts.SettleTimeout)
	}
	return pid, nil
}

func (c *Coordinator) freeze(pid int32) error {
	if err := c.proc.Freeze(pid); err != nil {
		return err
	}
	ok := c.pollUntil(func() bool {
		stopped, err := c.proc.Stopped(pid)
		return err == nil && stopped
	}, c.opts.FreezeTimeout)
	if !ok {
		c.thaw(pid)
		return fmt.Errorf("pid %d did not stop within %s", pid, c.opts.FreezeTimeout)
	}
	return nil
}

func (c *Coordinator) thaw(pid int32) {
	if err := c.proc.Thaw(pid); err != nil {
		c.log.Error("failed to resume manager, recover with kill -CONT", "pid", pid, "err", err)
	}
}

// rebuildMonitors deletes every stale virtual monitor object and
// creates the plan's regions.
func (c *Coordinator) rebuildMonitors(plan *Plan) error {
	monitors, err := c.mon.ListMonitors()
	if err != nil {
		return fmt.Errorf("failed to list monitors: %w", err)
	}
	for _, m := range monitors {
		if split.IsRegionName(m.Name) {
			if err := c.mon.DelMonitor(m.Name); err != nil {
				return err
			}
		}
	}
	for _, r := range plan.Regions() {
		if err := c.mon.SetMonitor(r.Name, r.Region.SetMonitorGeometry(), r.Output); err != nil {
			return fmt.Errorf("failed to create monitor %s: %w", r.Name, err)
		}
	}
	return nil
}

// writeConfig swaps the binary config, or removes it when the plan has
// no splits so intercepted processes fall back to pass-through.
func (c *Coordinator) writeConfig(plan *Plan) error {
	entries := plan.ConfigEntries()
	if len(entries) == 0 {
		return config.Remove(c.opts.ConfigPath)
	}
	return config.WriteFile(c.opts.ConfigPath, entries)
}

// verifyMonitors re-reads the monitor list and re-issues creation for
// regions that drifted. Display drivers apply geometry asynchronously,
// so a bounded retry loop replaces a fixed sleep.
func (c *Coordinator) verifyMonitors(plan *Plan) {
	want := plan.Regions()
	if len(want) == 0 {
		return
	}
	for attempt := 1; attempt <= c.opts.VerifyAttempts; attempt++ {
		time.Sleep(c.opts.PollInterval)
		monitors, err := c.mon.ListMonitors()
		if err != nil {
			c.log.Warn("verification list failed", "err", err)
			return
		}
		byName := make(map[string]xrandr.Monitor, len(monitors))
		for _, m := range monitors {
			byName[m.Name] = m
		}
		var drifted []PlannedRegion
		for _, r := range want {
			m, ok := byName[r.Name]
			if !ok || m.X != r.Region.X || m.Y != r.Region.Y ||
				m.Width != r.Region.W || m.Height != r.Region.H {
				drifted = append(drifted, r)
			}
		}
		if len(drifted) == 0 {
			c.log.Debug("monitor geometry verified", "attempt", attempt)
			return
		}
		c.log.Warn("monitor geometry drifted, re-applying",
			"attempt", attempt, "drifted", len(drifted))
		for _, r := range drifted {
			if err := c.mon.SetMonitor(r.Name, r.Region.SetMonitorGeometry(), r.Output); err != nil {
				c.log.Warn("re-apply failed", "monitor", r.Name, "err", err)
			}
		}
	}
	c.log.Error("monitor geometry still drifted after retries", "attempts", c.opts.VerifyAttempts)
}

// pollUntil evaluates pred every poll interval until it holds or the
// timeout elapses.
func (c *Coordinator) pollUntil(pred func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if pred() {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(c.opts.PollInterval)
	}
}
