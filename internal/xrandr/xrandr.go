// Package xrandr shells out to the xrandr binary for the operations the
// display protocol bindings do not cover: monitor objects (setmonitor,
// delmonitor, listmonitors) and verbose output queries with EDID data.
package xrandr

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/bnema/xsplit/internal/logger"
)

// Client wraps xrandr invocations against one display.
type Client struct {
	env []string
	log *log.Logger

	// run executes xrandr with the given environment; replaced in tests.
	run func(env []string, args ...string) ([]byte, error)
}

// New returns a client using the process environment. A non-empty
// display overrides $DISPLAY for every invocation.
func New(display string) *Client {
	env := os.Environ()
	if display != "" {
		env = append(env, "DISPLAY="+display)
	}
	return &Client{
		env: env,
		log: logger.With("component", "xrandr"),
		run: runXrandr,
	}
}

func runXrandr(env []string, args ...string) ([]byte, error) {
	cmd := exec.Command("xrandr", args...)
	cmd.Env = env
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("xrandr %s: %w: %s",
				strings.Join(args, " "), err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("xrandr %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// noPreloadEnv strips LD_PRELOAD so the invoked xrandr talks to the
// real server and sees real outputs, not the virtual ones.
func (c *Client) noPreloadEnv() []string {
	env := make([]string, 0, len(c.env))
	for _, kv := range c.env {
		if strings.HasPrefix(kv, "LD_PRELOAD=") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

// Query returns the verbose output state: connection, geometry,
// physical size and EDID per output.
func (c *Client) Query() ([]Output, error) {
	out, err := c.run(c.env, "--verbose")
	if err != nil {
		return nil, err
	}
	return ParseQuery(string(out))
}

// QueryReal is Query against the un-intercepted server.
func (c *Client) QueryReal() ([]Output, error) {
	out, err := c.run(c.noPreloadEnv(), "--verbose")
	if err != nil {
		return nil, err
	}
	return ParseQuery(string(out))
}

// ListMonitors returns the current monitor objects.
func (c *Client) ListMonitors() ([]Monitor, error) {
	out, err := c.run(c.env, "--listmonitors")
	if err != nil {
		return nil, err
	}
	return ParseMonitors(string(out))
}

// SetMonitor creates or replaces a monitor object. Geometry is in
// xrandr's "w/mmwxh/mmh+x+y" form and output names the backing output.
// Always runs without LD_PRELOAD.
func (c *Client) SetMonitor(name, geometry, output string) error {
	c.log.Info("setmonitor", "name", name, "geometry", geometry, "output", output)
	_, err := c.run(c.noPreloadEnv(), "--setmonitor", name, geometry, output)
	return err
}

// DelMonitor removes a monitor object. Removal of an already-gone
// monitor is not an error.
func (c *Client) DelMonitor(name string) error {
	c.log.Info("delmonitor", "name", name)
	if _, err := c.run(c.noPreloadEnv(), "--delmonitor", name); err != nil {
		c.log.Warn("delmonitor failed, continuing", "name", name, "err", err)
	}
	return nil
}

// DeleteVirtualMonitors removes every monitor object whose name marks
// it as a virtual region.
func (c *Client) DeleteVirtualMonitors() error {
	monitors, err := c.ListMonitors()
	if err != nil {
		return err
	}
	for _, m := range monitors {
		if strings.Contains(m.Name, "~") {
			if err := c.DelMonitor(m.Name); err != nil {
				return err
			}
		}
	}
	return nil
}
