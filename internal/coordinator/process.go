package coordinator

import "github.com/bnema/xsplit/internal/proc"

// SystemProcess is the ProcessController backed by the real process
// table.
type SystemProcess struct{}

var _ ProcessController = SystemProcess{}

func (SystemProcess) Find(name string) (int32, error) {
	p, err := proc.Find(name)
	if err != nil {
		return 0, err
	}
	return p.Pid, nil
}

func (SystemProcess) Freeze(pid int32) error { return proc.Freeze(pid) }

func (SystemProcess) Thaw(pid int32) error { return proc.Thaw(pid) }

func (SystemProcess) Stopped(pid int32) (bool, error) { return proc.Stopped(pid) }

func (SystemProcess) PreloadAttached(pid int32, library string) (bool, error) {
	return proc.PreloadAttached(pid, library)
}

func (SystemProcess) RestartWithPreload(command []string, library string) error {
	return proc.RestartWithPreload(command, library)
}

func (SystemProcess) RestartWithoutPreload(command []string) error {
	return proc.RestartWithoutPreload(command)
}
