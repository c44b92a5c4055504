// Package detach starts background copies of the launcher that outlive the
// invoking process.
package detach

import (
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Start runs exe with args in a new session and returns without waiting.
// Standard input is closed; output goes to logPath when set, otherwise it is
// discarded.
func Start(exe string, args []string, logPath string) (int, error) {
	c := exec.Command(exe, args...)
	c.SysProcAttr = procAttr()

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
		if err != nil {
			return 0, errors.Wrap(err, "open log")
		}
		// The child holds its own descriptor once started.
		defer f.Close()
		c.Stdout, c.Stderr = f, f
	}

	if err := c.Start(); err != nil {
		return 0, errors.Wrapf(err, "start %s", exe)
	}
	pid := c.Process.Pid
	if err := c.Process.Release(); err != nil {
		return pid, errors.Wrap(err, "release child")
	}
	return pid, nil
}
