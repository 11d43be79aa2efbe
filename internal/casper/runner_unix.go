//go:build unix

// File: internal/casper/runner_unix.go
package casper

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the engine in its own process group so that
// cancellation reaches phantomjs and anything else it spawned.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
