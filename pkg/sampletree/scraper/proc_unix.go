//go:build unix

package scraper

import (
	"errors"
	"os/exec"
	"syscall"
)

// killProcessGroup runs the scraper in its own process group and makes context
// cancellation kill the whole group, so helpers started by a wrapper script
// die with it.
func killProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return nil
		}
		return err
	}
}
