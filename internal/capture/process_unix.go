//go:build unix

package capture

import (
	"os/exec"
	"syscall"
)

// prepare puts the command in its own process group so that cancellation also kills
// the children it spawned. pty.Start already gives the command its own session.
func prepare(cmd *exec.Cmd, onPTY bool) {
	if !onPTY {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
