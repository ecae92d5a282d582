//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package restic

import (
	"os/exec"
	"syscall"
)

// detach starts the process in its own session, away from the controlling
// terminal, so job-control signals and password prompts cannot reach it.
func detach(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}

	cmd.SysProcAttr.Setsid = true
}
