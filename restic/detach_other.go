//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package restic

import "os/exec"

func detach(cmd *exec.Cmd) {}
