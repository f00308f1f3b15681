//go:build linux || darwin || freebsd || netbsd || openbsd

package runner

import (
	"os/exec"
	"syscall"
)

// killGroupOnCancel puts the child in its own process group so a timeout
// also takes down anything the classification program spawned.
func killGroupOnCancel(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
