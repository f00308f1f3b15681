//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package runner

import "os/exec"

// Default exec.CommandContext behaviour: Process.Kill on the child only.
func killGroupOnCancel(cmd *exec.Cmd) {}
