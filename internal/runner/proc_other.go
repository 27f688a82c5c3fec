//go:build !unix

package runner

import (
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

// terminate has no graceful signal to send here, so it kills directly.
func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func kill(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
