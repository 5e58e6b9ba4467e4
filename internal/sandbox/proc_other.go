//go:build !unix

package sandbox

import (
	"os"
	"os/exec"
)

func configureProcess(cmd *exec.Cmd) {}

func exitStatus(state *os.ProcessState) int {
	return state.ExitCode()
}
