//go:build !windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// configureCmdSysProcAttr places the child in a fresh process group so the
// whole group can be signalled on termination.
func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func (p *processHandle) Terminate() error {
	if p.exited() {
		return fmt.Errorf("process %d: %w", p.pid, os.ErrProcessDone)
	}
	if err := syscall.Kill(-p.pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill process group %d: %w", p.pid, err)
	}
	return nil
}
