//go:build windows

package process

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

func configureCmdSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP}
}

func (p *processHandle) Terminate() error {
	if p.exited() {
		return fmt.Errorf("process %d: %w", p.pid, os.ErrProcessDone)
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return fmt.Errorf("kill process %d: %w", p.pid, err)
	}
	return nil
}
