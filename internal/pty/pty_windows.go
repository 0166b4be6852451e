//go:build windows
// +build windows

package pty

import (
	"os"
	"os/exec"
)

// TODO: back startShell with ConPTY (CreatePseudoConsole plus a
// PROC_THREAD_ATTRIBUTE_PSEUDOCONSOLE attribute list on the child).
func startShell(cmd *exec.Cmd, size Size) (*os.File, error) {
	return nil, ErrUnsupported
}

func setSize(master *os.File, size Size) error {
	return ErrUnsupported
}

func getSize(master *os.File) (Size, error) {
	return Size{}, ErrUnsupported
}

func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

func isSlaveClosed(err error) bool {
	return false
}
