//go:build !windows
// +build !windows

package pty

import (
	"errors"
	"os"
	"os/exec"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// startShell starts cmd on a new pty. creack/pty puts the child in its own
// session with the slave as controlling terminal, so its PID is also its
// process group ID.
func startShell(cmd *exec.Cmd, size Size) (*os.File, error) {
	return pty.StartWithSize(cmd, size.winsize())
}

func setSize(master *os.File, size Size) error {
	return pty.Setsize(master, size.winsize())
}

// getSize reads the window size the kernel currently holds for master.
func getSize(master *os.File) (Size, error) {
	ws, err := pty.GetsizeFull(master)
	if err != nil {
		return Size{}, err
	}
	return Size{Rows: ws.Rows, Cols: ws.Cols, PixelWidth: ws.X, PixelHeight: ws.Y}, nil
}

// killProcess sends SIGKILL to the shell's process group so background jobs
// die with it.
func killProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return os.ErrProcessDone
	}

	err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		return os.ErrProcessDone
	}
	return cmd.Process.Kill()
}

// Linux reports EIO on the master once the last slave fd is closed.
func isSlaveClosed(err error) bool {
	return errors.Is(err, unix.EIO)
}

func (s Size) winsize() *pty.Winsize {
	return &pty.Winsize{
		Rows: s.Rows,
		Cols: s.Cols,
		X:    s.PixelWidth,
		Y:    s.PixelHeight,
	}
}
