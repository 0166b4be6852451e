// Package pty launches interactive shells attached to a pseudo-terminal and
// wraps the resulting master handle and child process in a Bridge.
package pty

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

const (
	// DefaultRows is the initial number of rows of a new terminal.
	DefaultRows = 24

	// DefaultCols is the initial number of columns of a new terminal.
	DefaultCols = 80
)

var (
	// ErrBridgeClosed is returned when an operation is attempted on a bridge
	// whose PTY handles were already released.
	ErrBridgeClosed = errors.New("pty bridge is closed")

	// ErrUnsupported is returned on platforms without PTY support.
	ErrUnsupported = errors.New("pty is not supported on this platform")
)

// Size is the window size of a pseudo-terminal. Pixel dimensions are
// advisory and may be zero.
type Size struct {
	Rows        uint16 `json:"rows"`
	Cols        uint16 `json:"cols"`
	PixelWidth  uint16 `json:"pixel_width"`
	PixelHeight uint16 `json:"pixel_height"`
}

// DefaultSize returns the size every new terminal starts with (80x24).
func DefaultSize() Size {
	return Size{Rows: DefaultRows, Cols: DefaultCols}
}

// String formats the size as COLSxROWS.
func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Cols, s.Rows)
}

// LaunchOptions contains options for launching a shell.
type LaunchOptions struct {
	// Dir is the working directory of the shell. Required.
	Dir string

	// Size is the initial window size. The zero value means DefaultSize.
	Size Size

	// GOOS selects the shell policy. Empty means runtime.GOOS.
	GOOS string

	// Getenv reads the environment used for shell discovery.
	// Nil means os.Getenv.
	Getenv func(string) string
}

// Bridge owns the master side of a pseudo-terminal and the child process
// attached to its slave side. The read handle, write handle and resize
// operation all derive from the same master.
type Bridge struct {
	master *os.File
	cmd    *exec.Cmd

	mu     sync.Mutex
	size   Size
	closed bool

	exited  chan struct{}
	waitErr error

	killOnce  sync.Once
	killErr   error
	closeOnce sync.Once
	closeErr  error
}

func newBridge(master *os.File, cmd *exec.Cmd, size Size) *Bridge {
	b := &Bridge{
		master: master,
		cmd:    cmd,
		size:   size,
		exited: make(chan struct{}),
	}

	go func() {
		b.waitErr = b.cmd.Wait()
		close(b.exited)
	}()

	return b
}

// Reader returns the read side of the terminal. A read that observes the
// slave side going away returns io.EOF.
func (b *Bridge) Reader() io.Reader {
	return masterReader{f: b.master}
}

// Writer returns the write side of the terminal.
func (b *Bridge) Writer() io.Writer {
	return b.master
}

// Resize applies a new window size and records it as the current size.
func (b *Bridge) Resize(size Size) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}
	if err := setSize(b.master, size); err != nil {
		return fmt.Errorf("failed to resize pty: %w", err)
	}
	b.size = size
	return nil
}

// Size returns the last size applied to the terminal.
func (b *Bridge) Size() Size {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// KernelSize queries the window size currently held by the terminal driver.
func (b *Bridge) KernelSize() (Size, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return Size{}, ErrBridgeClosed
	}
	return getSize(b.master)
}

// PID returns the process ID of the shell.
func (b *Bridge) PID() int {
	return b.cmd.Process.Pid
}

// Exited returns a channel that is closed once the shell has been reaped.
func (b *Bridge) Exited() <-chan struct{} {
	return b.exited
}

// ExitCode returns the shell's exit code, or -1 while it is still running or
// when it was killed by a signal.
func (b *Bridge) ExitCode() int {
	select {
	case <-b.exited:
	default:
		return -1
	}
	if b.cmd.ProcessState == nil {
		return -1
	}
	return b.cmd.ProcessState.ExitCode()
}

// Kill terminates the shell and every process in its process group. Only the
// first call does anything; later calls return the first result. Killing a
// shell that already exited returns os.ErrProcessDone.
func (b *Bridge) Kill() error {
	b.killOnce.Do(func() {
		select {
		case <-b.exited:
			b.killErr = os.ErrProcessDone
			return
		default:
		}
		b.killErr = killProcess(b.cmd)
	})
	return b.killErr
}

// Close releases the master handle. It does not kill the shell.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()
		b.closeErr = b.master.Close()
	})
	return b.closeErr
}

// masterReader maps the platform's "slave closed" read error to io.EOF.
type masterReader struct {
	f *os.File
}

func (r masterReader) Read(p []byte) (int, error) {
	n, err := r.f.Read(p)
	if err != nil && isSlaveClosed(err) {
		err = io.EOF
	}
	return n, err
}
