//go:build !windows
// +build !windows

package pty

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outputCollector drains a bridge's read side in the background.
type outputCollector struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	done chan struct{}
	err  error
}

func collect(r io.Reader) *outputCollector {
	c := &outputCollector{done: make(chan struct{})}
	go func() {
		defer close(c.done)
		chunk := make([]byte, 1024)
		for {
			n, err := r.Read(chunk)
			if n > 0 {
				c.mu.Lock()
				c.buf.Write(chunk[:n])
				c.mu.Unlock()
			}
			if err != nil {
				c.err = err
				return
			}
		}
	}()
	return c
}

func (c *outputCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

func (c *outputCollector) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(c.String(), substr)
	}, 5*time.Second, 20*time.Millisecond, "output never contained %q; got %q", substr, c.String())
}

func launchShell(t *testing.T, dir string) *Bridge {
	t.Helper()
	t.Setenv("SHELL", "/bin/sh")

	bridge, err := Launch(LaunchOptions{Dir: dir})
	require.NoError(t, err)
	t.Cleanup(func() {
		bridge.Kill()
		bridge.Close()
	})
	return bridge
}

func TestLaunchRunsShellInDirectory(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	bridge := launchShell(t, dir)
	out := collect(bridge.Reader())

	assert.Equal(t, DefaultSize(), bridge.Size())

	if _, err := os.Stat("/proc/self/cwd"); err == nil {
		cwd, err := os.Readlink("/proc/" + strconv.Itoa(bridge.PID()) + "/cwd")
		require.NoError(t, err)
		assert.Equal(t, dir, cwd)
	}

	_, err = bridge.Writer().Write([]byte("pwd\n"))
	require.NoError(t, err)
	out.waitFor(t, dir)
}

func TestLaunchErrors(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		t.Setenv("SHELL", "/bin/sh")
		_, err := Launch(LaunchOptions{Dir: filepath.Join(t.TempDir(), "missing")})
		assert.Error(t, err)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, err := Launch(LaunchOptions{})
		assert.Error(t, err)
	})

	t.Run("no shell configured", func(t *testing.T) {
		_, err := Launch(LaunchOptions{
			Dir:    t.TempDir(),
			Getenv: func(string) string { return "" },
		})
		assert.ErrorIs(t, err, ErrNoShell)
	})

	t.Run("shell does not exist", func(t *testing.T) {
		_, err := Launch(LaunchOptions{
			Dir:    t.TempDir(),
			Getenv: func(string) string { return "/nonexistent/shell" },
		})
		assert.Error(t, err)
	})
}

func TestBridgeResize(t *testing.T) {
	bridge := launchShell(t, t.TempDir())
	collect(bridge.Reader())

	want := Size{Rows: 40, Cols: 120}
	require.NoError(t, bridge.Resize(want))
	assert.Equal(t, want, bridge.Size())

	got, err := bridge.KernelSize()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Applying the same size again is harmless.
	require.NoError(t, bridge.Resize(want))
	assert.Equal(t, want, bridge.Size())
}

func TestBridgeKillIsIdempotent(t *testing.T) {
	bridge := launchShell(t, t.TempDir())
	out := collect(bridge.Reader())

	require.NoError(t, bridge.Kill())

	select {
	case <-bridge.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("shell was not reaped after kill")
	}

	// The second call reports the first result instead of signalling again.
	assert.NoError(t, bridge.Kill())

	select {
	case <-out.done:
		assert.Equal(t, io.EOF, out.err)
	case <-time.After(5 * time.Second):
		t.Fatal("reader did not observe EOF after kill")
	}
}

func TestBridgeKillAfterExit(t *testing.T) {
	bridge := launchShell(t, t.TempDir())
	collect(bridge.Reader())

	_, err := bridge.Writer().Write([]byte("exit 3\n"))
	require.NoError(t, err)

	select {
	case <-bridge.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("shell did not exit")
	}

	assert.Equal(t, 3, bridge.ExitCode())
	assert.ErrorIs(t, bridge.Kill(), os.ErrProcessDone)
}

func TestBridgeClosed(t *testing.T) {
	bridge := launchShell(t, t.TempDir())
	require.NoError(t, bridge.Kill())
	require.NoError(t, bridge.Close())

	assert.ErrorIs(t, bridge.Resize(Size{Rows: 10, Cols: 10}), ErrBridgeClosed)
	_, err := bridge.KernelSize()
	assert.ErrorIs(t, err, ErrBridgeClosed)

	_, err = bridge.Writer().Write([]byte("ls\n"))
	assert.Error(t, err)

	// Close is idempotent.
	assert.NoError(t, bridge.Close())
}
