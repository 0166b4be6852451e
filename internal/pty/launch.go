package pty

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// Launch opens a pseudo-terminal and starts an interactive shell on its slave
// side, rooted at opts.Dir. Any failure (no shell, bad directory, PTY
// allocation) is returned before a Bridge exists.
func Launch(opts LaunchOptions) (*Bridge, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("working directory is required")
	}

	info, err := os.Stat(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("invalid working directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("working directory %s is not a directory", opts.Dir)
	}

	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	shell, err := ShellCommand(goos, getenv)
	if err != nil {
		return nil, err
	}

	size := opts.Size
	if size.Rows == 0 || size.Cols == 0 {
		size = DefaultSize()
	}

	cmd := exec.Command(shell.Path, shell.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), shell.Env...)

	master, err := startShell(cmd, size)
	if err != nil {
		return nil, fmt.Errorf("failed to start shell %s: %w", shell.Path, err)
	}

	return newBridge(master, cmd, size), nil
}
