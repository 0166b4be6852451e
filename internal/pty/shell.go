package pty

import (
	"errors"
	"fmt"
)

const (
	// TermType is the TERM value exported to POSIX shells.
	TermType = "xterm-256color"

	// WindowsPrompt makes cmd.exe end every prompt with a space so the prompt
	// stays separable from the command being typed.
	WindowsPrompt = "$P$G "
)

// ErrNoShell is returned when no login shell is configured.
var ErrNoShell = errors.New("no login shell configured: SHELL is not set")

// Command describes the shell to execute.
type Command struct {
	Path string
	Args []string
	// Env holds KEY=VALUE pairs added on top of the inherited environment.
	Env []string
}

// ShellCommand selects the interactive shell for goos. On Windows it is the
// system command interpreter with a delimited prompt; elsewhere it is the
// user's login shell from SHELL, run interactively with TERM set.
func ShellCommand(goos string, getenv func(string) string) (Command, error) {
	if goos == "windows" {
		return Command{
			Path: "cmd",
			Env:  []string{"PROMPT=" + WindowsPrompt},
		}, nil
	}

	shell := getenv("SHELL")
	if shell == "" {
		return Command{}, ErrNoShell
	}

	return Command{
		Path: shell,
		Args: []string{"-i"},
		Env:  []string{fmt.Sprintf("TERM=%s", TermType)},
	}, nil
}
