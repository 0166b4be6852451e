// Package recorder defines the per-session observer that sees every raw
// chunk crossing a terminal bridge. Recorders are invoked after a chunk was
// delivered, so they never alter or delay the stream.
package recorder

import (
	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/pty"
)

// Direction tells which way a chunk crossed the bridge.
type Direction int

const (
	// Output is shell -> client.
	Output Direction = iota
	// Input is client -> shell.
	Input
)

func (d Direction) String() string {
	switch d {
	case Output:
		return "output"
	case Input:
		return "input"
	default:
		return "unknown"
	}
}

// Recorder observes one session. Record must not retain data after it returns.
type Recorder interface {
	Record(dir Direction, data []byte)
	Close() error
}

// Resizer is implemented by recorders that also want terminal resizes.
type Resizer interface {
	RecordResize(size pty.Size)
}

// Factory opens a Recorder for a new session.
type Factory interface {
	Open(sessionID string, project *model.Project, size pty.Size) (Recorder, error)
}

// Nop is the default Factory; its recorders discard everything.
type Nop struct{}

// Open returns a recorder that discards everything.
func (Nop) Open(string, *model.Project, pty.Size) (Recorder, error) {
	return nopRecorder{}, nil
}

type nopRecorder struct{}

func (nopRecorder) Record(Direction, []byte) {}

func (nopRecorder) Close() error { return nil }
