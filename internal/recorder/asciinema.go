package recorder

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/pty"
)

// AsciinemaHeader represents the header of an Asciinema v2 recording.
type AsciinemaHeader struct {
	Version   int               `json:"version"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Timestamp int64             `json:"timestamp"`
	Title     string            `json:"title,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
}

// AsciinemaEvent represents a single event in an Asciinema v2 recording.
// Format: [time_offset, event_type, data]
type AsciinemaEvent struct {
	TimeOffset float64
	EventType  string // "o" for output, "i" for input, "r" for resize
	Data       string
}

// MarshalJSON implements custom JSON marshaling for AsciinemaEvent.
func (e AsciinemaEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{e.TimeOffset, e.EventType, e.Data})
}

// AsciinemaFactory records every session to <Dir>/<session id>.cast.
type AsciinemaFactory struct {
	Dir    string
	Logger *zap.Logger
}

// Path returns the recording file of a session.
func (f *AsciinemaFactory) Path(sessionID string) string {
	return filepath.Join(f.Dir, sessionID+".cast")
}

// Open creates the recording file and writes its header.
func (f *AsciinemaFactory) Open(sessionID string, project *model.Project, size pty.Size) (Recorder, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create recording directory: %w", err)
	}

	path := f.Path(sessionID)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	logger := f.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	rec := newAsciinemaRecorder(file, file, logger.With(zap.String("recording", path)))
	header := AsciinemaHeader{
		Version:   2,
		Width:     int(size.Cols),
		Height:    int(size.Rows),
		Timestamp: rec.startTime.Unix(),
		Env:       map[string]string{"TERM": pty.TermType},
	}
	if project != nil {
		header.Title = project.Name
	}
	if err := rec.writeLine(header); err != nil {
		file.Close()
		return nil, err
	}

	return rec, nil
}

// AsciinemaRecorder writes one session in Asciinema v2 JSON-Lines format.
type AsciinemaRecorder struct {
	w         *bufio.Writer
	closer    io.Closer
	startTime time.Time
	logger    *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewAsciinemaRecorder creates a recorder writing to w; the header is the
// caller's responsibility. This is useful for testing.
func NewAsciinemaRecorder(w io.Writer) *AsciinemaRecorder {
	return newAsciinemaRecorder(w, nil, zap.NewNop())
}

func newAsciinemaRecorder(w io.Writer, closer io.Closer, logger *zap.Logger) *AsciinemaRecorder {
	return &AsciinemaRecorder{
		w:         bufio.NewWriter(w),
		closer:    closer,
		startTime: time.Now(),
		logger:    logger,
	}
}

// Record writes an "o" or "i" event.
func (r *AsciinemaRecorder) Record(dir Direction, data []byte) {
	eventType := "o"
	if dir == Input {
		eventType = "i"
	}
	r.writeEvent(eventType, string(data))
}

// RecordResize writes an "r" event.
func (r *AsciinemaRecorder) RecordResize(size pty.Size) {
	r.writeEvent("r", size.String())
}

func (r *AsciinemaRecorder) writeEvent(eventType, data string) {
	event := AsciinemaEvent{
		TimeOffset: time.Since(r.startTime).Seconds(),
		EventType:  eventType,
		Data:       data,
	}
	if err := r.writeLine(event); err != nil {
		r.logger.Warn("failed to record event", zap.Error(err))
	}
}

func (r *AsciinemaRecorder) writeLine(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	if _, err := r.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close flushes the recording and closes the file if the recorder owns it.
func (r *AsciinemaRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.w.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

