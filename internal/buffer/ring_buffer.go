// Package buffer keeps the most recent terminal output of a session.
package buffer

import (
	"bytes"
	"regexp"
	"sync"
)

// ansiSequence matches CSI and OSC escape sequences as well as single
// character escapes.
var ansiSequence = regexp.MustCompile(`\x1b(?:\[[0-?]*[ -/]*[@-~]|\][^\x07\x1b]*(?:\x07|\x1b\\)|[@-Z\\-_])`)

// RingBuffer is a thread-safe circular buffer holding the last Cap bytes
// written to it. Older bytes are overwritten.
type RingBuffer struct {
	mu   sync.RWMutex
	data []byte
	head int // index of the oldest byte once the buffer is full
	full bool
}

// NewRingBuffer creates a RingBuffer with the given capacity. A capacity
// below 1 is treated as 1.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &RingBuffer{
		data: make([]byte, 0, capacity),
	}
}

// Write appends p, discarding the oldest bytes when the buffer overflows.
// It never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	capacity := cap(rb.data)
	in := p
	if len(in) > capacity {
		in = in[len(in)-capacity:]
	}

	for len(in) > 0 {
		if !rb.full {
			room := capacity - len(rb.data)
			k := min(room, len(in))
			rb.data = append(rb.data, in[:k]...)
			in = in[k:]
			if len(rb.data) == capacity {
				rb.full = true
				rb.head = 0
			}
			continue
		}
		k := copy(rb.data[rb.head:], in)
		in = in[k:]
		rb.head = (rb.head + k) % capacity
	}

	return len(p), nil
}

// ReadAll returns a copy of the buffered bytes, oldest first.
func (rb *RingBuffer) ReadAll() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if len(rb.data) == 0 {
		return nil
	}

	out := make([]byte, 0, len(rb.data))
	if rb.full {
		out = append(out, rb.data[rb.head:]...)
		out = append(out, rb.data[:rb.head]...)
		return out
	}
	return append(out, rb.data...)
}

// LastLine returns the last non-blank line of the buffered output with
// escape sequences and control characters removed.
func (rb *RingBuffer) LastLine() string {
	text := ansiSequence.ReplaceAll(rb.ReadAll(), nil)
	text = bytes.ReplaceAll(text, []byte("\r\n"), []byte("\n"))

	lines := bytes.Split(text, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		// A bare carriage return rewinds the line, keep what was drawn last.
		if j := bytes.LastIndexByte(bytes.TrimRight(line, "\r"), '\r'); j >= 0 {
			line = line[j+1:]
		}
		line = bytes.Map(func(r rune) rune {
			if r < 0x20 || r == 0x7f {
				return -1
			}
			return r
		}, line)
		if s := string(bytes.TrimSpace(line)); s != "" {
			return s
		}
	}
	return ""
}

// Reset discards all buffered bytes.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data = rb.data[:0]
	rb.head = 0
	rb.full = false
}

// Len returns the number of buffered bytes.
func (rb *RingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return len(rb.data)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer) Cap() int {
	return cap(rb.data)
}
