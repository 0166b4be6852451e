package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/remote-agent-terminal/shellbridge/internal/pty"
)

// Tag identifies the kind of a frame. It is the first byte of every binary
// message.
type Tag byte

const (
	// TagData carries raw terminal bytes in either direction.
	TagData Tag = 0

	// TagResize carries a JSON encoded pty.Size from client to server.
	TagResize Tag = 1
)

// String returns the tag name used in logs and metrics.
func (t Tag) String() string {
	switch t {
	case TagData:
		return "data"
	case TagResize:
		return "resize"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptyFrame is returned for a binary message without a tag byte.
	ErrEmptyFrame = errors.New("empty frame")

	// ErrUnknownTag is returned for a frame whose tag is not TagData or TagResize.
	ErrUnknownTag = errors.New("unknown frame tag")

	// ErrMalformedResize is returned when a resize payload cannot be decoded.
	ErrMalformedResize = errors.New("malformed resize payload")
)

// Frame is a decoded binary message.
type Frame struct {
	Tag     Tag
	Payload []byte
}

// EncodeData prefixes p with TagData.
func EncodeData(p []byte) []byte {
	msg := make([]byte, len(p)+1)
	msg[0] = byte(TagData)
	copy(msg[1:], p)
	return msg
}

// EncodeResize builds a resize frame for size.
func EncodeResize(size pty.Size) ([]byte, error) {
	payload, err := json.Marshal(size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode resize: %w", err)
	}
	return append([]byte{byte(TagResize)}, payload...), nil
}

// DecodeFrame splits a binary message into its tag and payload. The payload
// aliases msg.
func DecodeFrame(msg []byte) (Frame, error) {
	if len(msg) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	f := Frame{Tag: Tag(msg[0]), Payload: msg[1:]}
	switch f.Tag {
	case TagData, TagResize:
		return f, nil
	default:
		return f, fmt.Errorf("%w: %d", ErrUnknownTag, msg[0])
	}
}

// resizePayload mirrors pty.Size with required row and column fields.
type resizePayload struct {
	Rows        *uint16 `json:"rows"`
	Cols        *uint16 `json:"cols"`
	PixelWidth  uint16  `json:"pixel_width"`
	PixelHeight uint16  `json:"pixel_height"`
}

// DecodeResize parses a resize payload. Rows and cols are required; the pixel
// dimensions default to zero.
func DecodeResize(payload []byte) (pty.Size, error) {
	var p resizePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return pty.Size{}, fmt.Errorf("%w: %v", ErrMalformedResize, err)
	}
	if p.Rows == nil || p.Cols == nil {
		return pty.Size{}, fmt.Errorf("%w: rows and cols are required", ErrMalformedResize)
	}

	return pty.Size{
		Rows:        *p.Rows,
		Cols:        *p.Cols,
		PixelWidth:  p.PixelWidth,
		PixelHeight: p.PixelHeight,
	}, nil
}
