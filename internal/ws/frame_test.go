package ws

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remote-agent-terminal/shellbridge/internal/pty"
)

func TestDecodeFrame(t *testing.T) {
	t.Run("data", func(t *testing.T) {
		f, err := DecodeFrame([]byte{0, 'l', 's', '\n'})
		require.NoError(t, err)
		assert.Equal(t, TagData, f.Tag)
		assert.Equal(t, []byte("ls\n"), f.Payload)
	})

	t.Run("data without payload", func(t *testing.T) {
		f, err := DecodeFrame([]byte{0})
		require.NoError(t, err)
		assert.Equal(t, TagData, f.Tag)
		assert.Empty(t, f.Payload)
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := DecodeFrame(nil)
		assert.ErrorIs(t, err, ErrEmptyFrame)
	})

	t.Run("unknown tag", func(t *testing.T) {
		f, err := DecodeFrame([]byte{7, 'x'})
		assert.ErrorIs(t, err, ErrUnknownTag)
		assert.Equal(t, "unknown", f.Tag.String())
	})
}

func TestDecodeResize(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    pty.Size
		wantErr bool
	}{
		{
			name:    "full",
			payload: `{"rows":40,"cols":120,"pixel_width":960,"pixel_height":800}`,
			want:    pty.Size{Rows: 40, Cols: 120, PixelWidth: 960, PixelHeight: 800},
		},
		{
			name:    "pixels omitted",
			payload: `{"rows":24,"cols":80}`,
			want:    pty.Size{Rows: 24, Cols: 80},
		},
		{
			name:    "zero size",
			payload: `{"rows":0,"cols":0}`,
			want:    pty.Size{},
		},
		{name: "not json", payload: `hello`, wantErr: true},
		{name: "empty", payload: ``, wantErr: true},
		{name: "missing cols", payload: `{"rows":40}`, wantErr: true},
		{name: "negative", payload: `{"rows":-1,"cols":80}`, wantErr: true},
		{name: "overflow", payload: `{"rows":70000,"cols":80}`, wantErr: true},
		{name: "wrong type", payload: `{"rows":"40","cols":80}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeResize([]byte(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResize)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Data frames survive encoding byte for byte.
func TestDataFrameRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("decode(encode(p)) == p", prop.ForAll(
		func(p []byte) bool {
			f, err := DecodeFrame(EncodeData(p))
			return err == nil && f.Tag == TagData && bytes.Equal(f.Payload, p)
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

// Resize frames survive encoding for every representable size.
func TestResizeFrameRoundTripProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("decodeResize(encodeResize(s)) == s", prop.ForAll(
		func(rows, cols, pw, ph uint16) bool {
			want := pty.Size{Rows: rows, Cols: cols, PixelWidth: pw, PixelHeight: ph}
			msg, err := EncodeResize(want)
			if err != nil {
				return false
			}
			f, err := DecodeFrame(msg)
			if err != nil || f.Tag != TagResize {
				return false
			}
			got, err := DecodeResize(f.Payload)
			return err == nil && got == want
		},
		gen.UInt16(),
		gen.UInt16(),
		gen.UInt16(),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}
