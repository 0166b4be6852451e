package ws

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/remote-agent-terminal/shellbridge/internal/buffer"
	"github.com/remote-agent-terminal/shellbridge/internal/model"
	"github.com/remote-agent-terminal/shellbridge/internal/monitoring"
	"github.com/remote-agent-terminal/shellbridge/internal/pty"
	"github.com/remote-agent-terminal/shellbridge/internal/recorder"
	"github.com/remote-agent-terminal/shellbridge/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Time the terminal may stay open after the shell has been reaped.
	exitDrainTimeout = 250 * time.Millisecond

	// Output kept for the session preview.
	tailSize = 4096
)

// Reasons a session ended, used in logs and metrics.
const (
	ReasonShellExited   = "shell_exited"
	ReasonReadError     = "read_error"
	ReasonClientClosed  = "client_closed"
	ReasonTransport     = "transport_error"
	ReasonWriteError    = "write_error"
	ReasonResizeError   = "resize_error"
	ReasonProtocolError = "protocol_error"
	ReasonShutdown      = "shutdown"
)

var errSessionClosed = errors.New("session closed")

// Session bridges one WebSocket connection to one shell.
type Session struct {
	id         string
	project    *model.Project
	remoteAddr string
	startedAt  time.Time

	conn     *websocket.Conn
	bridge   *pty.Bridge
	recorder recorder.Recorder
	tail     *buffer.RingBuffer

	chunkSize      int
	maxMessageSize int64
	send           chan []byte
	readErr        error

	// orphaned is closed when the shell has exited but its terminal is
	// still held open by another process.
	orphaned chan struct{}

	registry *session.Registry
	metrics  *monitoring.Metrics
	logger   *zap.Logger

	done         chan struct{}
	teardownOnce sync.Once
}

type sessionParams struct {
	id         string
	project    *model.Project
	remoteAddr string
	conn       *websocket.Conn
	bridge     *pty.Bridge
	recorder   recorder.Recorder
	chunkSize  int
	maxMessage int
	queue      int
	registry   *session.Registry
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func newSession(p sessionParams) *Session {
	return &Session{
		id:         p.id,
		project:    p.project,
		remoteAddr: p.remoteAddr,
		startedAt:  time.Now(),
		conn:       p.conn,
		bridge:     p.bridge,
		recorder:   p.recorder,
		tail:       buffer.NewRingBuffer(tailSize),
		chunkSize:      p.chunkSize,
		maxMessageSize: int64(p.maxMessage),
		send:           make(chan []byte, p.queue),
		orphaned:       make(chan struct{}),
		registry:   p.registry,
		metrics:    p.metrics,
		logger:     p.logger,
		done:       make(chan struct{}),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// Info describes the session for listings.
func (s *Session) Info() model.SessionInfo {
	size := s.bridge.Size()
	return model.SessionInfo{
		ID:          s.id,
		ProjectID:   s.project.ID,
		ProjectPath: s.project.Path,
		PID:         s.bridge.PID(),
		Rows:        size.Rows,
		Cols:        size.Cols,
		RemoteAddr:  s.remoteAddr,
		PreviewLine: s.tail.LastLine(),
		StartedAt:   s.startedAt,
	}
}

// Done returns a channel that is closed once teardown has begun.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Run pumps both directions until the session ends. It returns after
// teardown has completed. Cancelling ctx ends the session.
func (s *Session) Run(ctx context.Context) {
	s.registry.Add(s.id, s)
	s.metrics.SessionStarted()
	s.logger.Info("session started",
		zap.Int("pid", s.bridge.PID()),
		zap.String("dir", s.project.Path),
		zap.String("remote_addr", s.remoteAddr),
	)

	stop := context.AfterFunc(ctx, func() {
		s.teardown(ReasonShutdown, websocket.CloseGoingAway, "server shutting down")
	})
	defer stop()

	go s.readPump()
	go s.writePump()
	go s.watchExit()

	s.route()
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// readPump forwards terminal output to the outbound queue. It owns the queue
// and closes it when the terminal stops producing output.
func (s *Session) readPump() {
	defer close(s.send)

	r := s.bridge.Reader()
	buf := make([]byte, s.chunkSize+1)
	buf[0] = byte(TagData)

	for {
		n, err := r.Read(buf[1:])
		if n > 0 {
			frame := make([]byte, n+1)
			copy(frame, buf[:n+1])

			select {
			case s.send <- frame:
			case <-s.done:
				return
			}

			s.tail.Write(frame[1:])
			s.recorder.Record(recorder.Output, frame[1:])
		}
		if err != nil {
			if s.isDone() {
				return
			}
			if errors.Is(err, io.EOF) {
				s.logger.Debug("terminal output closed")
			} else {
				s.readErr = err
				s.logger.Error("failed to read from terminal", zap.Error(err))
			}
			return
		}
	}
}

// watchExit covers a shell that exits while a background job still holds the
// terminal, so no EOF arrives. After a short drain the session is ended.
func (s *Session) watchExit() {
	select {
	case <-s.bridge.Exited():
	case <-s.done:
		return
	}

	timer := time.NewTimer(exitDrainTimeout)
	defer timer.Stop()

	select {
	case <-timer.C:
		s.logger.Debug("shell exited with terminal still open",
			zap.Int("exit_code", s.bridge.ExitCode()),
		)
		close(s.orphaned)
	case <-s.done:
	}
}

// writePump is the only writer of data and ping messages on the connection.
// Once the outbound queue is drained and closed it ends the session.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-s.send:
			if !ok {
				if s.readErr != nil {
					s.teardown(ReasonReadError, websocket.CloseInternalServerErr, "terminal read failed")
				} else {
					s.teardown(ReasonShellExited, websocket.CloseNormalClosure, "shell exited")
				}
				return
			}

			if err := s.writeFrame(frame); err != nil {
				return
			}

		case <-s.orphaned:
			s.flush()
			s.teardown(ReasonShellExited, websocket.CloseNormalClosure, "shell exited")
			return

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.teardown(ReasonTransport, websocket.CloseGoingAway, "")
				return
			}

		case <-s.done:
			return
		}
	}
}

func (s *Session) writeFrame(frame []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		if !s.isDone() {
			s.logger.Warn("failed to send terminal output", zap.Error(err))
		}
		s.teardown(ReasonTransport, websocket.CloseInternalServerErr, "")
		return err
	}
	s.metrics.RecordFrame(monitoring.DirectionOutbound, TagData.String(), len(frame)-1)
	return nil
}

// flush sends whatever output is already queued.
func (s *Session) flush() {
	for {
		select {
		case frame, ok := <-s.send:
			if !ok || s.writeFrame(frame) != nil {
				return
			}
		default:
			return
		}
	}
}

// route reads client messages in order and applies them to the terminal.
func (s *Session) route() {
	s.conn.SetReadLimit(s.maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, msg, err := s.conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.logger.Info("client closed connection",
					zap.Int("code", closeErr.Code),
					zap.String("text", closeErr.Text),
				)
				s.teardown(ReasonClientClosed, websocket.CloseNormalClosure, "")
				return
			}
			if errors.Is(err, websocket.ErrReadLimit) {
				s.logger.Warn("client message too large", zap.Int64("limit", s.maxMessageSize))
				s.metrics.RecordAnomaly("oversized_message")
				s.teardown(ReasonProtocolError, websocket.CloseMessageTooBig, "message too big")
				return
			}
			if !s.isDone() {
				s.logger.Warn("websocket receive failed", zap.Error(err))
			}
			s.teardown(ReasonTransport, websocket.CloseGoingAway, "")
			return
		}

		if err := s.dispatch(msgType, msg); err != nil {
			return
		}
	}
}

// dispatch applies one client message. A non-nil error means the session was
// torn down.
func (s *Session) dispatch(msgType int, msg []byte) error {
	if s.isDone() {
		return errSessionClosed
	}

	if msgType != websocket.BinaryMessage {
		s.anomaly("text_message", zap.Int("len", len(msg)))
		return nil
	}

	frame, err := DecodeFrame(msg)
	switch {
	case errors.Is(err, ErrEmptyFrame):
		s.anomaly("empty_frame")
		return nil
	case errors.Is(err, ErrUnknownTag):
		s.anomaly("unknown_tag", zap.Uint8("tag", uint8(frame.Tag)))
		return nil
	}

	switch frame.Tag {
	case TagData:
		if len(frame.Payload) == 0 {
			s.anomaly("empty_data")
			return nil
		}
		if _, err := s.bridge.Writer().Write(frame.Payload); err != nil {
			s.logger.Error("failed to write to terminal", zap.Error(err))
			s.teardown(ReasonWriteError, websocket.CloseInternalServerErr, "terminal write failed")
			return err
		}
		s.metrics.RecordFrame(monitoring.DirectionInbound, TagData.String(), len(frame.Payload))
		s.recorder.Record(recorder.Input, frame.Payload)

	case TagResize:
		size, err := DecodeResize(frame.Payload)
		if err != nil {
			s.logger.Warn("rejecting malformed resize", zap.Error(err))
			s.metrics.RecordAnomaly("malformed_resize")
			s.teardown(ReasonProtocolError, websocket.CloseInvalidFramePayloadData, "malformed resize")
			return err
		}
		if err := s.bridge.Resize(size); err != nil {
			s.logger.Error("failed to resize terminal", zap.Stringer("size", size), zap.Error(err))
			s.teardown(ReasonResizeError, websocket.CloseInternalServerErr, "resize failed")
			return err
		}
		s.metrics.RecordFrame(monitoring.DirectionInbound, TagResize.String(), len(frame.Payload))
		if r, ok := s.recorder.(recorder.Resizer); ok {
			r.RecordResize(size)
		}
		s.logger.Debug("terminal resized", zap.Stringer("size", size))
	}

	return nil
}

func (s *Session) anomaly(kind string, fields ...zap.Field) {
	s.metrics.RecordAnomaly(kind)
	s.logger.Warn("ignoring client message", append(fields, zap.String("kind", kind))...)
}

// teardown ends the session exactly once: the shell is killed, the
// connection is closed with code, then the terminal handles are released.
// Concurrent callers block until the first call has finished.
func (s *Session) teardown(reason string, code int, text string) {
	s.teardownOnce.Do(func() {
		close(s.done)

		if err := s.bridge.Kill(); err != nil {
			if errors.Is(err, os.ErrProcessDone) {
				s.logger.Debug("shell already exited")
			} else {
				s.logger.Warn("failed to kill shell", zap.Error(err))
			}
		}

		msg := websocket.FormatCloseMessage(code, text)
		if err := s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil &&
			!errors.Is(err, websocket.ErrCloseSent) {
			s.logger.Debug("failed to send close frame", zap.Error(err))
		}
		s.conn.Close()

		if err := s.bridge.Close(); err != nil {
			s.logger.Debug("failed to close terminal", zap.Error(err))
		}
		if err := s.recorder.Close(); err != nil {
			s.logger.Warn("failed to close recording", zap.Error(err))
		}

		s.registry.Remove(s.id)
		s.metrics.SessionEnded(reason)
		s.logger.Info("session ended",
			zap.String("reason", reason),
			zap.Duration("duration", time.Since(s.startedAt)),
		)
	})
}
