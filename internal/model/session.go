package model

import "time"

// SessionInfo describes a live terminal session.
type SessionInfo struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	ProjectPath string    `json:"projectPath"`
	PID         int       `json:"pid"`
	Rows        uint16    `json:"rows"`
	Cols        uint16    `json:"cols"`
	RemoteAddr  string    `json:"remoteAddr,omitempty"`
	PreviewLine string    `json:"previewLine,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
}

// Duration returns how long the session has been running.
func (s *SessionInfo) Duration() time.Duration {
	return time.Since(s.StartedAt)
}
