// Package session tracks the terminal sessions that are currently live.
package session

import (
	"sort"
	"sync"

	"github.com/remote-agent-terminal/shellbridge/internal/model"
)

// Tracked is a live session that can describe itself.
type Tracked interface {
	Info() model.SessionInfo
}

// Registry tracks live sessions by ID. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Tracked
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Tracked),
	}
}

// Add registers a session under id.
func (r *Registry) Add(id string, s Tracked) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

// Remove forgets the session with the given id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Get returns the info of the session with the given id.
func (r *Registry) Get(id string) (model.SessionInfo, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		return model.SessionInfo{}, false
	}
	return s.Info(), true
}

// List returns the info of every live session, oldest first.
func (r *Registry) List() []model.SessionInfo {
	r.mu.RLock()
	tracked := make([]Tracked, 0, len(r.sessions))
	for _, s := range r.sessions {
		tracked = append(tracked, s)
	}
	r.mu.RUnlock()

	infos := make([]model.SessionInfo, 0, len(tracked))
	for _, s := range tracked {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].StartedAt.Equal(infos[j].StartedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].StartedAt.Before(infos[j].StartedAt)
	})
	return infos
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CountForProject returns the number of live sessions opened on a project.
func (r *Registry) CountForProject(projectID string) int {
	n := 0
	for _, info := range r.List() {
		if info.ProjectID == projectID {
			n++
		}
	}
	return n
}
