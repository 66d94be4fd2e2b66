package host

import (
	"sort"
	"strings"
	"sync"
)

// LiveSession is a Session whose map and mode can be changed while
// workflows are polling it.
type LiveSession struct {
	id         string
	game       GameFamily
	serverName string

	mu      sync.RWMutex
	mapName string
	mode    string
}

func (s *LiveSession) ID() string { return s.id }

func (s *LiveSession) GameFamily() GameFamily {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.game
}

func (s *LiveSession) ServerName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverName
}

func (s *LiveSession) MapName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapName
}

func (s *LiveSession) ModeName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMap records a map rotation. An empty mode keeps the current one.
func (s *LiveSession) SetMap(mapName, mode string) {
	s.mu.Lock()
	s.mapName = mapName
	if mode != "" {
		s.mode = mode
	}
	s.mu.Unlock()
}

// SessionInfo is the registration payload for a session.
type SessionInfo struct {
	ID         string `json:"id"`
	Game       string `json:"game"`
	Map        string `json:"map"`
	Mode       string `json:"mode"`
	ServerName string `json:"server_name"`
}

// Registry tracks the sessions known to an adapter.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*LiveSession
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*LiveSession)}
}

// Upsert registers a session or refreshes an existing one in place, so
// handles already held by running workflows observe the change.
func (r *Registry) Upsert(info SessionInfo) *LiveSession {
	id := strings.TrimSpace(info.ID)

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &LiveSession{id: id}
		r.sessions[id] = s
	}
	s.mu.Lock()
	s.game = NormalizeGame(info.Game)
	s.serverName = info.ServerName
	s.mapName = info.Map
	s.mode = info.Mode
	s.mu.Unlock()
	return s
}

func (r *Registry) Get(id string) (*LiveSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[strings.TrimSpace(id)]
	return s, ok
}

// List returns a snapshot of all sessions ordered by ID.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionInfo{
			ID:         s.ID(),
			Game:       string(s.GameFamily()),
			Map:        s.MapName(),
			Mode:       s.ModeName(),
			ServerName: s.ServerName(),
		})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
