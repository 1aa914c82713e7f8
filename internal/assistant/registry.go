package assistant

import "sync"

// Sessions keeps one Session per connected client of a channel.
type Sessions struct {
	mu       sync.Mutex
	a        *Assistant
	channel  string
	sessions map[string]*Session
}

func NewSessions(a *Assistant, channel string) *Sessions {
	return &Sessions{a: a, channel: channel, sessions: make(map[string]*Session)}
}

// Open returns the session for key, creating it on first use.
func (r *Sessions) Open(key string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s := r.a.NewSession(r.channel, key)
	r.sessions[key] = s
	return s
}

func (r *Sessions) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Sessions) Close(key string) {
	r.mu.Lock()
	delete(r.sessions, key)
	r.mu.Unlock()
}

func (r *Sessions) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
