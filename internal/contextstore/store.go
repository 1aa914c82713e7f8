package contextstore

import (
	"sort"
	"sync"
	"time"
)

type Scope string

const (
	ScopeUser      Scope = "user"
	ScopeSession   Scope = "session"
	ScopeTemporary Scope = "temporary"
)

type entry struct {
	value     any
	writtenAt time.Time
	ttl       time.Duration
}

// expired reports whether a ttl-bound entry is past its lifetime at now.
func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && now.Sub(e.writtenAt) >= e.ttl
}

// Snapshot summarizes the store without exposing values.
type Snapshot struct {
	SessionDuration   time.Duration `json:"session_duration"`
	UserKeys          []string      `json:"user_info_keys"`
	SessionKeys       []string      `json:"session_data_keys"`
	TemporaryKeys     []string      `json:"temporary_data_keys"`
	LastIntent        string        `json:"last_intent,omitempty"`
	LastAction        string        `json:"last_action,omitempty"`
	ConversationTopic string        `json:"conversation_topic,omitempty"`
}

// Store holds the three scopes of key/value state of one session.
// It is not shared across sessions.
type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	scopes       map[Scope]map[string]entry
	sessionStart time.Time
	lastIntent   string
	lastAction   string
	topic        string
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, o := range opts {
		o(s)
	}
	s.resetUnlocked()
	return s
}

func (s *Store) resetUnlocked() {
	s.scopes = map[Scope]map[string]entry{
		ScopeUser:      {},
		ScopeSession:   {},
		ScopeTemporary: {},
	}
	s.sessionStart = s.now()
	s.lastIntent, s.lastAction, s.topic = "", "", ""
}

// Set writes a value without expiry. Unknown scopes are ignored.
func (s *Store) Set(scope Scope, key string, value any) {
	s.set(scope, key, value, 0)
}

// SetTemporary writes into the temporary scope; ttl <= 0 means the entry never expires.
func (s *Store) SetTemporary(key string, value any, ttl time.Duration) {
	s.set(ScopeTemporary, key, value, ttl)
}

func (s *Store) set(scope Scope, key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		return
	}
	if scope != ScopeTemporary {
		ttl = 0
	}
	m[key] = entry{value: value, writtenAt: s.now(), ttl: ttl}
}

// Get returns the stored value or def. An expired temporary entry is
// removed by this read and def is returned.
func (s *Store) Get(scope Scope, key string, def any) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.scopes[scope]
	if !ok {
		return def
	}
	e, ok := m[key]
	if !ok {
		return def
	}
	if e.expired(s.now()) {
		delete(m, key)
		return def
	}
	return e.value
}

// GetString is Get for string values; anything else yields def.
func (s *Store) GetString(scope Scope, key, def string) string {
	if v, ok := s.Get(scope, key, def).(string); ok {
		return v
	}
	return def
}

// Len counts stored entries of a scope, including expired ones not yet read.
func (s *Store) Len(scope Scope) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.scopes[scope])
}

// Clear empties one scope only.
func (s *Store) Clear(scope Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.scopes[scope]; ok {
		s.scopes[scope] = map[string]entry{}
	}
}

// Reset reinitializes every scope and restarts the session clock.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetUnlocked()
}

func (s *Store) SetLastIntent(v string) {
	s.mu.Lock()
	s.lastIntent = v
	s.mu.Unlock()
}

func (s *Store) SetLastAction(v string) {
	s.mu.Lock()
	s.lastAction = v
	s.mu.Unlock()
}

func (s *Store) SetTopic(v string) {
	s.mu.Lock()
	s.topic = v
	s.mu.Unlock()
}

// Values returns a copy of the live entries of a scope. Expired temporary
// entries are skipped but not evicted.
func (s *Store) Values(scope Scope) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make(map[string]any, len(s.scopes[scope]))
	for k, e := range s.scopes[scope] {
		if e.expired(now) {
			continue
		}
		out[k] = e.value
	}
	return out
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		SessionDuration:   s.now().Sub(s.sessionStart),
		UserKeys:          keys(s.scopes[ScopeUser]),
		SessionKeys:       keys(s.scopes[ScopeSession]),
		TemporaryKeys:     keys(s.scopes[ScopeTemporary]),
		LastIntent:        s.lastIntent,
		LastAction:        s.lastAction,
		ConversationTopic: s.topic,
	}
}

func keys(m map[string]entry) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
