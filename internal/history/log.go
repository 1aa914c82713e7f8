package history

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"jarvis/internal/logging"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// CharsPerToken approximates token usage: 4 characters ≈ 1 token.
const CharsPerToken = 4

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Log is the ordered message history of one session. Appended messages
// are never modified; windowing only builds views.
type Log struct {
	mu       sync.RWMutex
	id       string
	messages []Message
	dir      string
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*Log)

func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }
func WithLogger(z *zap.Logger) Option       { return func(l *Log) { l.logger = z } }

// WithID overrides the generated conversation id.
func WithID(id string) Option { return func(l *Log) { l.id = id } }

// NewLog creates an empty log whose saved files live in dir.
func NewLog(dir string, opts ...Option) *Log {
	l := &Log{dir: dir, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	l.logger = logging.OrNop(l.logger)
	if l.id == "" {
		l.id = NewConversationID(l.now())
	}
	return l
}

// NewConversationID formats conv_YYYYMMDD_HHMMSS.
func NewConversationID(t time.Time) string {
	return "conv_" + t.Format("20060102_150405")
}

func (l *Log) ID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.id
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) Append(role, content string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{Role: role, Content: content, Timestamp: l.now()})
	l.logger.Debug("message appended", zap.String("conversation", l.id), zap.String("role", role))
}

func (l *Log) AppendUser(content string)      { l.Append(RoleUser, content) }
func (l *Log) AppendAssistant(content string) { l.Append(RoleAssistant, content) }

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Messages returns a copy of the log, without system messages unless
// includeSystem is set, trimmed to the last limit entries when limit > 0.
func (l *Log) Messages(limit int, includeSystem bool) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, 0, len(l.messages))
	for _, m := range l.messages {
		if !includeSystem && m.Role == RoleSystem {
			continue
		}
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Window returns the longest suffix of the log whose approximate size fits
// in tokenBudget, in chronological order. Size is counted in characters, not
// bytes. Messages are never split: the walk
// stops before the first message that would overflow the budget.
func (l *Log) Window(tokenBudget int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	maxChars := tokenBudget * CharsPerToken
	total := 0
	start := len(l.messages)
	for i := len(l.messages) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(l.messages[i].Content)
		if total+n > maxChars {
			break
		}
		total += n
		start = i
	}
	out := make([]Message, len(l.messages)-start)
	copy(out, l.messages[start:])
	return out
}

// Clear drops every message and starts a new conversation id.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = nil
	l.id = NewConversationID(l.now())
	l.logger.Info("conversation cleared", zap.String("conversation", l.id))
}

func (l *Log) Summary() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return "No messages in current conversation"
	}
	var users, assistants int
	for _, m := range l.messages {
		switch m.Role {
		case RoleUser:
			users++
		case RoleAssistant:
			assistants++
		}
	}
	return fmt.Sprintf("Conversation %s: %d messages (%d user, %d assistant)", l.id, len(l.messages), users, assistants)
}
