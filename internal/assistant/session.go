package assistant

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"jarvis/internal/contextstore"
	"jarvis/internal/history"
	"jarvis/internal/intent"
	"jarvis/internal/llm"
	"jarvis/internal/skills"
	"jarvis/internal/storage"
)

const (
	KeyUserName   = "name"
	keyChannel    = "channel"
	keyLastResult = "last_skill_result"

	lastResultTTL = 5 * time.Minute
)

// Reply is the outcome of one turn.
type Reply struct {
	Text      string         `json:"message"`
	Intent    intent.Result  `json:"intent"`
	Skill     *skills.Result `json:"skill,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session owns one Conversation Log and one Context Store. It handles one
// turn at a time; callers serialize turns.
type Session struct {
	a       *Assistant
	id      string
	channel string
	log     *history.Log
	store   *contextstore.Store
	logger  *zap.Logger
}

// NewSession starts a session identified as channel:key. An empty key gets
// a random one.
func (a *Assistant) NewSession(channel, key string) *Session {
	if key == "" {
		key = uuid.NewString()
	}
	id := channel + ":" + key
	s := &Session{
		a:       a,
		id:      id,
		channel: channel,
		log:     history.NewLog(a.convDir, history.WithClock(a.now), history.WithLogger(a.logger)),
		store:   contextstore.New(contextstore.WithClock(a.now)),
		logger:  a.logger.With(zap.String("session", id)),
	}
	s.store.Set(contextstore.ScopeSession, keyChannel, channel)
	if a.userName != "" {
		s.store.Set(contextstore.ScopeUser, KeyUserName, a.userName)
	}
	return s
}

func (s *Session) ID() string                   { return s.id }
func (s *Session) Channel() string              { return s.channel }
func (s *Session) Log() *history.Log            { return s.log }
func (s *Session) Context() *contextstore.Store { return s.store }
func (s *Session) Save() (string, error)        { return s.log.Save("") }
func (s *Session) Load(filename string) bool    { return s.log.Load(filename) }
func (s *Session) Summary() string              { return s.log.Summary() }

// Clear starts a new conversation and drops temporary context.
func (s *Session) Clear() {
	s.log.Clear()
	s.store.Clear(contextstore.ScopeTemporary)
}

type turn struct {
	text     string
	intent   intent.Result
	skill    *skills.Result
	messages []llm.Message
}

// prepare runs every step up to generation.
func (s *Session) prepare(ctx context.Context, text string) turn {
	t := turn{text: text}
	t.intent = s.a.classifier.Classify(text)
	s.store.SetLastIntent(t.intent.Primary)
	s.logger.Debug("intent classified",
		zap.String("primary", t.intent.Primary),
		zap.Strings("all", t.intent.All),
		zap.String("urgency", string(t.intent.Urgency)))

	if res, routed := s.a.router.Route(skills.WithOwner(ctx, s.id), text, t.intent); routed {
		t.skill = &res
		s.store.SetLastAction(res.Skill)
		if res.Success {
			s.store.SetTemporary(keyLastResult, res.Message, lastResultTTL)
		}
		s.logger.Info("skill invoked", zap.String("skill", res.Skill), zap.Bool("success", res.Success))
	}

	s.log.AppendUser(text)

	if note := s.profileNote(); note != "" {
		t.messages = append(t.messages, llm.Message{Role: llm.RoleSystem, Content: note})
	}
	for _, m := range s.log.Window(s.a.budget) {
		t.messages = append(t.messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	if t.skill != nil {
		if note, ok := skills.Augment(*t.skill); ok {
			t.messages = append(t.messages, llm.Message{Role: llm.RoleSystem, Content: note})
		}
	}
	return t
}

// profileNote renders the user-scope context as one system line.
func (s *Session) profileNote() string {
	values := s.store.Values(contextstore.ScopeUser)
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, values[k]))
	}
	return "User profile: " + strings.Join(parts, ", ")
}

// complete runs every step after generation. Memory and recorder
// failures are logged only.
func (s *Session) complete(ctx context.Context, t turn, reply string) Reply {
	s.log.AppendAssistant(reply)

	if s.a.memory != nil {
		if _, err := s.a.memory.StoreConversation(ctx, t.text, reply); err != nil {
			s.logger.Warn("failed to store conversation in memory", zap.Error(err))
		}
	}

	now := s.a.now()
	ev := storage.Event{
		Timestamp:         now.UTC(),
		SessionID:         s.id,
		Channel:           s.channel,
		UserMessage:       t.text,
		AssistantResponse: reply,
		Intent:            t.intent.Primary,
	}
	if t.skill != nil {
		ev.Skill = t.skill.Skill
	}
	if err := s.a.recorder.AppendInteraction(ev); err != nil {
		s.logger.Warn("failed to record interaction", zap.Error(err))
	}

	return Reply{Text: reply, Intent: t.intent, Skill: t.skill, Timestamp: now}
}

// Process runs one full turn. It never fails: an unexpected panic is
// logged and answered with the apology text.
func (s *Session) Process(ctx context.Context, text string) (r Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("turn panicked", zap.Any("panic", rec))
			r = Reply{Text: llm.ApologyText, Intent: intent.Result{Primary: intent.Conversation}, Timestamp: s.a.now()}
		}
	}()
	t := s.prepare(ctx, text)
	reply := s.a.generator.Generate(ctx, t.messages, llm.Options{})
	return s.complete(ctx, t, reply)
}

// ProcessStream runs the turn up to generation and returns the open
// stream. The caller drains or closes it, then calls finish with the
// concatenated text to log and persist the reply. Cancelling ctx stops
// the stream; finish still records whatever text was received.
func (s *Session) ProcessStream(ctx context.Context, text string) (*llm.Stream, func(reply string) Reply) {
	t := s.prepare(ctx, text)
	stream := s.a.generator.Stream(ctx, t.messages, llm.Options{})
	return stream, func(reply string) Reply {
		return s.complete(context.WithoutCancel(ctx), t, reply)
	}
}
