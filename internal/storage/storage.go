package storage

import "time"

// Event is one completed turn: the user's message, the reply, and what
// the pipeline decided along the way.
type Event struct {
	Timestamp         time.Time `json:"timestamp"`
	SessionID         string    `json:"session_id"`
	Channel           string    `json:"channel"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Intent            string    `json:"intent"`
	Skill             string    `json:"skill,omitempty"`
}

// Recorder persists interaction events in chronological order.
// Implementations must be safe for concurrent use.
type Recorder interface {
	AppendInteraction(event Event) error
	LoadInteractions() ([]Event, error)
	LoadSince(since time.Time) ([]Event, error)
}

// Nop discards everything.
type Nop struct{}

func (Nop) AppendInteraction(Event) error      { return nil }
func (Nop) LoadInteractions() ([]Event, error) { return nil, nil }

func (Nop) LoadSince(time.Time) ([]Event, error) { return nil, nil }
