package llm

import (
	"context"
	"io"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is what a Backend receives. System carries the persona; any
// system-role entries in Messages are extra instructions for this turn.
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FragmentReader yields text fragments until io.EOF.
type FragmentReader interface {
	Recv() (string, error)
	Close() error
}

type Backend interface {
	Name() string
	Complete(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request) (FragmentReader, error)
}

// singleFragment serves a complete text as one fragment, for backends
// without native streaming.
type singleFragment struct {
	text string
	sent bool
}

func (s *singleFragment) Recv() (string, error) {
	if s.sent || s.text == "" {
		return "", io.EOF
	}
	s.sent = true
	return s.text, nil
}

func (s *singleFragment) Close() error { return nil }
