package skills

import (
	"context"

	"jarvis/internal/intent"
)

// Params are the named string arguments a capability is invoked with.
type Params map[string]string

// Get returns the value for key or def when the key is missing or empty.
func (p Params) Get(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Result is the structured outcome of one capability invocation.
type Result struct {
	Success bool   `json:"success"`
	Skill   string `json:"skill"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Capability is a unit of functionality the router can select for a turn.
// Invoke never returns a Go error: every failure is a Result with
// Success false.
type Capability interface {
	Name() string
	Describe() string
	IsEligible(in intent.Result) bool
	ParametersFrom(text string, in intent.Result) Params
	Invoke(ctx context.Context, p Params) Result
}

func ok(skill string, data any, message string) Result {
	return Result{Success: true, Skill: skill, Data: data, Message: message}
}

func fail(skill, errText string) Result {
	return Result{Success: false, Skill: skill, Error: errText}
}

type ownerKey struct{}

// WithOwner tags ctx with the session that issued the turn.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFrom returns the session tag set by WithOwner.
func OwnerFrom(ctx context.Context) string {
	s, _ := ctx.Value(ownerKey{}).(string)
	return s
}
