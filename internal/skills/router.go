package skills

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"jarvis/internal/intent"
	"jarvis/internal/logging"
)

var ErrDuplicate = errors.New("capability already registered")

// Router keeps capabilities in registration order and runs at most the
// first eligible one per turn.
type Router struct {
	mu      sync.RWMutex
	entries []Capability
	logger  *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{logger: logging.OrNop(logger)}
}

func (r *Router) Register(c Capability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.Name() == c.Name() {
			return fmt.Errorf("%w: %s", ErrDuplicate, c.Name())
		}
	}
	r.entries = append(r.entries, c)
	r.logger.Debug("capability registered", zap.String("skill", c.Name()))
	return nil
}

// Capabilities returns the registry in registration order.
func (r *Router) Capabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Capability(nil), r.entries...)
}

func (r *Router) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.Name())
	}
	return names
}

func (r *Router) Get(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name() == name {
			return e, true
		}
	}
	return nil, false
}

// Select returns the first eligible capability.
func (r *Router) Select(in intent.Result) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.IsEligible(in) {
			return e, true
		}
	}
	return nil, false
}

// Route invokes the first eligible capability with the parameters it derives
// from the text. The bool is false when no capability was eligible.
func (r *Router) Route(ctx context.Context, text string, in intent.Result) (Result, bool) {
	c, found := r.Select(in)
	if !found {
		return Result{}, false
	}
	r.logger.Info("capability handling request", zap.String("skill", c.Name()), zap.String("intent", in.Primary))
	return r.invoke(ctx, c, func() Params { return c.ParametersFrom(text, in) }), true
}

// Invoke runs a named capability with explicit parameters.
func (r *Router) Invoke(ctx context.Context, name string, p Params) (Result, bool) {
	c, found := r.Get(name)
	if !found {
		return Result{}, false
	}
	return r.invoke(ctx, c, func() Params { return p }), true
}

// invoke derives parameters and runs c; a panic in either step becomes a
// failed Result.
func (r *Router) invoke(ctx context.Context, c Capability, params func() Params) (res Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("capability panicked", zap.String("skill", c.Name()), zap.Any("panic", rec))
			res = fail(c.Name(), fmt.Sprintf("%s failed: %v", c.Name(), rec))
		}
	}()
	res = c.Invoke(ctx, params())
	if res.Skill == "" {
		res.Skill = c.Name()
	}
	if !res.Success {
		r.logger.Warn("capability failed", zap.String("skill", c.Name()), zap.String("error", res.Error))
	}
	return res
}

// Augment turns a successful result into the system note added to the
// generation context. Failed results add nothing.
func Augment(res Result) (string, bool) {
	if !res.Success {
		return "", false
	}
	return "Skill result: " + res.Message, true
}
