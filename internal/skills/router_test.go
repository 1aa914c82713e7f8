package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/intent"
)

type stubSkill struct {
	name     string
	intent   string
	calls    int
	result   Result
	panicMsg string
	lastArgs Params
}

func (s *stubSkill) Name() string                     { return s.name }
func (s *stubSkill) Describe() string                 { return "stub " + s.name }
func (s *stubSkill) IsEligible(in intent.Result) bool { return in.Has(s.intent) }
func (s *stubSkill) ParametersFrom(text string, _ intent.Result) Params {
	return Params{"text": text}
}
func (s *stubSkill) Invoke(_ context.Context, p Params) Result {
	s.calls++
	s.lastArgs = p
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	return s.result
}

func TestRouteInvokesOnlyFirstEligible(t *testing.T) {
	first := &stubSkill{name: "first", intent: intent.Calculate, result: Result{Success: true, Message: "one"}}
	second := &stubSkill{name: "second", intent: intent.Calculate, result: Result{Success: true, Message: "two"}}
	r := NewRouter(nil)
	require.NoError(t, r.Register(first))
	require.NoError(t, r.Register(second))

	res, routed := r.Route(context.Background(), "2+2", intent.Result{All: []string{intent.Calculate}})
	require.True(t, routed)
	assert.Equal(t, "one", res.Message)
	assert.Equal(t, "first", res.Skill)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 0, second.calls)
	assert.Equal(t, "2+2", first.lastArgs["text"])
}

func TestRouteOrderFollowsRegistration(t *testing.T) {
	a := &stubSkill{name: "a", intent: intent.Search, result: Result{Success: true}}
	b := &stubSkill{name: "b", intent: intent.Calculate, result: Result{Success: true}}
	r := NewRouter(nil)
	require.NoError(t, r.Register(b))
	require.NoError(t, r.Register(a))

	res, _ := r.Route(context.Background(), "what is 2+2", intent.Result{All: []string{intent.Search, intent.Calculate}})
	assert.Equal(t, "b", res.Skill)
	assert.Equal(t, []string{"b", "a"}, r.Names())
}

func TestRouteNoEligible(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register(&stubSkill{name: "a", intent: intent.News}))
	_, routed := r.Route(context.Background(), "hello", intent.Result{Primary: intent.Conversation, All: []string{intent.Conversation}})
	assert.False(t, routed)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register(&stubSkill{name: "a"}))
	err := r.Register(&stubSkill{name: "a"})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Len(t, r.Capabilities(), 1)
}

func TestPanicBecomesFailure(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register(&stubSkill{name: "boom", intent: intent.File, panicMsg: "kaput"}))
	res, routed := r.Route(context.Background(), "x", intent.Result{All: []string{intent.File}})
	require.True(t, routed)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Skill)
	assert.Contains(t, res.Error, "kaput")
}

type badMapping struct{ stubSkill }

func (badMapping) ParametersFrom(string, intent.Result) Params { panic("no params") }

func TestPanicInParameterMapping(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register(&badMapping{stubSkill{name: "bad", intent: intent.News}}))
	res, routed := r.Route(context.Background(), "news", intent.Result{All: []string{intent.News}})
	require.True(t, routed)
	assert.False(t, res.Success)
	assert.Equal(t, "bad", res.Skill)
	assert.Contains(t, res.Error, "no params")
}

func TestInvokeByName(t *testing.T) {
	s := &stubSkill{name: "calc", result: Result{Success: true, Message: "ok"}}
	r := NewRouter(nil)
	require.NoError(t, r.Register(s))

	res, found := r.Invoke(context.Background(), "calc", Params{"expression": "1+1"})
	require.True(t, found)
	assert.Equal(t, "ok", res.Message)
	assert.Equal(t, "1+1", s.lastArgs["expression"])

	_, found = r.Invoke(context.Background(), "missing", nil)
	assert.False(t, found)
}

func TestAugment(t *testing.T) {
	note, added := Augment(Result{Success: true, Message: "25 * 4 + 10 = 110"})
	assert.True(t, added)
	assert.Equal(t, "Skill result: 25 * 4 + 10 = 110", note)

	_, added = Augment(Result{Success: false, Error: "nope", Message: "ignored"})
	assert.False(t, added)
}

func TestCalculateScenarioEndToEnd(t *testing.T) {
	r := NewRouter(nil)
	require.NoError(t, r.Register(NewCalculatorSkill()))

	in := intent.New().Classify("Calculate 25 * 4 + 10")
	require.True(t, in.Has(intent.Calculate))

	res, routed := r.Route(context.Background(), "Calculate 25 * 4 + 10", in)
	require.True(t, routed)
	assert.True(t, res.Success)
	assert.Equal(t, NameCalculator, res.Skill)
	assert.Equal(t, map[string]any{"expression": "25 * 4 + 10", "result": 110.0}, res.Data)
	assert.Equal(t, "25 * 4 + 10 = 110", res.Message)
}

func TestOwnerContext(t *testing.T) {
	assert.Equal(t, "", OwnerFrom(context.Background()))
	assert.Equal(t, "telegram:7", OwnerFrom(WithOwner(context.Background(), "telegram:7")))
}
