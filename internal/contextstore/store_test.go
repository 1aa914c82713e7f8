package contextstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStore() (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithClock(clk.now)), clk
}

func TestScopesAreIndependent(t *testing.T) {
	s, _ := newStore()
	s.Set(ScopeUser, "name", "Tony")
	s.Set(ScopeSession, "name", "session-tony")
	s.SetTemporary("name", "tmp", 0)

	assert.Equal(t, "Tony", s.Get(ScopeUser, "name", nil))
	assert.Equal(t, "session-tony", s.Get(ScopeSession, "name", nil))
	assert.Equal(t, "tmp", s.Get(ScopeTemporary, "name", nil))
	assert.Equal(t, "dflt", s.Get(ScopeUser, "missing", "dflt"))
	assert.Equal(t, "dflt", s.Get(Scope("bogus"), "name", "dflt"))
}

func TestTemporaryExpiresLazilyOnRead(t *testing.T) {
	s, clk := newStore()
	s.SetTemporary("otp", 1234, time.Second)

	assert.Equal(t, 1234, s.Get(ScopeTemporary, "otp", nil))

	clk.advance(time.Second)
	// still stored until somebody reads it
	assert.Equal(t, 1, s.Len(ScopeTemporary))

	assert.Nil(t, s.Get(ScopeTemporary, "otp", nil))
	assert.Equal(t, 0, s.Len(ScopeTemporary))
}

func TestTemporaryWithRealClock(t *testing.T) {
	s := New()
	s.SetTemporary("k", "v", 50*time.Millisecond)
	assert.Equal(t, "v", s.Get(ScopeTemporary, "k", "gone"))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, "gone", s.Get(ScopeTemporary, "k", "gone"))
	assert.Equal(t, 0, s.Len(ScopeTemporary))
}

func TestTTLIgnoredOutsideTemporary(t *testing.T) {
	s, clk := newStore()
	s.Set(ScopeSession, "k", "v")
	clk.advance(24 * time.Hour)
	assert.Equal(t, "v", s.Get(ScopeSession, "k", nil))
}

func TestClearOnlyTouchesOneScope(t *testing.T) {
	s, _ := newStore()
	s.Set(ScopeUser, "a", 1)
	s.Set(ScopeSession, "b", 2)
	s.SetTemporary("c", 3, time.Minute)

	s.Clear(ScopeSession)

	assert.Equal(t, 1, s.Get(ScopeUser, "a", nil))
	assert.Nil(t, s.Get(ScopeSession, "b", nil))
	assert.Equal(t, 3, s.Get(ScopeTemporary, "c", nil))
}

func TestResetRestartsSession(t *testing.T) {
	s, clk := newStore()
	s.Set(ScopeUser, "a", 1)
	s.SetLastIntent("search")
	clk.advance(10 * time.Minute)
	assert.Equal(t, 10*time.Minute, s.Snapshot().SessionDuration)

	s.Reset()

	snap := s.Snapshot()
	assert.Zero(t, snap.SessionDuration)
	assert.Empty(t, snap.UserKeys)
	assert.Empty(t, snap.LastIntent)
}

func TestSnapshot(t *testing.T) {
	s, _ := newStore()
	s.Set(ScopeUser, "name", "Tony")
	s.Set(ScopeUser, "city", "Malibu")
	s.Set(ScopeSession, "mode", "cli")
	s.SetLastIntent("calculate")
	s.SetLastAction("calculator")
	s.SetTopic("math")

	snap := s.Snapshot()
	assert.Equal(t, []string{"city", "name"}, snap.UserKeys)
	assert.Equal(t, []string{"mode"}, snap.SessionKeys)
	assert.Empty(t, snap.TemporaryKeys)
	assert.Equal(t, "calculate", snap.LastIntent)
	assert.Equal(t, "calculator", snap.LastAction)
	assert.Equal(t, "math", snap.ConversationTopic)
}

func TestValuesSkipsExpired(t *testing.T) {
	s, clk := newStore()
	s.SetTemporary("short", 1, time.Second)
	s.SetTemporary("long", 2, time.Hour)
	clk.advance(2 * time.Second)

	assert.Equal(t, map[string]any{"long": 2}, s.Values(ScopeTemporary))
	assert.Equal(t, "x", s.GetString(ScopeTemporary, "short", "x"))
}
