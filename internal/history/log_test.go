package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ t time.Time }

func (c *stepClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *stepClock {
	return &stepClock{t: time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)}
}

func TestLogAppendMessagesCopy(t *testing.T) {
	l := NewLog(t.TempDir(), WithClock(newClock().now))
	l.AppendUser("hello")
	l.Append(RoleSystem, "note")
	l.AppendAssistant("hi")

	msgs := l.Messages(0, false)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, RoleAssistant, msgs[1].Role)

	assert.Len(t, l.Messages(0, true), 3)
	last := l.Messages(1, true)
	require.Len(t, last, 1)
	assert.Equal(t, "hi", last[0].Content)

	// Ensure copy semantics (modifying returned slice does not affect internal state)
	msgs[0].Content = "mutated"
	assert.Equal(t, "hello", l.Messages(0, false)[0].Content)
}

func TestConversationID(t *testing.T) {
	id := NewConversationID(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, "conv_20240102_030405", id)
}

func TestWindow(t *testing.T) {
	l := NewLog(t.TempDir())
	l.AppendUser(strings.Repeat("a", 40))      // 10 tokens
	l.AppendAssistant(strings.Repeat("b", 20)) // 5 tokens
	l.AppendUser(strings.Repeat("c", 8))       // 2 tokens

	tests := []struct {
		budget int
		want   []string
	}{
		{0, nil},
		{1, nil},
		{2, []string{"c"}},
		{6, []string{"c"}},
		{7, []string{"b", "c"}},
		{16, []string{"b", "c"}},
		{17, []string{"a", "b", "c"}},
		{1000, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := l.Window(tt.budget)
		var firsts []string
		for _, m := range got {
			firsts = append(firsts, m.Content[:1])
		}
		assert.Equal(t, tt.want, firsts, "budget %d", tt.budget)
	}
}

func TestWindowCountsCharacters(t *testing.T) {
	l := NewLog(t.TempDir())
	l.AppendUser(strings.Repeat("я", 8))      // 16 bytes, 2 tokens
	l.AppendAssistant(strings.Repeat("字", 8)) // 24 bytes, 2 tokens

	assert.Len(t, l.Window(4), 2)
	assert.Len(t, l.Window(2), 1)
}

func TestWindowStopsAtFirstOverflow(t *testing.T) {
	l := NewLog(t.TempDir())
	l.AppendUser("tiny")
	l.AppendAssistant(strings.Repeat("x", 400))
	l.AppendUser("last")

	// the tiny first message would fit, but the walk stops at the big one
	got := l.Window(10)
	require.Len(t, got, 1)
	assert.Equal(t, "last", got[0].Content)
}

func TestWindowIdempotent(t *testing.T) {
	l := NewLog(t.TempDir())
	for i := 0; i < 20; i++ {
		l.AppendUser(strings.Repeat("u", i*3))
	}
	assert.Equal(t, l.Window(50), l.Window(50))
	assert.Equal(t, 20, l.Len(), "windowing must not truncate the log")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := NewLog(dir, WithClock(newClock().now))
	src.AppendUser("what is the time?")
	src.AppendAssistant("It is 14:30.")

	path, err := src.Save("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, src.ID()+".json"), path)

	dst := NewLog(dir, WithID("conv_other"))
	dst.AppendUser("to be replaced")
	require.True(t, dst.Load(filepath.Base(path)))

	assert.Equal(t, src.ID(), dst.ID())
	want := src.Messages(0, true)
	got := dst.Messages(0, true)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Content, got[i].Content)
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp))
	}
}

func TestSaveRecordShape(t *testing.T) {
	dir := t.TempDir()
	clk := newClock()
	l := NewLog(dir, WithClock(clk.now))
	l.AppendUser("one")
	first := l.Messages(0, true)[0].Timestamp
	l.AppendAssistant("two")

	path, err := l.Save("custom.json")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, k := range []string{"id", "created_at", "updated_at", "message_count", "messages"} {
		assert.Contains(t, raw, k)
	}

	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 2, rec.MessageCount)
	assert.True(t, rec.CreatedAt.Equal(first))
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt))
}

func TestSaveEmptyConversationUsesNow(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC)
	l := NewLog(dir, WithClock(func() time.Time { return fixed }))

	path, err := l.Save("")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec Record
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 0, rec.MessageCount)
	assert.True(t, rec.CreatedAt.Equal(fixed))
	assert.Empty(t, rec.Messages)
}

func TestSaveFailurePropagates(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	l := NewLog(filepath.Join(blocker, "sub"))
	l.AppendUser("hi")
	_, err := l.Save("")
	assert.Error(t, err)
}

func TestLoadFailureLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644))

	l := NewLog(dir, WithID("conv_keep"))
	l.AppendUser("keep me")

	assert.False(t, l.Load("missing.json"))
	assert.False(t, l.Load("broken.json"))
	assert.Equal(t, "conv_keep", l.ID())
	require.Len(t, l.Messages(0, true), 1)
	assert.Equal(t, "keep me", l.Messages(0, true)[0].Content)
}

func TestClearStartsNewConversation(t *testing.T) {
	clk := newClock()
	l := NewLog(t.TempDir(), WithClock(clk.now))
	before := l.ID()
	l.AppendUser("hi")
	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.NotEqual(t, before, l.ID())
}

func TestSummary(t *testing.T) {
	l := NewLog(t.TempDir(), WithID("conv_x"))
	assert.Equal(t, "No messages in current conversation", l.Summary())
	l.AppendUser("a")
	l.AppendAssistant("b")
	l.AppendUser("c")
	assert.Equal(t, "Conversation conv_x: 3 messages (2 user, 1 assistant)", l.Summary())
}

func TestListSkipsCorruptAndSortsByUpdate(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"conv_old", "conv_new", "conv_mid"} {
		offset := map[string]time.Duration{"conv_old": 0, "conv_mid": time.Hour, "conv_new": 2 * time.Hour}[id]
		at := base.Add(offset)
		l := NewLog(dir, WithID(id), WithClock(func() time.Time { return at }))
		for j := 0; j <= i; j++ {
			l.AppendUser("m")
		}
		_, err := l.Save("")
		require.NoError(t, err)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("]]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	saved, err := List(dir, nil)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	assert.Equal(t, "conv_new", saved[0].ID)
	assert.Equal(t, "conv_mid", saved[1].ID)
	assert.Equal(t, "conv_old", saved[2].ID)
	assert.Equal(t, "conv_new.json", saved[0].Filename)
	assert.Equal(t, 2, saved[0].MessageCount)
}

func TestListMissingDir(t *testing.T) {
	saved, err := List(filepath.Join(t.TempDir(), "nope"), nil)
	require.NoError(t, err)
	assert.Empty(t, saved)
}
