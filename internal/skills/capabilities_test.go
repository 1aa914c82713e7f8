package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
	"jarvis/internal/schedule"
)

func intentWith(names ...string) intent.Result {
	r := intent.Result{Primary: intent.Conversation, All: names}
	if len(names) > 0 {
		r.Primary = names[0]
	}
	return r
}

func TestMemorySkillStoresPreference(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway(memory.NewInMemoryStore())
	s := NewMemorySkill(gw)

	text := "Remember that my favorite color is blue"
	in := intent.New().Classify(text)
	require.True(t, s.IsEligible(in))

	p := s.ParametersFrom(text, in)
	assert.Equal(t, "store", p["action"])
	assert.Equal(t, "my favorite color is blue", p["content"])
	assert.Equal(t, memory.TypePreference, p["memory_type"])

	res := s.Invoke(WithOwner(ctx, "cli"), p)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Memory stored successfully", res.Message)

	all, err := gw.Backend().All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Contains(t, all[0].Content, "blue")
	assert.Equal(t, memory.TypePreference, all[0].Type())
	assert.Equal(t, "cli", all[0].Metadata["session"])
}

func TestMemorySkillFactAndRecall(t *testing.T) {
	ctx := context.Background()
	gw := memory.NewGateway(memory.NewInMemoryStore())
	s := NewMemorySkill(gw)

	p := s.ParametersFrom("Note that the wifi password is hunter2", intentWith(intent.Remember))
	assert.Equal(t, memory.TypeFact, p["memory_type"])
	assert.Equal(t, "the wifi password is hunter2", p["content"])
	require.True(t, s.Invoke(ctx, p).Success)

	p = s.ParametersFrom("What do you remember about the wifi password?", intentWith(intent.Search, intent.Recall))
	assert.Equal(t, "retrieve", p["action"])
	assert.Equal(t, "the wifi password", p["query"])

	res := s.Invoke(ctx, p)
	require.True(t, res.Success)
	assert.Equal(t, "Found 1 relevant memory/memories", res.Message)
	data := res.Data.(map[string]any)
	assert.Equal(t, 1, data["count"])

	res = s.Invoke(ctx, Params{"action": "stats"})
	require.True(t, res.Success)
	assert.Equal(t, "Memory statistics retrieved", res.Message)
	assert.Equal(t, 1, res.Data.(memory.Stats).Total)
}

func TestMemorySkillValidation(t *testing.T) {
	s := NewMemorySkill(memory.NewGateway(memory.NewInMemoryStore()))
	ctx := context.Background()
	assert.Equal(t, "Memory content is required", s.Invoke(ctx, Params{"action": "store"}).Error)
	assert.Equal(t, "Search query is required", s.Invoke(ctx, Params{"action": "retrieve"}).Error)
	assert.Equal(t, "Unknown action: fly", s.Invoke(ctx, Params{"action": "fly"}).Error)
}

type brokenGateway struct{}

func (brokenGateway) Store(context.Context, string, map[string]string, string) (string, error) {
	return "", errors.New("store down")
}
func (brokenGateway) Query(context.Context, string, int, string) ([]memory.Hit, error) {
	return nil, errors.New("store down")
}
func (brokenGateway) Stats(context.Context) (memory.Stats, error) {
	return memory.Stats{}, errors.New("store down")
}

func TestMemorySkillStoreFailure(t *testing.T) {
	res := NewMemorySkill(brokenGateway{}).Invoke(context.Background(), Params{"action": "store", "content": "x"})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Failed to store memory")
}

func TestScheduleSkill(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	repo, err := schedule.NewFileRepository(filepath.Join(t.TempDir(), "schedules.json"))
	require.NoError(t, err)
	s := NewScheduleSkill(repo, func() time.Time { return now })
	ctx := WithOwner(context.Background(), "telegram:5")

	p := s.ParametersFrom("Remind me to call mom tomorrow at 3pm", intentWith(intent.Schedule))
	assert.Equal(t, Params{"action": "create", "message": "call mom", "time_str": "tomorrow at 3pm"}, p)

	res := s.Invoke(ctx, p)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Reminder set for 2024-06-11 15:00", res.Message)
	rem := res.Data.(schedule.Reminder)
	assert.Equal(t, "telegram:5", rem.Owner)
	assert.True(t, strings.HasPrefix(rem.ID, "reminder_"))

	p = s.ParametersFrom("remind me in 5 minutes to stretch", intentWith(intent.Schedule))
	assert.Equal(t, "stretch", p["message"])
	assert.Equal(t, "in 5 minutes", p["time_str"])
	require.True(t, s.Invoke(ctx, p).Success)

	list := s.Invoke(ctx, s.ParametersFrom("show my reminders", intentWith(intent.Schedule)))
	require.True(t, list.Success)
	assert.Equal(t, "Found 2 reminder(s)", list.Message)

	del := s.Invoke(ctx, s.ParametersFrom("delete reminder "+rem.ID, intentWith(intent.Schedule)))
	require.True(t, del.Success, del.Error)
	assert.Equal(t, "Reminder deleted successfully", del.Message)

	del = s.Invoke(ctx, Params{"action": "delete", "reminder_id": "reminder_nope"})
	assert.False(t, del.Success)
	assert.Equal(t, "Reminder not found: reminder_nope", del.Error)

	bad := s.Invoke(ctx, Params{"action": "create", "message": "x", "time_str": "someday"})
	assert.Equal(t, "Could not parse time: someday", bad.Error)

	p = s.ParametersFrom("Remind me to call mom at 5 PM", intentWith(intent.Schedule))
	assert.Equal(t, Params{"action": "create", "message": "call mom", "time_str": "at 5 PM"}, p)
	res = s.Invoke(ctx, p)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Reminder set for 2024-06-10 17:00", res.Message)

	res = s.Invoke(ctx, Params{"action": "create", "message": "standup", "time_str": "2024-06-12T09:30:00Z"})
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "Reminder set for 2024-06-12 09:30", res.Message)

	p = s.ParametersFrom("remind me to take pills every day at 9pm", intentWith(intent.Schedule))
	assert.Equal(t, Params{
		"action": "create", "message": "take pills", "time_str": "at 9pm",
		"recurring": "true", "period": schedule.PeriodDaily,
	}, p)
	res = s.Invoke(ctx, p)
	require.True(t, res.Success, res.Error)
	rem = res.Data.(schedule.Reminder)
	assert.True(t, rem.Recurring)
	assert.Equal(t, schedule.PeriodDaily, rem.Period)
}

func TestFileSkill(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC)
	s := NewFileSkill(dir, func() time.Time { return now })
	ctx := context.Background()

	assert.Equal(t, "Content is required", s.Invoke(ctx, Params{"action": "create_text"}).Error)

	res := s.Invoke(ctx, Params{"content": "hello"})
	require.True(t, res.Success)
	assert.Equal(t, "Text file created: document_20240203_040506.txt", res.Message)
	got, err := os.ReadFile(filepath.Join(dir, "document_20240203_040506.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	p := s.ParametersFrom("Create a file named shopping list.txt: eggs, milk", intentWith(intent.File))
	assert.Equal(t, "shopping", p["filename"])
	assert.Equal(t, "eggs, milk", p["content"])

	p = s.ParametersFrom(`Create a document called notes.md with content "ship it"`, intentWith(intent.File))
	assert.Equal(t, "notes.md", p["filename"])
	assert.Equal(t, "ship it", p["content"])
	res = s.Invoke(ctx, p)
	require.True(t, res.Success)
	assert.Equal(t, "Text file created: notes.md", res.Message)
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "my_file.txt", SanitizeFilename(`my <file>.txt`))
	assert.Equal(t, "etcpasswd", SanitizeFilename("../etc/passwd"))
	long := strings.Repeat("a", 250) + ".txt"
	assert.Equal(t, strings.Repeat("a", 200)+".txt", SanitizeFilename(long))
}
