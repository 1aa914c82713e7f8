package storage

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileRecorder_AppendAndLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "logs", "interactions.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}

	ev1 := Event{Timestamp: time.Unix(1, 0).UTC(), SessionID: "s1", Channel: "cli", UserMessage: "2+2", AssistantResponse: "4", Intent: "calculate", Skill: "calculator"}
	ev2 := Event{Timestamp: time.Unix(2, 0).UTC(), SessionID: "s2", Channel: "web", UserMessage: "hi", AssistantResponse: "hello", Intent: "conversation"}
	if err := rec.AppendInteraction(ev1); err != nil {
		t.Fatalf("append1: %v", err)
	}
	if err := rec.AppendInteraction(ev2); err != nil {
		t.Fatalf("append2: %v", err)
	}

	got, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 events, got %d", len(got))
	}
	if got[0] != ev1 || got[1] != ev2 {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestFileRecorder_SkipsCorruptLines(t *testing.T) {
	p := filepath.Join(t.TempDir(), "interactions.jsonl")
	content := `{"session_id":"a","user_message":"one"}
not json

{"session_id":"b","user_message":"two"}
`
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	got, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || got[1].SessionID != "b" {
		t.Fatalf("unexpected events: %+v", got)
	}
}

func TestFileRecorder_ConcurrentAppend(t *testing.T) {
	rec, err := NewFileRecorder(filepath.Join(t.TempDir(), "interactions.jsonl"))
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rec.AppendInteraction(Event{UserMessage: "x"}); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	wg.Wait()
	got, err := rec.LoadInteractions()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("want 20 events, got %d", len(got))
	}
}

func TestFileRecorder_LoadSince(t *testing.T) {
	p := filepath.Join(t.TempDir(), "interactions.jsonl")
	rec, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("init recorder: %v", err)
	}
	day1 := time.Date(2024, 5, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{day1, day1.Add(30 * time.Minute), day2, day2.Add(time.Hour)} {
		if err := rec.AppendInteraction(Event{Timestamp: ts, SessionID: string(rune('a' + i))}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	check := func(rec *FileRecorder, since time.Time, want string) {
		t.Helper()
		got, err := rec.LoadSince(since)
		if err != nil {
			t.Fatalf("load since: %v", err)
		}
		var ids string
		for _, ev := range got {
			ids += ev.SessionID
		}
		if ids != want {
			t.Fatalf("since %s: got %q, want %q", since, ids, want)
		}
	}
	check(rec, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "cd")
	check(rec, day2.Add(time.Minute), "d")
	check(rec, day1.Add(time.Minute), "bcd")
	check(rec, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), "abcd")
	check(rec, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), "")

	if err := rec.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := rec.AppendInteraction(Event{Timestamp: day2}); err == nil {
		t.Fatal("append after close succeeded")
	}

	// the day index is rebuilt from the file on reopen
	reopened, err := NewFileRecorder(p)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if len(reopened.days) != 2 || reopened.days[1].off == 0 {
		t.Fatalf("unexpected day index: %+v", reopened.days)
	}
	check(reopened, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), "cd")
}
