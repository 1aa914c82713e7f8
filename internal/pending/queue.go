package pending

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"jarvis/internal/auth"
)

// Request is an access request from a user who is not on the allowlist.
type Request struct {
	User        auth.User `json:"user"`
	RequestedAt time.Time `json:"requested_at"`
}

// Queue holds open access requests until an admin approves or denies them.
// With a non-empty path every change is written through to a JSON file.
type Queue struct {
	mu    sync.Mutex
	path  string
	items map[int64]Request
	now   func() time.Time
}

func Open(path string) (*Queue, error) {
	q := &Queue{path: path, items: make(map[int64]Request), now: time.Now}
	if path == "" {
		return q, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending requests: %w", err)
	}
	var saved []Request
	if err := json.Unmarshal(b, &saved); err != nil {
		// corrupt file: start empty
		return q, nil
	}
	for _, r := range saved {
		q.items[r.User.ID] = r
	}
	return q, nil
}

// Add queues a request. It reports false when the user already waits.
func (q *Queue) Add(u auth.User) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.items[u.ID]; ok {
		return false, nil
	}
	q.items[u.ID] = Request{User: u, RequestedAt: q.now().UTC()}
	return true, q.saveLocked()
}

// Take removes and returns the request of userID.
func (q *Queue) Take(userID int64) (Request, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.items[userID]
	if !ok {
		return Request{}, false, nil
	}
	delete(q.items, userID)
	return r, true, q.saveLocked()
}

// List returns open requests, oldest first.
func (q *Queue) List() []Request {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sortedLocked()
}

func (q *Queue) sortedLocked() []Request {
	out := make([]Request, 0, len(q.items))
	for _, r := range q.items {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		}
		return out[i].User.ID < out[j].User.ID
	})
	return out
}

func (q *Queue) saveLocked() error {
	if q.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(q.sortedLocked(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode pending requests: %w", err)
	}
	if err := os.WriteFile(q.path, b, 0o644); err != nil {
		return fmt.Errorf("write pending requests: %w", err)
	}
	return nil
}
