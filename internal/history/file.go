package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Record is the on-disk form of one conversation.
type Record struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	Messages     []Message `json:"messages"`
}

// Saved describes a conversation file found by List.
type Saved struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Save writes the conversation to <dir>/<filename>, defaulting to <id>.json,
// and returns the written path. Errors are returned to the caller.
func (l *Log) Save(filename string) (string, error) {
	l.mu.RLock()
	now := l.now()
	rec := Record{
		ID:           l.id,
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: len(l.messages),
		Messages:     append([]Message{}, l.messages...),
	}
	if len(l.messages) > 0 {
		rec.CreatedAt = l.messages[0].Timestamp
	}
	l.mu.RUnlock()

	if filename == "" {
		filename = rec.ID + ".json"
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure conversations dir: %w", err)
	}
	path := filepath.Join(l.dir, filename)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("open conversation file: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("encode conversation: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close conversation file: %w", err)
	}
	l.logger.Info("conversation saved", zap.String("path", path), zap.Int("messages", rec.MessageCount))
	return path, nil
}

// Load replaces the id and messages with the content of <dir>/<filename>.
// On any failure it logs, returns false and leaves the log untouched.
func (l *Log) Load(filename string) bool {
	path := filepath.Join(l.dir, filename)
	rec, err := readRecord(path)
	if err != nil {
		l.logger.Error("failed to load conversation", zap.String("path", path), zap.Error(err))
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.id = rec.ID
	l.messages = rec.Messages
	l.logger.Info("conversation loaded", zap.String("conversation", rec.ID), zap.Int("messages", len(rec.Messages)))
	return true
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	if rec.ID == "" {
		return Record{}, errors.New("conversation record without id")
	}
	return rec, nil
}

// List returns the conversations saved in dir, most recently updated first.
// Unreadable or corrupt files are skipped.
func List(dir string, logger *zap.Logger) ([]Saved, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Saved{}, nil
		}
		return nil, fmt.Errorf("read conversations dir: %w", err)
	}
	out := []Saved{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			if logger != nil {
				logger.Warn("skipping conversation file", zap.String("file", e.Name()), zap.Error(err))
			}
			continue
		}
		out = append(out, Saved{
			ID:           rec.ID,
			Filename:     e.Name(),
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
			MessageCount: rec.MessageCount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
