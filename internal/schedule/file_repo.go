package schedule

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Repository interface {
	LoadAll() ([]Reminder, error)
	Add(r Reminder) error
	Delete(id string) (bool, error)
	CheckDue(now time.Time) ([]Reminder, error)
}

// FileRepository keeps all reminders in a single JSON list file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) Path() string { return r.path }

func (r *FileRepository) LoadAll() ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

// List returns reminders with the given status; "" or "all" returns every one.
func (r *FileRepository) List(status string) ([]Reminder, error) {
	all, err := r.LoadAll()
	if err != nil {
		return nil, err
	}
	if status == "" || status == "all" {
		return all, nil
	}
	out := []Reminder{}
	for _, rem := range all {
		if rem.Status == status {
			out = append(out, rem)
		}
	}
	return out, nil
}

func (r *FileRepository) Add(rem Reminder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	return r.saveUnlocked(append(all, rem))
}

func (r *FileRepository) Delete(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.loadUnlocked()
	if err != nil {
		return false, err
	}
	out := make([]Reminder, 0, len(all))
	for _, rem := range all {
		if rem.ID != id {
			out = append(out, rem)
		}
	}
	if len(out) == len(all) {
		return false, nil
	}
	return true, r.saveUnlocked(out)
}

// CheckDue returns pending reminders whose time has come. Non-recurring
// ones are marked completed, recurring ones move to their next occurrence,
// and the file is rewritten.
func (r *FileRepository) CheckDue(now time.Time) ([]Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all, err := r.loadUnlocked()
	if err != nil {
		return nil, err
	}
	var due []Reminder
	for i := range all {
		if !all[i].Due(now) {
			continue
		}
		due = append(due, all[i])
		if all[i].Recurring {
			all[i].Time = all[i].Next(now)
		} else {
			all[i].Status = StatusCompleted
		}
	}
	if len(due) == 0 {
		return nil, nil
	}
	return due, r.saveUnlocked(all)
}

func (r *FileRepository) loadUnlocked() ([]Reminder, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Reminder{}, nil
		}
		return nil, fmt.Errorf("read reminders: %w", err)
	}
	var all []Reminder
	if err := json.Unmarshal(data, &all); err != nil {
		// empty or malformed file reads as no reminders
		return []Reminder{}, nil
	}
	return all, nil
}

func (r *FileRepository) saveUnlocked(all []Reminder) error {
	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open reminders: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("write reminders: %w", err)
	}
	return nil
}
