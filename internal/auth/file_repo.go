package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileRepository stores the allowlist as one JSON array.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) LoadAll() ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *FileRepository) Upsert(user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.load()
	if err != nil {
		return err
	}
	for i, u := range users {
		if u.ID == user.ID {
			users[i] = user
			return r.save(users)
		}
	}
	return r.save(append(users, user))
}

func (r *FileRepository) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	users, err := r.load()
	if err != nil {
		return err
	}
	out := users[:0]
	for _, u := range users {
		if u.ID != userID {
			out = append(out, u)
		}
	}
	return r.save(out)
}

// load treats a missing, empty or malformed file as an empty list.
func (r *FileRepository) load() ([]User, error) {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []User{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read allowlist: %w", err)
	}
	var users []User
	if err := json.Unmarshal(b, &users); err != nil {
		return []User{}, nil
	}
	return users, nil
}

func (r *FileRepository) save(users []User) error {
	b, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encode allowlist: %w", err)
	}
	if err := os.WriteFile(r.path, b, 0o644); err != nil {
		return fmt.Errorf("write allowlist: %w", err)
	}
	return nil
}
