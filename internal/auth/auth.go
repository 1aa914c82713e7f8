package auth

import (
	"sort"
	"sync"
)

// User is a Telegram account allowed to talk to the assistant.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

type Repository interface {
	LoadAll() ([]User, error)
	Upsert(user User) error
	Remove(userID int64) error
}

// Service is the allowlist. Ids from ALLOWED_USERS are merged with the
// persisted file; an empty allowlist admits nobody.
type Service struct {
	mu      sync.RWMutex
	repo    Repository
	allowed map[int64]User
}

func NewService(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, allowed: make(map[int64]User)}
	if repo != nil {
		users, err := repo.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			s.allowed[u.ID] = u
		}
	}
	for _, id := range initial {
		if _, ok := s.allowed[id]; !ok {
			s.allowed[id] = User{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsAllowed(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.allowed[userID]
	return ok
}

func (s *Service) Upsert(user User) error {
	s.mu.Lock()
	s.allowed[user.ID] = user
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(user)
	}
	return nil
}

func (s *Service) Remove(userID int64) error {
	s.mu.Lock()
	delete(s.allowed, userID)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

// List returns users ordered by id.
func (s *Service) List() []User {
	s.mu.RLock()
	out := make([]User, 0, len(s.allowed))
	for _, u := range s.allowed {
		out = append(out, u)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
