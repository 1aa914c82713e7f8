package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InMemoryStore ranks records by the share of query terms they contain.
// Records sharing no term with the query are not returned.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Add(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == rec.ID {
			return fmt.Errorf("memory %s already exists", rec.ID)
		}
	}
	rec.Metadata = copyMeta(rec.Metadata)
	s.records = append(s.records, rec)
	return nil
}

func (s *InMemoryStore) Query(_ context.Context, text string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		k = 5
	}
	query := tokens(text)
	if len(query) == 0 {
		return []Hit{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		hit Hit
		pos int
	}
	var hits []scored
	for i, r := range s.records {
		if filter.Type != "" && r.Metadata[KeyType] != filter.Type {
			continue
		}
		doc := map[string]struct{}{}
		for _, t := range tokens(r.Content) {
			doc[t] = struct{}{}
		}
		matched := 0
		for _, t := range query {
			if _, ok := doc[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, scored{
			hit: Hit{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: copyMeta(r.Metadata),
				Distance: 1 - float64(matched)/float64(len(query)),
			},
			pos: i,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].hit.Distance != hits[j].hit.Distance {
			return hits[i].hit.Distance < hits[j].hit.Distance
		}
		return hits[i].pos > hits[j].pos
	})
	out := make([]Hit, 0, k)
	for i := 0; i < len(hits) && i < k; i++ {
		out = append(out, hits[i].hit)
	}
	return out, nil
}

func (s *InMemoryStore) All(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		r.Metadata = copyMeta(r.Metadata)
		out = append(out, r)
	}
	return out, nil
}

func (s *InMemoryStore) Delete(_ context.Context, ids ...string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.records[:0]
	for _, r := range s.records {
		if _, ok := drop[r.ID]; ok {
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *InMemoryStore) Close() error { return nil }
