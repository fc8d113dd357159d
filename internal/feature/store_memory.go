package feature

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fleettrack/pkg/platform/sentinel"
)

// InMemoryStore keeps features in memory for dev mode and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	features map[uuid.UUID]Feature
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{features: make(map[uuid.UUID]Feature)}
}

func (s *InMemoryStore) Create(_ context.Context, f *Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.features {
		if strings.EqualFold(existing.Code, f.Code) {
			return sentinel.ErrConflict
		}
	}
	s.features[f.ID] = *f
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.features[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &f, nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, f := range s.features {
		if strings.EqualFold(f.Code, code) {
			found := f
			return &found, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]*Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Feature
	for _, f := range s.features {
		feature := f
		out = append(out, &feature)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, f *Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.features[f.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.features[f.ID] = *f
	return nil
}

func (s *InMemoryStore) ExistingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.features[id]; ok {
			existing[id] = true
		}
	}
	return existing, nil
}
