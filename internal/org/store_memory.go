package org

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fleettrack/pkg/platform/sentinel"
)

// InMemoryStore keeps units in memory for dev mode and tests.
type InMemoryStore struct {
	mu    sync.RWMutex
	units map[uuid.UUID]Unit
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{units: make(map[uuid.UUID]Unit)}
}

func (s *InMemoryStore) Create(_ context.Context, unit *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.units {
		if strings.EqualFold(existing.Code, unit.Code) {
			return sentinel.ErrConflict
		}
	}
	s.units[unit.ID] = *unit
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.units[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &unit, nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, unit := range s.units {
		if strings.EqualFold(unit.Code, code) {
			u := unit
			return &u, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, activeOnly bool) ([]*Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Unit
	for _, unit := range s.units {
		if activeOnly && !unit.Active {
			continue
		}
		u := unit
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, unit *Unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.units[unit.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.units[unit.ID] = *unit
	return nil
}
