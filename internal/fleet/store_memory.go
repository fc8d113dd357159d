package fleet

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fleettrack/pkg/platform/sentinel"
)

// InMemoryStore keeps trucks in memory for dev mode and tests.
type InMemoryStore struct {
	mu     sync.RWMutex
	trucks map[uuid.UUID]Truck
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{trucks: make(map[uuid.UUID]Truck)}
}

func (s *InMemoryStore) Create(_ context.Context, truck *Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.trucks {
		if existing.UnitID == truck.UnitID && strings.EqualFold(existing.Plate, truck.Plate) {
			return sentinel.ErrConflict
		}
	}
	s.trucks[truck.ID] = *truck
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	truck, ok := s.trucks[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &truck, nil
}

func (s *InMemoryStore) FindByPlate(_ context.Context, unitID uuid.UUID, plate string) (*Truck, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, truck := range s.trucks {
		if truck.UnitID == unitID && strings.EqualFold(truck.Plate, plate) {
			t := truck
			return &t, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context, unitIDs []uuid.UUID, activeOnly bool) ([]*Truck, error) {
	wanted := make(map[uuid.UUID]bool, len(unitIDs))
	for _, id := range unitIDs {
		wanted[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Truck
	for _, truck := range s.trucks {
		if len(wanted) > 0 && !wanted[truck.UnitID] {
			continue
		}
		if activeOnly && !truck.Active {
			continue
		}
		t := truck
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Plate < out[j].Plate })
	return out, nil
}

func (s *InMemoryStore) Update(_ context.Context, truck *Truck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trucks[truck.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.trucks[truck.ID] = *truck
	return nil
}
