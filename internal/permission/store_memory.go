package permission

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// InMemoryStore keeps the matrix keyed by role. Replace swaps the whole
// per-role slice under the write lock, so readers never see a partial set.
type InMemoryStore struct {
	mu     sync.RWMutex
	byRole map[uuid.UUID][]Permission
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byRole: make(map[uuid.UUID][]Permission)}
}

func (s *InMemoryStore) Replace(_ context.Context, roleID uuid.UUID, perms []Permission) error {
	cloned := make([]Permission, len(perms))
	copy(cloned, perms)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(cloned) == 0 {
		delete(s.byRole, roleID)
		return nil
	}
	s.byRole[roleID] = cloned
	return nil
}

func (s *InMemoryStore) ListByRole(_ context.Context, roleID uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Permission, len(s.byRole[roleID]))
	copy(out, s.byRole[roleID])
	return out, nil
}

func (s *InMemoryStore) ListByRoles(_ context.Context, roleIDs []uuid.UUID) ([]Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Permission
	for _, roleID := range roleIDs {
		out = append(out, s.byRole[roleID]...)
	}
	return out, nil
}
