package rbac

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleettrack/pkg/platform/sentinel"
)

// InMemoryRoleStore keeps roles in memory for dev mode and tests.
type InMemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[uuid.UUID]Role
}

func NewInMemoryRoleStore() *InMemoryRoleStore {
	return &InMemoryRoleStore{roles: make(map[uuid.UUID]Role)}
}

func (s *InMemoryRoleStore) Create(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.roles {
		if strings.EqualFold(existing.Name, role.Name) {
			return sentinel.ErrConflict
		}
	}
	s.roles[role.ID] = *role
	return nil
}

func (s *InMemoryRoleStore) FindByID(_ context.Context, id uuid.UUID) (*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &role, nil
}

func (s *InMemoryRoleStore) List(_ context.Context) ([]*Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Role
	for _, role := range s.roles {
		r := role
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *InMemoryRoleStore) Update(_ context.Context, role *Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.roles[role.ID] = *role
	return nil
}

// InMemoryGrantStore keeps grants in memory for dev mode and tests.
type InMemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[uuid.UUID]Grant
}

func NewInMemoryGrantStore() *InMemoryGrantStore {
	return &InMemoryGrantStore{grants: make(map[uuid.UUID]Grant)}
}

func (s *InMemoryGrantStore) Create(_ context.Context, grant *Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// One active grant per (user, role, unit): re-granting must reuse the
	// existing active row.
	for _, existing := range s.grants {
		if existing.UserID == grant.UserID &&
			existing.RoleID == grant.RoleID &&
			sameUnit(existing.UnitID, grant.UnitID) &&
			existing.IsActiveAt(grant.GrantedAt) {
			return sentinel.ErrConflict
		}
	}
	s.grants[grant.ID] = *grant
	return nil
}

func (s *InMemoryGrantStore) FindByID(_ context.Context, id uuid.UUID) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grant, ok := s.grants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &grant, nil
}

func (s *InMemoryGrantStore) FindActive(_ context.Context, userID, roleID uuid.UUID, unitID *uuid.UUID, now time.Time) (*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, grant := range s.grants {
		if grant.UserID == userID && grant.RoleID == roleID && sameUnit(grant.UnitID, unitID) && grant.IsActiveAt(now) {
			g := grant
			return &g, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryGrantStore) ListActiveByUser(_ context.Context, userID uuid.UUID, now time.Time) ([]*Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Grant
	for _, grant := range s.grants {
		if grant.UserID == userID && grant.IsActiveAt(now) {
			g := grant
			out = append(out, &g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GrantedAt.Before(out[j].GrantedAt) })
	return out, nil
}

func (s *InMemoryGrantStore) Revoke(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.grants[id]
	if !ok || !grant.Active {
		return sentinel.ErrNotFound
	}
	grant.Active = false
	grant.RevokedAt = &at
	s.grants[id] = grant
	return nil
}

func sameUnit(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
