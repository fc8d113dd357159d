package authz

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"fleettrack/internal/permission"
	"fleettrack/internal/rbac"
)

type cacheKey struct{}

// WithCache attaches a fresh per-request decision cache to the context.
// Without one the engine resolves every decision from the stores.
func WithCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, cacheKey{}, newCache())
}

func cacheFrom(ctx context.Context) *cache {
	c, _ := ctx.Value(cacheKey{}).(*cache)
	return c
}

type decisionKey struct {
	userID      uuid.UUID
	featureCode string
	action      permission.Action
}

// cache memoizes resolver results for the lifetime of one request. Decisions
// are keyed scope-free: the unit-scope check runs per call against the
// memoized accessible-unit set, so one request may be allowed on one unit
// and refused on another without poisoning the cache.
//
// The cache is deliberately never invalidated mid-request. Grants revoked
// while a request is in flight take effect on the next request.
type cache struct {
	mu         sync.Mutex
	grants     []rbac.ActiveGrant
	grantsSet  bool
	grantsUser uuid.UUID
	accessible map[uuid.UUID]map[uuid.UUID]bool
	decisions  map[decisionKey]Decision
}

func newCache() *cache {
	return &cache{
		accessible: make(map[uuid.UUID]map[uuid.UUID]bool),
		decisions:  make(map[decisionKey]Decision),
	}
}

func (c *cache) decision(key decisionKey) (Decision, bool) {
	if c == nil {
		return Decision{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.decisions[key]
	return d, ok
}

func (c *cache) storeDecision(key decisionKey, d Decision) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.decisions[key] = d
}

func (c *cache) activeGrants(userID uuid.UUID) ([]rbac.ActiveGrant, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.grantsSet || c.grantsUser != userID {
		return nil, false
	}
	return c.grants, true
}

func (c *cache) storeActiveGrants(userID uuid.UUID, grants []rbac.ActiveGrant) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grants = grants
	c.grantsSet = true
	c.grantsUser = userID
}

func (c *cache) accessibleUnits(userID uuid.UUID) (map[uuid.UUID]bool, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	units, ok := c.accessible[userID]
	return units, ok
}

func (c *cache) storeAccessibleUnits(userID uuid.UUID, units map[uuid.UUID]bool) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessible[userID] = units
}
