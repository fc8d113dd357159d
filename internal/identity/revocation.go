package identity

import (
	"context"
	"sync"
	"time"
)

// RevocationList tracks token ids invalidated before their natural expiry.
// Entries only need to live as long as the token would have.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// InMemoryRevocationList is the single-process fallback when Redis is not
// configured. Expired entries are pruned lazily on lookup.
type InMemoryRevocationList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{revoked: make(map[string]time.Time)}
}

func (l *InMemoryRevocationList) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.revoked[tokenID] = time.Now().Add(ttl)
	return nil
}

func (l *InMemoryRevocationList) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	expiry, ok := l.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(l.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
