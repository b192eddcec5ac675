package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// MemoryStore is an in-memory implementation of the Store interface
type MemoryStore struct {
	mu                sync.Mutex
	usedNonces        map[string]time.Time
	invalidatedTokens map[string]time.Time
	now               func() time.Time
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() ports.Store {
	return newMemoryStore(time.Now)
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		usedNonces:        make(map[string]time.Time),
		invalidatedTokens: make(map[string]time.Time),
		now:               now,
	}
}

// ConsumeNonce records a nonce, failing if it is still remembered from an earlier use
func (s *MemoryStore) ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)

	if _, seen := s.usedNonces[nonce]; seen {
		return core.ErrNonceReused
	}
	s.usedNonces[nonce] = now.Add(expiry)
	return nil
}

// InvalidateToken marks a token as invalidated
func (s *MemoryStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.prune(now)
	s.invalidatedTokens[tokenID] = now.Add(expiry)
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}
	return s.now().Before(expiryTime), nil
}

// prune drops expired entries; callers hold mu.
func (s *MemoryStore) prune(now time.Time) {
	for k, exp := range s.usedNonces {
		if !now.Before(exp) {
			delete(s.usedNonces, k)
		}
	}
	for k, exp := range s.invalidatedTokens {
		if !now.Before(exp) {
			delete(s.invalidatedTokens, k)
		}
	}
}
