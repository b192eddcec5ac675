package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

type cacheEntry struct {
	account   core.Account
	found     bool
	expiresAt time.Time
}

// CachedDirectory is a read-through cache in front of an AccountDirectory.
// Misses are cached too. Writes pass straight through and do not touch the cache:
// writers call Invalidate for the address they changed. A read that overlaps an Invalidate
// of its address is returned but not cached.
type CachedDirectory struct {
	next ports.AccountDirectory
	ttl  time.Duration
	now  func() time.Time

	mu      sync.Mutex
	entries map[core.Address]cacheEntry
	gens    map[core.Address]uint64
}

// NewCachedDirectory wraps next with a cache whose entries live for ttl
func NewCachedDirectory(next ports.AccountDirectory, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{
		next:    next,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[core.Address]cacheEntry),
		gens:    make(map[core.Address]uint64),
	}
}

// LookupByAddress serves from the cache or reads through to the directory
func (c *CachedDirectory) LookupByAddress(ctx context.Context, address core.Address) (core.Account, error) {
	key := core.NormalizeAddress(string(address))

	c.mu.Lock()
	entry, ok := c.entries[key]
	gen := c.gens[key]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expiresAt) {
		if !entry.found {
			return core.Account{}, core.ErrAccountNotFound
		}
		return entry.account, nil
	}

	acct, err := c.next.LookupByAddress(ctx, key)
	switch {
	case err == nil:
		c.put(key, gen, cacheEntry{account: acct, found: true})
	case errors.Is(err, core.ErrAccountNotFound):
		c.put(key, gen, cacheEntry{found: false})
	}
	return acct, err
}

// Insert passes through to the directory
func (c *CachedDirectory) Insert(ctx context.Context, account core.Account) (core.Account, error) {
	return c.next.Insert(ctx, account)
}

// Update passes through to the directory
func (c *CachedDirectory) Update(ctx context.Context, id string, update core.AccountUpdate) (core.Account, error) {
	return c.next.Update(ctx, id, update)
}

// Invalidate drops the cached lookup for address
func (c *CachedDirectory) Invalidate(ctx context.Context, address core.Address) {
	key := core.NormalizeAddress(string(address))
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

func (c *CachedDirectory) put(key core.Address, gen uint64, entry cacheEntry) {
	entry.expiresAt = c.now().Add(c.ttl)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return
	}
	c.entries[key] = entry
}
