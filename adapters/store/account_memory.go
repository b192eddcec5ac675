package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/layer-3/paydesk/core"
)

// MemoryAccounts is an in-memory AccountDirectory
type MemoryAccounts struct {
	mu        sync.RWMutex
	byAddress map[core.Address]core.Account
	byID      map[string]core.Address
}

// NewMemoryAccounts creates an empty in-memory directory
func NewMemoryAccounts() *MemoryAccounts {
	return &MemoryAccounts{
		byAddress: make(map[core.Address]core.Account),
		byID:      make(map[string]core.Address),
	}
}

// LookupByAddress returns the record for address
func (d *MemoryAccounts) LookupByAddress(ctx context.Context, address core.Address) (core.Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	acct, ok := d.byAddress[core.NormalizeAddress(string(address))]
	if !ok {
		return core.Account{}, core.ErrAccountNotFound
	}
	return acct, nil
}

// Insert stores a new record, assigning an id when none is set
func (d *MemoryAccounts) Insert(ctx context.Context, account core.Account) (core.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	account.WalletAddress = core.NormalizeAddress(string(account.WalletAddress))
	if account.WalletAddress.IsZero() {
		return core.Account{}, core.ErrInvalidAddress
	}
	if _, exists := d.byAddress[account.WalletAddress]; exists {
		return core.Account{}, core.ErrAccountExists
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}

	d.byAddress[account.WalletAddress] = account
	d.byID[account.ID] = account.WalletAddress
	return account, nil
}

// Update applies login fields to the record with id
func (d *MemoryAccounts) Update(ctx context.Context, id string, update core.AccountUpdate) (core.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	addr, ok := d.byID[id]
	if !ok {
		return core.Account{}, core.ErrAccountNotFound
	}
	acct := update.Apply(d.byAddress[addr])
	d.byAddress[addr] = acct
	return acct, nil
}
