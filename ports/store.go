package ports

import (
	"context"
	"time"

	"github.com/layer-3/paydesk/core"
)

// AccountDirectory is the persistent account store keyed by normalized address.
type AccountDirectory interface {
	// LookupByAddress returns core.ErrAccountNotFound when no record exists
	LookupByAddress(ctx context.Context, address core.Address) (core.Account, error)

	// Insert creates the record; core.ErrAccountExists if the wallet already has one
	Insert(ctx context.Context, account core.Account) (core.Account, error)

	// Update refreshes login fields of an existing record
	Update(ctx context.Context, id string, update core.AccountUpdate) (core.Account, error)
}

// AccountInvalidator drops cached lookups for an address after a write.
type AccountInvalidator interface {
	Invalidate(ctx context.Context, address core.Address)
}

// Store backs the verification API: single-use nonces and token invalidation.
type Store interface {
	// ConsumeNonce marks nonce used; core.ErrNonceReused if it was seen before
	ConsumeNonce(ctx context.Context, nonce string, expiry time.Duration) error
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}
