package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

const testWallet = core.Address("0xabcdef0123456789abcdef0123456789abcdef01")

func testDirectorySemantics(t *testing.T, dir ports.AccountDirectory) {
	ctx := context.Background()
	login := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	_, err := dir.LookupByAddress(ctx, testWallet)
	require.ErrorIs(t, err, core.ErrAccountNotFound)

	created, err := dir.Insert(ctx, core.Account{
		WalletAddress:  "0xABCDEF0123456789abcdef0123456789ABCDEF01",
		TermsAccepted:  true,
		TermsVersion:   "1.0",
		LastLogin:      login,
		SignatureNonce: "nonce-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, testWallet, created.WalletAddress)

	_, err = dir.Insert(ctx, core.Account{WalletAddress: testWallet})
	assert.ErrorIs(t, err, core.ErrAccountExists)

	found, err := dir.LookupByAddress(ctx, "0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.True(t, found.TermsAccepted)

	later := login.Add(time.Hour)
	updated, err := dir.Update(ctx, created.ID, core.AccountUpdate{LastLogin: later, SignatureNonce: "nonce-2"})
	require.NoError(t, err)
	assert.Equal(t, "nonce-2", updated.SignatureNonce)
	assert.True(t, later.Equal(updated.LastLogin))
	assert.Equal(t, "1.0", updated.TermsVersion)

	_, err = dir.Update(ctx, "missing", core.AccountUpdate{})
	assert.ErrorIs(t, err, core.ErrAccountNotFound)
}

func TestMemoryAccounts(t *testing.T) {
	testDirectorySemantics(t, NewMemoryAccounts())
}

func TestRedisAccounts(t *testing.T) {
	_, client := newTestRedis(t)
	testDirectorySemantics(t, NewRedisAccounts(client))
}

type countingDirectory struct {
	ports.AccountDirectory
	lookups int
}

func (c *countingDirectory) LookupByAddress(ctx context.Context, a core.Address) (core.Account, error) {
	c.lookups++
	return c.AccountDirectory.LookupByAddress(ctx, a)
}

func TestCachedDirectoryReadThrough(t *testing.T) {
	ctx := context.Background()
	backing := &countingDirectory{AccountDirectory: NewMemoryAccounts()}
	cache := NewCachedDirectory(backing, time.Minute)

	_, err := cache.LookupByAddress(ctx, testWallet)
	require.ErrorIs(t, err, core.ErrAccountNotFound)
	_, err = cache.LookupByAddress(ctx, testWallet)
	require.ErrorIs(t, err, core.ErrAccountNotFound)
	assert.Equal(t, 1, backing.lookups, "misses are cached")

	_, err = cache.Insert(ctx, core.Account{WalletAddress: testWallet})
	require.NoError(t, err)

	_, err = cache.LookupByAddress(ctx, testWallet)
	assert.ErrorIs(t, err, core.ErrAccountNotFound, "writes do not invalidate implicitly")

	cache.Invalidate(ctx, "0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	acct, err := cache.LookupByAddress(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, testWallet, acct.WalletAddress)
	assert.Equal(t, 2, backing.lookups)
}

func TestCachedDirectoryTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_760_000_000, 0)
	backing := &countingDirectory{AccountDirectory: NewMemoryAccounts()}
	cache := NewCachedDirectory(backing, time.Minute)
	cache.now = func() time.Time { return now }

	_, _ = cache.LookupByAddress(ctx, testWallet)
	now = now.Add(2 * time.Minute)
	_, _ = cache.LookupByAddress(ctx, testWallet)

	assert.Equal(t, 2, backing.lookups)
}

// gatedDirectory blocks lookups until release is closed.
type gatedDirectory struct {
	ports.AccountDirectory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedDirectory) LookupByAddress(ctx context.Context, a core.Address) (core.Account, error) {
	acct, err := g.AccountDirectory.LookupByAddress(ctx, a)
	g.entered <- struct{}{}
	<-g.release
	return acct, err
}

func TestCachedDirectoryDropsReadOverlappingInvalidate(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryAccounts()
	gated := &gatedDirectory{AccountDirectory: backing, entered: make(chan struct{}, 1), release: make(chan struct{})}
	cache := NewCachedDirectory(gated, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := cache.LookupByAddress(ctx, testWallet)
		done <- err
	}()
	<-gated.entered

	_, err := backing.Insert(ctx, core.Account{WalletAddress: testWallet})
	require.NoError(t, err)
	cache.Invalidate(ctx, testWallet)

	close(gated.release)
	require.ErrorIs(t, <-done, core.ErrAccountNotFound)

	gated.entered = make(chan struct{}, 1)
	acct, err := cache.LookupByAddress(ctx, testWallet)
	require.NoError(t, err)
	assert.Equal(t, testWallet, acct.WalletAddress)
}
