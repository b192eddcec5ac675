package service_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/service"
)

func TestBalanceCacheFollowsBlocks(t *testing.T) {
	ctx := context.Background()
	chain := &funcChain{}
	chain.SetBalance(1_000)
	clk := newClock()
	cache := service.NewBalanceCache(chain, time.Hour, service.WithClock(clk.Now))
	defer cache.Close()

	assert.False(t, cache.View().Active)
	require.ErrorIs(t, cache.Refresh(ctx), core.ErrNoWalletConnected)

	cache.WalletConnected(ctx, knownWallet, 1)
	require.Eventually(t, func() bool { return cache.View().Balance != nil }, time.Second, time.Millisecond)

	view := cache.View()
	assert.True(t, view.Active)
	assert.Equal(t, big.NewInt(1_000), view.Balance.Wei)
	assert.Equal(t, knownWallet, view.Balance.Address)
	assert.Equal(t, clk.Now(), view.AsOf)

	require.Eventually(t, func() bool { return chain.Heads() != nil }, time.Second, time.Millisecond)
	chain.SetBalance(2_500)
	chain.Heads() <- &types.Header{Number: big.NewInt(42)}
	require.Eventually(t, func() bool {
		v := cache.View()
		return v.Balance != nil && v.Balance.Wei.Cmp(big.NewInt(2_500)) == 0
	}, time.Second, time.Millisecond)
}

func TestBalanceCacheInactiveAfterDisconnect(t *testing.T) {
	ctx := context.Background()
	chain := &funcChain{}
	chain.SetBalance(7)
	cache := service.NewBalanceCache(chain, time.Hour)

	cache.WalletConnected(ctx, knownWallet, 1)
	require.Eventually(t, func() bool { return cache.View().Balance != nil }, time.Second, time.Millisecond)

	cache.WalletDisconnected(ctx)
	view := cache.View()
	assert.False(t, view.Active)
	assert.Nil(t, view.Balance)
	assert.True(t, view.AsOf.IsZero())
	require.ErrorIs(t, cache.Refresh(ctx), core.ErrNoWalletConnected)
}

func TestBalanceCachePollsWithoutSubscription(t *testing.T) {
	ctx := context.Background()
	chain := &funcChain{SubscribeErr: errors.New("notifications not supported")}
	cache := service.NewBalanceCache(chain, 5*time.Millisecond)
	defer cache.Close()

	cache.WalletConnected(ctx, knownWallet, 1)
	require.Eventually(t, func() bool { return chain.BalanceCalls() >= 3 }, time.Second, time.Millisecond)
}

func TestBalanceCacheRefreshOnDemand(t *testing.T) {
	ctx := context.Background()
	chain := &funcChain{}
	cache := service.NewBalanceCache(chain, time.Hour)
	defer cache.Close()

	cache.WalletConnected(ctx, knownWallet, 1)
	require.Eventually(t, func() bool { return cache.View().Balance != nil }, time.Second, time.Millisecond)

	chain.SetBalance(99)
	require.NoError(t, cache.Refresh(ctx))
	assert.Equal(t, big.NewInt(99), cache.View().Balance.Wei)
}
