package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// DefaultBlockPollInterval is used when the chain cannot push new heads.
const DefaultBlockPollInterval = 12 * time.Second

// BalanceView is a read-only view of the cache.
type BalanceView struct {
	Balance *core.Balance // nil until the first successful read
	Loading bool
	Error   string
	AsOf    time.Time // zero while inactive
	Active  bool      // a wallet is connected
}

// BalanceRefresher refetches a balance on demand.
type BalanceRefresher interface {
	Refresh(ctx context.Context) error
}

// BalanceCache holds the latest balance of the connected address.
// It refetches on every new block while a wallet is connected.
type BalanceCache struct {
	chain        ports.Chain
	pollInterval time.Duration
	opts         options
	logger       zerolog.Logger

	mu      sync.Mutex
	address core.Address
	active  bool
	loading int
	err     error
	balance *core.Balance

	stopWatch context.CancelFunc
	watchDone chan struct{}
}

// NewBalanceCache creates an inactive cache
func NewBalanceCache(chain ports.Chain, pollInterval time.Duration, opts ...Option) *BalanceCache {
	if pollInterval <= 0 {
		pollInterval = DefaultBlockPollInterval
	}
	return &BalanceCache{
		chain:        chain,
		pollInterval: pollInterval,
		opts:         buildOptions(opts),
		logger:       componentLogger("balance_cache"),
	}
}

// View returns the current snapshot
func (c *BalanceCache) View() BalanceView {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := BalanceView{Loading: c.loading > 0, Active: c.active}
	if c.err != nil {
		v.Error = c.err.Error()
	}
	if c.balance != nil {
		b := c.balance.Clone()
		v.Balance = &b
		v.AsOf = b.AsOf
	}
	return v
}

// Refresh reads the balance of the connected address and replaces the snapshot.
// Concurrent refreshes are allowed; the last read to complete wins.
func (c *BalanceCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return core.ErrNoWalletConnected
	}
	addr := c.address
	c.loading++
	c.mu.Unlock()

	wei, err := c.chain.BalanceAt(ctx, addr.Common(), nil)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading--
	if !c.active || c.address != addr {
		return core.ErrStaleResult
	}
	if err != nil {
		c.err = err
		return fmt.Errorf("failed to fetch balance: %w", err)
	}
	c.err = nil
	c.balance = &core.Balance{Address: addr, Wei: wei, AsOf: c.opts.now()}
	return nil
}

// WalletConnected implements WalletListener.
func (c *BalanceCache) WalletConnected(ctx context.Context, address core.Address, chainID uint64) {
	c.mu.Lock()
	if c.active && c.address == address {
		c.mu.Unlock()
		return
	}
	stop, done := c.detachLocked()
	c.address = address
	c.active = true
	watchCtx, cancel := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	c.stopWatch, c.watchDone = cancel, watchDone
	c.mu.Unlock()

	wait(stop, done)
	go c.watch(watchCtx, address, watchDone)
}

// WalletDisconnected implements WalletListener. The cache reports inactive rather than stale.
func (c *BalanceCache) WalletDisconnected(ctx context.Context) {
	c.Close()
}

// Close stops block watching and clears the snapshot.
func (c *BalanceCache) Close() {
	c.mu.Lock()
	stop, done := c.detachLocked()
	c.mu.Unlock()
	wait(stop, done)
}

func (c *BalanceCache) detachLocked() (context.CancelFunc, chan struct{}) {
	stop, done := c.stopWatch, c.watchDone
	c.stopWatch, c.watchDone = nil, nil
	c.address = ""
	c.active = false
	c.balance = nil
	c.err = nil
	return stop, done
}

func wait(stop context.CancelFunc, done chan struct{}) {
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (c *BalanceCache) watch(ctx context.Context, addr core.Address, done chan struct{}) {
	defer close(done)
	log := c.logger.With().Str("address", addr.String()).Logger()

	c.refresh(ctx, log)

	heads := make(chan *types.Header, connectionBuffer)
	sub, err := c.chain.SubscribeNewHead(ctx, heads)
	if err != nil {
		log.Warn().Err(err).Dur("interval", c.pollInterval).Msg("new head subscription unavailable, polling")
		c.poll(ctx, log)
		return
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-sub.Err():
			log.Warn().Err(err).Dur("interval", c.pollInterval).Msg("new head subscription dropped, polling")
			c.poll(ctx, log)
			return
		case head := <-heads:
			log.Debug().Str("block", head.Number.String()).Msg("new block")
			c.refresh(ctx, log)
		}
	}
}

func (c *BalanceCache) poll(ctx context.Context, log zerolog.Logger) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.refresh(ctx, log)
		}
	}
}

func (c *BalanceCache) refresh(ctx context.Context, log zerolog.Logger) {
	if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("balance refresh failed")
	}
}
