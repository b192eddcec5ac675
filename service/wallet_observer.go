package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

const connectionBuffer = 16

// WalletListener reacts to connection changes surfaced by WalletObserver.
// Calls are made from a single goroutine, in order.
type WalletListener interface {
	WalletConnected(ctx context.Context, address core.Address, chainID uint64)
	WalletDisconnected(ctx context.Context)
}

// WalletObserver turns the wallet's connection feed into connect/disconnect notifications.
// An account switch is delivered as a disconnect followed by a connect.
type WalletObserver struct {
	wallet    ports.Wallet
	listeners []WalletListener
	logger    zerolog.Logger

	mu        sync.Mutex
	address   core.Address
	chainID   uint64
	connected bool

	stop context.CancelFunc
	done chan struct{}
}

// NewWalletObserver creates an observer notifying listeners in the given order
func NewWalletObserver(wallet ports.Wallet, listeners ...WalletListener) *WalletObserver {
	return &WalletObserver{
		wallet:    wallet,
		listeners: listeners,
		logger:    componentLogger("wallet_observer"),
	}
}

// Start subscribes to the wallet and replays the current connection, if any.
func (o *WalletObserver) Start(ctx context.Context) {
	o.mu.Lock()
	if o.stop != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	o.stop, o.done = cancel, done
	o.mu.Unlock()

	// Listeners may call back into the wallet while its feed is still sending.
	ch := make(chan core.ConnectionEvent, connectionBuffer)
	sub := o.wallet.SubscribeConnection(ch)

	if addr, ok := o.wallet.Account(); ok {
		o.Handle(ctx, core.ConnectionEvent{Kind: core.WalletConnected, Address: addr, ChainID: o.wallet.ChainID()})
	}

	go func() {
		defer close(done)
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-ch:
				o.Handle(ctx, ev)
			case err := <-sub.Err():
				if err != nil {
					o.logger.Error().Err(err).Msg("wallet subscription failed")
				}
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the subscription and waits for the delivery loop to exit.
func (o *WalletObserver) Stop() {
	o.mu.Lock()
	stop, done := o.stop, o.done
	o.stop, o.done = nil, nil
	o.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// Current returns the observed address and chain.
func (o *WalletObserver) Current() (core.Address, uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.address, o.chainID, o.connected
}

// Handle applies a single connection event.
func (o *WalletObserver) Handle(ctx context.Context, ev core.ConnectionEvent) {
	addr := core.NormalizeAddress(string(ev.Address))

	o.mu.Lock()
	wasConnected, prev := o.connected, o.address
	switch ev.Kind {
	case core.WalletConnected, core.WalletAccountChanged:
		if addr.IsZero() {
			o.connected, o.address = false, ""
		} else {
			o.connected, o.address = true, addr
		}
		if ev.ChainID != 0 {
			o.chainID = ev.ChainID
		}
	case core.WalletDisconnected:
		o.connected, o.address = false, ""
	case core.WalletChainChanged:
		o.chainID = ev.ChainID
	}
	connected, chainID := o.connected, o.chainID
	o.mu.Unlock()

	if ev.Kind == core.WalletChainChanged {
		o.logger.Info().Uint64("chain_id", chainID).Msg("wallet chain changed")
		return
	}

	if wasConnected && (!connected || prev != addr) {
		o.logger.Info().Str("address", prev.String()).Msg("wallet disconnected")
		for _, l := range o.listeners {
			l.WalletDisconnected(ctx)
		}
	}
	if connected && (!wasConnected || prev != addr) {
		o.logger.Info().Str("address", addr.String()).Uint64("chain_id", chainID).Msg("wallet connected")
		for _, l := range o.listeners {
			l.WalletConnected(ctx, addr, chainID)
		}
	}
}
