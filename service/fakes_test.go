package service_test

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

const (
	newWallet   = core.Address("0x00000000000000000000000000000000000a11ce")
	knownWallet = core.Address("0x0000000000000000000000000000000000000b0b")
	payee       = "0x000000000000000000000000000000000000CAFE"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// funcWallet is a ports.Wallet whose prompts are supplied by the test.
type funcWallet struct {
	SignFn func(ctx context.Context, message string) (string, error)
	SendFn func(ctx context.Context, to core.Address, value *big.Int) (common.Hash, error)

	feed event.Feed

	mu          sync.Mutex
	address     core.Address
	messages    []string
	disconnects int
}

func (w *funcWallet) Account() (core.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.address, !w.address.IsZero()
}

func (w *funcWallet) ChainID() uint64 { return 11155111 }

func (w *funcWallet) SignMessage(ctx context.Context, message string) (string, error) {
	w.mu.Lock()
	w.messages = append(w.messages, message)
	w.mu.Unlock()
	if w.SignFn == nil {
		return "0x" + common.Bytes2Hex(make([]byte, 65)), nil
	}
	return w.SignFn(ctx, message)
}

func (w *funcWallet) SendValueTransfer(ctx context.Context, to core.Address, value *big.Int) (common.Hash, error) {
	return w.SendFn(ctx, to, value)
}

func (w *funcWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	w.disconnects++
	w.mu.Unlock()
	return nil
}

func (w *funcWallet) SubscribeConnection(ch chan<- core.ConnectionEvent) event.Subscription {
	return w.feed.Subscribe(ch)
}

func (w *funcWallet) Disconnects() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disconnects
}

func (w *funcWallet) Messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.messages...)
}

// funcChain is a ports.Chain driven by the test.
type funcChain struct {
	ReceiptFn    func(ctx context.Context, hash common.Hash) (*types.Receipt, error)
	SubscribeErr error

	mu           sync.Mutex
	balance      *big.Int
	balanceCalls int
	heads        chan<- *types.Header
}

var _ ports.Chain = (*funcChain)(nil)

func (c *funcChain) SetBalance(wei int64) {
	c.mu.Lock()
	c.balance = big.NewInt(wei)
	c.mu.Unlock()
}

func (c *funcChain) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balanceCalls++
	if c.balance == nil {
		return new(big.Int), nil
	}
	return new(big.Int).Set(c.balance), nil
}

func (c *funcChain) BalanceCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceCalls
}

func (c *funcChain) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if c.SubscribeErr != nil {
		return nil, c.SubscribeErr
	}
	c.mu.Lock()
	c.heads = ch
	c.mu.Unlock()
	return event.NewSubscription(func(quit <-chan struct{}) error {
		<-quit
		return nil
	}), nil
}

func (c *funcChain) Heads() chan<- *types.Header {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heads
}

func (c *funcChain) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if c.ReceiptFn == nil {
		return nil, ethereum.NotFound
	}
	return c.ReceiptFn(ctx, hash)
}

// faultyDirectory fails the operations whose error is set.
type faultyDirectory struct {
	ports.AccountDirectory
	LookupErr error
	InsertErr error
}

func (d *faultyDirectory) LookupByAddress(ctx context.Context, address core.Address) (core.Account, error) {
	if d.LookupErr != nil {
		return core.Account{}, d.LookupErr
	}
	return d.AccountDirectory.LookupByAddress(ctx, address)
}

func (d *faultyDirectory) Insert(ctx context.Context, account core.Account) (core.Account, error) {
	if d.InsertErr != nil {
		return core.Account{}, d.InsertErr
	}
	return d.AccountDirectory.Insert(ctx, account)
}

// countingRefresher records balance refreshes.
type countingRefresher struct {
	mu    sync.Mutex
	times []time.Time
	calls chan struct{}
}

func newCountingRefresher() *countingRefresher {
	return &countingRefresher{calls: make(chan struct{}, 8)}
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.times = append(r.times, time.Now())
	r.mu.Unlock()
	r.calls <- struct{}{}
	return nil
}

func (r *countingRefresher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.times)
}

func (r *countingRefresher) First() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.times[0]
}

// recordingPublisher keeps the topics of published events.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	auth   []core.AuthEvent
}

var _ ports.EventPublisher = (*recordingPublisher)(nil)

func (p *recordingPublisher) PublishAuth(_ context.Context, ev core.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, ev.Topic)
	p.auth = append(p.auth, ev)
	return nil
}

func (p *recordingPublisher) PublishPayment(_ context.Context, topic string, _ core.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return nil
}

func (p *recordingPublisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.topics...)
}

func (p *recordingPublisher) Auth() []core.AuthEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.AuthEvent(nil), p.auth...)
}
