package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// Tracker defaults.
const (
	DefaultSettleDelay         = 500 * time.Millisecond
	DefaultReceiptPollInterval = 2 * time.Second
)

// PaymentStatus is a read-only view of the tracked transfer.
type PaymentStatus struct {
	Transaction  *core.Transaction `json:"transaction,omitempty"`
	IsSending    bool              `json:"is_sending"`
	IsConfirming bool              `json:"is_confirming"`
	IsConfirmed  bool              `json:"is_confirmed"`
	Error        string            `json:"error,omitempty"`
}

// TrackerConfig tunes the confirmation watcher.
type TrackerConfig struct {
	Token               string        // Symbol recorded on transactions
	SettleDelay         time.Duration // Pause between confirmation and the balance refetch
	PollInterval        time.Duration // Receipt polling period
	ConfirmationTimeout time.Duration // Zero waits indefinitely
}

// TransactionTracker submits value transfers and follows them to confirmation.
// Only the latest payment is tracked; starting one abandons the watcher of the previous.
type TransactionTracker struct {
	wallet   ports.Wallet
	chain    ports.Chain
	balances BalanceRefresher
	cfg      TrackerConfig

	opts   options
	logger zerolog.Logger

	mu         sync.Mutex
	generation uint64
	current    *core.Transaction
	sending    bool
	confirming bool
	err        error
	stopWatch  context.CancelFunc
	closed     bool

	closing   chan struct{}
	closeOnce sync.Once
	watchers  sync.WaitGroup
}

// NewTransactionTracker creates a tracker. balances may be nil.
func NewTransactionTracker(wallet ports.Wallet, chain ports.Chain, balances BalanceRefresher, cfg TrackerConfig, opts ...Option) *TransactionTracker {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = DefaultSettleDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReceiptPollInterval
	}
	return &TransactionTracker{
		wallet:   wallet,
		chain:    chain,
		balances: balances,
		cfg:      cfg,
		opts:     buildOptions(opts),
		logger:   componentLogger("transaction_tracker"),
		closing:  make(chan struct{}),
	}
}

// Status returns the state of the latest payment
func (t *TransactionTracker) Status() PaymentStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := PaymentStatus{IsSending: t.sending, IsConfirming: t.confirming}
	if t.current != nil {
		tx := *t.current
		s.Transaction = &tx
		s.IsConfirmed = tx.Status == core.TxConfirmed
	}
	if t.err != nil {
		s.Error = t.err.Error()
	}
	return s
}

// SendPayment asks the wallet to transfer amount ether to recipient and returns once the
// transfer is broadcast. Confirmation is reported through onSuccess or onError, called at most once.
func (t *TransactionTracker) SendPayment(
	ctx context.Context,
	recipient string,
	amount decimal.Decimal,
	onSuccess func(core.Transaction),
	onError func(error),
) (core.Transaction, error) {
	if onSuccess == nil {
		onSuccess = func(core.Transaction) {}
	}
	if onError == nil {
		onError = func(error) {}
	}

	gen := t.reset()

	tx, value, err := t.prepare(recipient, amount)
	if err != nil {
		t.finish(gen, nil, err)
		onError(err)
		return core.Transaction{}, err
	}
	log := t.logger.With().Str("to", tx.Recipient.String()).Str("amount", amount.String()).Logger()

	hash, err := t.wallet.SendValueTransfer(ctx, tx.Recipient, value)
	if err != nil {
		if !errors.Is(err, core.ErrUserRejected) {
			err = fmt.Errorf("%w: %v", core.ErrTransactionBroadcastFailed, err)
		}
		log.Error().Err(err).Msg("payment not broadcast")
		t.finish(gen, nil, err)
		onError(err)
		return core.Transaction{}, err
	}

	now := t.opts.now()
	tx.Hash = hash
	tx.Status = core.TxBroadcast
	tx.SubmittedAt = now
	tx.UpdatedAt = now
	log = log.With().Str("hash", hash.Hex()).Logger()

	watchCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc
	if t.cfg.ConfirmationTimeout > 0 {
		watchCtx, cancel = context.WithTimeout(watchCtx, t.cfg.ConfirmationTimeout)
	} else {
		watchCtx, cancel = context.WithCancel(watchCtx)
	}

	t.mu.Lock()
	if t.generation != gen || t.closed {
		if t.closed {
			t.sending = false
		}
		t.mu.Unlock()
		cancel()
		log.Warn().Msg("payment superseded before broadcast completed, not tracking")
		return tx, nil
	}
	tracked := tx
	t.current = &tracked
	t.sending = false
	t.confirming = true
	t.stopWatch = cancel
	t.watchers.Add(1)
	t.mu.Unlock()

	log.Info().Msg("payment broadcast")
	t.opts.publishPayment(ctx, log, core.TopicPaymentBroadcast, tx)

	go func() {
		defer t.watchers.Done()
		t.watch(watchCtx, cancel, gen, tx, log, onSuccess, onError)
	}()
	return tx, nil
}

// Close abandons the tracked payment and waits for its watcher to exit.
// Payments broadcast afterwards are not tracked.
func (t *TransactionTracker) Close() {
	t.closeOnce.Do(func() { close(t.closing) })

	t.mu.Lock()
	t.closed = true
	if t.stopWatch != nil {
		t.stopWatch()
		t.stopWatch = nil
	}
	t.generation++
	t.sending = false
	t.confirming = false
	t.mu.Unlock()

	t.watchers.Wait()
}

func (t *TransactionTracker) prepare(recipient string, amount decimal.Decimal) (core.Transaction, *big.Int, error) {
	to, err := core.ParseAddress(recipient)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	value, err := core.EtherToWei(amount)
	if err != nil {
		return core.Transaction{}, nil, err
	}
	from, ok := t.wallet.Account()
	if !ok {
		return core.Transaction{}, nil, core.ErrNoWalletConnected
	}
	return core.Transaction{
		From:      from,
		Recipient: to,
		Amount:    amount,
		Token:     t.cfg.Token,
	}, value, nil
}

// reset abandons any tracked payment and marks a new one as sending.
func (t *TransactionTracker) reset() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopWatch != nil {
		t.stopWatch()
		t.stopWatch = nil
	}
	t.generation++
	t.current = nil
	t.err = nil
	t.sending = true
	t.confirming = false
	return t.generation
}

// finish records the terminal outcome of payment gen, if it is still the tracked one.
func (t *TransactionTracker) finish(gen uint64, tx *core.Transaction, err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.generation != gen {
		return false
	}
	if tx != nil {
		cp := *tx
		t.current = &cp
	}
	t.err = err
	t.sending = false
	t.confirming = false
	t.stopWatch = nil
	return true
}

func (t *TransactionTracker) watch(
	ctx context.Context,
	cancel context.CancelFunc,
	gen uint64,
	tx core.Transaction,
	log zerolog.Logger,
	onSuccess func(core.Transaction),
	onError func(error),
) {
	defer cancel()

	receipt, err := t.awaitReceipt(ctx, tx.Hash, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Debug().Msg("confirmation watch abandoned")
			return
		}
		err = fmt.Errorf("%w: %v", core.ErrTransactionConfirmationFailed, err)
		t.fail(ctx, gen, tx, err, log, onError)
		return
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		t.fail(ctx, gen, tx, fmt.Errorf("%w: reverted in block %s", core.ErrTransactionConfirmationFailed, receipt.BlockNumber), log, onError)
		return
	}

	if err := tx.Advance(core.TxConfirmed, t.opts.now()); err != nil {
		log.Error().Err(err).Msg("unexpected transaction status")
		return
	}
	if receipt.BlockNumber != nil {
		tx.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if !t.finish(gen, &tx, nil) {
		log.Info().Msg("superseded payment confirmed")
		return
	}

	log.Info().Uint64("block", tx.BlockNumber).Msg("payment confirmed")
	t.opts.publishPayment(ctx, log, core.TopicPaymentConfirmed, tx)
	onSuccess(tx)

	if t.balances == nil {
		return
	}
	timer := time.NewTimer(t.cfg.SettleDelay)
	defer timer.Stop()
	select {
	case <-t.closing:
		log.Debug().Msg("tracker closed before balance refresh")
		return
	case <-timer.C:
	}
	if err := t.balances.Refresh(context.WithoutCancel(ctx)); err != nil {
		log.Warn().Err(err).Msg("balance refresh after confirmation failed")
	}
}

func (t *TransactionTracker) awaitReceipt(ctx context.Context, hash common.Hash, log zerolog.Logger) (*types.Receipt, error) {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		receipt, err := t.chain.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			return receipt, nil
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case !errors.Is(err, ethereum.NotFound):
			log.Debug().Err(err).Msg("receipt lookup failed")
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *TransactionTracker) fail(ctx context.Context, gen uint64, tx core.Transaction, err error, log zerolog.Logger, onError func(error)) {
	if advErr := tx.Advance(core.TxFailed, t.opts.now()); advErr != nil {
		log.Error().Err(advErr).Msg("unexpected transaction status")
	}
	if !t.finish(gen, &tx, err) {
		return
	}
	log.Error().Err(err).Msg("payment failed")
	t.opts.publishPayment(context.WithoutCancel(ctx), log, core.TopicPaymentFailed, tx)
	onError(err)
}
