package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// EtherDecimals is the number of decimals of the native token.
const EtherDecimals = 18

// TxStatus is the lifecycle position of a submitted transfer.
type TxStatus string

const (
	TxBroadcast TxStatus = "broadcast"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// Final reports whether no further status change is allowed.
func (s TxStatus) Final() bool {
	return s == TxConfirmed || s == TxFailed
}

// CanAdvance reports whether moving from s to next keeps the status monotonic.
func (s TxStatus) CanAdvance(next TxStatus) bool {
	switch s {
	case TxBroadcast:
		return next == TxConfirmed || next == TxFailed
	case TxConfirmed, TxFailed:
		return false
	default:
		return next == TxBroadcast
	}
}

// Transaction records a value transfer issued through the wallet.
type Transaction struct {
	Hash        common.Hash     `json:"hash"`
	From        Address         `json:"from"`
	Recipient   Address         `json:"recipient"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	Status      TxStatus        `json:"status"`
	BlockNumber uint64          `json:"block_number,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Advance moves the transaction to next, refusing non-monotonic changes.
func (t *Transaction) Advance(next TxStatus, at time.Time) error {
	if !t.Status.CanAdvance(next) {
		return fmt.Errorf("%s -> %s: %w", t.Status, next, ErrInvalidStatusTransition)
	}
	t.Status = next
	t.UpdatedAt = at
	return nil
}

// EtherToWei converts a positive ether amount into wei. Amounts finer than one wei are rejected.
func EtherToWei(amount decimal.Decimal) (*big.Int, error) {
	if amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	wei := amount.Shift(EtherDecimals)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("more than %d decimals: %w", EtherDecimals, ErrInvalidAmount)
	}
	return wei.BigInt(), nil
}

// WeiToEther converts wei into an ether-denominated decimal.
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -EtherDecimals)
}
