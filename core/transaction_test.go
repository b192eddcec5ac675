package core_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/core"
)

func TestTransactionStatusMonotonic(t *testing.T) {
	now := time.Unix(1_760_000_000, 0)
	tx := core.Transaction{Status: core.TxBroadcast}

	require.NoError(t, tx.Advance(core.TxConfirmed, now))
	assert.Equal(t, core.TxConfirmed, tx.Status)

	err := tx.Advance(core.TxBroadcast, now)
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)
	err = tx.Advance(core.TxFailed, now)
	assert.ErrorIs(t, err, core.ErrInvalidStatusTransition)
	assert.Equal(t, core.TxConfirmed, tx.Status)
}

func TestEtherToWei(t *testing.T) {
	wei, err := core.EtherToWei(decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", wei.String())

	_, err = core.EtherToWei(decimal.Zero)
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = core.EtherToWei(decimal.RequireFromString("-1"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
	_, err = core.EtherToWei(decimal.RequireFromString("0.0000000000000000001"))
	assert.ErrorIs(t, err, core.ErrInvalidAmount)
}

func TestWeiToEther(t *testing.T) {
	assert.True(t, decimal.RequireFromString("2.25").Equal(core.WeiToEther(big.NewInt(2_250_000_000_000_000_000))))
	assert.True(t, core.WeiToEther(nil).IsZero())
}

func TestBalanceClone(t *testing.T) {
	b := core.Balance{Wei: big.NewInt(10)}
	c := b.Clone()
	c.Wei.SetInt64(99)
	assert.Equal(t, int64(10), b.Wei.Int64())
}
