package core

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Balance is a point-in-time read of an address balance. It is replaced wholesale, never patched.
type Balance struct {
	Address Address
	Wei     *big.Int
	AsOf    time.Time
}

// Ether returns the balance in ether units.
func (b Balance) Ether() decimal.Decimal {
	return WeiToEther(b.Wei)
}

// Clone returns a deep copy safe to hand to readers.
func (b Balance) Clone() Balance {
	if b.Wei != nil {
		b.Wei = new(big.Int).Set(b.Wei)
	}
	return b
}
