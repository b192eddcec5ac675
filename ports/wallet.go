package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/layer-3/paydesk/core"
)

// Wallet is the external signing agent the operator connects.
// SignMessage and SendValueTransfer block on user interaction for an unbounded time;
// a user decline is reported as an error wrapping core.ErrUserRejected.
type Wallet interface {
	// Account returns the connected address, if any
	Account() (core.Address, bool)

	// ChainID returns the chain the wallet is connected to
	ChainID() uint64

	// SignMessage asks the user to personal_sign message and returns the 0x-hex signature
	SignMessage(ctx context.Context, message string) (string, error)

	// SendValueTransfer asks the user to send value wei to recipient and returns the broadcast hash
	SendValueTransfer(ctx context.Context, to core.Address, value *big.Int) (common.Hash, error)

	// Disconnect drops the wallet connection
	Disconnect(ctx context.Context) error

	// SubscribeConnection delivers connect, disconnect, account and chain changes
	SubscribeConnection(ch chan<- core.ConnectionEvent) event.Subscription
}
