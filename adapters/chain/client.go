package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/layer-3/paydesk/adapters/wallet"
	"github.com/layer-3/paydesk/ports"
)

var (
	_ ports.Chain      = (*ethclient.Client)(nil)
	_ wallet.TxBackend = (*ethclient.Client)(nil)
)

// Dial connects to the node RPC at endpoint. Use a ws:// endpoint to get push block notifications.
func Dial(ctx context.Context, endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	client, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", trimmed, err)
	}
	return client, nil
}
