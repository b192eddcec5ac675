package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"github.com/layer-3/paydesk/core"
)

const transferGas = 21000

// TxBackend is what KeyWallet needs to submit transfers. *ethclient.Client satisfies it.
type TxBackend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// KeyWallet is a headless signer backed by a local secp256k1 key.
// It stands in for a browser wallet: connection changes are announced on a feed and
// SetReject makes it decline prompts the way a user would.
type KeyWallet struct {
	backend TxBackend
	chainID uint64
	feed    event.Feed

	mu        sync.Mutex
	key       *ecdsa.PrivateKey
	connected bool
	reject    bool
}

// NewKeyWallet creates a disconnected wallet for key on chainID
func NewKeyWallet(key *ecdsa.PrivateKey, chainID uint64, backend TxBackend) *KeyWallet {
	return &KeyWallet{key: key, chainID: chainID, backend: backend}
}

// Account returns the wallet address while connected
func (w *KeyWallet) Account() (core.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return "", false
	}
	return addressOf(w.key), true
}

// ChainID returns the configured chain
func (w *KeyWallet) ChainID() uint64 {
	return w.chainID
}

// Connect announces the wallet as connected
func (w *KeyWallet) Connect() {
	w.mu.Lock()
	if w.connected {
		w.mu.Unlock()
		return
	}
	w.connected = true
	addr := addressOf(w.key)
	w.mu.Unlock()

	w.feed.Send(core.ConnectionEvent{Kind: core.WalletConnected, Address: addr, ChainID: w.chainID})
}

// Disconnect announces the wallet as disconnected
func (w *KeyWallet) Disconnect(ctx context.Context) error {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return nil
	}
	w.connected = false
	w.mu.Unlock()

	w.feed.Send(core.ConnectionEvent{Kind: core.WalletDisconnected})
	return nil
}

// SwitchKey changes the active account, announcing the change when connected
func (w *KeyWallet) SwitchKey(key *ecdsa.PrivateKey) {
	w.mu.Lock()
	w.key = key
	connected := w.connected
	w.mu.Unlock()

	if connected {
		w.feed.Send(core.ConnectionEvent{Kind: core.WalletAccountChanged, Address: addressOf(key), ChainID: w.chainID})
	}
}

// SetReject makes subsequent prompts fail with core.ErrUserRejected
func (w *KeyWallet) SetReject(reject bool) {
	w.mu.Lock()
	w.reject = reject
	w.mu.Unlock()
}

// SignMessage personal_signs message with the wallet key
func (w *KeyWallet) SignMessage(ctx context.Context, message string) (string, error) {
	key, err := w.prompt()
	if err != nil {
		return "", err
	}
	return SignPersonal(key, message)
}

// SendValueTransfer signs a plain value transfer and submits it through the backend
func (w *KeyWallet) SendValueTransfer(ctx context.Context, to core.Address, value *big.Int) (common.Hash, error) {
	key, err := w.prompt()
	if err != nil {
		return common.Hash{}, err
	}
	if w.backend == nil {
		return common.Hash{}, fmt.Errorf("no transaction backend configured")
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := w.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := w.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	recipient := to.Common()
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &recipient,
		Value:    value,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(w.chainID))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	return signed.Hash(), nil
}

// SubscribeConnection delivers connection changes to ch
func (w *KeyWallet) SubscribeConnection(ch chan<- core.ConnectionEvent) event.Subscription {
	return w.feed.Subscribe(ch)
}

func (w *KeyWallet) prompt() (*ecdsa.PrivateKey, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil, core.ErrNoWalletConnected
	}
	if w.reject {
		return nil, core.ErrUserRejected
	}
	return w.key, nil
}

// SignPersonal produces an EIP-191 personal_sign signature with V in {27, 28}.
func SignPersonal(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func addressOf(key *ecdsa.PrivateKey) core.Address {
	return core.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey))
}
