package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// SignatureResult is the outcome of a successful signature request.
type SignatureResult struct {
	Session core.Session
	Event   core.Event // EventSignedNewWallet or EventSignedKnownWallet
}

// SignatureCoordinator composes the challenge, prompts the wallet and classifies the signer.
// Only one request is outstanding at a time.
type SignatureCoordinator struct {
	wallet      ports.Wallet
	accounts    ports.AccountDirectory
	invalidator ports.AccountInvalidator
	verifier    ports.SignatureVerifier

	network    string
	sessionTTL time.Duration
	timeout    time.Duration

	opts   options
	logger zerolog.Logger

	mu           sync.Mutex
	loading      bool
	pendingNonce string
}

// NewSignatureCoordinator creates a coordinator. A zero timeout waits for the wallet indefinitely.
func NewSignatureCoordinator(
	wallet ports.Wallet,
	accounts ports.AccountDirectory,
	network string,
	sessionTTL time.Duration,
	timeout time.Duration,
	opts ...Option,
) *SignatureCoordinator {
	c := &SignatureCoordinator{
		wallet:     wallet,
		accounts:   accounts,
		network:    network,
		sessionTTL: sessionTTL,
		timeout:    timeout,
		opts:       buildOptions(opts),
		logger:     componentLogger("signature_coordinator"),
	}
	if inv, ok := accounts.(ports.AccountInvalidator); ok {
		c.invalidator = inv
	}
	return c
}

// SetVerifier makes every signature pass v before the account lookup.
func (c *SignatureCoordinator) SetVerifier(v ports.SignatureVerifier) {
	c.verifier = v
}

// Loading reports whether a request is outstanding.
func (c *SignatureCoordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// PendingNonce returns the nonce of the outstanding challenge.
func (c *SignatureCoordinator) PendingNonce() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingNonce, c.loading
}

// Request asks the wallet to sign a fresh challenge for address.
// stillCurrent is consulted after every suspension; once it reports false the result is dropped
// with core.ErrStaleResult and nothing is written.
func (c *SignatureCoordinator) Request(ctx context.Context, address core.Address, stillCurrent func() bool) (SignatureResult, error) {
	if address.IsZero() {
		return SignatureResult{}, core.ErrNoWalletConnected
	}

	nonce, err := core.NewNonce()
	if err != nil {
		return SignatureResult{}, err
	}
	if !c.acquire(nonce) {
		return SignatureResult{}, core.ErrSignatureInFlight
	}
	defer c.release()

	if stillCurrent == nil {
		stillCurrent = func() bool { return true }
	}

	challenge := core.Challenge{
		Address:  address,
		Network:  c.network,
		Nonce:    nonce,
		IssuedAt: c.opts.now().UTC().Truncate(time.Second),
	}

	signature, err := c.sign(ctx, challenge)
	if err != nil {
		return SignatureResult{}, err
	}
	if !stillCurrent() {
		return SignatureResult{}, core.ErrStaleResult
	}

	var verification core.Verification
	if c.verifier != nil {
		verification, err = c.verify(ctx, challenge, signature)
		if err != nil {
			return SignatureResult{}, err
		}
	}

	account, err := c.accounts.LookupByAddress(ctx, address)
	known := true
	switch {
	case errors.Is(err, core.ErrAccountNotFound):
		known = false
	case err != nil:
		return SignatureResult{}, fmt.Errorf("%w: %v", core.ErrLookupFailed, err)
	}
	if !stillCurrent() {
		return SignatureResult{}, core.ErrStaleResult
	}

	now := c.opts.now()
	session := core.Session{
		ID:            uuid.New().String(),
		WalletAddress: address,
		Nonce:         nonce,
		IssuedAt:      now,
		ExpiresAt:     now.Add(c.sessionTTL),
		IsNewUser:     !known,
		Token:         verification.Token,
	}

	if !known {
		c.logger.Info().Str("address", address.String()).Msg("no account for wallet, terms required")
		return SignatureResult{Session: session, Event: core.EventSignedNewWallet}, nil
	}

	if _, err := c.accounts.Update(ctx, account.ID, core.AccountUpdate{LastLogin: now, SignatureNonce: nonce}); err != nil {
		return SignatureResult{}, fmt.Errorf("%w: update login: %v", core.ErrLookupFailed, err)
	}
	if c.invalidator != nil {
		c.invalidator.Invalidate(ctx, address)
	}

	session.UserID = account.ID
	c.logger.Info().Str("address", address.String()).Str("user_id", account.ID).Msg("returning wallet signed in")
	return SignatureResult{Session: session, Event: core.EventSignedKnownWallet}, nil
}

func (c *SignatureCoordinator) sign(ctx context.Context, challenge core.Challenge) (string, error) {
	signCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		signCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	signature, err := c.wallet.SignMessage(signCtx, challenge.Message())
	switch {
	case err == nil:
		return signature, nil
	case errors.Is(err, core.ErrUserRejected):
		return "", fmt.Errorf("signature declined: %w", err)
	case errors.Is(signCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return "", core.ErrSignatureTimeout
	default:
		return "", fmt.Errorf("signature request failed: %w", err)
	}
}

func (c *SignatureCoordinator) verify(ctx context.Context, challenge core.Challenge, signature string) (core.Verification, error) {
	v, err := c.verifier.Verify(ctx, challenge, signature)
	if err != nil {
		if errors.Is(err, core.ErrInvalidSignature) || errors.Is(err, core.ErrVerificationUnavailable) {
			return core.Verification{}, err
		}
		return core.Verification{}, fmt.Errorf("%w: %v", core.ErrVerificationUnavailable, err)
	}
	if !v.Valid || !v.Address.Equal(challenge.Address) {
		return core.Verification{}, core.ErrInvalidSignature
	}
	return v, nil
}

func (c *SignatureCoordinator) acquire(nonce string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return false
	}
	c.loading = true
	c.pendingNonce = nonce
	return true
}

func (c *SignatureCoordinator) release() {
	c.mu.Lock()
	c.loading = false
	c.pendingNonce = ""
	c.mu.Unlock()
}
