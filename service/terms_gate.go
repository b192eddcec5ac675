package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// ConsentRequiredMessage is shown when the operator declines the terms of service.
const ConsentRequiredMessage = "You must accept the terms of service to use Paydesk. Consent is mandatory."

// TermsGate persists the account record of a first-time wallet once consent is given.
type TermsGate struct {
	accounts    ports.AccountDirectory
	invalidator ports.AccountInvalidator
	version     string

	opts   options
	logger zerolog.Logger
}

// NewTermsGate creates a gate recording consent to the given terms version
func NewTermsGate(accounts ports.AccountDirectory, version string, opts ...Option) *TermsGate {
	g := &TermsGate{
		accounts: accounts,
		version:  version,
		opts:     buildOptions(opts),
		logger:   componentLogger("terms_gate"),
	}
	if inv, ok := accounts.(ports.AccountInvalidator); ok {
		g.invalidator = inv
	}
	return g
}

// Version returns the terms version recorded on new accounts
func (g *TermsGate) Version() string {
	return g.version
}

// CreateAccount inserts the record for the wallet of a pending session.
// Errors wrap core.ErrAccountCreationFailed.
func (g *TermsGate) CreateAccount(ctx context.Context, session core.Session) (core.Account, error) {
	if session.WalletAddress.IsZero() {
		return core.Account{}, fmt.Errorf("%w: %v", core.ErrAccountCreationFailed, core.ErrNoWalletConnected)
	}

	now := g.opts.now()
	account, err := g.accounts.Insert(ctx, core.Account{
		WalletAddress:  session.WalletAddress,
		TermsAccepted:  true,
		TermsVersion:   g.version,
		LastLogin:      now,
		SignatureNonce: session.Nonce,
	})
	if errors.Is(err, core.ErrAccountExists) {
		// Created concurrently by another session of the same wallet.
		account, err = g.accounts.LookupByAddress(ctx, session.WalletAddress)
	}
	if g.invalidator != nil {
		g.invalidator.Invalidate(ctx, session.WalletAddress)
	}
	if err != nil {
		g.logger.Error().Err(err).Str("address", session.WalletAddress.String()).Msg("failed to create account")
		return core.Account{}, fmt.Errorf("%w: %v", core.ErrAccountCreationFailed, err)
	}

	g.logger.Info().
		Str("address", account.WalletAddress.String()).
		Str("user_id", account.ID).
		Str("terms_version", account.TermsVersion).
		Msg("account created")
	return account, nil
}
