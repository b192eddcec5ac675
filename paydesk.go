// Package paydesk wires the wallet session and payment services behind the action set
// the operator UI uses.
package paydesk

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
	"github.com/layer-3/paydesk/service"
)

// Client is the action set exposed to UI collaborators
type Client interface {
	// State returns the authentication state tag
	State() core.State

	// Error returns the user-facing error, empty when none
	Error() string

	// Session returns a read-only copy of the held session
	Session() (core.Session, bool)

	// Balance returns a read-only balance snapshot
	Balance() service.BalanceView

	RequestSignature(ctx context.Context) error
	AcceptTerms(ctx context.Context) error
	DeclineTerms(ctx context.Context) error
	Disconnect(ctx context.Context) error
	RefreshBalance(ctx context.Context) error

	// SendPayment broadcasts a transfer; the outcome arrives through onSuccess or onError
	SendPayment(ctx context.Context, recipient string, amount decimal.Decimal, onSuccess func(core.Transaction), onError func(error)) (core.Transaction, error)

	// PaymentStatus reports isSending, isConfirming and isConfirmed of the latest payment
	PaymentStatus() service.PaymentStatus
}

// Dependencies are the external collaborators of an App
type Dependencies struct {
	Wallet   ports.Wallet
	Chain    ports.Chain
	Accounts ports.AccountDirectory

	// Verifier, when set, must accept every signature before the account lookup
	Verifier ports.SignatureVerifier
	Events   ports.EventPublisher
}

// Settings tune the services
type Settings struct {
	Network             string
	NativeSymbol        string
	TermsVersion        string
	SessionTTL          time.Duration
	ExpiryCheckInterval time.Duration
	SignatureTimeout    time.Duration
	BlockPollInterval   time.Duration
	SettleDelay         time.Duration
	ReceiptPollInterval time.Duration
	ConfirmationTimeout time.Duration
}

// App composes the services around one connected wallet
type App struct {
	Observer *service.WalletObserver
	Signer   *service.SignatureCoordinator
	Sessions *service.SessionManager
	Balances *service.BalanceCache
	Payments *service.TransactionTracker
}

var _ Client = (*App)(nil)

// New builds the services. Nothing runs until Init.
func New(deps Dependencies, s Settings, opts ...service.Option) *App {
	if deps.Events != nil {
		opts = append(opts, service.WithEvents(deps.Events))
	}

	signer := service.NewSignatureCoordinator(deps.Wallet, deps.Accounts, s.Network, s.SessionTTL, s.SignatureTimeout, opts...)
	if deps.Verifier != nil {
		signer.SetVerifier(deps.Verifier)
	}
	terms := service.NewTermsGate(deps.Accounts, s.TermsVersion, opts...)
	sessions := service.NewSessionManager(deps.Wallet, signer, terms, s.ExpiryCheckInterval, opts...)
	balances := service.NewBalanceCache(deps.Chain, s.BlockPollInterval, opts...)
	payments := service.NewTransactionTracker(deps.Wallet, deps.Chain, balances, service.TrackerConfig{
		Token:               s.NativeSymbol,
		SettleDelay:         s.SettleDelay,
		PollInterval:        s.ReceiptPollInterval,
		ConfirmationTimeout: s.ConfirmationTimeout,
	}, opts...)

	return &App{
		Observer: service.NewWalletObserver(deps.Wallet, sessions, balances),
		Signer:   signer,
		Sessions: sessions,
		Balances: balances,
		Payments: payments,
	}
}

// Init starts the expiry check and begins following the wallet
func (a *App) Init(ctx context.Context) {
	a.Sessions.Init(ctx)
	a.Observer.Start(ctx)
}

// Teardown stops every background task started by Init
func (a *App) Teardown() {
	a.Observer.Stop()
	a.Payments.Close()
	a.Balances.Close()
	a.Sessions.Teardown()
}

func (a *App) State() core.State { return a.Sessions.State() }

func (a *App) Error() string { return a.Sessions.Error() }

func (a *App) Session() (core.Session, bool) { return a.Sessions.Session() }

func (a *App) Balance() service.BalanceView { return a.Balances.View() }

func (a *App) RequestSignature(ctx context.Context) error { return a.Sessions.RequestSignature(ctx) }

func (a *App) AcceptTerms(ctx context.Context) error { return a.Sessions.AcceptTerms(ctx) }

func (a *App) DeclineTerms(ctx context.Context) error { return a.Sessions.DeclineTerms(ctx) }

func (a *App) Disconnect(ctx context.Context) error { return a.Sessions.Disconnect(ctx) }

func (a *App) RefreshBalance(ctx context.Context) error { return a.Balances.Refresh(ctx) }

// SendPayment requires an authenticated, unexpired session
func (a *App) SendPayment(ctx context.Context, recipient string, amount decimal.Decimal, onSuccess func(core.Transaction), onError func(error)) (core.Transaction, error) {
	if _, err := a.Sessions.AuthorizedSession(); err != nil {
		if onError != nil {
			onError(err)
		}
		return core.Transaction{}, err
	}
	return a.Payments.SendPayment(ctx, recipient, amount, onSuccess, onError)
}

func (a *App) PaymentStatus() service.PaymentStatus { return a.Payments.Status() }
