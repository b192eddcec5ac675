package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// DefaultExpiryCheckInterval is how often an authenticated session is checked for expiry.
const DefaultExpiryCheckInterval = 60 * time.Second

// User-facing messages.
const (
	SessionExpiredMessage    = "Your session has expired. Please sign the message again."
	SignatureRejectedMessage = "Signature request was rejected in the wallet."
	SignatureTimeoutMessage  = "Signature request timed out."
	SignatureFailedMessage   = "Could not verify wallet ownership. Please reconnect and try again."
	AccountLookupMessage     = "Account service is unavailable. Please try again later."
	AccountCreationMessage   = "Could not create your account. Please try again."
)

// SessionSnapshot is a read-only view of the authentication state.
type SessionSnapshot struct {
	State   core.State    `json:"state"`
	Address core.Address  `json:"address,omitempty"`
	Error   string        `json:"error,omitempty"`
	Session *core.Session `json:"session,omitempty"`
}

// SessionManager owns the authentication state machine and the active session.
//
// Every wallet connect or disconnect starts a new epoch. Results of a signature or terms
// round trip are committed only if the epoch they started in is still current.
type SessionManager struct {
	wallet ports.Wallet
	signer *SignatureCoordinator
	terms  *TermsGate

	checkInterval time.Duration
	opts          options
	logger        zerolog.Logger

	mu      sync.Mutex
	state   core.State
	session *core.Session
	errMsg  string
	address core.Address
	epoch   uint64

	stop context.CancelFunc
	done chan struct{}
}

// NewSessionManager creates a manager in the disconnected state
func NewSessionManager(
	wallet ports.Wallet,
	signer *SignatureCoordinator,
	terms *TermsGate,
	checkInterval time.Duration,
	opts ...Option,
) *SessionManager {
	if checkInterval <= 0 {
		checkInterval = DefaultExpiryCheckInterval
	}
	return &SessionManager{
		wallet:        wallet,
		signer:        signer,
		terms:         terms,
		checkInterval: checkInterval,
		opts:          buildOptions(opts),
		logger:        componentLogger("session_manager"),
		state:         core.StateDisconnected,
	}
}

// Init starts the recurring expiry check. It runs until Teardown.
func (m *SessionManager) Init(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.stop, m.done = cancel, done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckExpiry(ctx)
			}
		}
	}()
}

// Teardown stops the expiry check and waits for it to exit.
func (m *SessionManager) Teardown() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-done
}

// State returns the current state tag
func (m *SessionManager) State() core.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Error returns the current user-facing error message, empty when none
func (m *SessionManager) Error() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Session returns a copy of the held session
func (m *SessionManager) Session() (core.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return core.Session{}, false
	}
	return *m.session, true
}

// Snapshot returns the state, address, error and session together
func (m *SessionManager) Snapshot() SessionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := SessionSnapshot{State: m.state, Address: m.address, Error: m.errMsg}
	if m.session != nil {
		s := *m.session
		snap.Session = &s
	}
	return snap
}

// AuthorizedSession returns the session only while it may be used for privileged actions.
// A session past its expiry is refused even before the periodic check downgrades it.
func (m *SessionManager) AuthorizedSession() (core.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != core.StateAuthenticated || m.session == nil {
		return core.Session{}, core.ErrNotAuthenticated
	}
	if m.session.Expired(m.opts.now()) {
		return core.Session{}, core.ErrSessionExpired
	}
	return *m.session, nil
}

// WalletConnected implements WalletListener.
func (m *SessionManager) WalletConnected(_ context.Context, address core.Address, chainID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.address == address && m.state != core.StateDisconnected {
		return
	}
	if !m.address.IsZero() && m.address != address {
		m.resetLocked()
	}
	m.epoch++
	m.address = address
	m.errMsg = ""

	if m.state == core.StateDisconnected && m.session == nil {
		m.applyLocked(core.EventWalletConnected)
	}
}

// WalletDisconnected implements WalletListener. The error message survives so the
// reason for a forced disconnect stays visible.
func (m *SessionManager) WalletDisconnected(ctx context.Context) {
	m.mu.Lock()
	prev, addr := m.state, m.address
	m.epoch++
	m.address = ""
	m.resetLocked()
	m.mu.Unlock()

	m.publishDisconnected(ctx, prev, addr)
}

// RequestSignature runs the challenge round trip for the connected wallet.
// A call made while another is outstanding is ignored.
func (m *SessionManager) RequestSignature(ctx context.Context) error {
	m.mu.Lock()
	addr, epoch, state := m.address, m.epoch, m.state
	m.mu.Unlock()

	if addr.IsZero() {
		return core.ErrNoWalletConnected
	}
	if state != core.StatePendingSignature {
		return fmt.Errorf("request signature in %s: %w", state, core.ErrInvalidTransition)
	}

	result, err := m.signer.Request(ctx, addr, func() bool { return m.current(epoch, addr) })
	switch {
	case errors.Is(err, core.ErrSignatureInFlight):
		m.logger.Debug().Str("address", addr.String()).Msg("signature already requested")
		return nil
	case errors.Is(err, core.ErrStaleResult):
		m.logger.Warn().Str("address", addr.String()).Msg("discarding signature for previous connection")
		return err
	case err != nil:
		m.fail(ctx, epoch, core.EventSignatureFailed, signatureMessage(err), err)
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch || m.address != addr {
		m.mu.Unlock()
		m.logger.Warn().Str("address", addr.String()).Msg("discarding signature for previous connection")
		return core.ErrStaleResult
	}
	if err := m.applyLocked(result.Event); err != nil {
		m.mu.Unlock()
		return err
	}
	session := result.Session
	m.session = &session
	m.errMsg = ""
	m.mu.Unlock()

	if result.Event == core.EventSignedKnownWallet {
		m.opts.publishAuth(ctx, m.logger, core.AuthEvent{
			Topic:     core.TopicAuthenticated,
			Address:   addr,
			UserID:    session.UserID,
			SessionID: session.ID,
		})
	}
	return nil
}

// AcceptTerms creates the account of a pending new wallet and authenticates it.
// A failed insert disconnects the wallet.
func (m *SessionManager) AcceptTerms(ctx context.Context) error {
	m.mu.Lock()
	if m.state != core.StatePendingTerms || m.session == nil || m.address.IsZero() {
		m.mu.Unlock()
		return core.ErrNoPendingSession
	}
	pending, epoch := *m.session, m.epoch
	m.mu.Unlock()

	account, err := m.terms.CreateAccount(ctx, pending)
	if err != nil {
		m.fail(ctx, epoch, core.EventWalletDisconnected, AccountCreationMessage, err)
		return err
	}

	m.mu.Lock()
	if m.epoch != epoch || m.session == nil || m.session.ID != pending.ID {
		m.mu.Unlock()
		m.logger.Warn().Str("address", pending.WalletAddress.String()).Msg("account created for a session that is no longer active")
		return core.ErrStaleResult
	}
	if err := m.applyLocked(core.EventTermsAccepted); err != nil {
		m.mu.Unlock()
		return err
	}
	m.session.UserID = account.ID
	session := *m.session
	m.errMsg = ""
	m.mu.Unlock()

	m.opts.publishAuth(ctx, m.logger, core.AuthEvent{
		Topic:     core.TopicAccountCreated,
		Address:   session.WalletAddress,
		UserID:    account.ID,
		SessionID: session.ID,
		IsNewUser: true,
	})
	m.opts.publishAuth(ctx, m.logger, core.AuthEvent{
		Topic:     core.TopicAuthenticated,
		Address:   session.WalletAddress,
		UserID:    account.ID,
		SessionID: session.ID,
		IsNewUser: true,
	})
	return nil
}

// DeclineTerms disconnects the wallet and resets to the initial state from any state.
func (m *SessionManager) DeclineTerms(ctx context.Context) error {
	m.mu.Lock()
	prev, addr := m.state, m.address
	m.applyLocked(core.EventTermsDeclined)
	m.epoch++
	m.address = ""
	m.session = nil
	m.errMsg = ConsentRequiredMessage
	m.mu.Unlock()

	m.publishDisconnected(ctx, prev, addr)
	m.disconnectWallet(ctx)
	return nil
}

// Disconnect drops the wallet connection and clears the session.
func (m *SessionManager) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	prev, addr := m.state, m.address
	m.epoch++
	m.address = ""
	m.resetLocked()
	m.errMsg = ""
	m.mu.Unlock()

	m.publishDisconnected(ctx, prev, addr)
	if err := m.wallet.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect wallet: %w", err)
	}
	return nil
}

// CheckExpiry downgrades an authenticated session whose expiry has passed.
// It reports whether a downgrade happened.
func (m *SessionManager) CheckExpiry(ctx context.Context) bool {
	m.mu.Lock()
	if m.state != core.StateAuthenticated || m.session == nil || !m.session.Expired(m.opts.now()) {
		m.mu.Unlock()
		return false
	}
	expired := *m.session
	m.applyLocked(core.EventSessionExpired)
	m.session = nil
	m.errMsg = SessionExpiredMessage
	m.mu.Unlock()

	m.logger.Info().Str("address", expired.WalletAddress.String()).Msg("session expired")
	m.opts.publishAuth(ctx, m.logger, core.AuthEvent{
		Topic:     core.TopicSessionExpired,
		Address:   expired.WalletAddress,
		UserID:    expired.UserID,
		SessionID: expired.ID,
	})
	return true
}

func (m *SessionManager) current(epoch uint64, addr core.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch == epoch && m.address == addr
}

// fail resets to disconnected and disconnects the wallet, unless the failed attempt
// belongs to a connection that is already gone.
func (m *SessionManager) fail(ctx context.Context, epoch uint64, ev core.Event, msg string, cause error) {
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.logger.Warn().Err(cause).Msg("ignoring failure from previous connection")
		return
	}
	prev, addr := m.state, m.address
	if err := m.applyLocked(ev); err != nil {
		m.applyLocked(core.EventWalletDisconnected)
	}
	m.epoch++
	m.address = ""
	m.session = nil
	m.errMsg = msg
	m.mu.Unlock()

	m.logger.Error().Err(cause).Str("address", addr.String()).Msg("authentication failed")
	m.publishDisconnected(ctx, prev, addr)
	m.disconnectWallet(ctx)
}

// publishDisconnected reports the end of a live connection. The wallet's echo of a
// disconnect we started finds the state already disconnected and publishes nothing.
func (m *SessionManager) publishDisconnected(ctx context.Context, prev core.State, addr core.Address) {
	if prev == core.StateDisconnected {
		return
	}
	m.opts.publishAuth(ctx, m.logger, core.AuthEvent{Topic: core.TopicDisconnected, Address: addr})
}

// disconnectWallet must be called without m.mu held: the wallet reports back through the observer.
func (m *SessionManager) disconnectWallet(ctx context.Context) {
	if err := m.wallet.Disconnect(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("failed to disconnect wallet")
	}
}

func (m *SessionManager) resetLocked() {
	if m.state != core.StateDisconnected {
		m.applyLocked(core.EventWalletDisconnected)
	}
	m.session = nil
}

func (m *SessionManager) applyLocked(ev core.Event) error {
	next, err := core.Transition(m.state, ev)
	if err != nil {
		m.logger.Warn().Err(err).Msg("transition refused")
		return err
	}
	if next != m.state {
		m.logger.Info().Str("from", m.state.String()).Str("to", next.String()).Str("event", ev.String()).Msg("state changed")
	}
	m.state = next
	return nil
}

func signatureMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrUserRejected):
		return SignatureRejectedMessage
	case errors.Is(err, core.ErrSignatureTimeout):
		return SignatureTimeoutMessage
	case errors.Is(err, core.ErrLookupFailed):
		return AccountLookupMessage
	default:
		return SignatureFailedMessage
	}
}
