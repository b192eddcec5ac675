package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/ports"
)

// Tolerated clock drift between the signing browser and this server.
const challengeClockSkew = time.Minute

// VerificationService checks signed challenges and issues session tokens
type VerificationService struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	verifier  ports.SignatureVerifier

	network      string
	challengeTTL time.Duration
	sessionTTL   time.Duration

	opts   options
	logger zerolog.Logger
}

// NewVerificationService creates a new verification service
func NewVerificationService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	verifier ports.SignatureVerifier,
	network string,
	challengeTTL time.Duration,
	sessionTTL time.Duration,
	opts ...Option,
) *VerificationService {
	return &VerificationService{
		tokenizer:    tokenizer,
		store:        store,
		verifier:     verifier,
		network:      network,
		challengeTTL: challengeTTL,
		sessionTTL:   sessionTTL,
		opts:         buildOptions(opts),
		logger:       componentLogger("verification"),
	}
}

// Verify checks that signature over message was produced by address and issues a session token.
// Each challenge nonce is accepted once.
func (s *VerificationService) Verify(ctx context.Context, address, message, signature string) (core.Verification, error) {
	addr, err := core.ParseAddress(address)
	if err != nil {
		return core.Verification{}, err
	}

	challenge, err := core.ParseChallenge(message)
	if err != nil {
		return core.Verification{}, err
	}
	if challenge.Message() != message {
		return core.Verification{}, fmt.Errorf("challenge not in canonical form: %w", core.ErrInvalidChallenge)
	}
	if !challenge.Address.Equal(addr) {
		return core.Verification{}, fmt.Errorf("challenge issued for another address: %w", core.ErrInvalidChallenge)
	}
	if challenge.Network != s.network {
		return core.Verification{}, fmt.Errorf("challenge issued for network %q: %w", challenge.Network, core.ErrInvalidChallenge)
	}

	now := s.opts.now()
	if challenge.IssuedAt.After(now.Add(challengeClockSkew)) || now.Sub(challenge.IssuedAt) > s.challengeTTL {
		return core.Verification{}, fmt.Errorf("challenge expired: %w", core.ErrInvalidChallenge)
	}

	// Verify the signature before burning the nonce
	result, err := s.verifier.Verify(ctx, challenge, signature)
	if err != nil {
		return core.Verification{}, err
	}
	if !result.Valid {
		return core.Verification{}, core.ErrInvalidSignature
	}

	if err := s.store.ConsumeNonce(ctx, challenge.Nonce, s.challengeTTL+challengeClockSkew); err != nil {
		return core.Verification{}, err
	}

	session := &core.Session{
		ID:            uuid.New().String(),
		WalletAddress: addr,
		Nonce:         challenge.Nonce,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.sessionTTL),
	}

	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		return core.Verification{}, fmt.Errorf("failed to create session token: %w", err)
	}

	s.logger.Info().Str("address", addr.String()).Str("session_id", session.ID).Msg("signature verified")
	return core.Verification{
		Valid:     true,
		Address:   addr,
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// ValidateToken parses a session token and checks it has not been revoked
func (s *VerificationService) ValidateToken(ctx context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if session.Expired(s.opts.now()) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	return session, nil
}

// Revoke invalidates a session token for the rest of its lifetime
func (s *VerificationService) Revoke(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if errors.Is(err, core.ErrTokenExpired) {
		// Nothing left to revoke
		return nil
	}
	if err != nil {
		return err
	}

	remaining := session.ExpiresAt.Sub(s.opts.now())
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	s.opts.publishAuth(ctx, s.logger, core.AuthEvent{
		Topic:     core.TopicDisconnected,
		Address:   session.WalletAddress,
		SessionID: session.ID,
	})
	return nil
}
