package core

import "errors"

// Authentication path.
var (
	ErrUserRejected          = errors.New("request rejected by user")
	ErrNoWalletConnected     = errors.New("no wallet connected")
	ErrLookupFailed          = errors.New("account lookup failed")
	ErrAccountCreationFailed = errors.New("account creation failed")
	ErrSignatureTimeout      = errors.New("signature request timed out")
	ErrSessionExpired        = errors.New("session has expired")
	ErrSignatureInFlight     = errors.New("signature request already in flight")
	ErrNoPendingSession      = errors.New("no pending session")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrStaleResult           = errors.New("result belongs to a previous wallet connection")
	ErrNotAuthenticated      = errors.New("not authenticated")
)

// Payment path.
var (
	ErrTransactionBroadcastFailed    = errors.New("transaction broadcast failed")
	ErrTransactionConfirmationFailed = errors.New("transaction confirmation failed")
	ErrInvalidAmount                 = errors.New("invalid amount")
	ErrInvalidStatusTransition       = errors.New("invalid transaction status transition")
)

// Accounts and verification.
var (
	ErrInvalidAddress          = errors.New("invalid wallet address")
	ErrAccountNotFound         = errors.New("account not found")
	ErrAccountExists           = errors.New("account already exists")
	ErrInvalidSignature        = errors.New("invalid signature")
	ErrVerificationUnavailable = errors.New("signature verification unavailable")
	ErrInvalidChallenge        = errors.New("invalid challenge")
	ErrNonceReused             = errors.New("nonce already used")
)

// Session tokens.
var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
)
