package core

import "time"

// Session is the in-memory record of an authenticated or in-progress authentication.
type Session struct {
	ID            string    // Unique session identifier
	UserID        string    // Account id; empty until terms are accepted for a new wallet
	WalletAddress Address   // Normalized address that signed the challenge
	Nonce         string    // Nonce of the challenge that produced this session
	IssuedAt      time.Time // When the signature succeeded
	ExpiresAt     time.Time // Absolute expiry
	IsNewUser     bool      // No account record existed at signing time
	Token         string    // Verification token, when a remote verifier issued one
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Verification is the outcome of an independent signature check.
type Verification struct {
	Valid     bool
	Address   Address
	Token     string
	ExpiresAt time.Time
}
