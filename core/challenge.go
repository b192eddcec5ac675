package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// ChallengeHeader opens every challenge message.
const ChallengeHeader = "Sign in to Paydesk to prove you control this wallet."

const nonceBytes = 32

// Challenge is the content presented to the signer. Its Message is deterministic.
type Challenge struct {
	Address  Address   // Normalized wallet address
	Network  string    // Target network name
	Nonce    string    // Single-use random token
	IssuedAt time.Time // When the challenge was composed
}

// NewNonce returns a fresh random hex nonce.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Message renders the challenge text that the wallet signs.
func (c Challenge) Message() string {
	var b strings.Builder
	b.WriteString(ChallengeHeader)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Address: %s\n", c.Address)
	fmt.Fprintf(&b, "Network: %s\n", c.Network)
	fmt.Fprintf(&b, "Nonce: %s\n", c.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", c.IssuedAt.UTC().Format(time.RFC3339))
	return b.String()
}

// ParseChallenge recovers a Challenge from text produced by Message.
func ParseChallenge(message string) (Challenge, error) {
	header, body, ok := strings.Cut(message, "\n\n")
	if !ok || header != ChallengeHeader {
		return Challenge{}, ErrInvalidChallenge
	}

	fields := make(map[string]string, 4)
	for _, line := range strings.Split(body, "\n") {
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return Challenge{}, fmt.Errorf("malformed line %q: %w", line, ErrInvalidChallenge)
		}
		fields[key] = value
	}

	addr, err := ParseAddress(fields["Address"])
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge address: %w", ErrInvalidChallenge)
	}
	if fields["Nonce"] == "" || fields["Network"] == "" {
		return Challenge{}, ErrInvalidChallenge
	}
	issuedAt, err := time.Parse(time.RFC3339, fields["Issued At"])
	if err != nil {
		return Challenge{}, fmt.Errorf("challenge timestamp: %w", ErrInvalidChallenge)
	}

	return Challenge{
		Address:  addr,
		Network:  fields["Network"],
		Nonce:    fields["Nonce"],
		IssuedAt: issuedAt,
	}, nil
}
