package tokenizer

import "github.com/golang-jwt/jwt/v5"

// SessionClaims combines standard claims with session-specific ones
type SessionClaims struct {
	jwt.RegisteredClaims
	Nonce   string `json:"nonce"`
	UserID  string `json:"uid,omitempty"`
	NewUser bool   `json:"new,omitempty"`
}
