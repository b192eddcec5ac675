package core

import "time"

// Account is the persisted record created once per wallet after consent.
type Account struct {
	ID             string    `json:"id"`
	WalletAddress  Address   `json:"wallet_address"`
	TermsAccepted  bool      `json:"terms_accepted"`
	TermsVersion   string    `json:"terms_version"`
	LastLogin      time.Time `json:"last_login"`
	SignatureNonce string    `json:"signature_nonce"`
	CreatedAt      time.Time `json:"created_at"`
}

// AccountUpdate carries the fields refreshed on every returning login.
type AccountUpdate struct {
	LastLogin      time.Time
	SignatureNonce string
}

// Apply returns a copy of a with the update applied.
func (u AccountUpdate) Apply(a Account) Account {
	a.LastLogin = u.LastLogin
	a.SignatureNonce = u.SignatureNonce
	return a
}
