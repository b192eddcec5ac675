package core

import "time"

// ConnectionKind classifies wallet connection notifications.
type ConnectionKind uint8

const (
	WalletConnected ConnectionKind = iota + 1
	WalletDisconnected
	WalletAccountChanged
	WalletChainChanged
)

// ConnectionEvent is emitted by the external signer when its connection changes.
type ConnectionEvent struct {
	Kind    ConnectionKind
	Address Address
	ChainID uint64
}

// Lifecycle topics published by the services.
const (
	TopicAuthenticated    = "auth.authenticated"
	TopicAccountCreated   = "auth.account_created"
	TopicDisconnected     = "auth.disconnected"
	TopicSessionExpired   = "auth.session_expired"
	TopicPaymentBroadcast = "payment.broadcast"
	TopicPaymentConfirmed = "payment.confirmed"
	TopicPaymentFailed    = "payment.failed"
)

// AuthEvent describes an authentication lifecycle change.
type AuthEvent struct {
	Topic     string    `json:"-"`
	Address   Address   `json:"address"`
	UserID    string    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IsNewUser bool      `json:"is_new_user,omitempty"`
	At        time.Time `json:"at"`
}
