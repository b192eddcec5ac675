package core

import "fmt"

// State is the authentication state of the connected wallet.
type State uint8

const (
	StateDisconnected State = iota
	StatePendingSignature
	StatePendingTerms
	StateAuthenticated
)

// States lists every State.
var States = []State{StateDisconnected, StatePendingSignature, StatePendingTerms, StateAuthenticated}

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StatePendingSignature:
		return "pending_signature"
	case StatePendingTerms:
		return "pending_terms"
	case StateAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// MarshalText renders the state tag for JSON consumers.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event drives the authentication state machine.
type Event uint8

const (
	EventWalletConnected Event = iota
	EventSignedNewWallet
	EventSignedKnownWallet
	EventSignatureFailed
	EventTermsAccepted
	EventTermsDeclined
	EventSessionExpired
	EventWalletDisconnected
)

// Events lists every Event.
var Events = []Event{
	EventWalletConnected,
	EventSignedNewWallet,
	EventSignedKnownWallet,
	EventSignatureFailed,
	EventTermsAccepted,
	EventTermsDeclined,
	EventSessionExpired,
	EventWalletDisconnected,
}

func (e Event) String() string {
	switch e {
	case EventWalletConnected:
		return "wallet_connected"
	case EventSignedNewWallet:
		return "signed_new_wallet"
	case EventSignedKnownWallet:
		return "signed_known_wallet"
	case EventSignatureFailed:
		return "signature_failed"
	case EventTermsAccepted:
		return "terms_accepted"
	case EventTermsDeclined:
		return "terms_declined"
	case EventSessionExpired:
		return "session_expired"
	case EventWalletDisconnected:
		return "wallet_disconnected"
	}
	return fmt.Sprintf("event(%d)", uint8(e))
}

// Transition returns the state reached by applying ev in from.
// Every (state, event) pair is listed; pairs outside the table return ErrInvalidTransition
// and leave the state unchanged.
func Transition(from State, ev Event) (State, error) {
	switch from {
	case StateDisconnected:
		switch ev {
		case EventWalletConnected:
			return StatePendingSignature, nil
		case EventTermsDeclined, EventWalletDisconnected:
			return StateDisconnected, nil
		case EventSignedNewWallet, EventSignedKnownWallet, EventSignatureFailed,
			EventTermsAccepted, EventSessionExpired:
			return from, invalid(from, ev)
		}

	case StatePendingSignature:
		switch ev {
		case EventSignedNewWallet:
			return StatePendingTerms, nil
		case EventSignedKnownWallet:
			return StateAuthenticated, nil
		case EventSignatureFailed, EventTermsDeclined, EventWalletDisconnected:
			return StateDisconnected, nil
		case EventWalletConnected, EventTermsAccepted, EventSessionExpired:
			return from, invalid(from, ev)
		}

	case StatePendingTerms:
		switch ev {
		case EventTermsAccepted:
			return StateAuthenticated, nil
		case EventTermsDeclined, EventWalletDisconnected:
			return StateDisconnected, nil
		case EventWalletConnected, EventSignedNewWallet, EventSignedKnownWallet,
			EventSignatureFailed, EventSessionExpired:
			return from, invalid(from, ev)
		}

	case StateAuthenticated:
		switch ev {
		case EventSessionExpired:
			return StatePendingSignature, nil
		case EventTermsDeclined, EventWalletDisconnected:
			return StateDisconnected, nil
		case EventWalletConnected, EventSignedNewWallet, EventSignedKnownWallet,
			EventSignatureFailed, EventTermsAccepted:
			return from, invalid(from, ev)
		}
	}
	return from, invalid(from, ev)
}

func invalid(from State, ev Event) error {
	return fmt.Errorf("%s on %s: %w", ev, from, ErrInvalidTransition)
}
