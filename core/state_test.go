package core_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/core"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from core.State
		ev   core.Event
		to   core.State
	}{
		{core.StateDisconnected, core.EventWalletConnected, core.StatePendingSignature},
		{core.StatePendingSignature, core.EventSignedNewWallet, core.StatePendingTerms},
		{core.StatePendingSignature, core.EventSignedKnownWallet, core.StateAuthenticated},
		{core.StatePendingSignature, core.EventSignatureFailed, core.StateDisconnected},
		{core.StatePendingTerms, core.EventTermsAccepted, core.StateAuthenticated},
		{core.StatePendingTerms, core.EventTermsDeclined, core.StateDisconnected},
		{core.StateAuthenticated, core.EventSessionExpired, core.StatePendingSignature},
	}
	for _, tc := range cases {
		got, err := core.Transition(tc.from, tc.ev)
		require.NoError(t, err, "%s on %s", tc.ev, tc.from)
		assert.Equal(t, tc.to, got, "%s on %s", tc.ev, tc.from)
	}
}

func TestTransitionDisconnectFromAnyState(t *testing.T) {
	for _, s := range core.States {
		got, err := core.Transition(s, core.EventWalletDisconnected)
		require.NoError(t, err)
		assert.Equal(t, core.StateDisconnected, got)

		got, err = core.Transition(s, core.EventTermsDeclined)
		require.NoError(t, err)
		assert.Equal(t, core.StateDisconnected, got)
	}
}

func TestTransitionCoversEveryPair(t *testing.T) {
	for _, s := range core.States {
		for _, ev := range core.Events {
			got, err := core.Transition(s, ev)
			if err != nil {
				assert.ErrorIs(t, err, core.ErrInvalidTransition)
				assert.Equal(t, s, got, "rejected events keep the state")
				continue
			}
			assert.Contains(t, core.States, got)
		}
	}
}

func TestExpiryNeverAuthenticates(t *testing.T) {
	for _, s := range core.States {
		got, err := core.Transition(s, core.EventSessionExpired)
		if err == nil {
			assert.NotEqual(t, core.StateAuthenticated, got)
		}
	}
}

func TestStateText(t *testing.T) {
	b, err := core.StatePendingTerms.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "pending_terms", string(b))
}
