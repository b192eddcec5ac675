package verifier_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/adapters/verifier"
	"github.com/layer-3/paydesk/adapters/wallet"
	"github.com/layer-3/paydesk/core"
)

func testChallenge(addr core.Address) core.Challenge {
	return core.Challenge{
		Address:  addr,
		Network:  "sepolia",
		Nonce:    "0123abcd",
		IssuedAt: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
}

func TestPersonalSignVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := core.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey))
	ch := testChallenge(addr)

	sig, err := wallet.SignPersonal(key, ch.Message())
	require.NoError(t, err)

	res, err := verifier.NewPersonalSign().Verify(context.Background(), ch, sig)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, addr, res.Address)
}

func TestPersonalSignWrongSigner(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	ch := testChallenge(core.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey)))

	sig, err := wallet.SignPersonal(other, ch.Message())
	require.NoError(t, err)

	res, err := verifier.NewPersonalSign().Verify(context.Background(), ch, sig)
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestPersonalSignMalformed(t *testing.T) {
	ch := testChallenge("0xabcdef0123456789abcdef0123456789abcdef01")
	for _, sig := range []string{"", "0x1234", "zz"} {
		_, err := verifier.NewPersonalSign().Verify(context.Background(), ch, sig)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	}
}

func remoteServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/verify", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteVerify(t *testing.T) {
	addr := core.Address("0xabcdef0123456789abcdef0123456789abcdef01")
	ch := testChallenge(addr)

	t.Run("valid", func(t *testing.T) {
		srv := remoteServer(t, http.StatusOK, map[string]any{
			"valid": true, "address": "0xABCDEF0123456789ABCDEF0123456789ABCDEF01", "token": "tok",
		})
		res, err := verifier.NewRemote(srv.URL, time.Second).Verify(context.Background(), ch, "0xsig")
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, "tok", res.Token)
	})

	t.Run("address mismatch is not trusted", func(t *testing.T) {
		srv := remoteServer(t, http.StatusOK, map[string]any{
			"valid": true, "address": "0x0000000000000000000000000000000000000001",
		})
		res, err := verifier.NewRemote(srv.URL, time.Second).Verify(context.Background(), ch, "0xsig")
		require.NoError(t, err)
		assert.False(t, res.Valid)
	})

	t.Run("refused", func(t *testing.T) {
		srv := remoteServer(t, http.StatusUnauthorized, map[string]any{"error": "invalid signature"})
		_, err := verifier.NewRemote(srv.URL, time.Second).Verify(context.Background(), ch, "0xsig")
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("server error", func(t *testing.T) {
		srv := remoteServer(t, http.StatusInternalServerError, map[string]any{"error": "boom"})
		_, err := verifier.NewRemote(srv.URL, time.Second).Verify(context.Background(), ch, "0xsig")
		assert.ErrorIs(t, err, core.ErrVerificationUnavailable)
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := verifier.NewRemote("http://127.0.0.1:1", time.Second).Verify(context.Background(), ch, "0xsig")
		assert.ErrorIs(t, err, core.ErrVerificationUnavailable)
	})
}
