package http_test

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/paydesk/adapters/store"
	"github.com/layer-3/paydesk/adapters/tokenizer"
	"github.com/layer-3/paydesk/adapters/verifier"
	"github.com/layer-3/paydesk/adapters/wallet"
	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/service"
	transport "github.com/layer-3/paydesk/transport/http"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var origins = []string{"http://localhost:3000"}

func newVerificationService(t *testing.T) *service.VerificationService {
	t.Helper()
	signKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return service.NewVerificationService(
		tokenizer.NewJWTTokenizer(signKey),
		store.NewMemoryStore(),
		verifier.NewPersonalSign(),
		"sepolia",
		5*time.Minute,
		time.Hour,
	)
}

func signedChallenge(t *testing.T) (core.Challenge, string, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	nonce, err := core.NewNonce()
	require.NoError(t, err)
	c := core.Challenge{
		Address:  core.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey)),
		Network:  "sepolia",
		Nonce:    nonce,
		IssuedAt: time.Now().UTC().Truncate(time.Second),
	}
	sig, err := wallet.SignPersonal(key, c.Message())
	require.NoError(t, err)
	return c, sig, key
}

func do(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestVerifyMeLogout(t *testing.T) {
	router := transport.SetupRouter(newVerificationService(t), nil, origins)
	c, sig, _ := signedChallenge(t)
	body := gin.H{"address": c.Address, "message": c.Message(), "signature": sig}

	w := do(t, router, http.MethodPost, "/auth/verify", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		Valid bool   `json:"valid"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	assert.True(t, verified.Valid)

	w = do(t, router, http.MethodPost, "/auth/verify", body, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, router, http.MethodGet, "/api/me", nil, verified.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(c.Address))

	w = do(t, router, http.MethodPost, "/auth/logout", gin.H{"token": verified.Token}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, router, http.MethodGet, "/api/me", nil, verified.Token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVerifyRejections(t *testing.T) {
	router := transport.SetupRouter(newVerificationService(t), nil, origins)
	c, _, _ := signedChallenge(t)
	_, foreign, _ := signedChallenge(t)

	w := do(t, router, http.MethodPost, "/auth/verify", gin.H{"address": c.Address}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, router, http.MethodPost, "/auth/verify", gin.H{"address": c.Address, "message": c.Message(), "signature": foreign}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodGet, "/api/me", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoteVerifierAgainstRouter(t *testing.T) {
	srv := httptest.NewServer(transport.SetupRouter(newVerificationService(t), nil, origins))
	defer srv.Close()
	remote := verifier.NewRemote(srv.URL, time.Second)

	c, sig, _ := signedChallenge(t)
	v, err := remote.Verify(context.Background(), c, sig)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, c.Address, v.Address)
	assert.NotEmpty(t, v.Token)

	_, err = remote.Verify(context.Background(), c, sig)
	require.ErrorIs(t, err, core.ErrInvalidSignature)
}

type stubClient struct {
	state   core.State
	errMsg  string
	actErr  error
	payErr  error
	status  service.PaymentStatus
	balance service.BalanceView
	paid    decimal.Decimal
}

func (s *stubClient) State() core.State { return s.state }
func (s *stubClient) Error() string { return s.errMsg }
func (s *stubClient) Session() (core.Session, bool) { return core.Session{}, false }
func (s *stubClient) Balance() service.BalanceView { return s.balance }
func (s *stubClient) RequestSignature(context.Context) error { return s.actErr }
func (s *stubClient) AcceptTerms(context.Context) error { return s.actErr }
func (s *stubClient) Disconnect(context.Context) error { return s.actErr }
func (s *stubClient) RefreshBalance(context.Context) error { return s.actErr }
func (s *stubClient) PaymentStatus() service.PaymentStatus { return s.status }
func (s *stubClient) DeclineTerms(context.Context) error {
	s.state = core.StateDisconnected
	s.errMsg = service.ConsentRequiredMessage
	return nil
}

func (s *stubClient) SendPayment(_ context.Context, recipient string, amount decimal.Decimal, _ func(core.Transaction), _ func(error)) (core.Transaction, error) {
	if s.payErr != nil {
		return core.Transaction{}, s.payErr
	}
	s.paid = amount
	return core.Transaction{Recipient: core.NormalizeAddress(recipient), Amount: amount, Status: core.TxBroadcast}, nil
}

func TestOperatorState(t *testing.T) {
	client := &stubClient{state: core.StatePendingTerms}
	router := transport.SetupRouter(newVerificationService(t), client, origins)

	w := do(t, router, http.MethodGet, "/operator/state", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"state":"pending_terms"}`, w.Body.String())

	w = do(t, router, http.MethodPost, "/operator/terms/decline", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"disconnected"`)
	assert.Contains(t, w.Body.String(), "Consent is mandatory")
}

func TestOperatorErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{core.ErrUserRejected, http.StatusForbidden},
		{core.ErrNoWalletConnected, http.StatusConflict},
		{core.ErrSignatureTimeout, http.StatusGatewayTimeout},
		{core.ErrLookupFailed, http.StatusServiceUnavailable},
		{core.ErrInvalidSignature, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			router := transport.SetupRouter(newVerificationService(t), &stubClient{actErr: tt.err}, origins)
			w := do(t, router, http.MethodPost, "/operator/signature", nil, "")
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestOperatorPayments(t *testing.T) {
	client := &stubClient{}
	router := transport.SetupRouter(newVerificationService(t), client, origins)

	w := do(t, router, http.MethodPost, "/operator/payments", gin.H{"recipient": "0x000000000000000000000000000000000000cafe", "amount": "0.25"}, "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.True(t, client.paid.Equal(decimal.RequireFromString("0.25")))

	client.payErr = core.ErrNotAuthenticated
	w = do(t, router, http.MethodPost, "/operator/payments", gin.H{"recipient": "0x000000000000000000000000000000000000cafe", "amount": "1"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, router, http.MethodPost, "/operator/payments", gin.H{"amount": "1"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	client.status = service.PaymentStatus{IsConfirming: true}
	w = do(t, router, http.MethodGet, "/operator/payments/current", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_confirming":true`)
}
