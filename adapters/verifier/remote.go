package verifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/paydesk/core"
)

// Remote asks the verification API to check a signed challenge.
// Its answers are not trusted blindly: a success must name the challenge address.
type Remote struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemote creates a client for the verification API at baseURL
func NewRemote(baseURL string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type verifyRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type verifyResponse struct {
	Valid     bool      `json:"valid"`
	Address   string    `json:"address"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Error     string    `json:"error"`
}

// Verify posts the challenge and signature to /auth/verify
func (r *Remote) Verify(ctx context.Context, challenge core.Challenge, signature string) (core.Verification, error) {
	body, err := json.Marshal(verifyRequest{
		Address:   string(challenge.Address),
		Message:   challenge.Message(),
		Signature: signature,
	})
	if err != nil {
		return core.Verification{}, fmt.Errorf("failed to encode verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/auth/verify", bytes.NewReader(body))
	if err != nil {
		return core.Verification{}, fmt.Errorf("failed to build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return core.Verification{}, fmt.Errorf("verify request: %v: %w", err, core.ErrVerificationUnavailable)
	}
	defer resp.Body.Close()

	var out verifyResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusConflict:
		return core.Verification{}, fmt.Errorf("verifier refused (%d %s): %w", resp.StatusCode, out.Error, core.ErrInvalidSignature)
	default:
		return core.Verification{}, fmt.Errorf("verifier http %d: %w", resp.StatusCode, core.ErrVerificationUnavailable)
	}
	if decodeErr != nil {
		return core.Verification{}, fmt.Errorf("malformed verifier response: %w", core.ErrVerificationUnavailable)
	}

	result := core.Verification{
		Valid:     out.Valid,
		Address:   core.NormalizeAddress(out.Address),
		Token:     out.Token,
		ExpiresAt: out.ExpiresAt,
	}
	if result.Valid && !result.Address.Equal(challenge.Address) {
		result.Valid = false
	}
	return result, nil
}
