package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/layer-3/paydesk"
	"github.com/layer-3/paydesk/core"
)

// OperatorHandlers expose the wallet session and payment actions to the operator UI
type OperatorHandlers struct {
	client paydesk.Client
	logger zerolog.Logger
}

// NewOperatorHandlers creates operator handlers around client
func NewOperatorHandlers(client paydesk.Client) *OperatorHandlers {
	return &OperatorHandlers{
		client: client,
		logger: log.With().Str("component", "operator_api").Logger(),
	}
}

// State returns the authentication state, error and session
func (h *OperatorHandlers) State(c *gin.Context) {
	h.respondState(c, http.StatusOK)
}

// RequestSignature prompts the wallet to sign a fresh challenge
func (h *OperatorHandlers) RequestSignature(c *gin.Context) {
	h.act(c, h.client.RequestSignature)
}

// AcceptTerms records consent for a first-time wallet
func (h *OperatorHandlers) AcceptTerms(c *gin.Context) {
	h.act(c, h.client.AcceptTerms)
}

// DeclineTerms disconnects the wallet
func (h *OperatorHandlers) DeclineTerms(c *gin.Context) {
	h.act(c, h.client.DeclineTerms)
}

// Disconnect drops the wallet connection
func (h *OperatorHandlers) Disconnect(c *gin.Context) {
	h.act(c, h.client.Disconnect)
}

// Balance returns the cached balance of the connected wallet
func (h *OperatorHandlers) Balance(c *gin.Context) {
	view := h.client.Balance()
	resp := gin.H{
		"active":  view.Active,
		"loading": view.Loading,
	}
	if view.Error != "" {
		resp["error"] = view.Error
	}
	if view.Balance != nil {
		resp["address"] = view.Balance.Address
		resp["wei"] = view.Balance.Wei.String()
		resp["value"] = view.Balance.Ether().String()
		resp["as_of"] = view.AsOf
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshBalance refetches the balance now
func (h *OperatorHandlers) RefreshBalance(c *gin.Context) {
	if err := h.client.RefreshBalance(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.Balance(c)
}

// SendPayment broadcasts a transfer and returns without waiting for confirmation
func (h *OperatorHandlers) SendPayment(c *gin.Context) {
	var req struct {
		Recipient string          `json:"recipient" binding:"required"`
		Amount    decimal.Decimal `json:"amount"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	logger := h.logger.With().Str("to", req.Recipient).Str("amount", req.Amount.String()).Logger()
	tx, err := h.client.SendPayment(c.Request.Context(), req.Recipient, req.Amount,
		func(tx core.Transaction) {
			logger.Info().Str("hash", tx.Hash.Hex()).Msg("payment confirmed")
		},
		func(err error) {
			logger.Warn().Err(err).Msg("payment failed")
		},
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, tx)
}

// PaymentStatus returns the latest payment and its sending, confirming and confirmed flags
func (h *OperatorHandlers) PaymentStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.client.PaymentStatus())
}

func (h *OperatorHandlers) act(c *gin.Context, action func(ctx context.Context) error) {
	if err := action(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	h.respondState(c, http.StatusOK)
}

func (h *OperatorHandlers) respondState(c *gin.Context, status int) {
	resp := gin.H{"state": h.client.State()}
	if msg := h.client.Error(); msg != "" {
		resp["error"] = msg
	}
	if session, ok := h.client.Session(); ok {
		resp["session"] = gin.H{
			"user_id":        session.UserID,
			"wallet_address": session.WalletAddress,
			"expires_at":     session.ExpiresAt,
			"is_new_user":    session.IsNewUser,
		}
	}
	c.JSON(status, resp)
}

// respondError maps domain errors to status codes
func respondError(c *gin.Context, err error) {
	statusCode := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrInvalidAddress), errors.Is(err, core.ErrInvalidAmount):
		statusCode = http.StatusBadRequest
	case errors.Is(err, core.ErrNotAuthenticated), errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrInvalidSignature):
		statusCode = http.StatusUnauthorized
	case errors.Is(err, core.ErrUserRejected):
		statusCode = http.StatusForbidden
	case errors.Is(err, core.ErrNoWalletConnected), errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrNoPendingSession), errors.Is(err, core.ErrStaleResult):
		statusCode = http.StatusConflict
	case errors.Is(err, core.ErrSignatureTimeout):
		statusCode = http.StatusGatewayTimeout
	case errors.Is(err, core.ErrLookupFailed), errors.Is(err, core.ErrAccountCreationFailed),
		errors.Is(err, core.ErrVerificationUnavailable):
		statusCode = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrTransactionBroadcastFailed):
		statusCode = http.StatusBadGateway
	}

	c.JSON(statusCode, gin.H{"error": err.Error()})
}
