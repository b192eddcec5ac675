package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/paydesk/core"
	"github.com/layer-3/paydesk/service"
)

// AuthHandlers contains HTTP handlers for the verification endpoints
type AuthHandlers struct {
	verification *service.VerificationService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(verification *service.VerificationService) *AuthHandlers {
	return &AuthHandlers{verification: verification}
}

// Verify checks a signed challenge and returns a session token
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result, err := h.verification.Verify(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		statusCode := http.StatusInternalServerError
		errorMsg := "Verification failed"

		switch {
		case errors.Is(err, core.ErrInvalidAddress), errors.Is(err, core.ErrInvalidChallenge):
			statusCode = http.StatusBadRequest
			errorMsg = "Invalid challenge"
		case errors.Is(err, core.ErrInvalidSignature):
			statusCode = http.StatusUnauthorized
			errorMsg = "Invalid signature"
		case errors.Is(err, core.ErrNonceReused):
			statusCode = http.StatusConflict
			errorMsg = "Challenge already used"
		}

		c.JSON(statusCode, gin.H{"error": errorMsg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":      result.Valid,
		"address":    result.Address,
		"token":      result.Token,
		"token_type": "Bearer",
		"expires_at": result.ExpiresAt,
	})
}

// Logout revokes a session token
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.verification.Revoke(c.Request.Context(), req.Token); err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid token"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the wallet of the authenticated caller
func (h *AuthHandlers) Me(c *gin.Context) {
	address, exists := c.Get(contextAddress)
	if !exists {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":    address,
		"session_id": c.GetString(contextSessionID),
	})
}
