package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/layer-3/paydesk"
	"github.com/layer-3/paydesk/service"
)

// SetupRouter sets up the Gin router. Operator routes are mounted only when client is set.
func SetupRouter(verification *service.VerificationService, client paydesk.Client, origins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	handlers := NewAuthHandlers(verification)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.POST("/verify", handlers.Verify)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(verification))
	{
		api.GET("/me", handlers.Me)
	}

	if client == nil {
		return router
	}

	operator := NewOperatorHandlers(client)
	ops := router.Group("/operator")
	{
		ops.GET("/state", operator.State)
		ops.POST("/signature", operator.RequestSignature)
		ops.POST("/terms/accept", operator.AcceptTerms)
		ops.POST("/terms/decline", operator.DeclineTerms)
		ops.POST("/disconnect", operator.Disconnect)
		ops.GET("/balance", operator.Balance)
		ops.POST("/balance/refresh", operator.RefreshBalance)
		ops.POST("/payments", operator.SendPayment)
		ops.GET("/payments/current", operator.PaymentStatus)
	}

	return router
}
