package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/handlers"
	"github.com/gatehouse/gatehouse/internal/middleware"
)

// Dependencies bundles everything route setup needs.
type Dependencies struct {
	Config       *config.Config
	Logger       *zap.Logger
	AccessLogger *logrus.Logger
	Dispatcher   *middleware.SecurityDispatcher
	Registry     *auth.KeyRegistry
	TokenHandler *handlers.TokenHandler
	KeyHandler   *handlers.KeyHandler
	Version      string
}

// SetupRoutes configures all API routes with their middleware
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	// Global middleware. The dispatcher runs last so request ids and access
	// logs cover rejected requests too.
	router.Use(middleware.RequestIDMiddleware(deps.Logger))
	router.Use(middleware.Logger(deps.AccessLogger))
	router.Use(middleware.ErrorHandler())
	router.Use(deps.Dispatcher.Handle())

	// Public routes
	public := router.Group("/")
	{
		public.GET("/status", handlers.StatusHandler(deps.Version, deps.Config.Security))
		public.GET("/health", handlers.HealthHandler)
	}

	// Administrative routes (requires master token)
	admin := router.Group("/auth")
	admin.Use(middleware.RequireMasterToken(deps.Config.Auth.MasterToken))
	{
		admin.GET("/stats", handlers.SecurityStatsHandler(deps.Registry, deps.Config.Security))

		// Token endpoints are absent when the deployment has no JWT
		// surface, so tokens can never be minted with an unset secret.
		if deps.TokenHandler != nil {
			tokens := admin.Group("/tokens")
			{
				tokens.POST("", deps.TokenHandler.CreateToken)
				tokens.POST("/refresh", deps.TokenHandler.RefreshToken)
			}
		}

		keys := admin.Group("/keys")
		{
			keys.POST("", deps.KeyHandler.CreateKey)
			keys.GET("", deps.KeyHandler.ListKeys)
			keys.GET("/stats", deps.KeyHandler.KeyStats)
			keys.POST("/cleanup", deps.KeyHandler.CleanupKeys)
			keys.GET("/:id", deps.KeyHandler.GetKey)
			keys.PATCH("/:id", deps.KeyHandler.UpdateKey)
			keys.DELETE("/:id", deps.KeyHandler.RevokeKey)
		}
	}

	// Protected application routes. Authentication happens in the dispatcher;
	// by the time a handler runs the security context is established.
	apiV1 := router.Group("/api/v1")
	{
		apiV1.GET("/me", func(c *gin.Context) {
			sc, ok := c.Get(middleware.SecurityContextKey)
			if !ok {
				c.JSON(http.StatusOK, gin.H{"authenticated": false})
				return
			}
			c.JSON(http.StatusOK, sc)
		})
	}
}
