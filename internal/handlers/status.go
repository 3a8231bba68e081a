package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/models"
)

var startTime = time.Now()

// StatusResponse represents the status endpoint response
type StatusResponse struct {
	Status        string        `json:"status"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	Version       string        `json:"version"`
	Security      SecurityInfo  `json:"security"`
	RateLimit     RateLimitInfo `json:"rate_limit"`
}

// SecurityInfo reports the active security posture. Secrets never appear
// here.
type SecurityInfo struct {
	Enabled       bool            `json:"enabled"`
	AuthType      models.AuthType `json:"auth_type"`
	JWTIssuer     string          `json:"jwt_issuer,omitempty"`
	JWTAlgorithm  string          `json:"jwt_algorithm,omitempty"`
	ExcludedPaths []string        `json:"excluded_paths"`
}

// RateLimitInfo reports the rate limiting configuration.
type RateLimitInfo struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`
}

// StatusHandler handles the status endpoint
func StatusHandler(version string, cfg config.SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := StatusResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(startTime).Seconds()),
			Version:       version,
			Security: SecurityInfo{
				Enabled:       cfg.Enabled,
				AuthType:      cfg.AuthType,
				ExcludedPaths: cfg.ExcludedPaths,
			},
			RateLimit: RateLimitInfo{
				Enabled:           cfg.RateLimit.Enabled,
				RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
				BurstSize:         cfg.RateLimit.BurstSize,
			},
		}
		if cfg.RequiresJWT() {
			response.Security.JWTIssuer = cfg.JWT.Issuer
			response.Security.JWTAlgorithm = cfg.JWT.Algorithm
		}

		if logger, ok := c.Get(middleware.LoggerKey); ok {
			logger.(*zap.Logger).Info("Status endpoint checked",
				zap.Int64("uptime_seconds", response.UptimeSeconds))
		}
		c.JSON(http.StatusOK, response)
	}
}

// HealthHandler answers liveness probes.
func HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().UTC()})
}

// SecurityStatsHandler reports registry stats alongside the active security
// posture. Admin only.
func SecurityStatsHandler(registry *auth.KeyRegistry, cfg config.SecurityConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := registry.Stats(c.Request.Context())
		if err != nil {
			c.Error(auth.Internal("failed to compute key stats", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"keys": stats,
			"security": SecurityInfo{
				Enabled:       cfg.Enabled,
				AuthType:      cfg.AuthType,
				ExcludedPaths: cfg.ExcludedPaths,
			},
			"rate_limit": RateLimitInfo{
				Enabled:           cfg.RateLimit.Enabled,
				RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
				BurstSize:         cfg.RateLimit.BurstSize,
			},
		})
	}
}
