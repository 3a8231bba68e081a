package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

// SecurityContextKey is the gin context key the dispatcher stores the
// resolved security context under.
const SecurityContextKey = "security_context"

// SecurityDispatcher classifies each request path, applies rate limiting,
// delegates credential verification to the configured strategy and injects
// the resulting security context before forwarding. All failures become the
// structured error body; nothing is partially forwarded.
type SecurityDispatcher struct {
	cfg      config.SecurityConfig
	strategy auth.Strategy
	limiter  Limiter
	logger   *zap.Logger
}

// NewSecurityDispatcher wires the dispatcher with its collaborators. A nil
// strategy (auth disabled) makes the dispatcher forward everything.
func NewSecurityDispatcher(cfg config.SecurityConfig, strategy auth.Strategy, limiter Limiter, logger *zap.Logger) *SecurityDispatcher {
	return &SecurityDispatcher{
		cfg:      cfg,
		strategy: strategy,
		limiter:  limiter,
		logger:   logger,
	}
}

// Handle returns the gin middleware.
func (d *SecurityDispatcher) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.cfg.Enabled || d.strategy == nil {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		// Exclusion wins over protection when both prefixes match.
		if d.isPathExcluded(path) {
			c.Next()
			return
		}
		if !d.isPathProtected(path) {
			c.Next()
			return
		}

		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("Security dispatch panic",
					zap.Any("panic", r),
					zap.String("path", path))
				d.abortWithError(c, http.StatusInternalServerError,
					"internal_error", fmt.Sprintf("security middleware error: %v", r))
			}
		}()

		if d.cfg.RateLimit.Enabled && d.limiter != nil {
			clientID := d.clientIdentifier(c)
			allowed, err := d.limiter.Allow(c.Request.Context(), clientID)
			if err != nil {
				d.logger.Error("Rate limit check failed",
					zap.String("client_id", clientID),
					zap.Error(err))
				d.abortWithError(c, http.StatusInternalServerError,
					"internal_error", "rate limit check failed")
				return
			}
			if !allowed {
				retryAfter := 60.0 / float64(d.cfg.RateLimit.RequestsPerMinute)
				c.Header("X-RateLimit-Limit", strconv.Itoa(d.cfg.RateLimit.RequestsPerMinute))
				c.Header("Retry-After", fmt.Sprintf("%.2f", retryAfter))
				d.abortWithError(c, http.StatusTooManyRequests,
					"rate_limit_exceeded", "Rate limit exceeded. Please try again later.")
				return
			}
		}

		sc, err := d.strategy.Authenticate(c.Request)
		if err != nil {
			var authErr *auth.Error
			if !errors.As(err, &authErr) {
				authErr = auth.Internal("authentication failed", err)
			}
			d.logger.Info("Authentication rejected",
				zap.String("path", path),
				zap.String("kind", string(authErr.Kind)),
				zap.String("ip", c.ClientIP()))
			d.abortWithError(c, statusForKind(authErr.Kind), authErr.Code, authErr.Message)
			return
		}

		if !sc.IsAuthenticated {
			d.abortWithError(c, http.StatusUnauthorized,
				"authentication_required", "Authentication required for this endpoint")
			return
		}
		if !sc.IsAuthorized {
			d.abortWithError(c, http.StatusForbidden,
				"authorization_failed", "Insufficient permissions for this endpoint")
			return
		}

		if requestID := c.GetString(RequestIDKey); requestID != "" {
			sc.RequestID = requestID
		}
		c.Set(SecurityContextKey, sc)

		c.Writer.Header().Set("X-Security-Context", "authenticated")
		c.Writer.Header().Set("X-Auth-Type", string(sc.AuthType))

		c.Next()
	}
}

func (d *SecurityDispatcher) isPathExcluded(path string) bool {
	for _, prefix := range d.cfg.ExcludedPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// An empty protected list protects every non-excluded path.
func (d *SecurityDispatcher) isPathProtected(path string) bool {
	if len(d.cfg.ProtectedPaths) == 0 {
		return !d.isPathExcluded(path)
	}
	for _, prefix := range d.cfg.ProtectedPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Established user id first, then remote IP, then the "unknown" sentinel.
func (d *SecurityDispatcher) clientIdentifier(c *gin.Context) string {
	if v, ok := c.Get(SecurityContextKey); ok {
		if sc, ok := v.(*models.SecurityContext); ok && sc.UserID != "" {
			return sc.UserID
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func (d *SecurityDispatcher) abortWithError(c *gin.Context, status int, code, description string) {
	c.AbortWithStatusJSON(status, models.SecurityError{
		Error:            code,
		ErrorDescription: description,
		ErrorCode:        strconv.Itoa(status),
		Timestamp:        time.Now().UTC(),
		RequestID:        c.GetString(RequestIDKey),
	})
}

// statusForKind is the total mapping from error kinds to HTTP status codes.
func statusForKind(kind auth.Kind) int {
	switch kind {
	case auth.KindUnauthenticated:
		return http.StatusUnauthorized
	case auth.KindUnauthorized:
		return http.StatusForbidden
	case auth.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
