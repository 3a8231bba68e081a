package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

func dispatcherTestConfig() config.SecurityConfig {
	return config.SecurityConfig{
		Enabled:  true,
		AuthType: models.AuthTypeAPIKey,
		APIKey: config.APIKeyConfig{
			Header:     "X-API-Key",
			QueryParam: "api_key",
			Length:     32,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		ExcludedPaths:  []string{"/health", "/status"},
		ProtectedPaths: []string{"/api/v1"},
	}
}

func newDispatcherRouter(cfg config.SecurityConfig, strategy auth.Strategy, limiter Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	d := NewSecurityDispatcher(cfg, strategy, limiter, zap.NewNop())
	router.Use(d.Handle())
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
	router.GET("/health", handler)
	router.GET("/status", handler)
	router.GET("/api/v1/resource", handler)
	router.GET("/other", handler)
	return router
}

func TestSecurityDispatcherPathClassification(t *testing.T) {
	registry := auth.NewKeyRegistry(auth.NewMemoryKeyStore(), 32)
	cfg := dispatcherTestConfig()
	strategy, err := auth.NewStrategy(cfg, registry)
	require.NoError(t, err)
	router := newDispatcherRouter(cfg, strategy, nil)

	t.Run("Excluded Path Forwarded Without Credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Security-Context"))
	})

	t.Run("Unlisted Path Forwarded", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/other", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Protected Path Requires Credentials", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/resource", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body models.SecurityError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "authentication_required", body.Error)
		assert.Equal(t, "401", body.ErrorCode)
		assert.False(t, body.Timestamp.IsZero())
	})

	t.Run("Exclusion Wins Over Protection", func(t *testing.T) {
		cfg := dispatcherTestConfig()
		cfg.ExcludedPaths = []string{"/api/v1/public"}
		router := newDispatcherRouter(cfg, strategy, nil)
		router.GET("/api/v1/public/info", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "success"})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/public/info", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Empty Protected List Protects Everything", func(t *testing.T) {
		cfg := dispatcherTestConfig()
		cfg.ProtectedPaths = nil
		router := newDispatcherRouter(cfg, strategy, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/other", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Disabled Forwards Everything", func(t *testing.T) {
		cfg := dispatcherTestConfig()
		cfg.Enabled = false
		router := newDispatcherRouter(cfg, strategy, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/resource", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Nil Strategy Forwards Everything", func(t *testing.T) {
		router := newDispatcherRouter(dispatcherTestConfig(), nil, nil)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/resource", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestSecurityDispatcherAPIKeyFlow(t *testing.T) {
	ctx := context.Background()
	registry := auth.NewKeyRegistry(auth.NewMemoryKeyStore(), 32)
	cfg := dispatcherTestConfig()
	strategy, err := auth.NewStrategy(cfg, registry)
	require.NoError(t, err)
	router := newDispatcherRouter(cfg, strategy, nil)

	rawKey, key, err := registry.Create(ctx, &models.CreateKeyRequest{
		Name:   "integration",
		UserID: "user-1",
	})
	require.NoError(t, err)

	t.Run("Valid Key Admitted With Context Headers", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resource", nil)
		req.Header.Set("X-API-Key", rawKey)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "authenticated", w.Header().Get("X-Security-Context"))
		assert.Equal(t, "api_key", w.Header().Get("X-Auth-Type"))
	})

	t.Run("Revoked Key Rejected Immediately", func(t *testing.T) {
		found, err := registry.Revoke(ctx, key.KeyID)
		require.NoError(t, err)
		require.True(t, found)

		req := httptest.NewRequest("GET", "/api/v1/resource", nil)
		req.Header.Set("X-API-Key", rawKey)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("X-Security-Context"))
	})
}

func TestSecurityDispatcherJWTFlow(t *testing.T) {
	cfg := dispatcherTestConfig()
	cfg.AuthType = models.AuthTypeJWT
	cfg.JWT = config.JWTConfig{
		SecretKey:                "test-secret-key-that-is-long-enough-123",
		Algorithm:                "HS256",
		AccessTokenExpireMinutes: 30,
		RefreshTokenExpireDays:   7,
		Issuer:                   "gatehouse",
	}

	registry := auth.NewKeyRegistry(auth.NewMemoryKeyStore(), 32)
	strategy, err := auth.NewStrategy(cfg, registry)
	require.NoError(t, err)
	router := newDispatcherRouter(cfg, strategy, nil)

	codec := auth.NewTokenCodec(cfg.JWT)

	t.Run("Valid Token Admitted", func(t *testing.T) {
		token, err := codec.IssueAccess("user-1", "alice", nil, nil, nil)
		require.NoError(t, err)

		req := httptest.NewRequest("GET", "/api/v1/resource", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "jwt", w.Header().Get("X-Auth-Type"))
	})

	t.Run("Invalid Token Rejected With Error Body", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/resource", nil)
		req.Header.Set("Authorization", "Bearer garbage")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var body models.SecurityError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "authentication_failed", body.Error)
	})
}

func TestSecurityDispatcherRateLimit(t *testing.T) {
	registry := auth.NewKeyRegistry(auth.NewMemoryKeyStore(), 32)
	cfg := dispatcherTestConfig()
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerMinute = 60
	cfg.RateLimit.BurstSize = 2
	strategy, err := auth.NewStrategy(cfg, registry)
	require.NoError(t, err)

	now := time.Now()
	rl := NewRateLimiter(WithRequestsPerMinute(60), WithBurstSize(2))
	rl.now = func() time.Time { return now }

	router := newDispatcherRouter(cfg, strategy, rl)

	rawKey, _, err := registry.Create(context.Background(), &models.CreateKeyRequest{Name: "limited"})
	require.NoError(t, err)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/api/v1/resource", nil)
		req.Header.Set("X-API-Key", rawKey)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	t.Run("Requests Within Burst Admitted", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, send().Code)
		assert.Equal(t, http.StatusOK, send().Code)
	})

	t.Run("Request Over Burst Receives 429", func(t *testing.T) {
		w := send()
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "1.00", w.Header().Get("Retry-After"))
		assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))

		var body models.SecurityError
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "rate_limit_exceeded", body.Error)
		assert.Equal(t, "429", body.ErrorCode)
	})

	t.Run("Refill Readmits", func(t *testing.T) {
		now = now.Add(2 * time.Second)
		assert.Equal(t, http.StatusOK, send().Code)
	})
}
