package auth

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/models"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"Missing Header", "", ""},
		{"Valid Bearer", "Bearer abc123", "abc123"},
		{"Lowercase Scheme", "bearer abc123", "abc123"},
		{"Wrong Scheme", "Basic abc123", ""},
		{"No Token", "Bearer", ""},
		{"Extra Whitespace", "Bearer   abc123", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, ExtractBearerToken(r))
		})
	}
}

func TestTokenStrategy(t *testing.T) {
	codec := NewTokenCodec(testJWTConfig())
	strategy := NewTokenStrategy(codec)

	t.Run("Valid Token Builds Context", func(t *testing.T) {
		token, err := codec.IssueAccess("user-1", "alice", []string{"admin"}, []string{"read"}, nil)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/api/v1/resource", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("X-Request-ID", "req-1")
		r.RemoteAddr = "10.0.0.1:4321"

		sc, err := strategy.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, "user-1", sc.UserID)
		assert.Equal(t, "alice", sc.Username)
		assert.Equal(t, models.AuthTypeJWT, sc.AuthType)
		assert.True(t, sc.IsAuthenticated)
		assert.True(t, sc.IsAuthorized)
		assert.Equal(t, "req-1", sc.RequestID)
		assert.Equal(t, "10.0.0.1", sc.IPAddress)
	})

	t.Run("Missing Header Rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		_, err := strategy.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, KindUnauthenticated, authErr.Kind)
		assert.Equal(t, "authentication_required", authErr.Code)
	})

	t.Run("Invalid Token Rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		_, err := strategy.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "authentication_failed", authErr.Code)
		assert.ErrorIs(t, err, ErrTokenMalformed)
	})
}

func TestKeyStrategy(t *testing.T) {
	ctx := context.Background()
	registry := newTestRegistry()
	strategy := NewKeyStrategy(registry, "X-API-Key", "api_key")

	rawKey, key, err := registry.Create(ctx, &models.CreateKeyRequest{
		Name:        "service-a",
		UserID:      "user-1",
		Permissions: []string{"read"},
	})
	require.NoError(t, err)

	t.Run("Header Key Accepted", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-API-Key", rawKey)

		sc, err := strategy.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, models.AuthTypeAPIKey, sc.AuthType)
		assert.Equal(t, "user-1", sc.UserID)
		assert.Equal(t, "service-a", sc.Username)
		assert.Equal(t, []string{"read"}, sc.Permissions)
	})

	t.Run("Query Key Accepted", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/?api_key="+rawKey, nil)
		sc, err := strategy.Authenticate(r)
		require.NoError(t, err)
		assert.True(t, sc.IsAuthenticated)
	})

	t.Run("Header Wins Over Query", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/?api_key=bogus", nil)
		r.Header.Set("X-API-Key", rawKey)
		sc, err := strategy.Authenticate(r)
		require.NoError(t, err)
		assert.True(t, sc.IsAuthenticated)
	})

	t.Run("Missing Key Rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		_, err := strategy.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "authentication_required", authErr.Code)
	})

	t.Run("Unknown Key Rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-API-Key", "bogus")
		_, err := strategy.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "authentication_failed", authErr.Code)
	})

	t.Run("Revoked Key Rejected", func(t *testing.T) {
		_, err := registry.Revoke(ctx, key.KeyID)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-API-Key", rawKey)
		_, err = strategy.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, KindUnauthenticated, authErr.Kind)
	})
}

func TestHybridStrategy(t *testing.T) {
	ctx := context.Background()
	codec := NewTokenCodec(testJWTConfig())
	registry := newTestRegistry()

	tokenStrategy := NewTokenStrategy(codec)
	keyStrategy := NewKeyStrategy(registry, "X-API-Key", "api_key")
	hybrid := NewHybridStrategy(tokenStrategy, keyStrategy)

	rawKey, _, err := registry.Create(ctx, &models.CreateKeyRequest{Name: "svc", UserID: "user-2"})
	require.NoError(t, err)

	t.Run("Token Wins When Present", func(t *testing.T) {
		token, err := codec.IssueAccess("user-1", "alice", nil, nil, nil)
		require.NoError(t, err)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		r.Header.Set("X-API-Key", rawKey)

		sc, err := hybrid.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, models.AuthTypeJWT, sc.AuthType)
		assert.Equal(t, "user-1", sc.UserID)
	})

	t.Run("Falls Back To Key", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-API-Key", rawKey)

		sc, err := hybrid.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, models.AuthTypeAPIKey, sc.AuthType)
		assert.Equal(t, "user-2", sc.UserID)
	})

	t.Run("Falls Back When Token Invalid", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		r.Header.Set("X-API-Key", rawKey)

		sc, err := hybrid.Authenticate(r)
		require.NoError(t, err)
		assert.Equal(t, models.AuthTypeAPIKey, sc.AuthType)
	})

	t.Run("Both Fail Surfaces First Tried Error", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)

		_, err := hybrid.Authenticate(r)
		var authErr *Error
		require.ErrorAs(t, err, &authErr)
		assert.Contains(t, authErr.Message, "authorization header")
	})
}
