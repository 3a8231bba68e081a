package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

func testSecurityConfig(authType models.AuthType) config.SecurityConfig {
	return config.SecurityConfig{
		Enabled:   true,
		AuthType:  authType,
		PreferJWT: true,
		JWT:       testJWTConfig(),
		APIKey: config.APIKeyConfig{
			Header:     "X-API-Key",
			QueryParam: "api_key",
			Length:     32,
		},
	}
}

func TestNewStrategy(t *testing.T) {
	registry := newTestRegistry()

	t.Run("JWT", func(t *testing.T) {
		s, err := NewStrategy(testSecurityConfig(models.AuthTypeJWT), registry)
		require.NoError(t, err)
		assert.IsType(t, &TokenStrategy{}, s)
	})

	t.Run("API Key", func(t *testing.T) {
		s, err := NewStrategy(testSecurityConfig(models.AuthTypeAPIKey), registry)
		require.NoError(t, err)
		assert.IsType(t, &KeyStrategy{}, s)
	})

	t.Run("Hybrid", func(t *testing.T) {
		s, err := NewStrategy(testSecurityConfig(models.AuthTypeHybrid), registry)
		require.NoError(t, err)
		assert.IsType(t, &HybridStrategy{}, s)
	})

	t.Run("Disabled Yields Nil Strategy", func(t *testing.T) {
		cfg := testSecurityConfig(models.AuthTypeJWT)
		cfg.Enabled = false
		s, err := NewStrategy(cfg, registry)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("None Yields Nil Strategy", func(t *testing.T) {
		s, err := NewStrategy(testSecurityConfig(models.AuthTypeNone), registry)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("Unknown Type Rejected", func(t *testing.T) {
		_, err := NewStrategy(testSecurityConfig("oauth"), registry)
		assert.ErrorIs(t, err, ErrUnsupportedAuthType)
	})

	t.Run("JWT Without Secret Rejected", func(t *testing.T) {
		cfg := testSecurityConfig(models.AuthTypeJWT)
		cfg.JWT.SecretKey = ""
		_, err := NewStrategy(cfg, registry)
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("Hybrid Without Secret Rejected", func(t *testing.T) {
		cfg := testSecurityConfig(models.AuthTypeHybrid)
		cfg.JWT.SecretKey = ""
		_, err := NewStrategy(cfg, registry)
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("Hybrid Ordering Follows Preference", func(t *testing.T) {
		cfg := testSecurityConfig(models.AuthTypeHybrid)
		s, err := NewStrategy(cfg, registry)
		require.NoError(t, err)
		hybrid := s.(*HybridStrategy)
		assert.IsType(t, &TokenStrategy{}, hybrid.primary)
		assert.IsType(t, &KeyStrategy{}, hybrid.fallback)

		cfg.PreferJWT = false
		s, err = NewStrategy(cfg, registry)
		require.NoError(t, err)
		hybrid = s.(*HybridStrategy)
		assert.IsType(t, &KeyStrategy{}, hybrid.primary)
		assert.IsType(t, &TokenStrategy{}, hybrid.fallback)
	})
}
