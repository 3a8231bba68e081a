package auth

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/gatehouse/gatehouse/internal/models"
)

// Strategy authenticates an HTTP request and produces a security context.
// Failures are always *Error values with kind Unauthenticated unless the
// backing store itself failed.
type Strategy interface {
	Authenticate(r *http.Request) (*models.SecurityContext, error)
}

// TokenStrategy authenticates bearer tokens from the Authorization header.
type TokenStrategy struct {
	codec *TokenCodec
}

func NewTokenStrategy(codec *TokenCodec) *TokenStrategy {
	return &TokenStrategy{codec: codec}
}

// Codec exposes the underlying token codec for token issuance.
func (s *TokenStrategy) Codec() *TokenCodec {
	return s.codec
}

func (s *TokenStrategy) Authenticate(r *http.Request) (*models.SecurityContext, error) {
	token := ExtractBearerToken(r)
	if token == "" {
		return nil, Unauthenticated("authentication_required", "missing or invalid authorization header", nil)
	}

	claims, err := s.codec.Verify(token)
	if err != nil {
		return nil, Unauthenticated("authentication_failed", "invalid token", err)
	}

	return &models.SecurityContext{
		UserID:          claims.Subject,
		Username:        claims.Username,
		AuthType:        models.AuthTypeJWT,
		SecurityLevel:   models.SecurityLevelProtected,
		Permissions:     claims.Permissions,
		Roles:           claims.Roles,
		IsAuthenticated: true,
		IsAuthorized:    true,
		RequestID:       r.Header.Get("X-Request-ID"),
		IPAddress:       clientIP(r),
		UserAgent:       r.UserAgent(),
	}, nil
}

// KeyStrategy authenticates API keys from a header or query parameter.
type KeyStrategy struct {
	registry   *KeyRegistry
	header     string
	queryParam string
}

func NewKeyStrategy(registry *KeyRegistry, header, queryParam string) *KeyStrategy {
	return &KeyStrategy{registry: registry, header: header, queryParam: queryParam}
}

// Registry exposes the underlying key registry for the admin surface.
func (s *KeyStrategy) Registry() *KeyRegistry {
	return s.registry
}

func (s *KeyStrategy) Authenticate(r *http.Request) (*models.SecurityContext, error) {
	rawKey := s.extractKey(r)
	if rawKey == "" {
		msg := fmt.Sprintf("missing API key: provide it via the %s header or the %s query parameter", s.header, s.queryParam)
		return nil, Unauthenticated("authentication_required", msg, nil)
	}

	key, err := s.registry.Validate(r.Context(), rawKey)
	if err != nil {
		return nil, Internal("api key validation failed", err)
	}
	if key == nil {
		return nil, Unauthenticated("authentication_failed", "invalid or expired API key", nil)
	}

	return &models.SecurityContext{
		UserID:          key.UserID,
		Username:        key.Name,
		AuthType:        models.AuthTypeAPIKey,
		SecurityLevel:   models.SecurityLevelProtected,
		Permissions:     key.Permissions,
		Roles:           []string{"api_key_user"},
		IsAuthenticated: true,
		IsAuthorized:    true,
		RequestID:       r.Header.Get("X-Request-ID"),
		IPAddress:       clientIP(r),
		UserAgent:       r.UserAgent(),
	}, nil
}

// Header checked before query parameter.
func (s *KeyStrategy) extractKey(r *http.Request) string {
	if key := r.Header.Get(s.header); key != "" {
		return key
	}
	return r.URL.Query().Get(s.queryParam)
}

// HybridStrategy tries the preferred strategy first and falls back to the
// other. When both fail, the first-tried strategy's error is surfaced; the
// tie-break is deterministic so clients always see the preferred method's
// message.
type HybridStrategy struct {
	primary  Strategy
	fallback Strategy
}

func NewHybridStrategy(primary, fallback Strategy) *HybridStrategy {
	return &HybridStrategy{primary: primary, fallback: fallback}
}

func (s *HybridStrategy) Authenticate(r *http.Request) (*models.SecurityContext, error) {
	sc, primaryErr := s.primary.Authenticate(r)
	if primaryErr == nil {
		return sc, nil
	}

	sc, fallbackErr := s.fallback.Authenticate(r)
	if fallbackErr == nil {
		return sc, nil
	}

	return nil, primaryErr
}

// ExtractBearerToken pulls the token out of an Authorization header with a
// case-insensitive Bearer scheme. Returns "" when absent or malformed.
func ExtractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
