package models

import "time"

// AuthType represents the authentication mechanism used for a request.
type AuthType string

const (
	AuthTypeJWT    AuthType = "jwt"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeHybrid AuthType = "hybrid"
	AuthTypeNone   AuthType = "none"
)

// SecurityLevel represents the protection level of an endpoint.
type SecurityLevel string

const (
	SecurityLevelPublic    SecurityLevel = "public"
	SecurityLevelProtected SecurityLevel = "protected"
	SecurityLevelAdmin     SecurityLevel = "admin"
)

// TokenTypeAccess and TokenTypeRefresh are the only token types the codec
// issues or accepts.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// SecurityContext is the per-request authentication outcome attached to the
// request scope by the security dispatcher. It is never persisted.
type SecurityContext struct {
	UserID          string        `json:"user_id,omitempty"`
	Username        string        `json:"username,omitempty"`
	AuthType        AuthType      `json:"auth_type"`
	SecurityLevel   SecurityLevel `json:"security_level"`
	Permissions     []string      `json:"permissions"`
	Roles           []string      `json:"roles"`
	IsAuthenticated bool          `json:"is_authenticated"`
	IsAuthorized    bool          `json:"is_authorized"`
	RequestID       string        `json:"request_id,omitempty"`
	IPAddress       string        `json:"ip_address,omitempty"`
	UserAgent       string        `json:"user_agent,omitempty"`
}

// TokenClaims represents the verified claims of a bearer token.
type TokenClaims struct {
	Subject     string    `json:"sub"`
	Username    string    `json:"username"`
	Roles       []string  `json:"roles"`
	Permissions []string  `json:"permissions"`
	IssuedAt    time.Time `json:"iat"`
	ExpiresAt   time.Time `json:"exp"`
	Issuer      string    `json:"iss"`
	TokenType   string    `json:"type"`
}

// APIKey represents a registered API key. The raw secret is never stored;
// only its digest is kept in the backing store.
type APIKey struct {
	KeyID       string     `json:"key_id" db:"key_id"`
	Name        string     `json:"name" db:"name"`
	UserID      string     `json:"user_id,omitempty" db:"user_id"`
	Permissions []string   `json:"permissions" db:"-"`
	RateLimit   *int       `json:"rate_limit,omitempty" db:"rate_limit"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	IsActive    bool       `json:"is_active" db:"is_active"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty" db:"last_used_at"`
}

// Expired reports whether the key's expiry, if any, has passed.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && k.ExpiresAt.Before(now)
}

// KeyStats summarizes the state of the key registry.
type KeyStats struct {
	TotalKeys    int `json:"total_keys"`
	ActiveKeys   int `json:"active_keys"`
	ExpiredKeys  int `json:"expired_keys"`
	InactiveKeys int `json:"inactive_keys"`
}

// CreateTokenRequest is the payload for issuing a new token pair.
type CreateTokenRequest struct {
	UserID      string   `json:"user_id" binding:"required"`
	Username    string   `json:"username" binding:"required"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

// CreateTokenResponse returns the issued token pair.
type CreateTokenResponse struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int      `json:"expires_in"`
	UserID       string   `json:"user_id"`
	Username     string   `json:"username"`
	Roles        []string `json:"roles"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// CreateKeyRequest is the payload for registering a new API key.
type CreateKeyRequest struct {
	Name        string     `json:"name" binding:"required"`
	UserID      string     `json:"user_id"`
	Permissions []string   `json:"permissions"`
	RateLimit   *int       `json:"rate_limit"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

// CreateKeyResponse carries the raw key. It is returned exactly once, at
// creation time.
type CreateKeyResponse struct {
	KeyID       string     `json:"key_id"`
	APIKey      string     `json:"api_key"`
	Name        string     `json:"name"`
	UserID      string     `json:"user_id,omitempty"`
	Permissions []string   `json:"permissions"`
	RateLimit   *int       `json:"rate_limit,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UpdateKeyRequest carries a partial update; nil fields are left untouched.
type UpdateKeyRequest struct {
	Name        *string    `json:"name"`
	Permissions *[]string  `json:"permissions"`
	RateLimit   *int       `json:"rate_limit"`
	ExpiresAt   *time.Time `json:"expires_at"`
	IsActive    *bool      `json:"is_active"`
}

// SecurityError is the structured error body the dispatcher returns on any
// authentication, authorization or rate-limit failure.
type SecurityError struct {
	Error            string    `json:"error"`
	ErrorDescription string    `json:"error_description"`
	ErrorCode        string    `json:"error_code"`
	Timestamp        time.Time `json:"timestamp"`
	RequestID        string    `json:"request_id,omitempty"`
}
