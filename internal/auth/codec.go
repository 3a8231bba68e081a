package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

// TokenCodec issues and verifies signed, expiring bearer tokens.
type TokenCodec struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenCodec builds a codec from validated JWT configuration. The
// algorithm has already been checked at config load time.
func NewTokenCodec(cfg config.JWTConfig) *TokenCodec {
	return &TokenCodec{
		secret:     []byte(cfg.SecretKey),
		method:     jwt.GetSigningMethod(cfg.Algorithm),
		accessTTL:  cfg.AccessTokenTTL(),
		refreshTTL: cfg.RefreshTokenTTL(),
		issuer:     cfg.Issuer,
		now:        time.Now,
	}
}

// AccessTTL returns the access token lifetime.
func (c *TokenCodec) AccessTTL() time.Duration {
	return c.accessTTL
}

// IssueAccess creates a signed access token carrying the given identity and
// any extra claims.
func (c *TokenCodec) IssueAccess(userID, username string, roles, permissions []string, extra map[string]interface{}) (string, error) {
	now := c.now()
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}

	claims := jwt.MapClaims{
		"sub":         userID,
		"user_id":     userID,
		"username":    username,
		"roles":       roles,
		"permissions": permissions,
		"exp":         now.Add(c.accessTTL).Unix(),
		"iat":         now.Unix(),
		"iss":         c.issuer,
		"type":        models.TokenTypeAccess,
	}
	for k, v := range extra {
		claims[k] = v
	}

	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// IssueRefresh creates a signed refresh token. Refresh tokens carry no
// roles or permissions.
func (c *TokenCodec) IssueRefresh(userID, username string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"user_id":  userID,
		"username": username,
		"exp":      now.Add(c.refreshTTL).Unix(),
		"iat":      now.Unix(),
		"iss":      c.issuer,
		"type":     models.TokenTypeRefresh,
	}

	token := jwt.NewWithClaims(c.method, claims)
	return token.SignedString(c.secret)
}

// Verify checks a token and returns its claims. Checks run in order:
// signature, issuer, token type, expiry; the first failure wins and is
// reported through the matching sentinel error.
func (c *TokenCodec) Verify(tokenString string) (*models.TokenClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}

	if issuer, _ := claims["iss"].(string); issuer != c.issuer {
		return nil, ErrIssuerMismatch
	}

	tokenType, _ := claims["type"].(string)
	if tokenType == "" {
		tokenType = models.TokenTypeAccess
	}
	if tokenType != models.TokenTypeAccess && tokenType != models.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, tokenType)
	}

	exp, _ := claims["exp"].(float64)
	if exp == 0 || !c.now().Before(time.Unix(int64(exp), 0)) {
		return nil, ErrTokenExpired
	}

	iat, _ := claims["iat"].(float64)
	subject, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)

	return &models.TokenClaims{
		Subject:     subject,
		Username:    username,
		Roles:       toStringSlice(claims["roles"]),
		Permissions: toStringSlice(claims["permissions"]),
		IssuedAt:    time.Unix(int64(iat), 0),
		ExpiresAt:   time.Unix(int64(exp), 0),
		Issuer:      c.issuer,
		TokenType:   tokenType,
	}, nil
}

// Refresh verifies a refresh token and issues a new access token for the
// same identity. The refresh token itself stays valid until it expires;
// there is no revocation list.
func (c *TokenCodec) Refresh(refreshToken string) (string, error) {
	claims, err := c.Verify(refreshToken)
	if err != nil {
		return "", err
	}
	if claims.TokenType != models.TokenTypeRefresh {
		return "", fmt.Errorf("%w: expected refresh token", ErrUnsupportedTokenType)
	}
	if claims.Subject == "" || claims.Username == "" {
		return "", fmt.Errorf("%w: missing subject", ErrTokenMalformed)
	}

	return c.IssueAccess(claims.Subject, claims.Username, claims.Roles, claims.Permissions, nil)
}

func toStringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}
