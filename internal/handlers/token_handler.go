package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/models"
)

// TokenHandler exposes token issuance and refresh. Both endpoints sit
// behind the master token guard.
type TokenHandler struct {
	codec *auth.TokenCodec
}

func NewTokenHandler(codec *auth.TokenCodec) *TokenHandler {
	return &TokenHandler{codec: codec}
}

// CreateToken issues an access/refresh token pair for the given identity.
func (h *TokenHandler) CreateToken(c *gin.Context) {
	var req models.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&middleware.ValidationError{Message: err.Error()})
		return
	}

	accessToken, err := h.codec.IssueAccess(req.UserID, req.Username, req.Roles, req.Permissions, nil)
	if err != nil {
		c.Error(auth.Internal("failed to issue access token", err))
		return
	}

	refreshToken, err := h.codec.IssueRefresh(req.UserID, req.Username)
	if err != nil {
		c.Error(auth.Internal("failed to issue refresh token", err))
		return
	}

	roles := req.Roles
	if roles == nil {
		roles = []string{}
	}

	c.JSON(http.StatusOK, models.CreateTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(h.codec.AccessTTL().Seconds()),
		UserID:       req.UserID,
		Username:     req.Username,
		Roles:        roles,
	})
}

// RefreshToken exchanges a valid refresh token for a new access token. The
// refresh token itself is returned unchanged; it stays valid until expiry.
func (h *TokenHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&middleware.ValidationError{Message: err.Error()})
		return
	}

	accessToken, err := h.codec.Refresh(req.RefreshToken)
	if err != nil {
		c.Error(auth.Unauthenticated("invalid_refresh_token", "refresh token is invalid or expired", err))
		return
	}

	c.JSON(http.StatusOK, models.CreateTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int(h.codec.AccessTTL().Seconds()),
	})
}
