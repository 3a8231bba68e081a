package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/models"
)

// KeyHandler exposes API key management. All endpoints sit behind the
// master token guard.
type KeyHandler struct {
	registry *auth.KeyRegistry
}

func NewKeyHandler(registry *auth.KeyRegistry) *KeyHandler {
	return &KeyHandler{registry: registry}
}

// CreateKey registers a new API key. The raw key appears in this response
// and nowhere else.
func (h *KeyHandler) CreateKey(c *gin.Context) {
	var req models.CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&middleware.ValidationError{Message: err.Error()})
		return
	}

	rawKey, key, err := h.registry.Create(c.Request.Context(), &req)
	if err != nil {
		c.Error(auth.Internal("failed to create api key", err))
		return
	}

	c.JSON(http.StatusCreated, models.CreateKeyResponse{
		KeyID:       key.KeyID,
		APIKey:      rawKey,
		Name:        key.Name,
		UserID:      key.UserID,
		Permissions: key.Permissions,
		RateLimit:   key.RateLimit,
		ExpiresAt:   key.ExpiresAt,
		CreatedAt:   key.CreatedAt,
	})
}

// ListKeys returns key records, optionally filtered by the user_id query
// parameter. Raw keys are never included.
func (h *KeyHandler) ListKeys(c *gin.Context) {
	keys, err := h.registry.List(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		c.Error(auth.Internal("failed to list api keys", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "total": len(keys)})
}

// GetKey returns a single key record by id.
func (h *KeyHandler) GetKey(c *gin.Context) {
	key, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(auth.Internal("failed to load api key", err))
		return
	}
	if key == nil {
		c.Error(&middleware.NotFoundError{Message: "api key not found"})
		return
	}
	c.JSON(http.StatusOK, key)
}

// UpdateKey applies a partial update to a key record.
func (h *KeyHandler) UpdateKey(c *gin.Context) {
	var req models.UpdateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(&middleware.ValidationError{Message: err.Error()})
		return
	}

	found, err := h.registry.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		c.Error(auth.Internal("failed to update api key", err))
		return
	}
	if !found {
		c.Error(&middleware.NotFoundError{Message: "api key not found"})
		return
	}

	key, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil || key == nil {
		c.Error(auth.Internal("failed to load updated api key", err))
		return
	}
	c.JSON(http.StatusOK, key)
}

// RevokeKey deactivates a key. Requests carrying the key fail immediately
// afterwards.
func (h *KeyHandler) RevokeKey(c *gin.Context) {
	found, err := h.registry.Revoke(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(auth.Internal("failed to revoke api key", err))
		return
	}
	if !found {
		c.Error(&middleware.NotFoundError{Message: "api key not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "api key revoked", "key_id": c.Param("id")})
}

// CleanupKeys removes every record past its expiry and reports the count.
func (h *KeyHandler) CleanupKeys(c *gin.Context) {
	removed, err := h.registry.CleanupExpired(c.Request.Context())
	if err != nil {
		c.Error(auth.Internal("failed to clean up api keys", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// KeyStats summarizes the registry contents.
func (h *KeyHandler) KeyStats(c *gin.Context) {
	stats, err := h.registry.Stats(c.Request.Context())
	if err != nil {
		c.Error(auth.Internal("failed to compute key stats", err))
		return
	}
	c.JSON(http.StatusOK, stats)
}
