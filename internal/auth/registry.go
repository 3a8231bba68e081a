package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gatehouse/gatehouse/internal/models"
)

// KeyStore persists API key records, indexed both by key id and by the
// digest of the raw secret. Lookups are always by digest, never by the raw
// key. Implementations must be safe for concurrent use.
type KeyStore interface {
	Insert(ctx context.Context, key *models.APIKey, digest string) error
	GetByDigest(ctx context.Context, digest string) (*models.APIKey, error)
	GetByID(ctx context.Context, keyID string) (*models.APIKey, error)
	Update(ctx context.Context, key *models.APIKey) error
	Touch(ctx context.Context, keyID string, usedAt time.Time) error
	Delete(ctx context.Context, keyID string) error
	List(ctx context.Context, userID string) ([]*models.APIKey, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// KeyRegistry generates, validates and manages API keys over a pluggable
// KeyStore. Only the sha256 digest of a key is ever stored; the raw key is
// returned exactly once, at creation time.
type KeyRegistry struct {
	store     KeyStore
	keyLength int
	now       func() time.Time
}

func NewKeyRegistry(store KeyStore, keyLength int) *KeyRegistry {
	return &KeyRegistry{
		store:     store,
		keyLength: keyLength,
		now:       time.Now,
	}
}

// HashKey computes the storage digest of a raw API key.
func HashKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}

// Create registers a new API key and returns the raw secret together with
// its record.
func (r *KeyRegistry) Create(ctx context.Context, req *models.CreateKeyRequest) (string, *models.APIKey, error) {
	rawKey, err := generateKey(r.keyLength)
	if err != nil {
		return "", nil, fmt.Errorf("generating api key: %w", err)
	}

	permissions := req.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	key := &models.APIKey{
		KeyID:       uuid.New().String(),
		Name:        req.Name,
		UserID:      req.UserID,
		Permissions: permissions,
		RateLimit:   req.RateLimit,
		ExpiresAt:   req.ExpiresAt,
		IsActive:    true,
		CreatedAt:   r.now().UTC(),
	}

	if err := r.store.Insert(ctx, key, HashKey(rawKey)); err != nil {
		return "", nil, fmt.Errorf("storing api key: %w", err)
	}

	return rawKey, key, nil
}

// Validate looks up a raw key by digest and returns its record, or nil when
// the key is unknown, inactive or expired. Bad credentials are not an
// error; only store failures are. The last-used timestamp is updated
// best-effort on success.
func (r *KeyRegistry) Validate(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if rawKey == "" {
		return nil, nil
	}

	key, err := r.store.GetByDigest(ctx, HashKey(rawKey))
	if err != nil {
		return nil, err
	}
	if key == nil || !key.IsActive || key.Expired(r.now()) {
		return nil, nil
	}

	usedAt := r.now().UTC()
	if err := r.store.Touch(ctx, key.KeyID, usedAt); err == nil {
		key.LastUsedAt = &usedAt
	}

	return key, nil
}

// Get returns a key record by id, or nil when unknown.
func (r *KeyRegistry) Get(ctx context.Context, keyID string) (*models.APIKey, error) {
	return r.store.GetByID(ctx, keyID)
}

// List returns all key records, optionally filtered by owner.
func (r *KeyRegistry) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	return r.store.List(ctx, userID)
}

// Revoke deactivates a key. It is idempotent and reports whether the key
// existed.
func (r *KeyRegistry) Revoke(ctx context.Context, keyID string) (bool, error) {
	key, err := r.store.GetByID(ctx, keyID)
	if err != nil {
		return false, err
	}
	if key == nil {
		return false, nil
	}

	key.IsActive = false
	if err := r.store.Update(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// Update merges the supplied fields into an existing key record and reports
// whether the key existed.
func (r *KeyRegistry) Update(ctx context.Context, keyID string, req *models.UpdateKeyRequest) (bool, error) {
	key, err := r.store.GetByID(ctx, keyID)
	if err != nil {
		return false, err
	}
	if key == nil {
		return false, nil
	}

	if req.Name != nil {
		key.Name = *req.Name
	}
	if req.Permissions != nil {
		key.Permissions = *req.Permissions
	}
	if req.RateLimit != nil {
		key.RateLimit = req.RateLimit
	}
	if req.ExpiresAt != nil {
		key.ExpiresAt = req.ExpiresAt
	}
	if req.IsActive != nil {
		key.IsActive = *req.IsActive
	}

	if err := r.store.Update(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired removes all records past their expiry, along with their
// digest index entries, and returns the removed count.
func (r *KeyRegistry) CleanupExpired(ctx context.Context) (int, error) {
	return r.store.DeleteExpired(ctx, r.now())
}

// Stats summarizes the registry contents.
func (r *KeyRegistry) Stats(ctx context.Context) (*models.KeyStats, error) {
	keys, err := r.store.List(ctx, "")
	if err != nil {
		return nil, err
	}

	now := r.now()
	stats := &models.KeyStats{TotalKeys: len(keys)}
	for _, key := range keys {
		if key.IsActive {
			stats.ActiveKeys++
		} else {
			stats.InactiveKeys++
		}
		if key.Expired(now) {
			stats.ExpiredKeys++
		}
	}
	return stats, nil
}

func generateKey(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
