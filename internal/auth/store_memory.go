package auth

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/models"
)

// MemoryKeyStore is the default volatile KeyStore: two maps (digest to key
// id, key id to record) behind a single RWMutex. Records are copied on the
// way in and out so callers never share memory with the store.
type MemoryKeyStore struct {
	mu      sync.RWMutex
	keys    map[string]*models.APIKey
	digests map[string]string
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{
		keys:    make(map[string]*models.APIKey),
		digests: make(map[string]string),
	}
}

func (s *MemoryKeyStore) Insert(ctx context.Context, key *models.APIKey, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key.KeyID] = cloneKey(key)
	s.digests[digest] = key.KeyID
	return nil
}

func (s *MemoryKeyStore) GetByDigest(ctx context.Context, digest string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyID, ok := s.digests[digest]
	if !ok {
		return nil, nil
	}
	key, ok := s.keys[keyID]
	if !ok {
		return nil, nil
	}
	return cloneKey(key), nil
}

func (s *MemoryKeyStore) GetByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, ok := s.keys[keyID]
	if !ok {
		return nil, nil
	}
	return cloneKey(key), nil
}

func (s *MemoryKeyStore) Update(ctx context.Context, key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key.KeyID]; !ok {
		return models.ErrKeyNotFound
	}
	s.keys[key.KeyID] = cloneKey(key)
	return nil
}

func (s *MemoryKeyStore) Touch(ctx context.Context, keyID string, usedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return models.ErrKeyNotFound
	}
	key.LastUsedAt = &usedAt
	return nil
}

func (s *MemoryKeyStore) Delete(ctx context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, keyID)
	s.dropDigestLocked(keyID)
	return nil
}

func (s *MemoryKeyStore) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]*models.APIKey, 0, len(s.keys))
	for _, key := range s.keys {
		if userID != "" && key.UserID != userID {
			continue
		}
		keys = append(keys, cloneKey(key))
	}
	return keys, nil
}

func (s *MemoryKeyStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for keyID, key := range s.keys {
		if key.Expired(now) {
			delete(s.keys, keyID)
			s.dropDigestLocked(keyID)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryKeyStore) dropDigestLocked(keyID string) {
	for digest, id := range s.digests {
		if id == keyID {
			delete(s.digests, digest)
			return
		}
	}
}

func cloneKey(key *models.APIKey) *models.APIKey {
	clone := *key
	clone.Permissions = append([]string(nil), key.Permissions...)
	if key.RateLimit != nil {
		rl := *key.RateLimit
		clone.RateLimit = &rl
	}
	if key.ExpiresAt != nil {
		exp := *key.ExpiresAt
		clone.ExpiresAt = &exp
	}
	if key.LastUsedAt != nil {
		used := *key.LastUsedAt
		clone.LastUsedAt = &used
	}
	return &clone
}
