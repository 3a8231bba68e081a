package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/gatehouse/gatehouse/internal/models"
)

// keyRecord mirrors the api_keys table. Permissions need pq.Array so they
// get a dedicated column mapping here rather than on the model.
type keyRecord struct {
	KeyID       string         `db:"key_id"`
	KeyDigest   string         `db:"key_digest"`
	Name        string         `db:"name"`
	UserID      string         `db:"user_id"`
	Permissions pq.StringArray `db:"permissions"`
	RateLimit   *int           `db:"rate_limit"`
	ExpiresAt   *time.Time     `db:"expires_at"`
	IsActive    bool           `db:"is_active"`
	CreatedAt   time.Time      `db:"created_at"`
	LastUsedAt  *time.Time     `db:"last_used_at"`
}

func (r *keyRecord) toModel() *models.APIKey {
	return &models.APIKey{
		KeyID:       r.KeyID,
		Name:        r.Name,
		UserID:      r.UserID,
		Permissions: append([]string(nil), r.Permissions...),
		RateLimit:   r.RateLimit,
		ExpiresAt:   r.ExpiresAt,
		IsActive:    r.IsActive,
		CreatedAt:   r.CreatedAt,
		LastUsedAt:  r.LastUsedAt,
	}
}

// PostgresKeyStore is the durable KeyStore backend. Raw keys never reach
// this layer; only digests are stored and queried.
type PostgresKeyStore struct {
	db *sqlx.DB
}

func NewPostgresKeyStore(db *sqlx.DB) *PostgresKeyStore {
	return &PostgresKeyStore{db: db}
}

func (s *PostgresKeyStore) Insert(ctx context.Context, key *models.APIKey, digest string) error {
	query := `
		INSERT INTO api_keys (
			key_id, key_digest, name, user_id, permissions,
			rate_limit, expires_at, is_active, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := s.db.ExecContext(ctx, query,
		key.KeyID,
		digest,
		key.Name,
		key.UserID,
		pq.Array(key.Permissions),
		key.RateLimit,
		key.ExpiresAt,
		key.IsActive,
		key.CreatedAt,
	)
	return err
}

func (s *PostgresKeyStore) GetByDigest(ctx context.Context, digest string) (*models.APIKey, error) {
	query := `
		SELECT key_id, key_digest, name, user_id, permissions,
		       rate_limit, expires_at, is_active, created_at, last_used_at
		FROM api_keys
		WHERE key_digest = $1`

	var rec keyRecord
	err := s.db.GetContext(ctx, &rec, query, digest)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *PostgresKeyStore) GetByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	query := `
		SELECT key_id, key_digest, name, user_id, permissions,
		       rate_limit, expires_at, is_active, created_at, last_used_at
		FROM api_keys
		WHERE key_id = $1`

	var rec keyRecord
	err := s.db.GetContext(ctx, &rec, query, keyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec.toModel(), nil
}

func (s *PostgresKeyStore) Update(ctx context.Context, key *models.APIKey) error {
	query := `
		UPDATE api_keys
		SET name = $2, permissions = $3, rate_limit = $4,
		    expires_at = $5, is_active = $6
		WHERE key_id = $1`

	result, err := s.db.ExecContext(ctx, query,
		key.KeyID,
		key.Name,
		pq.Array(key.Permissions),
		key.RateLimit,
		key.ExpiresAt,
		key.IsActive,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrKeyNotFound
	}
	return nil
}

func (s *PostgresKeyStore) Touch(ctx context.Context, keyID string, usedAt time.Time) error {
	query := `UPDATE api_keys SET last_used_at = $2 WHERE key_id = $1`
	result, err := s.db.ExecContext(ctx, query, keyID, usedAt)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return models.ErrKeyNotFound
	}
	return nil
}

func (s *PostgresKeyStore) Delete(ctx context.Context, keyID string) error {
	query := `DELETE FROM api_keys WHERE key_id = $1`
	_, err := s.db.ExecContext(ctx, query, keyID)
	return err
}

func (s *PostgresKeyStore) List(ctx context.Context, userID string) ([]*models.APIKey, error) {
	query := `
		SELECT key_id, key_digest, name, user_id, permissions,
		       rate_limit, expires_at, is_active, created_at, last_used_at
		FROM api_keys`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at DESC`

	var recs []keyRecord
	if err := s.db.SelectContext(ctx, &recs, query, args...); err != nil {
		return nil, err
	}

	keys := make([]*models.APIKey, 0, len(recs))
	for i := range recs {
		keys = append(keys, recs[i].toModel())
	}
	return keys, nil
}

func (s *PostgresKeyStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	query := `DELETE FROM api_keys WHERE expires_at IS NOT NULL AND expires_at < $1`
	result, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(rowsAffected), nil
}
