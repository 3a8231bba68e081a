package auth

import (
	"fmt"

	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/models"
)

// NewStrategy builds the configured authentication strategy. The strategy
// set is closed: jwt, api_key and hybrid. A disabled configuration (or auth
// type "none") yields a nil strategy, meaning the dispatcher forwards
// everything. Incomplete configurations are rejected here, never at
// request time.
func NewStrategy(cfg config.SecurityConfig, registry *KeyRegistry) (Strategy, error) {
	if !cfg.Enabled || cfg.AuthType == models.AuthTypeNone {
		return nil, nil
	}

	switch cfg.AuthType {
	case models.AuthTypeJWT:
		codec, err := newCodec(cfg)
		if err != nil {
			return nil, err
		}
		return NewTokenStrategy(codec), nil

	case models.AuthTypeAPIKey:
		return NewKeyStrategy(registry, cfg.APIKey.Header, cfg.APIKey.QueryParam), nil

	case models.AuthTypeHybrid:
		codec, err := newCodec(cfg)
		if err != nil {
			return nil, err
		}
		tokenStrategy := NewTokenStrategy(codec)
		keyStrategy := NewKeyStrategy(registry, cfg.APIKey.Header, cfg.APIKey.QueryParam)
		if cfg.PreferJWT {
			return NewHybridStrategy(tokenStrategy, keyStrategy), nil
		}
		return NewHybridStrategy(keyStrategy, tokenStrategy), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAuthType, cfg.AuthType)
	}
}

func newCodec(cfg config.SecurityConfig) (*TokenCodec, error) {
	if cfg.JWT.SecretKey == "" {
		return nil, ErrMissingSecret
	}
	return NewTokenCodec(cfg.JWT), nil
}
