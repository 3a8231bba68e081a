package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gatehouse/gatehouse/internal/database"
	"github.com/gatehouse/gatehouse/internal/models"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port    int           `mapstructure:"port"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds the master token guarding the admin endpoints.
type AuthConfig struct {
	MasterToken string `mapstructure:"master_token"`
}

// SecurityConfig is the validated configuration the auth factory and the
// security dispatcher consume.
type SecurityConfig struct {
	Enabled        bool            `mapstructure:"enabled"`
	AuthType       models.AuthType `mapstructure:"auth_type"`
	PreferJWT      bool            `mapstructure:"prefer_jwt"`
	JWT            JWTConfig       `mapstructure:"jwt"`
	APIKey         APIKeyConfig    `mapstructure:"api_key"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	ExcludedPaths  []string        `mapstructure:"excluded_paths"`
	ProtectedPaths []string        `mapstructure:"protected_paths"`
}

type JWTConfig struct {
	SecretKey                string `mapstructure:"secret_key"`
	Algorithm                string `mapstructure:"algorithm"`
	AccessTokenExpireMinutes int    `mapstructure:"access_token_expire_minutes"`
	RefreshTokenExpireDays   int    `mapstructure:"refresh_token_expire_days"`
	Issuer                   string `mapstructure:"issuer"`
}

type APIKeyConfig struct {
	Header     string `mapstructure:"header"`
	QueryParam string `mapstructure:"query_param"`
	Length     int    `mapstructure:"length"`
}

type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	BurstSize         int    `mapstructure:"burst_size"`
	Backend           string `mapstructure:"backend"`
}

type StorageConfig struct {
	Backend string `mapstructure:"backend"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (c JWTConfig) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (c JWTConfig) RefreshTokenTTL() time.Duration {
	return time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
}

// RequiresJWT reports whether the configured auth type needs a signing
// secret.
func (c SecurityConfig) RequiresJWT() bool {
	return c.AuthType == models.AuthTypeJWT || c.AuthType == models.AuthTypeHybrid
}

// Load reads configuration from the default search paths.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the given file, falling back to the
// default search paths when path is empty. The returned config is validated;
// a JWT-capable auth type without a usable secret is rejected here, never at
// request time.
func LoadWithPath(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	setDefaults(v)

	v.SetEnvPrefix("GATEHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Security.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout", "30s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file_path", "logs/gatehouse.log")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "gatehouse")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("security.enabled", true)
	v.SetDefault("security.auth_type", string(models.AuthTypeJWT))
	v.SetDefault("security.prefer_jwt", true)
	v.SetDefault("security.jwt.algorithm", "HS256")
	v.SetDefault("security.jwt.access_token_expire_minutes", 30)
	v.SetDefault("security.jwt.refresh_token_expire_days", 7)
	v.SetDefault("security.jwt.issuer", "gatehouse")
	v.SetDefault("security.api_key.header", "X-API-Key")
	v.SetDefault("security.api_key.query_param", "api_key")
	v.SetDefault("security.api_key.length", 32)
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_minute", 60)
	v.SetDefault("security.rate_limit.burst_size", 10)
	v.SetDefault("security.rate_limit.backend", "memory")
	v.SetDefault("security.excluded_paths", []string{"/health", "/status", "/metrics", "/auth"})
	v.SetDefault("security.protected_paths", []string{"/api/v1"})
	v.SetDefault("storage.backend", "memory")
}

// Validate enforces the configuration invariants at construction time.
func (c SecurityConfig) Validate() error {
	if !c.Enabled || c.AuthType == models.AuthTypeNone {
		return nil
	}

	switch c.AuthType {
	case models.AuthTypeJWT, models.AuthTypeAPIKey, models.AuthTypeHybrid:
	default:
		return fmt.Errorf("unsupported auth type: %q", c.AuthType)
	}

	if c.RequiresJWT() {
		if len(c.JWT.SecretKey) < 32 {
			return fmt.Errorf("jwt secret key must be at least 32 characters long")
		}
		switch c.JWT.Algorithm {
		case "HS256", "HS384", "HS512":
		default:
			return fmt.Errorf("unsupported jwt algorithm: %q", c.JWT.Algorithm)
		}
	}

	if c.APIKey.Length < 16 || c.APIKey.Length > 64 {
		return fmt.Errorf("api key length must be between 16 and 64 characters")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute <= 0 {
			return fmt.Errorf("rate limit requests per minute must be positive")
		}
		if c.RateLimit.BurstSize <= 0 {
			return fmt.Errorf("rate limit burst size must be positive")
		}
	}

	return nil
}

// ToDBConfig converts DatabaseConfig to database.Config
func (c DatabaseConfig) ToDBConfig() database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.DBName,
		SSLMode:  c.SSLMode,
	}
}
