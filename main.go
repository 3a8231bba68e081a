package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/gatehouse/gatehouse/internal/api"
	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/config"
	"github.com/gatehouse/gatehouse/internal/database"
	"github.com/gatehouse/gatehouse/internal/handlers"
	"github.com/gatehouse/gatehouse/internal/logging"
	"github.com/gatehouse/gatehouse/internal/middleware"
	"github.com/gatehouse/gatehouse/internal/repository"
)

const version = "1.0.0"

// NOTE: At least one .sql file must exist in migrations/ for embedding to work.
// Make sure to build from the project root so the path is correct.
//
//go:embed migrations/*.sql
var migrationsFS embed.FS

func runMigrations(cfg *config.Config) error {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DBName,
		cfg.Database.SSLMode,
	)
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}
	fmt.Println("Migrations applied successfully.")
	return nil
}

func main() {
	// CLI flags
	configPath := pflag.StringP("config", "c", "config.yaml", "Path to config file")
	migrateFlag := pflag.BoolP("migrate", "m", false, "Run database migrations and exit")
	versionFlag := pflag.BoolP("version", "v", false, "Print version and exit")
	port := pflag.IntP("port", "p", 8080, "HTTP server listen port")
	logLevel := pflag.StringP("log-level", "l", "info", "Log level (debug, info, warn, error)")
	masterToken := pflag.String("master-token", "", "Override master token from config")
	jwtSecret := pflag.String("jwt-secret", "", "Override JWT secret from config")

	pflag.Parse()

	if *versionFlag {
		fmt.Println("gatehoused version " + version)
		os.Exit(0)
	}

	if *migrateFlag {
		cfg, err := config.LoadWithPath(*configPath)
		if err != nil {
			panic("Failed to load configuration: " + err.Error())
		}
		if err := runMigrations(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Override config with CLI flags if set
	if pflag.Lookup("port").Changed {
		cfg.Server.Port = *port
	}
	if pflag.Lookup("log-level").Changed {
		cfg.Logging.Level = *logLevel
	}
	if pflag.Lookup("master-token").Changed && *masterToken != "" {
		cfg.Auth.MasterToken = *masterToken
	}
	if pflag.Lookup("jwt-secret").Changed && *jwtSecret != "" {
		cfg.Security.JWT.SecretKey = *jwtSecret
		if err := cfg.Security.Validate(); err != nil {
			panic("Invalid security configuration: " + err.Error())
		}
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.LoggingConfig(cfg.Logging))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Starting gatehouse",
		zap.String("version", version),
		zap.String("auth_type", string(cfg.Security.AuthType)),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("rate_limit_backend", cfg.Security.RateLimit.Backend))

	// Key storage backend
	var store auth.KeyStore
	switch cfg.Storage.Backend {
	case "postgres":
		db, err := database.Connect(cfg.Database.ToDBConfig())
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		store = repository.NewPostgresKeyStore(db)
	default:
		store = auth.NewMemoryKeyStore()
	}
	registry := auth.NewKeyRegistry(store, cfg.Security.APIKey.Length)

	// Authentication strategy
	strategy, err := auth.NewStrategy(cfg.Security, registry)
	if err != nil {
		logger.Fatal("Failed to build authentication strategy", zap.Error(err))
	}

	// Rate limiter backend
	var limiter middleware.Limiter
	if cfg.Security.RateLimit.Enabled {
		switch cfg.Security.RateLimit.Backend {
		case "redis":
			redisClient := redis.NewClient(&redis.Options{
				Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			defer redisClient.Close()
			limiter = middleware.NewRedisRateLimiter(redisClient,
				cfg.Security.RateLimit.BurstSize,
				cfg.Security.RateLimit.RequestsPerMinute)
		default:
			rl := middleware.NewRateLimiter(
				middleware.WithRequestsPerMinute(cfg.Security.RateLimit.RequestsPerMinute),
				middleware.WithBurstSize(cfg.Security.RateLimit.BurstSize),
			)
			rlStopCh := make(chan struct{})
			defer close(rlStopCh)
			rl.StartCleanup(time.Minute, rlStopCh)
			limiter = rl
		}
	}

	// Security dispatcher
	dispatcher := middleware.NewSecurityDispatcher(cfg.Security, strategy, limiter,
		logging.WithComponent(logger, "security"))

	// Handlers. The token endpoints only exist when a signing secret is
	// configured; an api_key-only deployment has no JWT surface to offer.
	var tokenHandler *handlers.TokenHandler
	if cfg.Security.RequiresJWT() {
		tokenHandler = handlers.NewTokenHandler(auth.NewTokenCodec(cfg.Security.JWT))
	}
	keyHandler := handlers.NewKeyHandler(registry)

	// Access logger
	accessLogger := logrus.New()

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Dependencies{
		Config:       cfg,
		Logger:       logger,
		AccessLogger: accessLogger,
		Dispatcher:   dispatcher,
		Registry:     registry,
		TokenHandler: tokenHandler,
		KeyHandler:   keyHandler,
		Version:      version,
	})

	// Expired key sweeper
	sweeperStopCh := make(chan struct{})
	auth.StartCleanupSweeper(registry, time.Hour, sweeperStopCh,
		logging.WithComponent(logger, "key-sweeper"))

	// HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Shutting down server...")

		close(sweeperStopCh)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Fatal("Server forced to shutdown", zap.Error(err))
		}
	}()

	logger.Info("Starting server", zap.Int("port", cfg.Server.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}
}
