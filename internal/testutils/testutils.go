package testutils

import (
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/gatehouse/gatehouse/internal/database"
)

var (
	testDB     *sqlx.DB
	dbInitOnce sync.Once
)

// TestDB returns a shared test database connection. Tests that need it are
// skipped when TEST_DB_HOST is not set.
func TestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	if os.Getenv("TEST_DB_HOST") == "" {
		t.Skip("TEST_DB_HOST not set; skipping database test")
	}

	var initErr error
	dbInitOnce.Do(func() {
		cfg := database.Config{
			Host:     getEnv("TEST_DB_HOST", "localhost"),
			Port:     5433,
			User:     getEnv("TEST_DB_USER", "postgres"),
			Password: getEnv("TEST_DB_PASSWORD", "postgres"),
			DBName:   getEnv("TEST_DB_NAME", "gatehouse_test"),
			SSLMode:  getEnv("TEST_DB_SSL_MODE", "disable"),
		}

		testDB, initErr = database.Connect(cfg)
		if initErr != nil {
			return
		}

		_, initErr = testDB.Exec("TRUNCATE TABLE api_keys CASCADE")
	})

	if initErr != nil {
		t.Fatalf("Failed to initialize test database: %v", initErr)
	}

	t.Cleanup(func() {
		_, err := testDB.Exec("TRUNCATE TABLE api_keys CASCADE")
		if err != nil {
			t.Errorf("Failed to clean up test data: %v", err)
		}
	})

	return testDB
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// RandomUUID returns a new random UUID for testing
func RandomUUID() uuid.UUID {
	return uuid.New()
}
