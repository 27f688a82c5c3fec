//go:build integration

package db

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/suite"
)

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TestInventoryPostgres runs the inventory suite against a live PostgreSQL
// server configured through LEGION_TEST_DB_* variables.
func TestInventoryPostgres(t *testing.T) {
	port, err := strconv.Atoi(getEnvWithDefault("LEGION_TEST_DB_PORT", "5432"))
	if err != nil {
		t.Fatalf("invalid LEGION_TEST_DB_PORT: %v", err)
	}

	suite.Run(t, &InventoryTestSuite{config: Config{
		Driver:       DriverPostgres,
		Host:         getEnvWithDefault("LEGION_TEST_DB_HOST", "localhost"),
		Port:         port,
		Database:     getEnvWithDefault("LEGION_TEST_DB_NAME", "legion_test"),
		Username:     getEnvWithDefault("LEGION_TEST_DB_USER", "legion_test"),
		Password:     getEnvWithDefault("LEGION_TEST_DB_PASSWORD", "test_password"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}})
}
