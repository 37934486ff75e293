package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Driver selects the storage generation backing the ledger.
type Driver string

const (
	// DriverFile is the legacy flat-file store. Single writer only.
	DriverFile Driver = "file"
	// DriverSQLiteLegacy is the two-table sqlite schema that preceded
	// the normalized one. Single owner, kept for migration targets.
	DriverSQLiteLegacy Driver = "sqlite-legacy"
	// DriverSQLite is the normalized schema on embedded sqlite.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres is the normalized schema on networked postgres,
	// the only generation safe under concurrent writers.
	DriverPostgres Driver = "postgres"
)

// Config holds application configuration. The storage medium is an
// explicit value handed to backend constructors; nothing reads it from
// process-wide state after startup.
type Config struct {
	// Server
	Port string
	Env  string

	// Storage
	StorageDriver  Driver
	StorageTimeout time.Duration

	// Flat-file and legacy sqlite generations
	FilePath       string
	SQLitePath     string
	LegacyOwnerID  uint

	// Postgres generation
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Export side channel; empty disables the snapshot refresh on submit.
	ExportPath string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		StorageDriver: Driver(getEnv("STORAGE_DRIVER", "sqlite")),

		FilePath:      getEnv("FILE_PATH", "tracker_data.json"),
		SQLitePath:    getEnv("SQLITE_PATH", "tracker_data.db"),
		LegacyOwnerID: 1,

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "dayledger"),
		DBPassword: getEnv("DB_PASSWORD", "dayledger"),
		DBName:     getEnv("DB_NAME", "dayledger"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		ExportPath: getEnv("EXPORT_PATH", "tracker_data.csv"),
	}

	switch config.StorageDriver {
	case DriverFile, DriverSQLiteLegacy, DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", config.StorageDriver)
	}

	timeoutStr := getEnv("STORAGE_TIMEOUT", "5s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		log.Printf("Warning: invalid STORAGE_TIMEOUT value '%s', falling back to 5s\n", timeoutStr)
		timeout = 5 * time.Second
	}
	config.StorageTimeout = timeout

	return config, nil
}

// DSN returns the postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// MigrateURL returns the postgres URL used by golang-migrate.
func (c *Config) MigrateURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
