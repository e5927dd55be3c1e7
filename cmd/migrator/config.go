package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ingestord/ingestord/internal/config"
)

// Static configuration errors.
var (
	ErrDatabaseURLRequired    = errors.New("DATABASE_URL cannot be empty")
	ErrMigrationTableRequired = errors.New("MIGRATION_TABLE cannot be empty")
	ErrMigrationsPathRequired = errors.New("MIGRATIONS_PATH cannot be empty")
)

// Config holds the migrator's runtime configuration.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationsPath is the directory holding numbered migration files.
	MigrationsPath string

	// MigrationTable is the table golang-migrate uses to track applied versions.
	MigrationTable string
}

// LoadConfig reads migrator configuration from the environment and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("DATABASE_URL", ""),
		MigrationsPath: config.GetEnvStr("MIGRATIONS_PATH", "./migrations"),
		MigrationTable: config.GetEnvStr("MIGRATION_TABLE", "schema_migrations"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and resolves MigrationsPath to an
// absolute path that must already exist.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrDatabaseURLRequired
	}

	if c.MigrationTable == "" {
		return ErrMigrationTableRequired
	}

	if c.MigrationsPath == "" {
		return ErrMigrationsPathRequired
	}

	absPath, err := filepath.Abs(c.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}

	c.MigrationsPath = absPath

	if _, err := os.Stat(c.MigrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", c.MigrationsPath)
	}

	return nil
}

// String returns a log-safe representation with the database password masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationsPath: %s, MigrationTable: %s}",
		maskDatabaseURL(c.DatabaseURL), c.MigrationsPath, c.MigrationTable)
}

// maskDatabaseURL replaces the password portion of a connection URL with
// asterisks. The last "@" in the authority section separates userinfo from
// host, so passwords containing "@" are masked in full.
func maskDatabaseURL(url string) string {
	schemeEnd := strings.Index(url, "://")
	if schemeEnd == -1 {
		return url
	}

	afterScheme := url[schemeEnd+3:]

	authorityEnd := strings.IndexAny(afterScheme, "/?#")
	if authorityEnd == -1 {
		authorityEnd = len(afterScheme)
	}

	lastAt := strings.LastIndex(afterScheme[:authorityEnd], "@")
	if lastAt == -1 {
		return url
	}

	userInfo := afterScheme[:lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 || colon == len(userInfo)-1 {
		return url
	}

	return url[:schemeEnd+3] + userInfo[:colon] + ":***" + afterScheme[lastAt:]
}
