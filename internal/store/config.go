package store

import (
	"errors"
	"strings"
	"time"

	"github.com/ingestord/ingestord/internal/config"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 10 * time.Minute
)

// ErrDatabaseURLEmpty is returned when the database url is an empty string.
var ErrDatabaseURLEmpty = errors.New("database URL cannot be empty")

// Config holds PostgreSQL connection-pool configuration. The connection
// string itself is unexported so it can only leave this package masked.
type Config struct {
	databaseURL     string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads connection configuration from the environment, falling
// back to pool defaults sized for a single service instance.
func LoadConfig() *Config {
	return &Config{
		databaseURL:     config.GetEnvStr("DATABASE_URL", ""),
		MaxOpenConns:    config.GetEnvInt("DATABASE_MAX_OPEN_CONNS", defaultMaxOpenConns),
		MaxIdleConns:    config.GetEnvInt("DATABASE_MAX_IDLE_CONNS", defaultMaxIdleConns),
		ConnMaxLifetime: config.GetEnvDuration("DATABASE_CONN_MAX_LIFETIME", defaultConnMaxLifetime),
		ConnMaxIdleTime: config.GetEnvDuration("DATABASE_CONN_MAX_IDLE_TIME", defaultConnMaxIdleTime),
	}
}

// Validate checks that a connection string is present.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.databaseURL) == "" {
		return ErrDatabaseURLEmpty
	}

	return nil
}

// MaskDatabaseURL returns the connection string with any password replaced
// by asterisks, safe for logging. The last "@" in the authority section is
// the userinfo/host boundary, so passwords containing "@" are fully masked.
func (c *Config) MaskDatabaseURL() string {
	if c.databaseURL == "" {
		return ""
	}

	schemeEnd := strings.Index(c.databaseURL, "://")
	if schemeEnd == -1 {
		return c.databaseURL
	}

	afterScheme := c.databaseURL[schemeEnd+3:]

	authorityEnd := strings.IndexAny(afterScheme, "/?#")
	if authorityEnd == -1 {
		authorityEnd = len(afterScheme)
	}

	lastAt := strings.LastIndex(afterScheme[:authorityEnd], "@")
	if lastAt == -1 {
		return c.databaseURL
	}

	userInfo := afterScheme[:lastAt]

	colon := strings.Index(userInfo, ":")
	if colon == -1 || colon == len(userInfo)-1 {
		return c.databaseURL
	}

	return c.databaseURL[:schemeEnd+3] + userInfo[:colon] + ":***" + afterScheme[lastAt:]
}
