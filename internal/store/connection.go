package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// Registers the "postgres" driver used by sql.Open below.
	_ "github.com/lib/pq"
)

// ErrNoDatabaseConnection is returned when a nil connection is supplied to an operation that requires one.
var ErrNoDatabaseConnection = errors.New("database connection cannot be nil")

// Connection wraps a pooled *sql.DB with ingestord-specific lifecycle management.
type Connection struct {
	*sql.DB
}

// NewConnection opens a PostgreSQL connection pool using the given config and
// verifies connectivity with a ping before returning.
func NewConnection(cfg *Config) (*Connection, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid store config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Connection{DB: db}, nil
}

const pingTimeout = 5 * time.Second

// HealthCheck verifies the connection is still reachable.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c == nil || c.DB == nil {
		return ErrNoDatabaseConnection
	}

	if err := c.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close releases the underlying connection pool.
func (c *Connection) Close() error {
	if c == nil || c.DB == nil {
		return nil
	}

	return c.DB.Close()
}

// Stats exposes the underlying sql.DB connection pool statistics.
func (c *Connection) Stats() sql.DBStats {
	if c == nil || c.DB == nil {
		return sql.DBStats{}
	}

	return c.DB.Stats()
}
