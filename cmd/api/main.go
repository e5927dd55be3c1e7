// Package main provides the ingestord API service: the HTTP submission and
// query ports over the durable job-claim and retry engine.
package main

import (
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"

	migrate "github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ingestord/ingestord/internal/api"
	"github.com/ingestord/ingestord/internal/api/middleware"
	"github.com/ingestord/ingestord/internal/config"
	"github.com/ingestord/ingestord/internal/store"
)

const (
	version = "1.0.0-dev"
	name    = "ingestord-api"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	api.Version = version

	logger.Info("starting ingestord API service",
		slog.String("service", name),
		slog.String("version", version),
		slog.String("address", serverConfig.Address()),
	)

	storeConfig := store.LoadConfig()

	conn, err := store.NewConnection(storeConfig)
	if err != nil {
		logger.Error("failed to connect to database",
			slog.String("database", storeConfig.MaskDatabaseURL()),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if config.GetEnvBool("RUN_MIGRATIONS_ON_STARTUP", false) {
		if err := runMigrations(conn); err != nil {
			logger.Error("failed to apply migrations on startup", slog.String("error", err.Error()))
			os.Exit(1)
		}

		logger.Info("migrations applied successfully")
	}

	jobStore, err := store.New(conn, logger)
	if err != nil {
		logger.Error("failed to create job store", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rateLimiter := middleware.NewInMemoryRateLimiter(middleware.LoadConfig())

	server := api.NewServer(&serverConfig, rateLimiter, jobStore)

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("ingestord API service stopped")
}

// runMigrations applies all pending migrations using the connection already
// opened for the job store. Used only when RUN_MIGRATIONS_ON_STARTUP is set;
// the migrator CLI remains the primary, explicit way to manage schema.
func runMigrations(conn *store.Connection) error {
	driver, err := migratepg.WithInstance(conn.DB, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
