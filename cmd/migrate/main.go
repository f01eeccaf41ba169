package main

import (
	"flag"
	"log"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/meterline/meterline/internal/config"
	"github.com/meterline/meterline/internal/logger"
)

func main() {
	down := flag.Bool("down", false, "Roll back the most recent migration instead of migrating up")
	source := flag.String("source", "file://migrations", "Migration source URL")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	logger.Infow("connecting to database", "host", cfg.Postgres.Host)

	m, err := migrate.New(*source, cfg.Postgres.GetMigrationURL())
	if err != nil {
		logger.Fatalw("failed to initialize migrations", "error", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			logger.Errorw("failed to close migration resources", "source_error", sourceErr, "db_error", dbErr)
		}
	}()

	if *down {
		if err := m.Steps(-1); err != nil {
			logger.Fatalw("failed to roll back migration", "error", err)
		}
		logger.Info("rolled back one migration")
		return
	}

	if err := m.Up(); err != nil {
		if err == migrate.ErrNoChange {
			logger.Info("database schema already up to date")
			return
		}
		logger.Fatalw("failed to run migrations", "error", err)
	}
	logger.Info("migrations completed")
}
