package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mcdev12/tarkovremote/go/internal/config"
	"github.com/mcdev12/tarkovremote/go/internal/remote/session"
	"github.com/rs/zerolog/log"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

func setupDatabase(ctx context.Context, cfg config.Config) (*sql.DB, string, error) {
	var driver, dsn, target string

	switch cfg.Store.Driver {
	case config.StoreSQLite:
		driver, dsn, target = session.DriverSQLite, cfg.Store.Path, cfg.Store.Path
	case config.StorePostgres:
		db := cfg.Database
		driver, dsn = session.DriverPostgres, db.DSN()
		target = fmt.Sprintf("%s@%s:%d/%s", db.User, db.Host, db.Port, db.Database)
	default:
		return nil, "", fmt.Errorf("store driver %q is not a database", cfg.Store.Driver)
	}

	database, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create database connection: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, "", fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("driver", driver).Str("target", target).Msg("connected to database")
	return database, driver, nil
}
