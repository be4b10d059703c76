package db

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/kekarecall/apiserver/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate applies all pending up migrations for the connection's driver.
func Migrate(conn *sqlx.DB, cfg config.DatabaseConfig) error {
	migrator, closeFn, err := newMigrator(conn, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(conn *sqlx.DB, cfg config.DatabaseConfig, steps int) error {
	if steps < 1 {
		steps = 1
	}
	migrator, closeFn, err := newMigrator(conn, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	if err := migrator.Steps(-steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}

func newMigrator(conn *sqlx.DB, cfg config.DatabaseConfig) (*migrate.Migrate, func(), error) {
	driver := conn.DriverName()
	sub, err := fs.Sub(migrationsFS, "migrations/"+driver)
	if err != nil {
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	src, err := iofs.New(sub, ".")
	if err != nil {
		return nil, nil, fmt.Errorf("init migration source failed: %w", err)
	}

	switch driver {
	case DriverSQLite:
		// Reuse the open handle so in-memory databases see the schema.
		// Closing this migrator would close conn, so only the source is released.
		instance, err := sqlite3.WithInstance(conn.DB, &sqlite3.Config{})
		if err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("init sqlite migrator failed: %w", err)
		}
		migrator, err := migrate.NewWithInstance("iofs", src, driver, instance)
		if err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("init migrator failed: %w", err)
		}
		return migrator, func() { _ = src.Close() }, nil
	case DriverPostgres:
		migrator, err := migrate.NewWithSourceInstance("iofs", src, cfg.URL)
		if err != nil {
			_ = src.Close()
			return nil, nil, fmt.Errorf("init migrator failed: %w", err)
		}
		return migrator, func() { _, _ = migrator.Close() }, nil
	default:
		_ = src.Close()
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}
