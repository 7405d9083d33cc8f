package store

import (
	"errors"
	"fmt"

	"github.com/claude/liftlog/migrations"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Migrate applies all pending embedded migrations for the configured driver.
func Migrate(opts Options) error {
	var url string
	switch opts.driver() {
	case DriverSQLite:
		if opts.Path == "" {
			return fmt.Errorf("sqlite store needs a path")
		}
		url = "sqlite://" + opts.Path
	case DriverPostgres:
		url = opts.DSN
	default:
		return fmt.Errorf("unknown store driver %q", opts.Driver)
	}

	src, err := iofs.New(migrations.FS, string(opts.driver()))
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}
