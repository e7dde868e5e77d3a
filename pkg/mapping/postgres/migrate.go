package postgres

import (
	"database/sql"
	"embed"
	"errors"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // registers the "postgres" database/sql driver

	pkgerrors "github.com/ervinkurbegovic/jamfsync/pkg/errors"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the mapping schema up to date.
func Migrate(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return pkgerrors.NewConfigError("mapping", "invalid postgres dsn", err)
	}
	defer func() { _ = db.Close() }()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{
		MigrationsTable: "jamfsync_schema_migrations",
	})
	if err != nil {
		return pkgerrors.WrapResource("connect", "mapping schema", "", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return pkgerrors.WrapResource("load", "mapping migrations", "", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return pkgerrors.WrapResource("init", "mapping migrations", "", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return pkgerrors.WrapResource("apply", "mapping migrations", "", err)
	}
	return nil
}
