package tasks

import (
	"context"
	"database/sql"
	"embed"

	"github.com/goliatone/go-errors"
	"github.com/pressly/goose/v3"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// GetMigrationsFS returns the migration files for this package
func GetMigrationsFS() embed.FS {
	return migrationsFS
}

// RunMigrations applies any pending schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db, "data/sql/migrations"); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to run migrations")
	}

	return nil
}
