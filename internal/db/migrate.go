package db

import (
	"context"
	"database/sql"
	"io/fs"

	"github.com/geocoder89/dashboard/internal/db/migrations"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
)

type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// NewMigrator builds a goose provider over the embedded migrations for dialect.
func NewMigrator(sqlDB *sql.DB, dialect Dialect) (*goose.Provider, error) {
	var gooseDialect goose.Dialect

	switch dialect {
	case DialectPostgres:
		gooseDialect = goose.DialectPostgres
	case DialectSQLite:
		gooseDialect = goose.DialectSQLite3
	default:
		return nil, oops.Code("MIGRATION_DIALECT_UNKNOWN").Errorf("unknown dialect %q", dialect)
	}

	fsys, err := fs.Sub(migrations.FS, string(dialect))
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("dialect", dialect).Wrap(err)
	}

	provider, err := goose.NewProvider(gooseDialect, sqlDB, fsys)
	if err != nil {
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("dialect", dialect).Wrap(err)
	}

	return provider, nil
}

// Migrate applies every pending migration.
func Migrate(ctx context.Context, sqlDB *sql.DB, dialect Dialect) error {
	provider, err := NewMigrator(sqlDB, dialect)
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return oops.Code("MIGRATION_UP_FAILED").With("dialect", dialect).Wrap(err)
	}

	return nil
}
