package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/geocoder89/dashboard/internal/config"
	"github.com/geocoder89/dashboard/internal/db"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"
)

var driver string

// newRootCmd creates the migrate CLI. Connection settings come from the same
// environment as the API.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the dashboard database schema",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&driver, "driver", "", "store driver (postgres, sqlite); defaults to STORE_DRIVER")

	cmd.AddCommand(newUpCmd())
	cmd.AddCommand(newDownCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
				results, err := p.Up(ctx)
				if err != nil {
					return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
				}

				if len(results) == 0 {
					cmd.Println("no pending migrations")
				}
				for _, r := range results {
					cmd.Printf("applied %s (%s)\n", r.Source.Path, r.Duration.Round(time.Millisecond))
				}
				return nil
			})
		},
	}
}

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
				r, err := p.Down(ctx)
				if err != nil {
					return oops.Code("MIGRATION_DOWN_FAILED").Wrap(err)
				}

				cmd.Printf("rolled back %s\n", r.Source.Path)
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withProvider(cmd.Context(), func(ctx context.Context, p *goose.Provider) error {
				statuses, err := p.Status(ctx)
				if err != nil {
					return oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
				}

				for _, s := range statuses {
					applied := "pending"
					if s.State == goose.StateApplied {
						applied = s.AppliedAt.Format(time.RFC3339)
					}
					cmd.Printf("%-40s %s\n", s.Source.Path, applied)
				}
				return nil
			})
		},
	}
}

func withProvider(ctx context.Context, fn func(context.Context, *goose.Provider) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Load()

	d := driver
	if d == "" {
		d = cfg.StoreDriver
	}

	sqlDB, dialect, err := open(ctx, cfg, d)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	p, err := db.NewMigrator(sqlDB, dialect)
	if err != nil {
		return err
	}

	return fn(ctx, p)
}

func open(ctx context.Context, cfg config.Config, d string) (*sql.DB, db.Dialect, error) {
	switch d {
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		return sqlDB, db.DialectSQLite, err

	case config.StorePostgres:
		sqlDB, err := sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, "", oops.Code("DB_CONNECT_FAILED").Wrap(err)
		}
		return sqlDB, db.DialectPostgres, nil

	default:
		return nil, "", oops.Code("CONFIG_INVALID").Errorf("driver %q has no schema to migrate", d)
	}
}
