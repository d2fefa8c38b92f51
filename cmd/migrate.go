package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/config"
	"github.com/Adam01140114/WaterData/internal/store"
)

var dryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations for the local and remote stores",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show current migration versions without applying")
	rootCmd.AddCommand(migrateCmd)
}

// dbOpener is satisfied by both SQLiteStore and PostgresStore.
type dbOpener interface {
	DB() *sql.DB
	Close() error
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if dryRun {
		slog.Info("dry run mode, showing migration status")
		return showMigrationStatus(cfg)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Opening a store runs its migrations.
	var s dbOpener
	s, err = store.NewSQLiteStore(cfg.Storage.Local.Path, loc)
	if err != nil {
		return fmt.Errorf("local store: %w", err)
	}
	_ = s.Close()
	slog.Info("local migrations complete", "path", cfg.Storage.Local.Path)

	if cfg.Storage.Remote.Enabled {
		s, err = store.NewPostgresStore(cfg.Storage.Remote.DSN)
		if err != nil {
			return fmt.Errorf("remote store: %w", err)
		}
		_ = s.Close()
		slog.Info("remote migrations complete", "dsn", redactDSN(cfg.Storage.Remote.DSN))
	}

	return nil
}

func showMigrationStatus(cfg *config.Config) error {
	targets := []struct {
		name, driver, dialect, dsn string
	}{
		{"local", "sqlite", "sqlite3", cfg.Storage.Local.Path},
	}
	if cfg.Storage.Remote.Enabled {
		targets = append(targets, struct {
			name, driver, dialect, dsn string
		}{"remote", "pgx", "postgres", cfg.Storage.Remote.DSN})
	}

	for _, t := range targets {
		db, err := sql.Open(t.driver, t.dsn)
		if err != nil {
			return fmt.Errorf("opening %s database: %w", t.name, err)
		}

		if err := goose.SetDialect(t.dialect); err != nil {
			_ = db.Close()
			return err
		}

		current, err := goose.GetDBVersion(db)
		if err != nil {
			slog.Warn("reading migration version", "store", t.name, "error", err)
			current = 0
		}
		_ = db.Close()

		slog.Info("migration status", "store", t.name, "current_version", current)
	}
	return nil
}
