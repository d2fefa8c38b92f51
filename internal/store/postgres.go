package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed pgmigrations/*.sql
var pgMigrations embed.FS

// PostgresStore implements Store backed by PostgreSQL. It is the remote,
// best-effort backend; callers are expected to wrap it in a Fallback.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection and runs migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	goose.SetBaseFS(pgMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "pgmigrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// ConnectPostgres retries NewPostgresStore with exponential backoff for up
// to maxWait. It only covers startup; individual operations are never retried.
func ConnectPostgres(ctx context.Context, dsn string, maxWait time.Duration, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var ps *PostgresStore
	operation := func() error {
		s, err := NewPostgresStore(dsn)
		if err != nil {
			logger.Warn("remote store not ready", "error", err)
			return err
		}
		ps = s
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxWait
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("connecting to remote store: %w", err)
	}
	return ps, nil
}

// DB returns the underlying database connection for migration commands.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) List(ctx context.Context) ([]Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, site, water_level, timestamp, notes
		FROM water_levels
		ORDER BY created_at, seq`)
	if err != nil {
		return nil, fmt.Errorf("listing readings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var result []Reading
	for rows.Next() {
		var r Reading
		var notes sql.NullString
		if err := rows.Scan(&r.ID, &r.Site, &r.WaterLevel, &r.Timestamp, &notes); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		if notes.Valid {
			r.Notes = &notes.String
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func (s *PostgresStore) Add(ctx context.Context, d Draft) (Reading, error) {
	r := d.Finalize(uuid.NewString())

	var notes sql.NullString
	if r.Notes != nil {
		notes = sql.NullString{String: *r.Notes, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO water_levels (id, site, water_level, timestamp, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.Site, r.WaterLevel, r.Timestamp, notes)
	if err != nil {
		return Reading{}, fmt.Errorf("adding reading: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM water_levels WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting reading: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM water_levels`); err != nil {
		return fmt.Errorf("clearing readings: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
