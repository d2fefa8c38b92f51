package store

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// BlobKey is the well-known key the whole collection is stored under.
const BlobKey = "waterLevelData"

// SQLiteStore implements Cache backed by SQLite. The collection is kept as
// a single JSON list under BlobKey, the same shape the browser app kept in
// localStorage, so exported blobs can be loaded directly.
type SQLiteStore struct {
	db     *sql.DB
	loc    *time.Location
	logger *slog.Logger

	mu     sync.Mutex
	lastID int64
}

// NewSQLiteStore opens a SQLite database, sets file permissions, and runs migrations.
// Wall-clock timestamps without a zone are read in loc.
func NewSQLiteStore(dsn string, loc *time.Location) (*SQLiteStore, error) {
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := os.Chmod(dsn, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("setting file permissions: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &SQLiteStore{db: db, loc: loc, logger: slog.Default()}, nil
}

// DB returns the underlying database connection for migration commands.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) List(ctx context.Context) ([]Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *SQLiteStore) Add(ctx context.Context, d Draft) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load(ctx)
	if err != nil {
		return Reading{}, err
	}
	r := d.Finalize(s.nextID())
	if err := s.save(ctx, append(readings, r)); err != nil {
		return Reading{}, err
	}
	return r, nil
}

func (s *SQLiteStore) Put(ctx context.Context, r Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range readings {
		if readings[i].ID == r.ID {
			readings[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		readings = append(readings, r)
	}
	return s.save(ctx, readings)
}

func (s *SQLiteStore) Replace(ctx context.Context, readings []Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observeIDs(readings)
	return s.save(ctx, readings)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.load(ctx)
	if err != nil {
		return err
	}
	kept := readings[:0]
	for _, r := range readings {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(readings) {
		return nil
	}
	return s.save(ctx, kept)
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, BlobKey); err != nil {
		return fmt.Errorf("clearing readings: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// load reads the blob. An absent or unreadable blob yields an empty collection.
func (s *SQLiteStore) load(ctx context.Context) ([]Reading, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, BlobKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading readings: %w", err)
	}

	readings, err := decodeBlob([]byte(raw), s.loc)
	if err != nil {
		s.logger.Warn("discarding unreadable reading blob", "key", BlobKey, "error", err)
		return nil, nil
	}
	s.observeIDs(readings)

	// Records written without an id get one, persisted so later calls see
	// the same id.
	assigned := false
	for i := range readings {
		if readings[i].ID == "" {
			readings[i].ID = s.nextID()
			assigned = true
		}
	}
	if assigned {
		if err := s.save(ctx, readings); err != nil {
			return nil, err
		}
	}
	return readings, nil
}

func (s *SQLiteStore) save(ctx context.Context, readings []Reading) error {
	if readings == nil {
		readings = []Reading{}
	}
	data, err := json.Marshal(readings)
	if err != nil {
		return fmt.Errorf("encoding readings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value=excluded.value,
			updated_at=excluded.updated_at`,
		BlobKey, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving readings: %w", err)
	}
	return nil
}

// nextID issues a creation-time token, bumped so it stays strictly increasing.
func (s *SQLiteStore) nextID() string {
	id := time.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

func (s *SQLiteStore) observeIDs(readings []Reading) {
	for _, r := range readings {
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
}

// --- Blob decoding ---

// blobRecord tolerates what the browser app wrote: numeric IDs and
// zone-less "2006-01-02T15:04" timestamps.
type blobRecord struct {
	ID         json.RawMessage `json:"id"`
	Site       string          `json:"site"`
	WaterLevel float64         `json:"waterLevel"`
	Timestamp  string          `json:"timestamp"`
	Notes      *string         `json:"notes"`
}

func decodeBlob(data []byte, loc *time.Location) ([]Reading, error) {
	var records []blobRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	readings := make([]Reading, 0, len(records))
	for i, rec := range records {
		ts, err := ParseTimestamp(rec.Timestamp, loc)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		id, err := decodeID(rec.ID)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		notes := rec.Notes
		if notes != nil && strings.TrimSpace(*notes) == "" {
			notes = nil
		}
		readings = append(readings, Reading{
			ID:         id,
			Site:       rec.Site,
			WaterLevel: rec.WaterLevel,
			Timestamp:  ts,
			Notes:      notes,
		})
	}
	return readings, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("decoding id: %w", err)
		}
		return id, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("decoding id: %w", err)
	}
	return n.String(), nil
}

// ParseTimestamp accepts RFC3339 values and the zone-less wall-clock forms
// produced by datetime-local inputs, which are interpreted in loc.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if ts, err := time.ParseInLocation(layout, v, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse timestamp: %q", v)
}
