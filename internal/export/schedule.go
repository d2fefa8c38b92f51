package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Adam01140114/WaterData/internal/metrics"
	"github.com/Adam01140114/WaterData/internal/store"
)

// Formats accepted by WriteFile.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// WriteFile writes readings to dir under the dated export name and returns
// the path. The file is written to a temporary name first and renamed into
// place.
func WriteFile(dir, format string, readings []store.Reading, loc *time.Location, now time.Time) (string, error) {
	var render func(*os.File) error
	switch format {
	case FormatCSV:
		render = func(f *os.File) error { return WriteCSV(f, readings, loc) }
	case FormatXLSX:
		render = func(f *os.File) error { return WriteXLSX(f, readings, loc) }
	default:
		return "", fmt.Errorf("unknown export format %q (want csv or xlsx)", format)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}
	path := filepath.Join(dir, Filename(now, format))

	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if err := render(tmp); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("moving export into place: %w", err)
	}
	return path, nil
}

// Snapshotter supplies the readings to export.
type Snapshotter interface {
	Readings() []store.Reading
}

// Scheduler writes a CSV export of the current snapshot on a cron schedule.
type Scheduler struct {
	spec   string
	dir    string
	src    Snapshotter
	loc    *time.Location
	logger *slog.Logger
	now    func() time.Time
}

// NewScheduler creates a scheduler for the standard cron spec.
func NewScheduler(spec, dir string, src Snapshotter, loc *time.Location, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{spec: spec, dir: dir, src: src, loc: loc, logger: logger, now: time.Now}
}

// RunOnce exports the current snapshot. An empty collection writes nothing
// and returns an empty path.
func (s *Scheduler) RunOnce() (string, error) {
	readings := s.src.Readings()
	if len(readings) == 0 {
		s.logger.Info("scheduled export skipped", "reason", "no readings")
		return "", nil
	}
	path, err := WriteFile(s.dir, FormatCSV, readings, s.loc, s.now().In(s.loc))
	if err != nil {
		return "", err
	}
	metrics.Exports.WithLabelValues(FormatCSV, "schedule").Inc()
	s.logger.Info("scheduled export written", "path", path, "readings", len(readings))
	return path, nil
}

// Run schedules exports and blocks until ctx is cancelled. Running jobs are
// allowed to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(); err != nil {
			s.logger.Error("scheduled export failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("scheduling export %q: %w", s.spec, err)
	}

	s.logger.Info("export scheduler started", "schedule", s.spec, "dir", s.dir)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
