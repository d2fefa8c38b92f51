// Package repository owns the authoritative in-memory collection of
// readings. Every mutation goes through the storage adapter first and is
// applied in memory only once the store has confirmed it.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/Adam01140114/WaterData/internal/metrics"
	"github.com/Adam01140114/WaterData/internal/store"
)

// Outcome is the result of a repository mutation.
type Outcome int

const (
	Added Outcome = iota + 1
	Replaced
	Cancelled
	Rejected
	Deleted
	NotFound
)

func (o Outcome) String() string {
	switch o {
	case Added:
		return "added"
	case Replaced:
		return "replaced"
	case Cancelled:
		return "cancelled"
	case Rejected:
		return "rejected"
	case Deleted:
		return "deleted"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// SubmitResult describes what Submit did.
type SubmitResult struct {
	Outcome Outcome
	// Reading is the stored reading for Added and Replaced.
	Reading store.Reading
	// Previous is the same-month reading that was replaced (Replaced) or
	// that blocked the submission (Cancelled).
	Previous *store.Reading
	// Reason explains a Rejected outcome.
	Reason string
}

// Repository is the single source of truth for readings during a session.
type Repository struct {
	store  store.Store
	loc    *time.Location
	sites  map[string]bool
	logger *slog.Logger

	mu       sync.Mutex
	readings []store.Reading
}

// Option configures a Repository.
type Option func(*Repository)

// WithLocation sets the zone used for month bucketing. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithSites restricts submissions to the given site names.
func WithSites(sites ...string) Option {
	return func(r *Repository) {
		if len(sites) == 0 {
			return
		}
		r.sites = make(map[string]bool, len(sites))
		for _, s := range sites {
			r.sites[s] = true
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a repository over s. Call Load before use.
func New(s store.Store, opts ...Option) *Repository {
	r := &Repository{
		store:  s,
		loc:    time.Local,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load replaces the in-memory collection with the store's snapshot.
// Pre-existing same-month duplicates are kept as they are.
func (r *Repository) Load(ctx context.Context) error {
	readings, err := r.store.List(ctx)
	if err != nil {
		return &StorageError{Op: "list", Err: err}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = readings
	metrics.Readings.Set(float64(len(r.readings)))
	r.logger.Info("readings loaded", "count", len(readings))
	return nil
}

// Readings returns a snapshot of the collection in insertion order.
// The caller owns the returned slice.
func (r *Repository) Readings() []store.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return store.Clone(r.readings)
}

// Len returns the number of readings held.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.readings)
}

// Location returns the zone used for month bucketing.
func (r *Repository) Location() *time.Location {
	return r.loc
}

// FindDuplicate returns the first reading, in collection order, for site
// whose timestamp falls in the same calendar month and year as ts.
func (r *Repository) FindDuplicate(site string, ts time.Time) (store.Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findDuplicateLocked(site, ts)
}

// Submit validates d and stores it. When a reading for the same site and
// month exists, c decides whether it is overwritten; a nil Confirmer
// declines. c must not call back into the repository.
func (r *Repository) Submit(ctx context.Context, d store.Draft, c Confirmer) (SubmitResult, error) {
	d, err := r.validate(d)
	if err != nil {
		metrics.Outcomes.WithLabelValues("submit", Rejected.String()).Inc()
		return SubmitResult{Outcome: Rejected, Reason: err.Error()}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := Added
	var previous *store.Reading
	if existing, ok := r.findDuplicateLocked(d.Site, d.Timestamp); ok {
		prev := existing
		previous = &prev

		if c == nil {
			c = NeverOverwrite
		}
		yes, err := c.ConfirmOverwrite(ctx, existing, d)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("confirming overwrite: %w", err)
		}
		if !yes {
			metrics.Outcomes.WithLabelValues("submit", Cancelled.String()).Inc()
			return SubmitResult{Outcome: Cancelled, Previous: previous}, nil
		}

		if err := r.store.Delete(ctx, existing.ID); err != nil {
			return SubmitResult{}, &StorageError{Op: "delete", Err: err}
		}
		r.removeLocked(existing.ID)
		outcome = Replaced
	}

	saved, err := r.store.Add(ctx, d)
	if err != nil {
		return SubmitResult{}, &StorageError{Op: "add", Err: err}
	}
	r.readings = append(r.readings, saved)
	metrics.Readings.Set(float64(len(r.readings)))
	metrics.Outcomes.WithLabelValues("submit", outcome.String()).Inc()

	r.logger.Info("reading stored",
		"outcome", outcome.String(),
		"id", saved.ID,
		"site", saved.Site,
		"water_level", saved.WaterLevel,
	)
	return SubmitResult{Outcome: outcome, Reading: saved, Previous: previous}, nil
}

// Remove deletes the reading with id. The caller is responsible for asking
// the user first; once invoked the deletion is unconditional.
func (r *Repository) Remove(ctx context.Context, id string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexLocked(id) < 0 {
		metrics.Outcomes.WithLabelValues("remove", NotFound.String()).Inc()
		return NotFound, nil
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return 0, &StorageError{Op: "delete", Err: err}
	}
	r.removeLocked(id)
	metrics.Readings.Set(float64(len(r.readings)))
	metrics.Outcomes.WithLabelValues("remove", Deleted.String()).Inc()
	r.logger.Info("reading deleted", "id", id)
	return Deleted, nil
}

// ClearAll removes every reading from the store and from memory.
func (r *Repository) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.Clear(ctx); err != nil {
		return &StorageError{Op: "clear", Err: err}
	}
	n := len(r.readings)
	r.readings = nil
	metrics.Readings.Set(0)
	metrics.Outcomes.WithLabelValues("clear", Deleted.String()).Inc()
	r.logger.Info("all readings cleared", "count", n)
	return nil
}

// BeginEdit returns the fields of reading id for re-entry and removes the
// reading from the store and from memory. The caller is expected to
// resubmit a corrected draft; an abandoned edit loses the reading.
func (r *Repository) BeginEdit(ctx context.Context, id string) (store.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(id)
	if i < 0 {
		metrics.Outcomes.WithLabelValues("edit", NotFound.String()).Inc()
		return store.Draft{}, ErrNotFound
	}
	original := r.readings[i]

	if err := r.store.Delete(ctx, id); err != nil {
		return store.Draft{}, &StorageError{Op: "delete", Err: err}
	}
	r.removeLocked(id)
	metrics.Readings.Set(float64(len(r.readings)))
	metrics.Outcomes.WithLabelValues("edit", Deleted.String()).Inc()
	r.logger.Info("reading taken out for editing", "id", id, "site", original.Site)
	return original.Draft(), nil
}

func (r *Repository) validate(d store.Draft) (store.Draft, error) {
	d.Site = strings.TrimSpace(d.Site)
	if d.Site == "" {
		return d, &ValidationError{Field: "site", Reason: "is required"}
	}
	if r.sites != nil && !r.sites[d.Site] {
		return d, &ValidationError{Field: "site", Reason: fmt.Sprintf("unknown site %q", d.Site)}
	}
	if d.WaterLevel == nil {
		return d, &ValidationError{Field: "waterLevel", Reason: "is required"}
	}
	if math.IsNaN(*d.WaterLevel) || math.IsInf(*d.WaterLevel, 0) {
		return d, &ValidationError{Field: "waterLevel", Reason: "must be a number"}
	}
	if d.Timestamp.IsZero() {
		return d, &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if d.Notes != nil && strings.TrimSpace(*d.Notes) == "" {
		d.Notes = nil
	}
	return d, nil
}

func (r *Repository) findDuplicateLocked(site string, ts time.Time) (store.Reading, bool) {
	t := ts.In(r.loc)
	for _, existing := range r.readings {
		if existing.Site != site {
			continue
		}
		e := existing.Timestamp.In(r.loc)
		if e.Year() == t.Year() && e.Month() == t.Month() {
			return existing, true
		}
	}
	return store.Reading{}, false
}

func (r *Repository) indexLocked(id string) int {
	for i := range r.readings {
		if r.readings[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) removeLocked(id string) {
	kept := make([]store.Reading, 0, len(r.readings))
	for _, existing := range r.readings {
		if existing.ID != id {
			kept = append(kept, existing)
		}
	}
	r.readings = kept
}
