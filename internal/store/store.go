package store

import (
	"context"
	"time"
)

// Store defines the durable collection of readings.
// SQLiteStore, PostgresStore and Fallback all satisfy this interface.
type Store interface {
	// List returns every persisted reading in insertion order.
	List(ctx context.Context) ([]Reading, error)

	// Add persists a draft and returns the finalized reading with its assigned ID.
	Add(ctx context.Context, d Draft) (Reading, error)

	// Delete removes a reading. Deleting an unknown ID is not an error.
	Delete(ctx context.Context, id string) error

	// Clear removes every persisted reading.
	Clear(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// Cache is a Store that can also hold readings whose IDs were issued
// elsewhere. The local store implements it so it can shadow the remote one.
type Cache interface {
	Store

	// Put stores r as-is, replacing any reading with the same ID.
	Put(ctx context.Context, r Reading) error

	// Replace swaps the whole collection for readings.
	Replace(ctx context.Context, readings []Reading) error
}

// Reading is one water-level measurement for a site.
type Reading struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	WaterLevel float64   `json:"waterLevel"` // centimeters
	Timestamp  time.Time `json:"timestamp"`
	Notes      *string   `json:"notes,omitempty"`
}

// Draft holds a reading's fields before the store assigns an ID.
// WaterLevel is a pointer so a missing value can be told apart from zero.
type Draft struct {
	Site       string    `json:"site"`
	WaterLevel *float64  `json:"waterLevel"`
	Timestamp  time.Time `json:"timestamp"`
	Notes      *string   `json:"notes,omitempty"`
}

// Draft returns a copy of the reading's fields suitable for re-entry.
func (r Reading) Draft() Draft {
	level := r.WaterLevel
	return Draft{
		Site:       r.Site,
		WaterLevel: &level,
		Timestamp:  r.Timestamp,
		Notes:      cloneString(r.Notes),
	}
}

// NotesOr returns the notes, or fallback when none were recorded.
func (r Reading) NotesOr(fallback string) string {
	if r.Notes == nil {
		return fallback
	}
	return *r.Notes
}

// Finalize builds a reading from the draft with the given ID.
// The caller must have validated the draft.
func (d Draft) Finalize(id string) Reading {
	var level float64
	if d.WaterLevel != nil {
		level = *d.WaterLevel
	}
	return Reading{
		ID:         id,
		Site:       d.Site,
		WaterLevel: level,
		Timestamp:  d.Timestamp,
		Notes:      cloneString(d.Notes),
	}
}

// Ptr returns a pointer to v. Handy for building drafts.
func Ptr[T any](v T) *T {
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Clone returns a deep copy of readings.
func Clone(readings []Reading) []Reading {
	if readings == nil {
		return nil
	}
	out := make([]Reading, len(readings))
	for i, r := range readings {
		r.Notes = cloneString(r.Notes)
		out[i] = r
	}
	return out
}
