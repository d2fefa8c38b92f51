package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adam01140114/WaterData/internal/metrics"
)

// Fallback is the storage adapter handed to the repository. It prefers the
// remote store and falls back to the local cache for any operation the
// remote store fails. Successful remote mutations are shadowed into the
// local cache so a later outage still exposes the last known state.
//
// A failed remote call is not retried; the next operation tries the remote
// store again.
type Fallback struct {
	remote Store
	local  Cache
	logger *slog.Logger

	// OnFallback, if set, is called after a remote failure was absorbed by
	// the local cache. It is how callers surface the condition to users.
	OnFallback func(op string, err error)
}

// NewFallback creates the adapter. remote may be nil, in which case every
// operation goes straight to local.
func NewFallback(remote Store, local Cache, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{remote: remote, local: local, logger: logger}
}

// Mode reports which backend is primary: "remote" or "local".
func (f *Fallback) Mode() string {
	if f.remote != nil {
		return "remote"
	}
	return "local"
}

func (f *Fallback) List(ctx context.Context) ([]Reading, error) {
	if f.remote != nil {
		start := time.Now()
		readings, err := f.remote.List(ctx)
		metrics.ObserveStorage("remote", "list", start, err)
		if err == nil {
			if err := f.local.Replace(ctx, readings); err != nil {
				f.logger.Warn("shadow write to local store failed", "op", "list", "error", err)
			}
			return readings, nil
		}
		f.fellBack("list", err)
	}

	start := time.Now()
	readings, err := f.local.List(ctx)
	metrics.ObserveStorage("local", "list", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing local readings: %w", err)
	}
	return readings, nil
}

func (f *Fallback) Add(ctx context.Context, d Draft) (Reading, error) {
	if f.remote != nil {
		start := time.Now()
		r, err := f.remote.Add(ctx, d)
		metrics.ObserveStorage("remote", "add", start, err)
		if err == nil {
			if err := f.local.Put(ctx, r); err != nil {
				f.logger.Warn("shadow write to local store failed", "op", "add", "id", r.ID, "error", err)
			}
			return r, nil
		}
		f.fellBack("add", err)
	}

	start := time.Now()
	r, err := f.local.Add(ctx, d)
	metrics.ObserveStorage("local", "add", start, err)
	if err != nil {
		return Reading{}, fmt.Errorf("adding local reading: %w", err)
	}
	return r, nil
}

func (f *Fallback) Delete(ctx context.Context, id string) error {
	if f.remote != nil {
		start := time.Now()
		err := f.remote.Delete(ctx, id)
		metrics.ObserveStorage("remote", "delete", start, err)
		if err == nil {
			if err := f.local.Delete(ctx, id); err != nil {
				f.logger.Warn("shadow write to local store failed", "op", "delete", "id", id, "error", err)
			}
			return nil
		}
		f.fellBack("delete", err)
	}

	start := time.Now()
	err := f.local.Delete(ctx, id)
	metrics.ObserveStorage("local", "delete", start, err)
	if err != nil {
		return fmt.Errorf("deleting local reading: %w", err)
	}
	return nil
}

func (f *Fallback) Clear(ctx context.Context) error {
	if f.remote != nil {
		start := time.Now()
		err := f.remote.Clear(ctx)
		metrics.ObserveStorage("remote", "clear", start, err)
		if err == nil {
			if err := f.local.Clear(ctx); err != nil {
				f.logger.Warn("shadow write to local store failed", "op", "clear", "error", err)
			}
			return nil
		}
		f.fellBack("clear", err)
	}

	start := time.Now()
	err := f.local.Clear(ctx)
	metrics.ObserveStorage("local", "clear", start, err)
	if err != nil {
		return fmt.Errorf("clearing local readings: %w", err)
	}
	return nil
}

// Close closes both backends and returns the first error.
func (f *Fallback) Close() error {
	var first error
	if f.remote != nil {
		first = f.remote.Close()
	}
	if err := f.local.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

func (f *Fallback) fellBack(op string, err error) {
	f.logger.Warn("remote store failed, using local store", "op", op, "error", err)
	metrics.StorageFallbacks.WithLabelValues(op).Inc()
	if f.OnFallback != nil {
		f.OnFallback(op, err)
	}
}
