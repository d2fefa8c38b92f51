package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

type staticSnapshot []store.Reading

func (s staticSnapshot) Readings() []store.Reading { return store.Clone(s) }

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	now := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	path, err := WriteFile(dir, FormatCSV, sampleReadings(), time.UTC, now)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Base(path) != "water_levels_2024-03-07.csv" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != CSV(sampleReadings(), time.UTC) {
		t.Errorf("file content = %q", data)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".export-") {
			t.Errorf("temporary file %s left behind", e.Name())
		}
	}

	xlsx, err := WriteFile(dir, FormatXLSX, sampleReadings(), time.UTC, now)
	if err != nil {
		t.Fatalf("WriteFile xlsx: %v", err)
	}
	if filepath.Ext(xlsx) != ".xlsx" {
		t.Errorf("path = %s", xlsx)
	}

	if _, err := WriteFile(dir, "pdf", sampleReadings(), time.UTC, now); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	dir := t.TempDir()

	empty := NewScheduler("@daily", dir, staticSnapshot(nil), time.UTC, nil)
	path, err := empty.RunOnce()
	if err != nil || path != "" {
		t.Errorf("empty snapshot: path = %q err = %v", path, err)
	}

	s := NewScheduler("@daily", dir, staticSnapshot(sampleReadings()), time.UTC, nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC) }
	path, err = s.RunOnce()
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if filepath.Base(path) != "water_levels_2024-05-01.csv" {
		t.Errorf("path = %s", path)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	s := NewScheduler("@hourly", t.TempDir(), staticSnapshot(nil), time.UTC, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestScheduler_RunRejectsBadSpec(t *testing.T) {
	s := NewScheduler("not a schedule", t.TempDir(), staticSnapshot(nil), time.UTC, nil)
	if err := s.Run(context.Background()); err == nil {
		t.Error("expected error for invalid schedule")
	}
}
