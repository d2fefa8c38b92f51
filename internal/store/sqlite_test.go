package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dsn := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dsn, time.UTC)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func makeDraft(site string, level float64, ts time.Time) Draft {
	return Draft{Site: site, WaterLevel: &level, Timestamp: ts}
}

func TestSQLiteStore_AddAndList(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	d := makeDraft("Site A", 45.2, ts)
	d.Notes = Ptr("after rain")

	r, err := s.Add(ctx, d)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected an assigned id")
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d readings, want 1", len(got))
	}
	if got[0].ID != r.ID {
		t.Errorf("id = %q, want %q", got[0].ID, r.ID)
	}
	if got[0].WaterLevel != 45.2 {
		t.Errorf("level = %v, want 45.2", got[0].WaterLevel)
	}
	if !got[0].Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, ts)
	}
	if got[0].NotesOr("") != "after rain" {
		t.Errorf("notes = %v, want %q", got[0].Notes, "after rain")
	}
}

func TestSQLiteStore_IDsUniqueAndIncreasing(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	seen := make(map[string]bool)
	var last int64
	for i := range 50 {
		r, err := s.Add(ctx, makeDraft("Site A", float64(i), ts))
		if err != nil {
			t.Fatal(err)
		}
		if seen[r.ID] {
			t.Fatalf("duplicate id %q", r.ID)
		}
		seen[r.ID] = true

		n, err := strconv.ParseInt(r.ID, 10, 64)
		if err != nil {
			t.Fatalf("id %q is not numeric: %v", r.ID, err)
		}
		if n <= last {
			t.Errorf("id %d not greater than previous %d", n, last)
		}
		last = n
	}
}

func TestSQLiteStore_PreservesInsertionOrder(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	sites := []string{"Site C", "Site A", "Site B"}
	for i, site := range sites {
		// Newest first, so insertion order differs from time order.
		if _, err := s.Add(ctx, makeDraft(site, 10, base.AddDate(0, 0, -i))); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range got {
		if r.Site != sites[i] {
			t.Errorf("position %d: site = %q, want %q", i, r.Site, sites[i])
		}
	}
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	a, _ := s.Add(ctx, makeDraft("Site A", 1, ts))
	b, _ := s.Add(ctx, makeDraft("Site B", 2, ts))

	if err := s.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	// Unknown ids are a no-op.
	if err := s.Delete(ctx, "does-not-exist"); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}

	got, _ := s.List(ctx)
	if len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("after delete got %+v, want only %s", got, b.ID)
	}
}

func TestSQLiteStore_Clear(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	for i := range 3 {
		if _, err := s.Add(ctx, makeDraft("Site A", float64(i), ts)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %d readings after clear, want 0", len(got))
	}
}

func TestSQLiteStore_PutAndReplace(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	r := Reading{ID: "remote-1", Site: "Site A", WaterLevel: 3, Timestamp: ts}
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put: %v", err)
	}
	r.WaterLevel = 4
	if err := s.Put(ctx, r); err != nil {
		t.Fatalf("Put again: %v", err)
	}

	got, _ := s.List(ctx)
	if len(got) != 1 || got[0].WaterLevel != 4 {
		t.Fatalf("Put should replace by id, got %+v", got)
	}

	replacement := []Reading{
		{ID: "remote-2", Site: "Site B", WaterLevel: 5, Timestamp: ts},
		{ID: "remote-3", Site: "Site C", WaterLevel: 6, Timestamp: ts},
	}
	if err := s.Replace(ctx, replacement); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	got, _ = s.List(ctx)
	if len(got) != 2 || got[0].ID != "remote-2" || got[1].ID != "remote-3" {
		t.Errorf("Replace: got %+v", got)
	}
}

func TestSQLiteStore_LegacyBlob(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	loc := time.FixedZone("test", 2*60*60)
	s.loc = loc

	legacy := `[{"site":"Site A","waterLevel":45.2,"timestamp":"2024-01-10T08:00","notes":"","id":1704873600000},
		{"site":"Site B","waterLevel":32.8,"timestamp":"2024-01-11T09:30","id":1704960000000}]`
	if _, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		BlobKey, legacy, time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d readings, want 2", len(got))
	}
	if got[0].ID != "1704873600000" {
		t.Errorf("id = %q, want numeric id as string", got[0].ID)
	}
	want := time.Date(2024, 1, 10, 8, 0, 0, 0, loc)
	if !got[0].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", got[0].Timestamp, want)
	}
	if got[0].Notes != nil {
		t.Errorf("empty notes should read as absent, got %q", *got[0].Notes)
	}
	if got[1].Notes != nil {
		t.Errorf("absent notes should stay nil, got %q", *got[1].Notes)
	}

	// New ids must not collide with legacy ones.
	r, err := s.Add(ctx, makeDraft("Site C", 1, want))
	if err != nil {
		t.Fatal(err)
	}
	if r.ID == got[0].ID || r.ID == got[1].ID {
		t.Errorf("new id %q collides with legacy ids", r.ID)
	}
}

func TestSQLiteStore_LegacyBlobWithoutID(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	legacy := `[{"site":"Site A","waterLevel":45.2,"timestamp":"2024-01-10T08:00"},
		{"site":"Site B","waterLevel":32.8,"timestamp":"2024-01-11T09:30","id":null}]`
	if _, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		BlobKey, legacy, time.Now()); err != nil {
		t.Fatal(err)
	}

	first, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 || first[0].ID == "" || first[1].ID == "" {
		t.Fatalf("List = %+v, want two readings with ids", first)
	}
	if first[0].ID == first[1].ID {
		t.Fatalf("assigned ids collide: %q", first[0].ID)
	}

	again, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if again[i].ID != first[i].ID {
			t.Errorf("reading %d id changed between lists: %q -> %q", i, first[i].ID, again[i].ID)
		}
	}

	if err := s.Delete(ctx, first[0].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != first[1].ID {
		t.Errorf("after delete got %+v, want only %q", got, first[1].ID)
	}

	// A fresh store on the same file sees the persisted ids.
	reopened := &SQLiteStore{db: s.db, loc: s.loc, logger: s.logger}
	got, err = reopened.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != first[1].ID {
		t.Errorf("reopened store got %+v, want only %q", got, first[1].ID)
	}
}

func TestSQLiteStore_UnreadableBlobIsEmpty(t *testing.T) {
	s := newTestSQLiteStore(t)
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)`,
		BlobKey, "{not json", time.Now()); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("unreadable blob should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d readings, want 0", len(got))
	}
}

func TestSQLiteStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "perms.db")
	s, err := NewSQLiteStore(dsn, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close() //nolint:errcheck

	info, err := os.Stat(dsn)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}
}

func TestParseTimestamp(t *testing.T) {
	loc := time.FixedZone("test", -5*60*60)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-10T08:00:00Z", time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)},
		{"2024-01-10T08:00:00+02:00", time.Date(2024, 1, 10, 6, 0, 0, 0, time.UTC)},
		{"2024-01-10T08:00", time.Date(2024, 1, 10, 8, 0, 0, 0, loc)},
		{"2024-01-10 08:00:30", time.Date(2024, 1, 10, 8, 0, 30, 0, loc)},
		{"2024-01-10", time.Date(2024, 1, 10, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in, loc)
			if err != nil {
				t.Fatal(err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseTimestamp("yesterday", loc); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
