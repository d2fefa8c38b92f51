package view

import (
	"math/rand/v2"
	"reflect"
	"testing"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

func reading(id, site string, level float64, ts time.Time) store.Reading {
	return store.Reading{ID: id, Site: site, WaterLevel: level, Timestamp: ts}
}

func TestRows_SortedNewestFirstStable(t *testing.T) {
	ts := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	in := []store.Reading{
		reading("1", "Site A", 1, ts),
		reading("2", "Site B", 2, ts.Add(time.Hour)),
		reading("3", "Site C", 3, ts),
		reading("4", "Site A", 4, ts.Add(-time.Hour)),
	}

	rows := Rows(in, time.UTC)
	var ids []string
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	want := []string{"2", "1", "3", "4"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order = %v, want %v", ids, want)
	}
}

func TestRows_Formatting(t *testing.T) {
	ts := time.Date(2024, 1, 10, 8, 5, 9, 0, time.UTC)
	r := reading("1", "Site A", 45.2, ts)
	withNotes := reading("2", "Site B", 30, ts.Add(-time.Minute))
	withNotes.Notes = store.Ptr("clear water")

	rows := Rows([]store.Reading{r, withNotes}, time.UTC)

	got := rows[0]
	if got.Level != "45.2 cm" {
		t.Errorf("Level = %q, want 45.2 cm", got.Level)
	}
	if got.Date != "Jan 10, 2024" {
		t.Errorf("Date = %q", got.Date)
	}
	if got.Time != "8:05:09 AM" {
		t.Errorf("Time = %q", got.Time)
	}
	if got.Notes != NotesPlaceholder {
		t.Errorf("Notes = %q, want placeholder", got.Notes)
	}
	if rows[1].Notes != "clear water" {
		t.Errorf("Notes = %q, want clear water", rows[1].Notes)
	}
	if rows[1].Level != "30 cm" {
		t.Errorf("Level = %q, want 30 cm", rows[1].Level)
	}
}

func TestRows_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*60*60)
	ts := time.Date(2024, 1, 31, 20, 0, 0, 0, time.UTC)

	rows := Rows([]store.Reading{reading("1", "Site A", 1, ts)}, loc)
	if rows[0].Date != "Feb 1, 2024" || rows[0].Time != "6:00:00 AM" {
		t.Errorf("got %s %s, want Feb 1, 2024 6:00:00 AM", rows[0].Date, rows[0].Time)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"all", AllTime, false},
		{"ALL", AllTime, false},
		{"", AllTime, false},
		{"7", 7, false},
		{" 30 ", 30, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"week", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestBuildChart_SinglePointWindow(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	now := ts.Add(24 * time.Hour)

	c := BuildChart([]store.Reading{reading("1", "Site A", 45.2, ts)}, ChartQuery{Site: AllSites, RangeDays: 30}, now, time.UTC)

	if len(c.Series) != 1 || len(c.Series[0].Points) != 1 {
		t.Fatalf("series = %+v, want one single-point series", c.Series)
	}
	if c.Window == nil {
		t.Fatal("expected a suggested window")
	}
	if !c.Window.Start.Equal(ts.AddDate(0, 0, -1)) || !c.Window.End.Equal(ts.AddDate(0, 0, 1)) {
		t.Errorf("window = %v..%v, want one day either side of %v", c.Window.Start, c.Window.End, ts)
	}
}

func TestBuildChart_NoWindowForManyPoints(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	in := []store.Reading{
		reading("1", "Site A", 1, ts),
		reading("2", "Site B", 2, ts),
	}
	c := BuildChart(in, ChartQuery{Site: AllSites}, ts, time.UTC)
	if c.Window != nil {
		t.Errorf("window = %+v, want nil", c.Window)
	}
}

func TestBuildChart_Empty(t *testing.T) {
	ts := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	in := []store.Reading{reading("1", "Site A", 1, ts)}

	tests := []struct {
		name string
		q    ChartQuery
		now  time.Time
	}{
		{"no readings match site", ChartQuery{Site: "Site Z"}, ts},
		{"all readings too old", ChartQuery{Site: AllSites, RangeDays: 7}, ts.AddDate(0, 0, 8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BuildChart(in, tt.q, tt.now, time.UTC)
			if !c.Empty() {
				t.Errorf("chart = %+v, want empty", c)
			}
			if c.Window != nil {
				t.Error("empty chart should not suggest a window")
			}
		})
	}

	if !BuildChart(nil, ChartQuery{}, ts, time.UTC).Empty() {
		t.Error("nil input should give an empty chart")
	}
}

func TestBuildChart_GroupsAndColours(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in := []store.Reading{
		reading("1", "Site B", 1, base.AddDate(0, 0, 2)),
		reading("2", "Site A", 2, base.AddDate(0, 0, 3)),
		reading("3", "Site B", 3, base),
		reading("4", "Site C", 4, base.AddDate(0, 0, 1)),
	}

	c := BuildChart(in, ChartQuery{Site: AllSites}, base.AddDate(0, 0, 10), time.UTC)

	var sites, colours []string
	for _, s := range c.Series {
		sites = append(sites, s.Site)
		colours = append(colours, s.Color)
		if s.Fill != s.Color+"20" {
			t.Errorf("fill = %q for colour %q", s.Fill, s.Color)
		}
		for i := 1; i < len(s.Points); i++ {
			if s.Points[i].Timestamp.Before(s.Points[i-1].Timestamp) {
				t.Errorf("series %s not sorted ascending", s.Site)
			}
		}
	}

	// First appearance after sorting by time: B (day 0), C (day 1), A (day 3).
	if want := []string{"Site B", "Site C", "Site A"}; !reflect.DeepEqual(sites, want) {
		t.Errorf("sites = %v, want %v", sites, want)
	}
	if want := Palette[:3]; !reflect.DeepEqual(colours, want) {
		t.Errorf("colours = %v, want %v", colours, want)
	}

	b := c.BySite()["Site B"]
	if len(b) != 2 || b[0].Value != 3 || b[1].Value != 1 {
		t.Errorf("Site B points = %+v", b)
	}
}

func TestBuildChart_SingleSiteUsesFirstColour(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	in := []store.Reading{
		reading("1", "Site A", 1, base),
		reading("2", "Site C", 2, base.AddDate(0, 0, 1)),
		reading("3", "Site C", 3, base.AddDate(0, 0, 2)),
	}

	c := BuildChart(in, ChartQuery{Site: "Site C"}, base, time.UTC)
	if len(c.Series) != 1 {
		t.Fatalf("got %d series, want 1", len(c.Series))
	}
	if c.Series[0].Color != Palette[0] {
		t.Errorf("colour = %q, want %q", c.Series[0].Color, Palette[0])
	}
	if len(c.Series[0].Points) != 2 {
		t.Errorf("got %d points, want 2", len(c.Series[0].Points))
	}
}

func TestBuildChart_PaletteCycles(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var in []store.Reading
	for i := range len(Palette) + 1 {
		in = append(in, reading(string(rune('a'+i)), string(rune('A'+i)), 1, base.Add(time.Duration(i)*time.Hour)))
	}

	c := BuildChart(in, ChartQuery{Site: AllSites}, base, time.UTC)
	if got := c.Series[len(Palette)].Color; got != Palette[0] {
		t.Errorf("colour = %q, want palette to wrap to %q", got, Palette[0])
	}
}

func TestProjectors_PureAndIdempotent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	in := randomReadings(rng, now, 50)
	orig := store.Clone(in)

	q := ChartQuery{Site: AllSites, RangeDays: 30}
	if !reflect.DeepEqual(Rows(in, time.UTC), Rows(in, time.UTC)) {
		t.Error("Rows is not idempotent")
	}
	if !reflect.DeepEqual(BuildChart(in, q, now, time.UTC), BuildChart(in, q, now, time.UTC)) {
		t.Error("BuildChart is not idempotent")
	}
	if !reflect.DeepEqual(in, orig) {
		t.Error("projectors mutated their input")
	}
}

func TestBuildChart_RangeFilterIsExact(t *testing.T) {
	rng := rand.New(rand.NewPCG(9, 9))
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for range 20 {
		in := randomReadings(rng, now, 80)
		c := BuildChart(in, ChartQuery{Site: AllSites, RangeDays: 30}, now, time.UTC)

		cutoff := now.AddDate(0, 0, -30)
		want := make(map[string]int)
		for _, r := range in {
			if !r.Timestamp.Before(cutoff) {
				want[r.Site]++
			}
		}

		got := make(map[string]int)
		for site, pts := range c.BySite() {
			for _, p := range pts {
				if p.Timestamp.Before(cutoff) {
					t.Errorf("point %v is older than the cutoff", p.Timestamp)
				}
			}
			got[site] = len(pts)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("per-site counts = %v, want %v", got, want)
		}
	}
}

func randomReadings(rng *rand.Rand, now time.Time, n int) []store.Reading {
	sites := []string{"Site A", "Site B", "Site C"}
	out := make([]store.Reading, 0, n)
	for i := range n {
		ts := now.Add(-time.Duration(rng.IntN(60*24)) * time.Hour)
		out = append(out, reading(string(rune('a'+i%26))+ts.Format("150405"), sites[rng.IntN(len(sites))], rng.Float64()*100, ts))
	}
	return out
}
