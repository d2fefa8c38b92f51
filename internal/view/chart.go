package view

import (
	"slices"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

// Palette is cycled through in the order sites first appear in a chart.
var Palette = []string{"#3498db", "#e74c3c", "#2ecc71", "#f39c12", "#9b59b6"}

// ChartQuery selects which readings a chart shows.
type ChartQuery struct {
	// Site is a site name or AllSites.
	Site string
	// RangeDays limits the chart to the last N days. AllTime disables it.
	RangeDays int
}

// Point is one chart sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is the line drawn for one site.
type Series struct {
	Site   string  `json:"site"`
	Color  string  `json:"color"`
	Fill   string  `json:"fill"`
	Points []Point `json:"points"`
}

// Window is a suggested time axis domain.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Chart is the projection drawn by the chart renderer. A nil Window means
// the renderer should scale the axis itself.
type Chart struct {
	Series []Series `json:"series"`
	Window *Window  `json:"window,omitempty"`
}

// Empty reports whether there is nothing to draw.
func (c Chart) Empty() bool {
	return len(c.Series) == 0
}

// BySite returns the points of every series keyed by site.
func (c Chart) BySite() map[string][]Point {
	m := make(map[string][]Point, len(c.Series))
	for _, s := range c.Series {
		m[s.Site] = s.Points
	}
	return m
}

// BuildChart filters readings by q relative to now and groups them into
// per-site series sorted by timestamp.
func BuildChart(readings []store.Reading, q ChartQuery, now time.Time, loc *time.Location) Chart {
	if loc == nil {
		loc = time.Local
	}
	site := q.Site
	if site == "" {
		site = AllSites
	}

	var cutoff time.Time
	if q.RangeDays > 0 {
		cutoff = now.In(loc).AddDate(0, 0, -q.RangeDays)
	}

	filtered := make([]store.Reading, 0, len(readings))
	for _, r := range readings {
		if !cutoff.IsZero() && r.Timestamp.Before(cutoff) {
			continue
		}
		if site != AllSites && r.Site != site {
			continue
		}
		filtered = append(filtered, r)
	}
	if len(filtered) == 0 {
		return Chart{}
	}

	slices.SortStableFunc(filtered, func(a, b store.Reading) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var chart Chart
	index := make(map[string]int)
	for _, r := range filtered {
		i, ok := index[r.Site]
		if !ok {
			i = len(chart.Series)
			index[r.Site] = i
			color := Palette[i%len(Palette)]
			chart.Series = append(chart.Series, Series{Site: r.Site, Color: color, Fill: color + "20"})
		}
		chart.Series[i].Points = append(chart.Series[i].Points, Point{Timestamp: r.Timestamp, Value: r.WaterLevel})
	}

	if len(filtered) == 1 {
		ts := filtered[0].Timestamp.In(loc)
		chart.Window = &Window{Start: ts.AddDate(0, 0, -1), End: ts.AddDate(0, 0, 1)}
	}
	return chart
}
