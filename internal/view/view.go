// Package view derives table rows and chart series from a snapshot of
// readings. Nothing here mutates its input or touches storage.
package view

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

// NotesPlaceholder is shown in the table when a reading has no notes.
const NotesPlaceholder = "-"

// Row is one formatted table line.
type Row struct {
	ID         string    `json:"id"`
	Site       string    `json:"site"`
	WaterLevel float64   `json:"waterLevel"`
	Level      string    `json:"level"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	Notes      string    `json:"notes"`
	Timestamp  time.Time `json:"timestamp"`
}

// Rows returns readings newest first. Readings with equal timestamps keep
// their collection order.
func Rows(readings []store.Reading, loc *time.Location) []Row {
	if loc == nil {
		loc = time.Local
	}

	sorted := slices.Clone(readings)
	slices.SortStableFunc(sorted, func(a, b store.Reading) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	rows := make([]Row, 0, len(sorted))
	for _, r := range sorted {
		local := r.Timestamp.In(loc)
		rows = append(rows, Row{
			ID:         r.ID,
			Site:       r.Site,
			WaterLevel: r.WaterLevel,
			Level:      FormatLevel(r.WaterLevel),
			Date:       local.Format("Jan 2, 2006"),
			Time:       local.Format("3:04:05 PM"),
			Notes:      r.NotesOr(NotesPlaceholder),
			Timestamp:  r.Timestamp,
		})
	}
	return rows
}

// FormatLevel renders a level in centimetres, e.g. "45.2 cm".
func FormatLevel(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + " cm"
}

// AllSites and AllTime are the unfiltered query values.
const (
	AllSites = "all"
	AllTime  = 0
)

// ParseRange parses a chart range: "all" (or empty) or a positive number of days.
func ParseRange(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "all") {
		return AllTime, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid range %q: want \"all\" or a positive number of days", v)
	}
	return days, nil
}
