// Package export renders reading snapshots as delimited text and
// spreadsheets, and reads delimited text back into drafts.
package export

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

// Header is the column order shared by every export format.
var Header = []string{"Site", "Water Level (cm)", "Date & Time", "Notes"}

const minuteLayout = "2006-01-02T15:04"

// FormatTimestamp renders ts in loc. Minute-precision values use the form
// entry layout unless that wall time is ambiguous in loc (a repeated DST
// hour); everything else is RFC3339 with offset so it parses back exactly.
func FormatTimestamp(ts time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	local := ts.In(loc)
	if local.Equal(local.Truncate(time.Minute)) {
		wall := local.Format(minuteLayout)
		if back, err := time.ParseInLocation(minuteLayout, wall, loc); err == nil && back.Equal(local) {
			return wall
		}
	}
	return local.Format(time.RFC3339Nano)
}

func record(r store.Reading, loc *time.Location) []string {
	return []string{
		r.Site,
		strconv.FormatFloat(r.WaterLevel, 'f', -1, 64),
		FormatTimestamp(r.Timestamp, loc),
		r.NotesOr(""),
	}
}

// WriteCSV writes readings in collection order. Every data field is wrapped
// in double quotes; embedded quotes are written as-is.
func WriteCSV(w io.Writer, readings []store.Reading, loc *time.Location) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(Header, ",") + "\n"); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range readings {
		fields := record(r, loc)
		for i, f := range fields {
			fields[i] = `"` + f + `"`
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\n"); err != nil {
			return fmt.Errorf("writing reading %s: %w", r.ID, err)
		}
	}
	return bw.Flush()
}

// CSV returns the delimited text for readings.
func CSV(readings []store.Reading, loc *time.Location) string {
	var sb strings.Builder
	_ = WriteCSV(&sb, readings, loc)
	return sb.String()
}

// ParseCSV reads text produced by WriteCSV back into drafts, in file order.
// A leading header row is skipped. Empty notes become absent.
func ParseCSV(r io.Reader, loc *time.Location) ([]store.Draft, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)
	cr.LazyQuotes = true

	var drafts []store.Draft
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if line == 1 && rec[0] == Header[0] && rec[1] == Header[1] {
			continue
		}

		level, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: parsing water level %q: %w", line, rec[1], err)
		}
		ts, err := store.ParseTimestamp(strings.TrimSpace(rec[2]), loc)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		d := store.Draft{Site: rec[0], WaterLevel: &level, Timestamp: ts}
		if rec[3] != "" {
			d.Notes = store.Ptr(rec[3])
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

// Filename returns the dated download name, e.g. water_levels_2024-01-10.csv.
func Filename(now time.Time, ext string) string {
	return "water_levels_" + now.Format("2006-01-02") + "." + strings.TrimPrefix(ext, ".")
}
