package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/notify"
	"github.com/Adam01140114/WaterData/internal/repository"
	"github.com/Adam01140114/WaterData/internal/store"
)

// entryFlags are the reading fields shared by log and edit.
type entryFlags struct {
	site  string
	level float64
	at    string
	notes string
	yes   bool
}

func (f *entryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.site, "site", "", "monitoring site name")
	cmd.Flags().Float64Var(&f.level, "level", 0, "water level in centimeters")
	cmd.Flags().StringVar(&f.at, "at", "", "reading time (YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339; default now)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "optional notes")
	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "overwrite a same-month reading without asking")
}

// changed reports whether any reading field was given on the command line.
func (f *entryFlags) changed(cmd *cobra.Command) bool {
	for _, name := range []string{"site", "level", "at", "notes"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// apply overlays the flags that were set onto d.
func (f *entryFlags) apply(cmd *cobra.Command, d *store.Draft, loc *time.Location) error {
	if cmd.Flags().Changed("site") {
		d.Site = f.site
	}
	if cmd.Flags().Changed("level") {
		d.WaterLevel = store.Ptr(f.level)
	}
	if cmd.Flags().Changed("at") {
		ts, err := parseWhen(f.at, loc)
		if err != nil {
			return err
		}
		d.Timestamp = ts
	}
	if cmd.Flags().Changed("notes") {
		d.Notes = store.Ptr(f.notes)
	}
	return nil
}

// parseWhen reads a reading time in loc. RFC 3339 values carry their own
// offset.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	ts, err := store.ParseTimestamp(strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)", s)
	}
	return ts, nil
}

// submitAndReport submits d and prints the user-facing outcome.
func submitAndReport(cmd *cobra.Command, a *app, d store.Draft, c repository.Confirmer) error {
	res, err := a.repo.Submit(cmd.Context(), d, c)
	return reportSubmit(cmd.OutOrStdout(), res, err)
}

func reportSubmit(out io.Writer, res repository.SubmitResult, err error) error {
	var verr *repository.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintln(out, notify.MsgRequired)
		return err
	case err != nil:
		fmt.Fprintln(out, notify.MsgSaveFailed)
		return err
	}

	switch res.Outcome {
	case repository.Added:
		fmt.Fprintln(out, notify.MsgLogged)
	case repository.Replaced:
		fmt.Fprintln(out, notify.MsgUpdated)
	case repository.Cancelled:
		fmt.Fprintln(out, notify.MsgCancelled)
		return nil
	}
	fmt.Fprintf(out, "  id: %s\n", res.Reading.ID)
	return nil
}
