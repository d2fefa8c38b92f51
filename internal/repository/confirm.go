package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Adam01140114/WaterData/internal/store"
)

// Confirmer decides whether a draft may overwrite an existing reading for
// the same site and month.
type Confirmer interface {
	ConfirmOverwrite(ctx context.Context, existing store.Reading, d store.Draft) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, existing store.Reading, d store.Draft) (bool, error)

func (f ConfirmFunc) ConfirmOverwrite(ctx context.Context, existing store.Reading, d store.Draft) (bool, error) {
	return f(ctx, existing, d)
}

// Answer returns a Confirmer that always gives the same answer. The HTTP API
// uses it for the two-step flow: the first request proposes, the second
// repeats the submission with overwrite set.
func Answer(yes bool) Confirmer {
	return ConfirmFunc(func(context.Context, store.Reading, store.Draft) (bool, error) {
		return yes, nil
	})
}

var (
	AlwaysOverwrite = Answer(true)
	NeverOverwrite  = Answer(false)
)

// OverwritePrompt is the question put to the user when d collides with
// existing, with dates rendered in loc.
func OverwritePrompt(existing store.Reading, d store.Draft, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	level := "?"
	if d.WaterLevel != nil {
		level = strconv.FormatFloat(*d.WaterLevel, 'f', -1, 64)
	}
	return fmt.Sprintf(
		"A water level for %s has already been recorded this month (%s cm on %s).\n\nDo you want to overwrite it with the new reading (%s cm) or cancel?",
		existing.Site,
		strconv.FormatFloat(existing.WaterLevel, 'f', -1, 64),
		existing.Timestamp.In(loc).Format("1/2/2006"),
		level,
	)
}
