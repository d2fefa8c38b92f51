package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/export"
	"github.com/Adam01140114/WaterData/internal/notify"
	"github.com/Adam01140114/WaterData/internal/repository"
	"github.com/Adam01140114/WaterData/internal/store"
)

var editEntry entryFlags

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Take a reading out for correction",
	Long: `edit removes the reading and hands its fields back for re-entry.

With any of --site, --level, --at or --notes the corrected reading is
submitted straight away. Without them the reading is removed and the
command that would restore it is printed, ready to be amended and run.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editEntry.bind(editCmd)
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()

		d, err := a.repo.BeginEdit(ctx, args[0])
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("no reading with id %s", args[0])
		case err != nil:
			fmt.Fprintln(out, notify.MsgSaveFailed)
			return err
		}
		fmt.Fprintln(out, notify.MsgEditing)

		if !editEntry.changed(cmd) {
			fmt.Fprintln(out, logCommandFor(d, a.loc))
			return nil
		}

		if err := editEntry.apply(cmd, &d, a.loc); err != nil {
			// The reading is already out; print it so it is not lost.
			fmt.Fprintln(out, logCommandFor(d, a.loc))
			return err
		}
		confirm := terminalConfirmer(cmd.InOrStdin(), out, editEntry.yes, a.loc)
		return resubmitEdit(ctx, out, a.repo, d, confirm, a.loc)
	})
}

// resubmitEdit submits the corrected draft. Unless it was stored, the
// restore command is printed since the reading is already out.
func resubmitEdit(ctx context.Context, out io.Writer, repo *repository.Repository, d store.Draft, c repository.Confirmer, loc *time.Location) error {
	res, err := repo.Submit(ctx, d, c)
	reportErr := reportSubmit(out, res, err)
	if err != nil || (res.Outcome != repository.Added && res.Outcome != repository.Replaced) {
		fmt.Fprintln(out, logCommandFor(d, loc))
	}
	return reportErr
}

// logCommandFor renders the log invocation that re-creates d.
func logCommandFor(d store.Draft, loc *time.Location) string {
	cmd := fmt.Sprintf("levelogd log --site %s --at %s",
		strconv.Quote(d.Site), export.FormatTimestamp(d.Timestamp, loc))
	if d.WaterLevel != nil {
		cmd += " --level " + strconv.FormatFloat(*d.WaterLevel, 'f', -1, 64)
	}
	if d.Notes != nil {
		cmd += " --notes " + strconv.Quote(*d.Notes)
	}
	return cmd
}
