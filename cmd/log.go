package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/store"
)

var logEntry entryFlags

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a water level reading",
	Example: `  levelogd log --site "Vaca Dam" --level 45.2
  levelogd log --site "Vaca Dam" --level 44.9 --at 2024-03-01T08:30 --notes "after rain" --yes`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logEntry.bind(logCmd)
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		d := store.Draft{Timestamp: time.Now().In(a.loc)}
		if err := logEntry.apply(cmd, &d, a.loc); err != nil {
			return err
		}
		confirm := terminalConfirmer(cmd.InOrStdin(), cmd.OutOrStdout(), logEntry.yes, a.loc)
		return submitAndReport(cmd, a, d, confirm)
	})
}
