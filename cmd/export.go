package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/export"
	"github.com/Adam01140114/WaterData/internal/metrics"
	"github.com/Adam01140114/WaterData/internal/notify"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write all readings to a dated CSV or XLSX file",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", export.FormatCSV, "export format (csv or xlsx)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default: export.dir, then the working directory)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		out := cmd.OutOrStdout()

		readings := a.repo.Readings()
		if len(readings) == 0 {
			fmt.Fprintln(out, notify.MsgNoExportData)
			return nil
		}

		dir := exportOut
		if dir == "" {
			dir = a.cfg.Export.Dir
		}
		if dir == "" {
			dir = "."
		}

		path, err := export.WriteFile(dir, exportFormat, readings, a.loc, time.Now().In(a.loc))
		if err != nil {
			return err
		}
		metrics.Exports.WithLabelValues(exportFormat, "cli").Inc()
		slog.Info("export written", "path", path, "readings", len(readings))
		fmt.Fprintln(out, path)
		return nil
	})
}
