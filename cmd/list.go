package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/Adam01140114/WaterData/internal/store"
	"github.com/Adam01140114/WaterData/internal/view"
)

var listSite string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show recorded readings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listSite, "site", "", "only show readings for this site")
	rootCmd.AddCommand(listCmd)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3b82f6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Padding(0, 1)
)

func runList(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		readings := a.repo.Readings()
		if listSite != "" {
			readings = filterSite(readings, listSite)
		}
		renderTable(cmd.OutOrStdout(), view.Rows(readings, a.loc))
		return nil
	})
}

func filterSite(readings []store.Reading, site string) []store.Reading {
	var out []store.Reading
	for _, r := range readings {
		if r.Site == site {
			out = append(out, r)
		}
	}
	return out
}

func renderTable(w io.Writer, rows []view.Row) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No readings recorded yet.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))).
		Headers("ID", "SITE", "WATER LEVEL", "DATE", "TIME", "NOTES")

	for _, r := range rows {
		t.Row(r.ID, r.Site, r.Level, r.Date, r.Time, r.Notes)
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return headerStyle
		case col == 0:
			return dimStyle
		default:
			return cellStyle
		}
	})

	fmt.Fprintln(w, t.Render())
	fmt.Fprintf(w, "%d reading(s)\n", len(rows))
}
