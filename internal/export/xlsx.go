package export

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Adam01140114/WaterData/internal/store"
)

// SheetName is the single worksheet in a spreadsheet export.
const SheetName = "Water Levels"

// WriteXLSX writes readings as a one-sheet workbook in collection order.
func WriteXLSX(w io.Writer, readings []store.Reading, loc *time.Location) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("closing workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	f.SetDocProps(&excelize.DocProperties{
		Creator: "levelogd",
		Title:   "Water Level Readings",
		Created: time.Now().Format(time.RFC3339),
	})

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, h); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"3498DB"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", "D1", headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, r := range readings {
		row := i + 2
		values := []any{r.Site, r.WaterLevel, FormatTimestamp(r.Timestamp, loc), r.NotesOr("")}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(SheetName, cell, v); err != nil {
				return fmt.Errorf("writing reading %s: %w", r.ID, err)
			}
		}
	}

	_ = f.SetColWidth(SheetName, "A", "A", 16)
	_ = f.SetColWidth(SheetName, "B", "B", 18)
	_ = f.SetColWidth(SheetName, "C", "C", 20)
	_ = f.SetColWidth(SheetName, "D", "D", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
