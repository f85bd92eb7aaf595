// Package export writes location history spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/scanpoint/internal/model"
)

const sheetName = "History"

var historyHeaders = []string{"Timestamp", "From", "To", "Reason", "Notes", "Actor"}

// WriteHistory writes item's location history as an xlsx workbook to w, in
// the order given. The item's serial number and product name head the sheet.
func WriteHistory(w io.Writer, item *model.SerializedItem, entries []model.LocationHistoryEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(sheetName); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return fmt.Errorf("locating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	title := "Serial " + item.SerialNumber
	if item.Product != nil && item.Product.Name != "" {
		title += " (" + item.Product.Name + ")"
	}
	f.SetCellValue(sheetName, "A1", title)
	f.SetCellValue(sheetName, "A2", "Current location")
	f.SetCellValue(sheetName, "B2", string(item.CurrentLocation))

	const headerRow = 4
	for i, h := range historyHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		f.SetCellValue(sheetName, cell, h)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for i, e := range entries {
		row := []string{
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.FromLocation),
			string(e.ToLocation),
			e.Reason,
			e.Notes,
			e.Actor,
		}
		for col, v := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, headerRow+1+i)
			f.SetCellValue(sheetName, cell, v)
		}
	}

	f.SetColWidth(sheetName, "A", "A", 24)
	f.SetColWidth(sheetName, "B", "F", 16)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// Filename returns a download name for item's history workbook.
func Filename(item *model.SerializedItem) string {
	return fmt.Sprintf("history-%s.xlsx", item.SerialNumber)
}
