package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/erazemk/scanpoint/internal/model"
)

func TestWriteHistory(t *testing.T) {
	item := &model.SerializedItem{
		SerialNumber:    "SN-00123",
		CurrentLocation: model.LocationTechnician,
		Product:         &model.Product{Name: "Inverter 5kW"},
	}
	ts := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	entries := []model.LocationHistoryEntry{
		{FromLocation: model.LocationInTransit, ToLocation: model.LocationTechnician, Timestamp: ts, Actor: "ana"},
		{FromLocation: model.LocationWarehouse, ToLocation: model.LocationInTransit, Timestamp: ts.Add(-time.Hour), Notes: "van 3"},
	}

	var buf bytes.Buffer
	if err := WriteHistory(&buf, item, entries); err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "History" {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	rows, err := f.GetRows("History")
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if rows[0][0] != "Serial SN-00123 (Inverter 5kW)" {
		t.Errorf("unexpected title %q", rows[0][0])
	}
	if rows[3][0] != "Timestamp" || rows[3][5] != "Actor" {
		t.Errorf("unexpected header %v", rows[3])
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d", len(rows))
	}
	if rows[4][0] != "2026-03-04T10:00:00Z" || rows[4][2] != "technician" || rows[4][5] != "ana" {
		t.Errorf("unexpected first entry %v", rows[4])
	}
	if rows[5][4] != "van 3" {
		t.Errorf("unexpected second entry %v", rows[5])
	}
}

func TestWriteHistoryEmpty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHistory(&buf, &model.SerializedItem{SerialNumber: "SN-1"}, nil)
	if err != nil {
		t.Fatalf("WriteHistory: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("expected a workbook")
	}
	if Filename(&model.SerializedItem{SerialNumber: "SN-1"}) != "history-SN-1.xlsx" {
		t.Error("unexpected filename")
	}
}
