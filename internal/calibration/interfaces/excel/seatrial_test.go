package excel

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	calibration "fleetsys/internal/calibration/domain"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Reader {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", SheetName)
	for i, row := range rows {
		for j, v := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatal(err)
			}
			if err := f.SetCellValue(SheetName, name, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseWorkbookMeltsColumns(t *testing.T) {
	rows := [][]interface{}{
		{"Vessel", "Session", "Timestamp", "Displacement", "Ship Speed", "M/E Power", "FOC"},
		{"V100", "trial-1", "2026-05-01 08:00", 52000, 12.5, 8200, 28.4},
		{"V100", "trial-1", "2026-05-01 09:00", 52000, 14.1, 9600, "n/a"},
	}
	batch, err := ParseWorkbook(buildWorkbook(t, rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.VesselID != "V100" || batch.SessionName != "trial-1" {
		t.Fatalf("identity = %s/%s", batch.VesselID, batch.SessionName)
	}
	// 3 readings in the first row, 2 in the second (FOC dropped)
	if len(batch.Readings) != 5 {
		t.Fatalf("readings = %d", len(batch.Readings))
	}
	if batch.SkippedCells != 1 {
		t.Fatalf("skipped = %d", batch.SkippedCells)
	}

	codes := map[string]int{}
	for _, r := range batch.Readings {
		codes[r.ParameterCode]++
		if r.Displacement == nil || *r.Displacement != 52000 {
			t.Fatalf("displacement = %v", r.Displacement)
		}
	}
	if codes[calibration.CodeShipSpeed] != 2 || codes[calibration.CodePower] != 2 || codes[calibration.CodeFOC] != 1 {
		t.Fatalf("code counts = %v", codes)
	}
}

func TestParseWorkbookInheritsTimestamp(t *testing.T) {
	rows := [][]interface{}{
		{"Vessel", "Session", "Timestamp", "Displacement", "M/E Power"},
		{"V100", "trial-1", "2026-05-01 08:00", "", 8200},
		{"V100", "trial-1", "", "", 8400},
	}
	batch, err := ParseWorkbook(buildWorkbook(t, rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Readings) != 2 {
		t.Fatalf("readings = %d", len(batch.Readings))
	}
	if !batch.Readings[0].Timestamp.Equal(batch.Readings[1].Timestamp) {
		t.Fatalf("timestamps differ: %v vs %v", batch.Readings[0].Timestamp, batch.Readings[1].Timestamp)
	}
}

func TestParseWorkbookEmpty(t *testing.T) {
	rows := [][]interface{}{
		{"Vessel", "Session", "Timestamp", "Displacement", "M/E Power"},
	}
	if _, err := ParseWorkbook(buildWorkbook(t, rows)); err == nil {
		t.Fatal("expected error for empty workbook")
	}
}
