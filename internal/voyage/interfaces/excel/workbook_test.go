package excel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	voyage "fleetsys/internal/voyage/domain"
)

func setCell(t *testing.T, f *excelize.File, sheet string, col, row int, v interface{}) {
	t.Helper()
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetCellValue(sheet, name, v); err != nil {
		t.Fatal(err)
	}
}

// setEngineRow fills one engine data row. Values are keyed by the field
// index relative to column C.
func setEngineRow(t *testing.T, f *excelize.File, row int, values map[int]interface{}) {
	t.Helper()
	for rel, v := range values {
		setCell(t, f, EngineSheet, rel+firstColumn+1, row, v)
	}
}

func buildVoyageWorkbook(t *testing.T) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", EngineSheet)
	f.NewSheet(DeckSheet)
	setCell(t, f, EngineSheet, 3, 3, "V100") // C3
	setCell(t, f, EngineSheet, 3, 4, 12)     // C4
	return f
}

func encode(t *testing.T, f *excelize.File) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(buf.Bytes())
}

func TestParseWorkbookEngineRows(t *testing.T) {
	f := buildVoyageWorkbook(t)
	// data rows start at sheet row 9
	setEngineRow(t, f, 9, map[int]interface{}{
		engActivity:    "Sailing",
		engVessel:      "V100",
		engVoyage:      12,
		engTripLabel:   "1B",
		engDateTime:    "2026-06-01 00:00",
		engTimezone:    9,
		engDuration:    "12:30",
		engLocFrom:     "KRPUS",
		engMERH:        "10:00",
		engMEFOCons:    4.2,
		engTotalFOCons: 5.1,
		engFOROB:       800,
	})
	setEngineRow(t, f, 10, map[int]interface{}{
		engActivity:    "Sailing",
		engVessel:      "V100",
		engVoyage:      12,
		engDateTime:    "2026-06-02 00:00",
		engMEFOCons:    "bad-value",
		engTotalFOCons: 4.8,
	})
	// filler row without vessel/voyage is dropped silently
	setEngineRow(t, f, 11, map[int]interface{}{engActivity: "Sailing"})

	batch, err := ParseWorkbook(encode(t, f))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.VesselID != "V100" || batch.VoyageNumber != 12 {
		t.Fatalf("identity = %s/%d", batch.VesselID, batch.VoyageNumber)
	}
	if len(batch.Reports) != 2 || len(batch.Engine) != 2 {
		t.Fatalf("rows = %d reports, %d samples", len(batch.Reports), len(batch.Engine))
	}

	first := batch.Reports[0]
	if first.TripLabel != "1B" || first.TZOffset != 9 || first.LocFrom != "KRPUS" {
		t.Fatalf("first report = %+v", first)
	}
	if first.DurationMin == nil || *first.DurationMin != 750 {
		t.Fatalf("duration = %v", first.DurationMin)
	}
	if first.ActivityID == "" || first.ActivityID == batch.Reports[1].ActivityID {
		t.Fatal("activity ids must be unique and non-empty")
	}

	sample := batch.Engine[0]
	if sample.MERunMin == nil || *sample.MERunMin != 600 {
		t.Fatalf("me run minutes = %v", sample.MERunMin)
	}
	if sample.FOROB == nil || *sample.FOROB != 800 {
		t.Fatalf("fo rob = %v", sample.FOROB)
	}

	// second row's me_fo_cons was not numeric
	if batch.Engine[1].MEFOCons != nil {
		t.Fatalf("bad cell should be missing, got %v", *batch.Engine[1].MEFOCons)
	}
	if batch.SkippedFields != 1 {
		t.Fatalf("skipped = %d", batch.SkippedFields)
	}
}

func TestParseWorkbookDeckRows(t *testing.T) {
	f := buildVoyageWorkbook(t)
	setEngineRow(t, f, 9, map[int]interface{}{
		engActivity: "Sailing",
		engVessel:   "V100",
		engVoyage:   12,
		engDateTime: "2026-06-01 00:00",
	})
	deckRow := map[int]interface{}{
		deckVessel:    "V100",
		deckVoyage:    12,
		deckDateTime:  "2026-06-01 00:00",
		deckCargo1ROB: 900,
		deckDist24:    240,
		deckRemarks:   "heavy swell",
	}
	for rel, v := range deckRow {
		setCell(t, f, DeckSheet, rel+firstColumn+1, 9, v)
	}

	batch, err := ParseWorkbook(encode(t, f))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Deck) != 1 {
		t.Fatalf("deck rows = %d", len(batch.Deck))
	}
	deck := batch.Deck[0]
	if deck.Cargo1ROB == nil || *deck.Cargo1ROB != 900 {
		t.Fatalf("cargo = %v", deck.Cargo1ROB)
	}
	if deck.Remarks != "heavy swell" {
		t.Fatalf("remarks = %q", deck.Remarks)
	}
	if got := deck.CargoOnBoard(); got == nil || *got != 900 {
		t.Fatalf("cargo on board = %v", got)
	}
}

func TestParseWorkbookNoReports(t *testing.T) {
	f := buildVoyageWorkbook(t)
	_, err := ParseWorkbook(encode(t, f))
	if !errors.Is(err, voyage.ErrNoReportsInBatch) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseWorkbookMissingVessel(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", EngineSheet)
	_, err := ParseWorkbook(encode(t, f))
	if !errors.Is(err, voyage.ErrEmptyVesselID) {
		t.Fatalf("err = %v", err)
	}
}
