package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	voyage "fleetsys/internal/voyage/domain"
)

const (
	EngineSheet = "Form_Engine"
	DeckSheet   = "Form_Deck"

	// Data rows start below the template's 8 header rows and run for at
	// most 150 entries. Both sheets put their first field in column C.
	headerRows  = 8
	maxDataRows = 150
	firstColumn = 2

	vesselCell = "C3"
	voyageCell = "C4"
)

// parser accumulates the skipped-cell count while a workbook is read.
type parser struct {
	skipped int
}

// ParseWorkbook reads one voyage report workbook into a typed batch. Rows
// without a vessel and voyage value are template filler and are dropped;
// non-numeric cells in numeric columns become missing values and are
// counted, never fatal.
func ParseWorkbook(r io.Reader) (*voyage.Batch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open voyage workbook: %w", err)
	}
	defer f.Close()

	vesselID, err := f.GetCellValue(EngineSheet, vesselCell)
	if err != nil {
		return nil, fmt.Errorf("read vessel id: %w", err)
	}
	vesselID = strings.TrimSpace(vesselID)
	if vesselID == "" {
		return nil, voyage.ErrEmptyVesselID
	}
	voyageRaw, err := f.GetCellValue(EngineSheet, voyageCell)
	if err != nil {
		return nil, fmt.Errorf("read voyage number: %w", err)
	}
	voyageNumber, err := strconv.Atoi(strings.TrimSpace(voyageRaw))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", voyage.ErrInvalidVoyage, voyageRaw)
	}

	p := &parser{}
	batch := &voyage.Batch{VesselID: vesselID, VoyageNumber: voyageNumber}

	engineRows, err := f.GetRows(EngineSheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", EngineSheet, err)
	}
	for _, row := range dataRows(engineRows) {
		report, sample, ok := p.parseEngineRow(vesselID, voyageNumber, row)
		if !ok {
			continue
		}
		batch.Reports = append(batch.Reports, report)
		batch.Engine = append(batch.Engine, sample)
	}
	if len(batch.Reports) == 0 {
		return nil, voyage.ErrNoReportsInBatch
	}

	deckRows, err := f.GetRows(DeckSheet)
	if err == nil {
		for _, row := range dataRows(deckRows) {
			if sample, ok := p.parseDeckRow(row); ok {
				batch.Deck = append(batch.Deck, sample)
			}
		}
	}

	batch.SkippedFields = p.skipped
	return batch, nil
}

func dataRows(rows [][]string) [][]string {
	if len(rows) <= headerRows {
		return nil
	}
	data := rows[headerRows:]
	if len(data) > maxDataRows {
		data = data[:maxDataRows]
	}
	return data
}

// Engine sheet field order, relative to column C.
const (
	engActivity = iota
	engVessel
	engVoyage
	engTripLabel
	engDateTime
	engTimezone
	engStep
	engDuration
	engLocFrom
	engLocTo
	engMERPM
	engMELoad
	engPropRPM
	engSpeed
	engPropCPP
	engMEFlowIn
	engMEFlowOut
	engMEFOCons
	engMEDOCons
	engMEConsCheck
	engMERH
	engBoilerFlowIn
	engBoilerFlowOut
	engBoilerFOCons
	engBoilerDOCons
	engBoilerConsCheck
	engBoilerRH
	engAuxFlow
	engAux1DOCons
	engAux2DOCons
	engAux3DOCons
)

// Remaining engine columns jump past the per-cylinder banks.
const (
	engOtherFOCons  = 51
	engOtherDOCons  = 52
	engTotalFOCons  = 53
	engTotalDOCons  = 54
	engFOROB        = 55
	engFOCorrection = 57
	engFOSupply     = 58
	engFOSupplyType = 59
	engDOROB        = 60
	engDOCorrection = 62
	engDOSupply     = 63
	engDOSupplyType = 64
	engFOSG         = 65
	engDOSG         = 66
)

func (p *parser) parseEngineRow(vesselID string, voyageNumber int, row []string) (voyage.Report, voyage.EngineSample, bool) {
	if cellAt(row, engVessel) == "" || cellAt(row, engVoyage) == "" {
		return voyage.Report{}, voyage.EngineSample{}, false
	}
	ts, ok := parseTimestamp(cellAt(row, engDateTime))
	if !ok {
		p.skipped++
		return voyage.Report{}, voyage.EngineSample{}, false
	}

	report := voyage.Report{
		ActivityID:   uuid.NewString(),
		VesselID:     vesselID,
		VoyageNumber: voyageNumber,
		TripLabel:    cellAt(row, engTripLabel),
		Timestamp:    ts,
		TZOffset:     p.parseInt(cellAt(row, engTimezone)),
		Activity:     cellAt(row, engActivity),
		Step:         cellAt(row, engStep),
		DurationMin:  p.parseMinutes(cellAt(row, engDuration)),
		LocFrom:      cellAt(row, engLocFrom),
		LocTo:        cellAt(row, engLocTo),
	}

	sample := voyage.EngineSample{
		Timestamp: ts,
		TripLabel: report.TripLabel,
		Activity:  report.Activity,

		MERPM:   p.parseFloat(cellAt(row, engMERPM)),
		MELoad:  p.parseFloat(cellAt(row, engMELoad)),
		PropRPM: p.parseFloat(cellAt(row, engPropRPM)),
		Speed:   p.parseFloat(cellAt(row, engSpeed)),

		MEFlowIn:  p.parseFloat(cellAt(row, engMEFlowIn)),
		MEFlowOut: p.parseFloat(cellAt(row, engMEFlowOut)),
		MEFOCons:  p.parseFloat(cellAt(row, engMEFOCons)),
		MEDOCons:  p.parseFloat(cellAt(row, engMEDOCons)),
		MERunMin:  p.parseMinutes(cellAt(row, engMERH)),

		BoilerFOCons: p.parseFloat(cellAt(row, engBoilerFOCons)),
		BoilerDOCons: p.parseFloat(cellAt(row, engBoilerDOCons)),
		AuxDOCons: sumOptional(
			p.parseFloat(cellAt(row, engAux1DOCons)),
			p.parseFloat(cellAt(row, engAux2DOCons)),
			p.parseFloat(cellAt(row, engAux3DOCons)),
		),

		TotalFOCons: p.parseFloat(cellAt(row, engTotalFOCons)),
		TotalDOCons: p.parseFloat(cellAt(row, engTotalDOCons)),

		FOROB:        p.parseFloat(cellAt(row, engFOROB)),
		FOSupply:     p.parseFloat(cellAt(row, engFOSupply)),
		FOCorrection: p.parseFloat(cellAt(row, engFOCorrection)),
		FOSupplyType: cellAt(row, engFOSupplyType),

		DOROB:        p.parseFloat(cellAt(row, engDOROB)),
		DOSupply:     p.parseFloat(cellAt(row, engDOSupply)),
		DOCorrection: p.parseFloat(cellAt(row, engDOCorrection)),
		DOSupplyType: cellAt(row, engDOSupplyType),

		FOSG: p.parseFloat(cellAt(row, engFOSG)),
		DOSG: p.parseFloat(cellAt(row, engDOSG)),
	}
	return report, sample, true
}

// Deck sheet field order, relative to column C.
const (
	deckVessel     = 1
	deckVoyage     = 2
	deckDateTime   = 4
	deckFWROB      = 10
	deckFWSupply   = 11
	deckFWConsNoon = 13
	deckCargo1ROB  = 18
	deckCargo1Type = 19
	deckCargo2ROB  = 20
	deckCargo2Type = 21
	deckBallast    = 22
	deckDraftFore  = 26
	deckDraftMid   = 27
	deckDraftAft   = 28
	deckDistLast   = 30
	deckDist24     = 31
	deckDistToGo   = 32
	deckSpeedLog   = 34
	deckSpeedGPS   = 35
	deckLatDegree  = 38
	deckLatDecimal = 39
	deckLatQuad    = 40
	deckLonDegree  = 41
	deckLonDecimal = 42
	deckLonQuad    = 43
	deckCoordNotes = 44
	deckWindDir    = 49
	deckWindSpeed  = 50
	deckWaveHeight = 53
	deckRemarks    = 57
)

func (p *parser) parseDeckRow(row []string) (voyage.DeckSample, bool) {
	if cellAt(row, deckVessel) == "" || cellAt(row, deckVoyage) == "" {
		return voyage.DeckSample{}, false
	}
	ts, ok := parseTimestamp(cellAt(row, deckDateTime))
	if !ok {
		p.skipped++
		return voyage.DeckSample{}, false
	}

	return voyage.DeckSample{
		Timestamp: ts,

		FWROB:      p.parseFloat(cellAt(row, deckFWROB)),
		FWSupply:   p.parseFloat(cellAt(row, deckFWSupply)),
		FWConsNoon: p.parseFloat(cellAt(row, deckFWConsNoon)),

		Cargo1ROB:  p.parseFloat(cellAt(row, deckCargo1ROB)),
		Cargo1Type: cellAt(row, deckCargo1Type),
		Cargo2ROB:  p.parseFloat(cellAt(row, deckCargo2ROB)),
		Cargo2Type: cellAt(row, deckCargo2Type),
		Ballast:    p.parseFloat(cellAt(row, deckBallast)),

		DraftFore: p.parseFloat(cellAt(row, deckDraftFore)),
		DraftMid:  p.parseFloat(cellAt(row, deckDraftMid)),
		DraftAft:  p.parseFloat(cellAt(row, deckDraftAft)),

		DistLastPort: p.parseFloat(cellAt(row, deckDistLast)),
		Dist24Hours:  p.parseFloat(cellAt(row, deckDist24)),
		DistToGo:     p.parseFloat(cellAt(row, deckDistToGo)),

		SpeedLog: p.parseFloat(cellAt(row, deckSpeedLog)),
		SpeedGPS: p.parseFloat(cellAt(row, deckSpeedGPS)),

		LatDegree:  p.parseFloat(cellAt(row, deckLatDegree)),
		LatDecimal: p.parseFloat(cellAt(row, deckLatDecimal)),
		LatQuad:    cellAt(row, deckLatQuad),
		LonDegree:  p.parseFloat(cellAt(row, deckLonDegree)),
		LonDecimal: p.parseFloat(cellAt(row, deckLonDecimal)),
		LonQuad:    cellAt(row, deckLonQuad),
		CoordNotes: cellAt(row, deckCoordNotes),

		WindDir:    cellAt(row, deckWindDir),
		WindSpeed:  p.parseFloat(cellAt(row, deckWindSpeed)),
		WaveHeight: p.parseFloat(cellAt(row, deckWaveHeight)),
		Remarks:    cellAt(row, deckRemarks),
	}, true
}

func cellAt(row []string, rel int) string {
	i := rel + firstColumn
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (p *parser) parseFloat(raw string) *float64 {
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		p.skipped++
		return nil
	}
	return &v
}

func (p *parser) parseInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.skipped++
		return 0
	}
	return int(v)
}

// parseMinutes reads a running-hours cell: hh:mm (or hh:mm:ss) clock text
// or a plain number already in minutes.
func (p *parser) parseMinutes(raw string) *float64 {
	if raw == "" {
		return nil
	}
	if strings.Contains(raw, ":") {
		parts := strings.Split(raw, ":")
		if len(parts) < 2 || len(parts) > 3 {
			p.skipped++
			return nil
		}
		hours, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		minutes, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			p.skipped++
			return nil
		}
		total := float64(hours*60 + minutes)
		return &total
	}
	return p.parseFloat(raw)
}

func sumOptional(values ...*float64) *float64 {
	var total float64
	seen := false
	for _, v := range values {
		if v != nil {
			total += *v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}

var reportTimestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01-02-06 15:04",
	"1/2/06 15:04",
	"1/2/2006 15:04",
	time.RFC3339,
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range reportTimestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
