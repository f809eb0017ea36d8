package excel

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	calibration "fleetsys/internal/calibration/domain"
)

// SheetName is the sheet the sea-trial template stores its readings on.
const SheetName = "Sheet2"

// parameterCodes maps the template's column headers to parameter codes.
// Headers not listed here are taken as literal codes.
var parameterCodes = map[string]string{
	"Ship Speed": calibration.CodeShipSpeed,
	"M/E Power":  calibration.CodePower,
	"FOC":        calibration.CodeFOC,
}

// Batch is one parsed sea-trial workbook: a single vessel and session with
// the readings melted to one row per (timestamp, parameter).
type Batch struct {
	VesselID    string
	SessionName string
	Readings    []calibration.Reading
	// SkippedCells counts non-numeric values dropped during the melt.
	SkippedCells int
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"01-02-06 15:04",
	"1/2/06 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// ParseWorkbook reads a sea-trial workbook. The fixed leading columns are
// Vessel, Session, Timestamp and Displacement; every further column is one
// parameter series. Blank timestamps inherit the previous row's, matching
// the template's merged cells.
func ParseWorkbook(r io.Reader) (*Batch, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open sea-trial workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", SheetName, err)
	}
	if len(rows) < 2 {
		return nil, errors.New("sea-trial workbook has no data rows")
	}

	header := rows[0]
	if len(header) < 5 {
		return nil, fmt.Errorf("sea-trial header has %d columns, want at least 5", len(header))
	}

	batch := &Batch{}
	var lastTS time.Time
	for _, row := range rows[1:] {
		if rowEmpty(row) {
			continue
		}
		vessel := strings.TrimSpace(cell(row, 0))
		session := strings.TrimSpace(cell(row, 1))
		if batch.VesselID == "" {
			batch.VesselID = vessel
			batch.SessionName = session
		}

		ts, ok := parseTimestamp(cell(row, 2))
		if !ok {
			if lastTS.IsZero() {
				batch.SkippedCells++
				continue
			}
			ts = lastTS
		}
		lastTS = ts

		var displacement *float64
		if v, ok := parseNumber(cell(row, 3)); ok {
			displacement = &v
		}

		for col := 4; col < len(header); col++ {
			name := strings.TrimSpace(header[col])
			if name == "" {
				continue
			}
			raw := cell(row, col)
			if strings.TrimSpace(raw) == "" {
				continue
			}
			v, ok := parseNumber(raw)
			if !ok {
				batch.SkippedCells++
				continue
			}
			code, found := parameterCodes[name]
			if !found {
				code = name
			}
			batch.Readings = append(batch.Readings, calibration.Reading{
				VesselID:      batch.VesselID,
				Timestamp:     ts,
				ParameterCode: code,
				Value:         v,
				Displacement:  displacement,
			})
		}
	}

	if batch.VesselID == "" || len(batch.Readings) == 0 {
		return nil, errors.New("sea-trial workbook yielded no readings")
	}
	return batch, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

func rowEmpty(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if trimmed == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseTimestamp(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, trimmed); err == nil {
			return ts.UTC(), true
		}
	}
	// Excel serial date
	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if ts, err := excelize.ExcelDateToTime(serial, false); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
