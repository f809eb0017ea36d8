package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	summary "fleetsys/internal/summary/domain"
	trip "fleetsys/internal/trip/domain"
)

// BuildSummaryPDF renders a voyage performance summary with its per-trip
// fuel balances.
func BuildSummaryPDF(s *summary.VoyageSummary, balances []trip.FuelBalance) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Voyage Performance Summary")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Vessel: %s", s.VesselID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Voyage: %d", s.VoyageNumber))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s .. %s", s.Start.Format("2006-01-02 15:04"), s.End.Format("2006-01-02 15:04")))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Trips: %d", s.TripCount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Distance (NM): %.1f", s.DistanceNM))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Total FO (kL): %.3f    Total DO (kL): %.3f", s.TotalFOConsKL, s.TotalDOConsKL))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sailing FO (kL): %.3f    Sailing DO (kL): %.3f", s.SailingFOConsKL, s.SailingDOConsKL))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Sailing Hours: %.1f of %.1f", s.SailingDurationMin/60, s.TotalDurationMin/60))
	pdf.Ln(8)

	// Fuel balance table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(20, 6, "Trip", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Fuel", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Flow Meter (kL)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Sounding (kL)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Difference (kL)", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, b := range balances {
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", b.TripNumber), "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, string(b.Fuel), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", b.FlowmeterCons), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", b.SoundingCons), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.3f", b.SoundingCons-b.FlowmeterCons), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildSummaryXLSX renders the same summary as a workbook: one sheet for the
// voyage rollup, one for the fuel balance table.
func BuildSummaryXLSX(s *summary.VoyageSummary, balances []trip.FuelBalance) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	balanceSheet := "fuel_balances"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(balanceSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Voyage Performance Summary")
	_ = f.SetCellValue(summarySheet, "A3", "Vessel")
	_ = f.SetCellValue(summarySheet, "B3", s.VesselID)
	_ = f.SetCellValue(summarySheet, "A4", "Voyage")
	_ = f.SetCellValue(summarySheet, "B4", s.VoyageNumber)
	_ = f.SetCellValue(summarySheet, "A5", "Start")
	_ = f.SetCellValue(summarySheet, "B5", s.Start.Format("2006-01-02 15:04"))
	_ = f.SetCellValue(summarySheet, "A6", "End")
	_ = f.SetCellValue(summarySheet, "B6", s.End.Format("2006-01-02 15:04"))
	_ = f.SetCellValue(summarySheet, "A7", "Trips")
	_ = f.SetCellValue(summarySheet, "B7", s.TripCount)
	_ = f.SetCellValue(summarySheet, "A8", "Distance (NM)")
	_ = f.SetCellValue(summarySheet, "B8", s.DistanceNM)
	_ = f.SetCellValue(summarySheet, "A9", "Total FO (kL)")
	_ = f.SetCellValue(summarySheet, "B9", s.TotalFOConsKL)
	_ = f.SetCellValue(summarySheet, "A10", "Total DO (kL)")
	_ = f.SetCellValue(summarySheet, "B10", s.TotalDOConsKL)
	_ = f.SetCellValue(summarySheet, "A11", "Sailing FO (kL)")
	_ = f.SetCellValue(summarySheet, "B11", s.SailingFOConsKL)
	_ = f.SetCellValue(summarySheet, "A12", "Sailing DO (kL)")
	_ = f.SetCellValue(summarySheet, "B12", s.SailingDOConsKL)
	_ = f.SetCellValue(summarySheet, "A13", "Sailing Hours")
	_ = f.SetCellValue(summarySheet, "B13", s.SailingDurationMin/60)

	_ = f.SetCellValue(balanceSheet, "A1", "Trip")
	_ = f.SetCellValue(balanceSheet, "B1", "Fuel")
	_ = f.SetCellValue(balanceSheet, "C1", "Start ROB (kL)")
	_ = f.SetCellValue(balanceSheet, "D1", "End ROB (kL)")
	_ = f.SetCellValue(balanceSheet, "E1", "Supply (kL)")
	_ = f.SetCellValue(balanceSheet, "F1", "Correction (kL)")
	_ = f.SetCellValue(balanceSheet, "G1", "Flow Meter (kL)")
	_ = f.SetCellValue(balanceSheet, "H1", "Sounding (kL)")
	for i, b := range balances {
		row := i + 2
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("A%d", row), b.TripNumber)
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("B%d", row), string(b.Fuel))
		if b.StartROB != nil {
			_ = f.SetCellValue(balanceSheet, fmt.Sprintf("C%d", row), *b.StartROB)
		}
		if b.EndROB != nil {
			_ = f.SetCellValue(balanceSheet, fmt.Sprintf("D%d", row), *b.EndROB)
		}
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("E%d", row), b.SupplyQty)
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("F%d", row), b.CorrectionQty)
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("G%d", row), b.FlowmeterCons)
		_ = f.SetCellValue(balanceSheet, fmt.Sprintf("H%d", row), b.SoundingCons)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
