package voyage

import (
	"strconv"
	"time"
)

// FuelType identifies a bunker fuel grade tracked per trip.
type FuelType string

const (
	FuelOil   FuelType = "FO"
	DieselOil FuelType = "DO"
)

// FuelTypes lists the grades a fuel balance is produced for.
func FuelTypes() []FuelType {
	return []FuelType{FuelOil, DieselOil}
}

// EngineSample holds the engine-room instrument readings attached to one
// Report. Numeric fields are pointers: a nil value means the cell was blank
// or non-numeric in the source workbook.
type EngineSample struct {
	// Denormalized from the owning report for ordering and grouping.
	Timestamp time.Time
	TripLabel string
	Activity  string

	MERPM   *float64
	MELoad  *float64
	PropRPM *float64
	Speed   *float64

	MEFlowIn  *float64
	MEFlowOut *float64
	MEFOCons  *float64
	MEDOCons  *float64
	MERunMin  *float64

	BoilerFOCons *float64
	BoilerDOCons *float64
	AuxDOCons    *float64

	TotalFOCons *float64
	TotalDOCons *float64

	FOROB        *float64
	FOSupply     *float64
	FOCorrection *float64
	FOSupplyType string

	DOROB        *float64
	DOSupply     *float64
	DOCorrection *float64
	DOSupplyType string

	FOSG *float64
	DOSG *float64
}

// DeckSample holds the deck-log readings attached to one Report.
type DeckSample struct {
	Timestamp time.Time

	FWROB      *float64
	FWSupply   *float64
	FWConsNoon *float64

	Cargo1ROB  *float64
	Cargo1Type string
	Cargo2ROB  *float64
	Cargo2Type string
	Ballast    *float64

	DraftFore *float64
	DraftMid  *float64
	DraftAft  *float64

	DistLastPort *float64
	Dist24Hours  *float64
	DistToGo     *float64

	SpeedLog *float64
	SpeedGPS *float64

	LatDegree  *float64
	LatDecimal *float64
	LatQuad    string
	LonDegree  *float64
	LonDecimal *float64
	LonQuad    string
	CoordNotes string

	WindDir    string
	WindSpeed  *float64
	WaveHeight *float64
	Remarks    string
}

// CargoOnBoard sums the populated cargo slots. It returns nil when neither
// slot carries a reading, which is distinct from a measured zero.
func (d DeckSample) CargoOnBoard() *float64 {
	if d.Cargo1ROB == nil && d.Cargo2ROB == nil {
		return nil
	}
	total := Value(d.Cargo1ROB) + Value(d.Cargo2ROB)
	return &total
}

// Coordinate renders the recorded position as a compact string, empty when
// no latitude was logged.
func (d DeckSample) Coordinate() string {
	if d.LatDegree == nil || d.LonDegree == nil {
		return ""
	}
	return formatCoord(*d.LatDegree, Value(d.LatDecimal), d.LatQuad) + " " +
		formatCoord(*d.LonDegree, Value(d.LonDecimal), d.LonQuad)
}

// Value dereferences a reading, treating missing as zero for sums.
func Value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// Ptr returns a pointer to v, for building samples in tests and parsers.
func Ptr(v float64) *float64 { return &v }

func formatCoord(degree, decimal float64, quadrant string) string {
	s := strconv.FormatFloat(degree, 'f', 0, 64) + "-" + strconv.FormatFloat(decimal, 'f', 1, 64)
	if quadrant != "" {
		s += quadrant
	}
	return s
}
