package calibration

import (
	"errors"
	"time"
)

// Parameter codes shared by calibration readings and benchmark derivation.
const (
	CodeShaftRPM  = "010001"
	CodeShipSpeed = "010005"
	CodeFOC       = "020103"
	CodePower     = "020107"
	CodePowerPlan = "020201"
	CodeExponent  = "020202"
	CodePmax      = "023003"
)

// Purpose names what a fitted model predicts.
type Purpose string

const (
	PurposeSpeed    Purpose = "speed"
	PurposeFuel     Purpose = "fuel"
	PurposeExponent Purpose = "exponent"
)

// Purposes returns every fit target with its variable pairing. Speed and
// fuel regress against measured power; the exponent regresses against the
// derived power plan.
func Purposes() []Purpose {
	return []Purpose{PurposeSpeed, PurposeFuel, PurposeExponent}
}

// VariableCodes resolves a purpose to its (independent, dependent)
// parameter codes.
func (p Purpose) VariableCodes() (string, string) {
	switch p {
	case PurposeSpeed:
		return CodePower, CodeShipSpeed
	case PurposeFuel:
		return CodePower, CodeFOC
	case PurposeExponent:
		return CodePowerPlan, CodeExponent
	}
	return "", ""
}

// Session is one named calibration run for a vessel. IDs are assigned by
// the store in creation order; the lowest id is the deterministic pick when
// forecasting policy asks for the earliest session.
type Session struct {
	ID        int64
	VesselID  string
	Name      string
	StartDate time.Time
}

// Reading is one timestamped parameter observation inside a session.
type Reading struct {
	SessionID     int64
	VesselID      string
	Timestamp     time.Time
	ParameterCode string
	Value         float64
	Displacement  *float64
}

// Model holds the fitted quadratic for one (vessel, session, purpose).
type Model struct {
	VesselID        string
	SessionID       int64
	Purpose         Purpose
	IndependentCode string
	DependentCode   string
	A               float64
	B               float64
	C               float64
	R2              float64
}

// Evaluate applies the quadratic to an independent-variable value.
func (m Model) Evaluate(x float64) float64 {
	return m.A*x*x + m.B*x + m.C
}

var (
	ErrInsufficientData = errors.New("calibration: fewer than three paired readings")
	ErrSingularFit      = errors.New("calibration: singular normal equations")
)
