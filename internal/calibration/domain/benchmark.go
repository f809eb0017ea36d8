package calibration

import "math"

// BenchmarkConstants are the mechanical constants of the power-plan
// formula. They describe the installed main engine and are configuration,
// not physics; the defaults match the reference eight-cylinder engine with
// a 0.32 m bore rated at 120 rpm.
type BenchmarkConstants struct {
	LoadFraction float64 `yaml:"load_fraction"`
	BoreM        float64 `yaml:"bore_m"`
	RatedRPM     float64 `yaml:"rated_rpm"`
	Cylinders    float64 `yaml:"cylinders"`
}

func DefaultBenchmarkConstants() BenchmarkConstants {
	return BenchmarkConstants{
		LoadFraction: 0.4,
		BoreM:        0.32,
		RatedRPM:     120,
		Cylinders:    8,
	}
}

// PowerPlan derives the planned indicated power from the maximum cylinder
// pressure and the measured shaft speed.
func (c BenchmarkConstants) PowerPlan(pmax, rpm float64) float64 {
	radius := c.BoreM / 2
	return pmax * c.LoadFraction * math.Pi * radius * radius * (rpm / 60) / c.RatedRPM * c.Cylinders
}

// DerivedValue is one benchmark output destined for the parameter store.
// Derived values are forecasts: they carry no difference against an
// observed reading.
type DerivedValue struct {
	ParameterCode string
	Value         float64
}
