package trip

import (
	voyage "fleetsys/internal/voyage/domain"
)

// Reconciliation is the computed fuel accounting for one trip interval.
type Reconciliation struct {
	DurationMin float64
	Balances    []FuelBalance
}

// Reconcile computes both fuel accountings over a trip interval. The sample
// slice must be the time-ordered interval [start boundary .. end boundary]
// (or [start boundary .. latest sample] for an open-ended trip).
//
// Flow-meter integration skips the first sample: its consumption reading
// closes the previous trip's interval, and counting it again would double
// the shared boundary. The closing boundary's reading is included. Fewer
// than two samples mean no measurable flow interval and yield zero.
//
// Sounding is tank-level differencing: (start ROB - end ROB) + supply +
// correction, accumulated over the whole interval per fuel. The two figures
// are expected to diverge by measurement error; neither is corrected toward
// the other.
func Reconcile(vesselID string, voyageNumber, tripNumber int, samples []voyage.EngineSample) Reconciliation {
	rec := Reconciliation{}

	var foSupply, foCorrection, doSupply, doCorrection float64
	for _, sample := range samples {
		rec.DurationMin += voyage.Value(sample.MERunMin)
		foSupply += voyage.Value(sample.FOSupply)
		foCorrection += voyage.Value(sample.FOCorrection)
		doSupply += voyage.Value(sample.DOSupply)
		doCorrection += voyage.Value(sample.DOCorrection)
	}

	var foFlow, doFlow float64
	if len(samples) >= 2 {
		for _, sample := range samples[1:] {
			foFlow += voyage.Value(sample.TotalFOCons)
			doFlow += voyage.Value(sample.TotalDOCons)
		}
	}

	var startFO, endFO, startDO, endDO *float64
	if len(samples) > 0 {
		startFO = samples[0].FOROB
		startDO = samples[0].DOROB
		endFO = samples[len(samples)-1].FOROB
		endDO = samples[len(samples)-1].DOROB
	}

	rec.Balances = []FuelBalance{
		{
			VesselID:      vesselID,
			VoyageNumber:  voyageNumber,
			TripNumber:    tripNumber,
			Fuel:          voyage.FuelOil,
			StartROB:      startFO,
			EndROB:        endFO,
			SupplyQty:     foSupply,
			CorrectionQty: foCorrection,
			FlowmeterCons: foFlow,
			SoundingCons:  voyage.Value(startFO) - voyage.Value(endFO) + foSupply + foCorrection,
		},
		{
			VesselID:      vesselID,
			VoyageNumber:  voyageNumber,
			TripNumber:    tripNumber,
			Fuel:          voyage.DieselOil,
			StartROB:      startDO,
			EndROB:        endDO,
			SupplyQty:     doSupply,
			CorrectionQty: doCorrection,
			FlowmeterCons: doFlow,
			SoundingCons:  voyage.Value(startDO) - voyage.Value(endDO) + doSupply + doCorrection,
		},
	}
	return rec
}
