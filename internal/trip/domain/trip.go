package trip

import (
	"sort"
	"strconv"
	"strings"
	"time"

	voyage "fleetsys/internal/voyage/domain"
)

// BoundarySuffix marks a report's trip label as a trip boundary: label "3B"
// opens trip 3, and trip 3 runs until the report labelled "4B".
const BoundarySuffix = "B"

// Trip is the derived interval between two consecutive boundary reports.
type Trip struct {
	VesselID     string
	VoyageNumber int
	Number       int
	Start        time.Time
	End          time.Time
	DurationMin  float64
	// OpenEnded marks a trip whose closing boundary has not arrived yet;
	// End then holds the latest available sample as a provisional end.
	OpenEnded bool
}

// FuelBalance is the per-fuel reconciliation of one trip. Flow-meter and
// sounding figures are two independent accountings of the same interval and
// are deliberately never merged; their divergence is the diagnostic output.
type FuelBalance struct {
	VesselID      string
	VoyageNumber  int
	TripNumber    int
	Fuel          voyage.FuelType
	StartROB      *float64
	EndROB        *float64
	SupplyQty     float64
	CorrectionQty float64
	FlowmeterCons float64
	SoundingCons  float64
}

// BoundaryLabel renders the boundary trip label for trip n.
func BoundaryLabel(n int) string {
	return strconv.Itoa(n) + BoundarySuffix
}

// ParseBoundaryLabel extracts the trip number from a boundary label,
// case-insensitively. Non-boundary labels report ok=false.
func ParseBoundaryLabel(label string) (int, bool) {
	trimmed := strings.TrimSpace(label)
	if len(trimmed) < 2 {
		return 0, false
	}
	if !strings.EqualFold(trimmed[len(trimmed)-1:], BoundarySuffix) {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed[:len(trimmed)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// DiscoverTripNumbers collects the distinct trip numbers present in a label
// stream, ascending.
func DiscoverTripNumbers(labels []string) []int {
	seen := make(map[int]struct{})
	var numbers []int
	for _, label := range labels {
		n, ok := ParseBoundaryLabel(label)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}
