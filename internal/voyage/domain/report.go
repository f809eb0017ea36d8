package voyage

import "time"

// Voyage groups the report stream for one vessel voyage.
type Voyage struct {
	UUID         string
	VesselID     string
	VoyageNumber int
	Start        time.Time
	End          time.Time
	Status       string
}

// Report is one observation event in a voyage report stream.
// Identity: unique per (vessel, voyage, timestamp).
type Report struct {
	ActivityID   string
	VesselID     string
	VoyageNumber int
	TripLabel    string
	Timestamp    time.Time
	TZOffset     int
	Activity     string
	Step         string
	DurationMin  *float64
	LocFrom      string
	LocTo        string
}

// Batch is one fully-parsed voyage workbook handed to the pipeline.
type Batch struct {
	VesselID     string
	VoyageNumber int
	Reports      []Report
	Engine       []EngineSample
	Deck         []DeckSample
	// SkippedFields counts cells that failed numeric coercion and were
	// stored as missing instead of aborting the row.
	SkippedFields int
}

// DuplicateTimestamp returns the first report timestamp that appears more
// than once in the batch. Reports are unique per (vessel, voyage,
// timestamp); a repeated timestamp would cross-match against its samples
// and double-count consumption downstream.
func (b Batch) DuplicateTimestamp() (time.Time, bool) {
	seen := make(map[time.Time]struct{}, len(b.Reports))
	for _, report := range b.Reports {
		ts := report.Timestamp.UTC()
		if _, ok := seen[ts]; ok {
			return ts, true
		}
		seen[ts] = struct{}{}
	}
	return time.Time{}, false
}
