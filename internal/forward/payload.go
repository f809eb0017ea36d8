package forward

import (
	"time"

	voyage "fleetsys/internal/voyage/domain"
)

// VoyagePayload is the outbound vessel-activity document.
type VoyagePayload struct {
	VoyageUUID   string  `json:"voyageUuid"`
	VesselID     string  `json:"vessel"`
	VoyageNumber int     `json:"voyageNumber"`
	Category     string  `json:"category"`
	Entries      []Entry `json:"entries"`
}

// Entry is one report in the payload, enriched with the deck log matched on
// the same timestamp.
type Entry struct {
	ActivityID   string   `json:"activityId"`
	LocalTime    string   `json:"localTime"`
	TZOffset     int      `json:"tzOffset"`
	Activity     string   `json:"activity"`
	Location     string   `json:"location,omitempty"`
	Note         string   `json:"note,omitempty"`
	CargoOnBoard *float64 `json:"cargoOnBoard"`
	Coordinate   string   `json:"coordinate,omitempty"`
}

// BuildPayload assembles the outbound document from a voyage's reports and
// deck samples. Reports must already be in timestamp order; entries keep
// that order. Cargo-on-board stays null when the matching deck sample has
// neither cargo slot populated, or when no deck sample matches at all.
func BuildPayload(v voyage.Voyage, reports []voyage.Report, decks map[time.Time]voyage.DeckSample) VoyagePayload {
	p := VoyagePayload{
		VoyageUUID:   v.UUID,
		VesselID:     v.VesselID,
		VoyageNumber: v.VoyageNumber,
		Category:     v.Status,
		Entries:      make([]Entry, 0, len(reports)),
	}
	for _, r := range reports {
		entry := Entry{
			ActivityID: r.ActivityID,
			LocalTime:  r.Timestamp.Format("2006-01-02T15:04:05"),
			TZOffset:   r.TZOffset,
			Activity:   r.Activity,
			Location:   location(r),
		}
		if deck, ok := decks[r.Timestamp]; ok {
			entry.CargoOnBoard = deck.CargoOnBoard()
			entry.Coordinate = deck.Coordinate()
			entry.Note = deck.Remarks
		}
		p.Entries = append(p.Entries, entry)
	}
	return p
}

func location(r voyage.Report) string {
	switch {
	case r.LocFrom != "" && r.LocTo != "":
		return r.LocFrom + "-" + r.LocTo
	case r.LocFrom != "":
		return r.LocFrom
	default:
		return r.LocTo
	}
}
