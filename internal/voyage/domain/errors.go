package voyage

import "errors"

var (
	ErrEmptyVesselID     = errors.New("voyage: empty vessel id")
	ErrInvalidVoyage     = errors.New("voyage: invalid voyage number")
	ErrInvalidTimestamp  = errors.New("voyage: invalid report timestamp")
	ErrDuplicateReport   = errors.New("voyage: duplicate report timestamp")
	ErrNoReportsInBatch  = errors.New("voyage: batch carries no reports")
	ErrSampleCountSkewed = errors.New("voyage: engine sample count does not match reports")
)
