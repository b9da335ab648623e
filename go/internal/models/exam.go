package models

// Phase is one step of a round.
type Phase string

const (
	PhaseRead       Phase = "read"
	PhaseActivity   Phase = "activity"
	PhaseFeedback   Phase = "feedback"
	PhaseChangeover Phase = "changeover"
)

// Next returns the phase that follows p. The cycle has no branches.
func (p Phase) Next() Phase {
	switch p {
	case PhaseRead:
		return PhaseActivity
	case PhaseActivity:
		return PhaseFeedback
	case PhaseFeedback:
		return PhaseChangeover
	default:
		return PhaseRead
	}
}

// Valid reports whether p is one of the four known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseRead, PhaseActivity, PhaseFeedback, PhaseChangeover:
		return true
	}
	return false
}

// CandidateProgress tracks where a candidate is in the rotation.
type CandidateProgress struct {
	ID                int `json:"id"`
	CurrentPosition   int `json:"current_position"`
	CompletedStations int `json:"completed_stations"`
}

// CandidateState is the live state reported for a single candidate.
type CandidateState string

const (
	CandidateReading    CandidateState = "reading"
	CandidateActivity   CandidateState = "activity"
	CandidateFeedback   CandidateState = "feedback"
	CandidateWaiting    CandidateState = "waiting"
	CandidateChangeover CandidateState = "changeover"
	CandidateRest       CandidateState = "rest"
	CandidateFinished   CandidateState = "finished"
)

// CandidateStatus is derived on demand from round-elapsed time; it is never
// persisted.
type CandidateStatus struct {
	CandidateID       int            `json:"candidate_id"`
	Position          int            `json:"position"`
	StationID         *int           `json:"station_id,omitempty"`
	StationName       string         `json:"station_name"`
	State             CandidateState `json:"state"`
	RemainingSeconds  *float64       `json:"remaining_seconds,omitempty"`
	CompletedStations int            `json:"completed_stations"`
}
