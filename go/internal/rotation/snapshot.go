package rotation

import (
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/phaseclock"
)

var (
	// ErrConfiguration is returned when an exam cannot start with the given inputs.
	ErrConfiguration = errors.New("invalid exam configuration")
	// ErrStateCorruption is returned when a snapshot cannot be restored.
	ErrStateCorruption = errors.New("exam snapshot is corrupt")
	// ErrAlreadyRunning accompanies ErrConfiguration when an exam is in progress.
	ErrAlreadyRunning = errors.New("an exam is already running")
)

// SnapshotVersion is bumped whenever ExamSnapshot changes incompatibly.
const SnapshotVersion = 1

// ExamSnapshot is everything needed to rebuild a running exam.
type ExamSnapshot struct {
	Version           int                        `json:"version"`
	SessionID         string                     `json:"session_id"`
	SavedAt           time.Time                  `json:"saved_at"`
	StartedAt         time.Time                  `json:"started_at"`
	Round             int                        `json:"round"`
	Phase             models.Phase               `json:"phase"`
	Candidates        []models.CandidateProgress `json:"candidates"`
	Stations          []models.Station           `json:"stations"`
	ActivitySeconds   int                        `json:"activity_seconds"`
	FeedbackSeconds   int                        `json:"feedback_seconds"`
	ReadSeconds       int                        `json:"read_seconds"`
	ChangeoverSeconds int                        `json:"changeover_seconds"`
	NumStations       int                        `json:"num_stations"`
	NumCandidates     int                        `json:"num_candidates"`
	TotalPositions    int                        `json:"total_positions"`
	Clock             phaseclock.State           `json:"clock"`
}

// Persister stores the latest snapshot. Implementations must not block.
type Persister interface {
	SaveSnapshot(snap ExamSnapshot)
	ClearSnapshot()
}

// Validate rejects snapshots that no running exam could have produced.
func (s ExamSnapshot) Validate() error {
	if s.Version != SnapshotVersion {
		return corrupt("unsupported version %d", s.Version)
	}
	if s.NumStations < 1 || s.NumStations != len(s.Stations) {
		return corrupt("num_stations %d does not match %d stations", s.NumStations, len(s.Stations))
	}
	for _, st := range s.Stations {
		if st.ActivityMinutes <= 0 || st.FeedbackMinutes <= 0 {
			return corrupt("station %d has non-positive durations", st.ID)
		}
	}
	if s.NumCandidates < 1 || s.NumCandidates != len(s.Candidates) {
		return corrupt("num_candidates %d does not match %d candidates", s.NumCandidates, len(s.Candidates))
	}
	if s.TotalPositions != TotalPositions(s.NumStations, s.NumCandidates) {
		return corrupt("total_positions %d, want %d", s.TotalPositions, TotalPositions(s.NumStations, s.NumCandidates))
	}
	if s.Round < 0 || s.Round >= s.TotalPositions {
		return corrupt("round %d out of range [0,%d)", s.Round, s.TotalPositions)
	}
	if !s.Phase.Valid() {
		return corrupt("unknown phase %q", s.Phase)
	}
	if s.ReadSeconds < 0 || s.ChangeoverSeconds < 0 {
		return corrupt("negative read or changeover duration")
	}
	if time.Duration(s.ActivitySeconds)*time.Second != ActivityDuration(s.Stations) {
		return corrupt("activity_seconds %d does not match stations", s.ActivitySeconds)
	}
	if time.Duration(s.FeedbackSeconds)*time.Second != FeedbackDuration(s.Stations) {
		return corrupt("feedback_seconds %d does not match stations", s.FeedbackSeconds)
	}

	seen := make(map[int]bool, len(s.Candidates))
	for i, c := range s.Candidates {
		if c.ID != i+1 {
			return corrupt("candidate %d has id %d", i, c.ID)
		}
		if c.CurrentPosition < 0 || c.CurrentPosition >= s.TotalPositions {
			return corrupt("candidate %d position %d out of range", c.ID, c.CurrentPosition)
		}
		if seen[c.CurrentPosition] {
			return corrupt("candidates share position %d", c.CurrentPosition)
		}
		seen[c.CurrentPosition] = true
		if c.CompletedStations != s.Round {
			return corrupt("candidate %d completed %d stations in round %d", c.ID, c.CompletedStations, s.Round)
		}
		if c.CurrentPosition != (i+s.Round)%s.TotalPositions {
			return corrupt("candidate %d position %d breaks rotation", c.ID, c.CurrentPosition)
		}
	}

	if err := s.Clock.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}
	if s.Clock.Phase != s.Phase {
		return corrupt("clock phase %q does not match exam phase %q", s.Clock.Phase, s.Phase)
	}
	if s.Phase == models.PhaseRead && s.ReadSeconds == 0 {
		return corrupt("read phase with zero read time")
	}
	if want := s.phaseSeconds(s.Phase); s.Clock.TotalSeconds != float64(want) {
		return corrupt("clock total %gs does not match %s length %ds", s.Clock.TotalSeconds, s.Phase, want)
	}
	return nil
}

// phaseSeconds is the length of p in the exam the snapshot was taken from.
func (s ExamSnapshot) phaseSeconds(p models.Phase) int {
	switch p {
	case models.PhaseRead:
		return s.ReadSeconds
	case models.PhaseActivity:
		return s.ActivitySeconds
	case models.PhaseFeedback:
		return s.FeedbackSeconds
	case models.PhaseChangeover:
		return s.ChangeoverSeconds
	}
	return 0
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStateCorruption, fmt.Sprintf(format, args...))
}
