package rotation

import (
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/osce/go/internal/models"
)

// WarningLevel classifies the remaining time for displays.
type WarningLevel string

const (
	LevelNormal   WarningLevel = "normal"
	LevelWarning  WarningLevel = "warning"
	LevelCritical WarningLevel = "critical"
)

// LevelFor maps remaining time onto a warning level.
func LevelFor(remaining time.Duration) WarningLevel {
	switch {
	case remaining <= 30*time.Second:
		return LevelCritical
	case remaining <= 2*time.Minute:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// FormatClock renders d as MM:SS, rounding partial seconds up.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(math.Ceil(d.Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Cue is the next scheduled announcement within the current phase.
type Cue struct {
	Label string        `json:"label"`
	In    time.Duration `json:"-"`
	InSec float64       `json:"in_sec"`
}

// NextCue previews the next announcement for a phase with the given time left.
// It returns false when nothing further is announced in the phase.
func NextCue(phase models.Phase, remaining time.Duration) (Cue, bool) {
	cue := func(label string, at time.Duration) (Cue, bool) {
		in := remaining - at
		return Cue{Label: label, In: in, InSec: in.Seconds()}, true
	}
	switch phase {
	case models.PhaseRead:
		return cue("Start activity", 0)
	case models.PhaseActivity:
		switch {
		case remaining > 2*time.Minute:
			return cue("2 minute warning", 2*time.Minute)
		case remaining > time.Minute:
			return cue("1 minute warning", time.Minute)
		case remaining > 0:
			return cue("End of activity", 0)
		}
	case models.PhaseFeedback:
		switch {
		case remaining > time.Minute:
			return cue("1 minute warning", time.Minute)
		case remaining > 0:
			return cue("Station complete", 0)
		}
	case models.PhaseChangeover:
		return cue("Next station begins", 0)
	}
	return Cue{}, false
}

// View is a read-only summary of the exam for displays and the API.
type View struct {
	Running           bool                     `json:"running"`
	Paused            bool                     `json:"paused"`
	Completed         bool                     `json:"completed"`
	SessionID         string                   `json:"session_id,omitempty"`
	Round             int                      `json:"round"`
	TotalRounds       int                      `json:"total_rounds"`
	Phase             models.Phase             `json:"phase"`
	RemainingSec      float64                  `json:"remaining_sec"`
	TotalSec          float64                  `json:"total_sec"`
	Progress          float64                  `json:"progress"`
	Clock             string                   `json:"clock"`
	WarningLevel      WarningLevel             `json:"warning_level"`
	NextCue           *Cue                     `json:"next_cue,omitempty"`
	EstimatedDuration float64                  `json:"estimated_duration_sec"`
	Stations          []models.Station         `json:"stations,omitempty"`
	Candidates        []models.CandidateStatus `json:"candidates"`
}

// View summarises the exam as of now.
func (s *Scheduler) View() View {
	remaining := s.timer.Remaining()
	v := View{
		Running:           s.running,
		Paused:            s.running && s.timer.Paused(),
		Completed:         s.completed,
		SessionID:         s.sessionID,
		Round:             s.round,
		TotalRounds:       s.totalPositions,
		Phase:             s.phase,
		Stations:          append([]models.Station(nil), s.stations...),
		EstimatedDuration: s.EstimatedDuration().Seconds(),
		Candidates:        s.CandidateStatuses(),
	}
	if !s.running {
		return v
	}
	v.RemainingSec = remaining.Seconds()
	v.TotalSec = s.timer.Total().Seconds()
	v.Progress = s.timer.Progress()
	v.Clock = FormatClock(remaining)
	v.WarningLevel = LevelFor(remaining)
	if cue, ok := NextCue(s.phase, remaining); ok {
		v.NextCue = &cue
	}
	return v
}

// CandidateStatuses derives every candidate's live status from the shared
// round clock.
func (s *Scheduler) CandidateStatuses() []models.CandidateStatus {
	return s.candidateStatuses(s.timer.Remaining())
}

func (s *Scheduler) candidateStatuses(remaining time.Duration) []models.CandidateStatus {
	out := make([]models.CandidateStatus, 0, len(s.candidates))
	for _, c := range s.candidates {
		out = append(out, s.candidateStatus(c, remaining))
	}
	return out
}

func (s *Scheduler) candidateStatus(c models.CandidateProgress, remaining time.Duration) models.CandidateStatus {
	st := models.CandidateStatus{
		CandidateID:       c.ID,
		Position:          c.CurrentPosition,
		CompletedStations: c.CompletedStations,
	}
	rest := c.CurrentPosition >= len(s.stations)
	var station models.Station
	if !rest {
		station = s.stations[c.CurrentPosition]
		id := station.ID
		st.StationID = &id
		st.StationName = station.Name
	}

	switch {
	case s.completed:
		st.State = models.CandidateFinished
		return st
	case rest:
		st.State = models.CandidateRest
		return st
	}

	var elapsed time.Duration
	switch s.phase {
	case models.PhaseRead:
		st.State = models.CandidateReading
		return st
	case models.PhaseChangeover:
		st.State = models.CandidateChangeover
		return st
	case models.PhaseActivity:
		elapsed = s.activity - remaining
	case models.PhaseFeedback:
		elapsed = s.activity + s.feedback - remaining
	}

	activityEnd := station.ActivityDuration()
	feedbackEnd := activityEnd + station.FeedbackDuration()
	var left time.Duration
	switch {
	case elapsed < activityEnd:
		st.State = models.CandidateActivity
		left = activityEnd - elapsed
	case elapsed < feedbackEnd:
		st.State = models.CandidateFeedback
		left = feedbackEnd - elapsed
	default:
		st.State = models.CandidateWaiting
	}
	secs := left.Seconds()
	st.RemainingSeconds = &secs
	return st
}
