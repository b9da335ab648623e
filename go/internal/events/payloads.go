package events

import (
	"time"

	"github.com/mcdev12/osce/go/internal/models"
)

// ExamStartedPayload is the payload for an ExamStarted event
type ExamStartedPayload struct {
	NumStations          int       `json:"num_stations"`
	NumCandidates        int       `json:"num_candidates"`
	TotalPositions       int       `json:"total_positions"`
	ReadSeconds          int       `json:"read_seconds"`
	ActivitySeconds      int       `json:"activity_seconds"`
	FeedbackSeconds      int       `json:"feedback_seconds"`
	ChangeoverSeconds    int       `json:"changeover_seconds"`
	EstimatedDurationSec int       `json:"estimated_duration_sec"`
	StartedAt            time.Time `json:"started_at"`
}

// PhaseStartedPayload is the payload for a PhaseStarted event
type PhaseStartedPayload struct {
	Round       int          `json:"round"`
	Phase       models.Phase `json:"phase"`
	DurationSec int          `json:"duration_sec"`
	StartedAt   time.Time    `json:"started_at"`
}

// PhaseCompletedPayload is the payload for a PhaseCompleted event
type PhaseCompletedPayload struct {
	Round       int          `json:"round"`
	Phase       models.Phase `json:"phase"`
	CompletedAt time.Time    `json:"completed_at"`
}

// TimerTickPayload contains the live timer and every candidate's status
type TimerTickPayload struct {
	Round        int                      `json:"round"`
	TotalRounds  int                      `json:"total_rounds"`
	Phase        models.Phase             `json:"phase"`
	RemainingSec float64                  `json:"remaining_sec"`
	TotalSec     float64                  `json:"total_sec"`
	Progress     float64                  `json:"progress"`
	WarningLevel string                   `json:"warning_level"`
	Candidates   []models.CandidateStatus `json:"candidates"`
}

// ThresholdPayload is the payload for a Threshold event
type ThresholdPayload struct {
	Round        int          `json:"round"`
	Phase        models.Phase `json:"phase"`
	Key          string       `json:"key"`
	Kind         string       `json:"kind"`
	Seconds      int          `json:"seconds"`
	RemainingSec float64      `json:"remaining_sec"`
}

// RoundCompletedPayload is the payload for a RoundCompleted event. Candidates
// carry their positions after rotation.
type RoundCompletedPayload struct {
	Round      int                        `json:"round"`
	Candidates []models.CandidateProgress `json:"candidates"`
}

// RoundRestartedPayload is the payload for a RoundRestarted event
type RoundRestartedPayload struct {
	Round int `json:"round"`
}

// ExamPausedPayload is the payload for an ExamPaused event
type ExamPausedPayload struct {
	Round        int          `json:"round"`
	Phase        models.Phase `json:"phase"`
	RemainingSec float64      `json:"remaining_sec"`
	PausedAt     time.Time    `json:"paused_at"`
}

// ExamResumedPayload is the payload for an ExamResumed event
type ExamResumedPayload struct {
	Round        int          `json:"round"`
	Phase        models.Phase `json:"phase"`
	RemainingSec float64      `json:"remaining_sec"`
	ResumedAt    time.Time    `json:"resumed_at"`
}

// ExamCompletedPayload is the payload for an ExamCompleted event
type ExamCompletedPayload struct {
	Rounds      int       `json:"rounds"`
	CompletedAt time.Time `json:"completed_at"`
	Duration    string    `json:"duration"`
}

// ExamStoppedPayload is the payload for an ExamStopped event
type ExamStoppedPayload struct {
	Round     int          `json:"round"`
	Phase     models.Phase `json:"phase"`
	StoppedAt time.Time    `json:"stopped_at"`
}

// ExamRestoredPayload is the payload for an ExamRestored event
type ExamRestoredPayload struct {
	Round        int          `json:"round"`
	Phase        models.Phase `json:"phase"`
	RemainingSec float64      `json:"remaining_sec"`
	SavedAt      time.Time    `json:"saved_at"`
	// ActivitySeconds lets subscribers that missed ExamStarted learn the activity length.
	ActivitySeconds int `json:"activity_seconds"`
}
