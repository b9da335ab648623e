// Package rotation drives an exam through its rounds and phases and rotates
// candidates between stations at every round boundary.
package rotation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/phaseclock"
)

// Scheduler is the exam state machine. It owns one phase clock and is not
// safe for concurrent use; exam.Runner serialises every call.
type Scheduler struct {
	clock     clockwork.Clock
	timer     *phaseclock.Clock
	publisher events.Publisher
	persister Persister

	running   bool
	completed bool
	sessionID string
	startedAt time.Time

	stations       []models.Station
	numCandidates  int
	totalPositions int
	read           time.Duration
	changeover     time.Duration
	activity       time.Duration
	feedback       time.Duration

	round      int
	phase      models.Phase
	candidates []models.CandidateProgress
}

// NewScheduler wires a scheduler to its collaborators. publisher and
// persister may be nil.
func NewScheduler(clock clockwork.Clock, publisher events.Publisher, persister Persister) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Scheduler{
		clock:     clock,
		publisher: publisher,
		persister: persister,
		phase:     models.PhaseRead,
	}
	s.timer = phaseclock.New(clock, &clockListener{s: s})
	return s
}

// StartExam validates the configuration and enters the first phase of round 0.
// A rejected start leaves the scheduler untouched.
func (s *Scheduler) StartExam(stations []models.Station, numCandidates, readSeconds, changeoverSeconds int) error {
	if s.running {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrAlreadyRunning)
	}
	if len(stations) == 0 {
		return fmt.Errorf("%w: at least one station is required", ErrConfiguration)
	}
	if numCandidates < 1 {
		return fmt.Errorf("%w: need at least one candidate, got %d", ErrConfiguration, numCandidates)
	}
	if readSeconds < 0 || changeoverSeconds < 0 {
		return fmt.Errorf("%w: read and changeover seconds must not be negative", ErrConfiguration)
	}
	for _, st := range stations {
		if st.ActivityMinutes <= 0 || st.FeedbackMinutes <= 0 {
			return fmt.Errorf("%w: station %q has non-positive durations", ErrConfiguration, st.Name)
		}
	}

	s.stations = append([]models.Station(nil), stations...)
	s.numCandidates = numCandidates
	s.totalPositions = TotalPositions(len(stations), numCandidates)
	s.read = time.Duration(readSeconds) * time.Second
	s.changeover = time.Duration(changeoverSeconds) * time.Second
	s.activity = ActivityDuration(stations)
	s.feedback = FeedbackDuration(stations)
	s.round = 0
	s.candidates = make([]models.CandidateProgress, numCandidates)
	for i := range s.candidates {
		s.candidates[i] = models.CandidateProgress{ID: i + 1, CurrentPosition: i}
	}
	s.sessionID = uuid.NewString()
	s.startedAt = s.clock.Now()
	s.running = true
	s.completed = false

	log.Info().
		Str("session_id", s.sessionID).
		Int("stations", len(stations)).
		Int("candidates", numCandidates).
		Int("rounds", s.totalPositions).
		Dur("activity", s.activity).
		Dur("feedback", s.feedback).
		Msg("Exam started")

	s.emit(events.EventTypeExamStarted, events.ExamStartedPayload{
		NumStations:          len(stations),
		NumCandidates:        numCandidates,
		TotalPositions:       s.totalPositions,
		ReadSeconds:          readSeconds,
		ActivitySeconds:      int(s.activity / time.Second),
		FeedbackSeconds:      int(s.feedback / time.Second),
		ChangeoverSeconds:    changeoverSeconds,
		EstimatedDurationSec: int(s.EstimatedDuration() / time.Second),
		StartedAt:            s.startedAt,
	})

	s.startRound()
	s.persist()
	return nil
}

// Tick advances the phase clock and persists the resulting state.
func (s *Scheduler) Tick() {
	if !s.running {
		return
	}
	s.timer.Tick()
	if s.running {
		s.persist()
	}
}

// Pause freezes the exam. No-op unless running and unpaused.
func (s *Scheduler) Pause() {
	if !s.running || s.timer.Status() != phaseclock.StatusRunning {
		return
	}
	s.timer.Pause()
	remaining := s.timer.Remaining()
	log.Info().Int("round", s.round).Str("phase", string(s.phase)).Dur("remaining", remaining).Msg("Exam paused")
	s.emit(events.EventTypeExamPaused, events.ExamPausedPayload{
		Round:        s.round,
		Phase:        s.phase,
		RemainingSec: remaining.Seconds(),
		PausedAt:     s.clock.Now(),
	})
	s.persist()
}

// Resume continues a paused exam. No-op unless paused.
func (s *Scheduler) Resume() {
	if !s.running || !s.timer.Paused() {
		return
	}
	s.timer.Resume()
	remaining := s.timer.Remaining()
	log.Info().Int("round", s.round).Str("phase", string(s.phase)).Dur("remaining", remaining).Msg("Exam resumed")
	s.emit(events.EventTypeExamResumed, events.ExamResumedPayload{
		Round:        s.round,
		Phase:        s.phase,
		RemainingSec: remaining.Seconds(),
		ResumedAt:    s.clock.Now(),
	})
	s.persist()
}

// TogglePause pauses a running exam or resumes a paused one.
func (s *Scheduler) TogglePause() {
	if s.timer.Paused() {
		s.Resume()
		return
	}
	s.Pause()
}

// SkipPhase completes the current phase immediately through the normal
// transition path.
func (s *Scheduler) SkipPhase() {
	if !s.running {
		return
	}
	log.Info().Int("round", s.round).Str("phase", string(s.phase)).Msg("Skipping phase")
	s.timer.Skip()
	if s.running {
		s.persist()
	}
}

// RestartRound restarts the current round from its activity phase. The read
// phase is not replayed and candidates keep their positions.
func (s *Scheduler) RestartRound() {
	if !s.running {
		return
	}
	s.timer.Stop()
	log.Info().Int("round", s.round).Msg("Restarting round")
	s.emit(events.EventTypeRoundRestarted, events.RoundRestartedPayload{Round: s.round})
	s.startPhase(models.PhaseActivity)
	s.persist()
}

// StopExam halts the exam, discards progress and clears the snapshot.
func (s *Scheduler) StopExam() {
	wasRunning := s.running
	round, phase := s.round, s.phase
	s.timer.Stop()
	s.reset()
	if s.persister != nil {
		s.persister.ClearSnapshot()
	}
	if !wasRunning {
		return
	}
	log.Info().Int("round", round).Str("phase", string(phase)).Msg("Exam stopped")
	s.emit(events.EventTypeExamStopped, events.ExamStoppedPayload{
		Round:     round,
		Phase:     phase,
		StoppedAt: s.clock.Now(),
	})
}

// RestoreState rebuilds a running exam from snap with the clock paused.
// An invalid snapshot is cleared from storage and ErrStateCorruption returned.
func (s *Scheduler) RestoreState(snap ExamSnapshot) error {
	if s.running {
		return fmt.Errorf("%w: %w", ErrConfiguration, ErrAlreadyRunning)
	}
	if err := snap.Validate(); err != nil {
		log.Warn().Err(err).Str("session_id", snap.SessionID).Msg("Discarding corrupt exam snapshot")
		if s.persister != nil {
			s.persister.ClearSnapshot()
		}
		return err
	}
	if err := s.timer.ImportState(snap.Clock); err != nil {
		if s.persister != nil {
			s.persister.ClearSnapshot()
		}
		return fmt.Errorf("%w: %v", ErrStateCorruption, err)
	}

	s.sessionID = snap.SessionID
	if s.sessionID == "" {
		s.sessionID = uuid.NewString()
	}
	s.startedAt = snap.StartedAt
	s.stations = append([]models.Station(nil), snap.Stations...)
	s.numCandidates = snap.NumCandidates
	s.totalPositions = snap.TotalPositions
	s.read = time.Duration(snap.ReadSeconds) * time.Second
	s.changeover = time.Duration(snap.ChangeoverSeconds) * time.Second
	s.activity = time.Duration(snap.ActivitySeconds) * time.Second
	s.feedback = time.Duration(snap.FeedbackSeconds) * time.Second
	s.round = snap.Round
	s.phase = snap.Phase
	s.candidates = append([]models.CandidateProgress(nil), snap.Candidates...)
	s.running = true
	s.completed = false

	remaining := s.timer.Remaining()
	log.Info().
		Str("session_id", s.sessionID).
		Int("round", s.round).
		Str("phase", string(s.phase)).
		Dur("remaining", remaining).
		Time("saved_at", snap.SavedAt).
		Msg("Exam restored")
	s.emit(events.EventTypeExamRestored, events.ExamRestoredPayload{
		Round:           s.round,
		Phase:           s.phase,
		RemainingSec:    remaining.Seconds(),
		SavedAt:         snap.SavedAt,
		ActivitySeconds: snap.ActivitySeconds,
	})
	s.persist()
	return nil
}

// Snapshot captures the exam for persistence.
func (s *Scheduler) Snapshot() ExamSnapshot {
	return ExamSnapshot{
		Version:           SnapshotVersion,
		SessionID:         s.sessionID,
		SavedAt:           s.clock.Now(),
		StartedAt:         s.startedAt,
		Round:             s.round,
		Phase:             s.phase,
		Candidates:        append([]models.CandidateProgress(nil), s.candidates...),
		Stations:          append([]models.Station(nil), s.stations...),
		ActivitySeconds:   int(s.activity / time.Second),
		FeedbackSeconds:   int(s.feedback / time.Second),
		ReadSeconds:       int(s.read / time.Second),
		ChangeoverSeconds: int(s.changeover / time.Second),
		NumStations:       len(s.stations),
		NumCandidates:     s.numCandidates,
		TotalPositions:    s.totalPositions,
		Clock:             s.timer.ExportState(),
	}
}

// Running reports whether an exam is in progress, paused or not.
func (s *Scheduler) Running() bool { return s.running }

// Round is the zero-based index of the current round.
func (s *Scheduler) Round() int { return s.round }

// Phase is the current phase.
func (s *Scheduler) Phase() models.Phase { return s.phase }

// Candidates returns a copy of every candidate's rotation progress.
func (s *Scheduler) Candidates() []models.CandidateProgress {
	return append([]models.CandidateProgress(nil), s.candidates...)
}

// PhaseDuration is the configured length of phase p in the current exam.
func (s *Scheduler) PhaseDuration(p models.Phase) time.Duration {
	switch p {
	case models.PhaseRead:
		return s.read
	case models.PhaseActivity:
		return s.activity
	case models.PhaseFeedback:
		return s.feedback
	case models.PhaseChangeover:
		return s.changeover
	}
	return 0
}

// EstimatedDuration is the unpaused length of the current exam.
func (s *Scheduler) EstimatedDuration() time.Duration {
	return EstimatedDuration(s.stations, s.numCandidates, s.read, s.changeover)
}

func (s *Scheduler) startRound() {
	if s.read > 0 {
		s.startPhase(models.PhaseRead)
		return
	}
	s.startPhase(models.PhaseActivity)
}

func (s *Scheduler) startPhase(p models.Phase) {
	s.phase = p
	d := s.PhaseDuration(p)
	s.timer.Start(d, p)

	log.Debug().Int("round", s.round).Str("phase", string(p)).Dur("duration", d).Msg("Phase started")
	s.emit(events.EventTypePhaseStarted, events.PhaseStartedPayload{
		Round:       s.round,
		Phase:       p,
		DurationSec: int(d / time.Second),
		StartedAt:   s.clock.Now(),
	})
}

func (s *Scheduler) handlePhaseComplete(p models.Phase) {
	s.emit(events.EventTypePhaseCompleted, events.PhaseCompletedPayload{
		Round:       s.round,
		Phase:       p,
		CompletedAt: s.clock.Now(),
	})

	next := p.Next()
	if next != models.PhaseRead {
		s.startPhase(next)
		return
	}

	for i := range s.candidates {
		s.candidates[i].CurrentPosition = (s.candidates[i].CurrentPosition + 1) % s.totalPositions
		s.candidates[i].CompletedStations++
	}
	log.Info().Int("round", s.round).Int("total_rounds", s.totalPositions).Msg("Round complete, candidates rotated")
	s.emit(events.EventTypeRoundCompleted, events.RoundCompletedPayload{
		Round:      s.round,
		Candidates: s.Candidates(),
	})

	if s.round+1 >= s.totalPositions {
		s.finish()
		return
	}
	s.round++
	s.startRound()
}

func (s *Scheduler) finish() {
	now := s.clock.Now()
	s.running = false
	s.completed = true
	s.timer.Stop()
	if s.persister != nil {
		s.persister.ClearSnapshot()
	}
	elapsed := now.Sub(s.startedAt)
	log.Info().Str("session_id", s.sessionID).Int("rounds", s.totalPositions).Dur("elapsed", elapsed).Msg("Exam complete")
	s.emit(events.EventTypeExamCompleted, events.ExamCompletedPayload{
		Rounds:      s.totalPositions,
		CompletedAt: now,
		Duration:    elapsed.Round(time.Second).String(),
	})
}

func (s *Scheduler) reset() {
	s.running = false
	s.completed = false
	s.sessionID = ""
	s.startedAt = time.Time{}
	s.stations = nil
	s.numCandidates = 0
	s.totalPositions = 0
	s.read, s.changeover, s.activity, s.feedback = 0, 0, 0, 0
	s.round = 0
	s.phase = models.PhaseRead
	s.candidates = nil
}

func (s *Scheduler) persist() {
	if s.persister == nil || !s.running {
		return
	}
	s.persister.SaveSnapshot(s.Snapshot())
}

func (s *Scheduler) emit(t events.EventType, payload any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.New(s.sessionID, t, s.clock.Now(), payload)
	if err != nil {
		log.Error().Err(err).Str("event_type", string(t)).Msg("Failed to build exam event")
		return
	}
	s.publisher.Publish(ev)
}

// clockListener keeps the phaseclock callbacks off the Scheduler's API.
type clockListener struct {
	s *Scheduler
}

var _ phaseclock.Listener = (*clockListener)(nil)

func (l *clockListener) OnTick(t phaseclock.Tick) {
	s := l.s
	if s.publisher == nil {
		return
	}
	s.emit(events.EventTypeTimerTick, events.TimerTickPayload{
		Round:        s.round,
		TotalRounds:  s.totalPositions,
		Phase:        t.Phase,
		RemainingSec: t.Remaining.Seconds(),
		TotalSec:     t.Total.Seconds(),
		Progress:     t.Progress,
		WarningLevel: string(LevelFor(t.Remaining)),
		Candidates:   s.candidateStatuses(t.Remaining),
	})
}

func (l *clockListener) OnThreshold(t phaseclock.Threshold) {
	s := l.s
	log.Debug().Str("key", t.Key).Str("phase", string(t.Phase)).Msg("Threshold reached")
	s.emit(events.EventTypeThreshold, events.ThresholdPayload{
		Round:        s.round,
		Phase:        t.Phase,
		Key:          t.Key,
		Kind:         string(t.Kind),
		Seconds:      t.Seconds,
		RemainingSec: t.Remaining.Seconds(),
	})
}

func (l *clockListener) OnComplete(p models.Phase) {
	l.s.handlePhaseComplete(p)
}
