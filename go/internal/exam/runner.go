// Package exam runs the exam scheduler on a single goroutine and exposes it
// to the rest of the process.
package exam

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/rotation"
	"github.com/mcdev12/osce/go/internal/store"
)

var (
	// ErrNoRecovery is returned when there is no saved exam to restore or discard.
	ErrNoRecovery = errors.New("no exam to recover")
	// ErrRunnerStopped is returned for commands sent after Run has returned.
	ErrRunnerStopped = errors.New("exam runner stopped")
)

// DefaultTickInterval is how often the phase clock is re-evaluated.
const DefaultTickInterval = 100 * time.Millisecond

type command struct {
	fn   func(s *rotation.Scheduler) error
	done chan error
}

// Runner owns the scheduler. Every mutation, including clock ticks, runs on
// the goroutine inside Run.
type Runner struct {
	clock        clockwork.Clock
	tickInterval time.Duration
	store        store.Store
	writer       *snapshotWriter
	sched        *rotation.Scheduler

	cmdCh  chan command
	doneCh chan struct{}

	recoveryMu      sync.Mutex
	recoveryChecked bool
	recoveryOffered bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock replaces the real clock, for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithTickInterval sets how often the phase clock is evaluated.
func WithTickInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.tickInterval = d
		}
	}
}

// NewRunner builds a runner that persists snapshots to st and publishes to
// publisher (which may be nil).
func NewRunner(st store.Store, publisher events.Publisher, opts ...Option) *Runner {
	r := &Runner{
		clock:        clockwork.NewRealClock(),
		tickInterval: DefaultTickInterval,
		store:        st,
		writer:       newSnapshotWriter(st),
		cmdCh:        make(chan command),
		doneCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sched = rotation.NewScheduler(r.clock, publisher, r.writer)
	return r
}

// Run drives the scheduler until ctx is done. Pending snapshot writes are
// flushed before it returns.
func (r *Runner) Run(ctx context.Context) error {
	defer close(r.doneCh)

	writerCtx, stopWriter := context.WithCancel(context.Background())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		r.writer.run(writerCtx)
	}()
	defer func() {
		stopWriter()
		<-writerDone
	}()

	ticker := r.clock.NewTicker(r.tickInterval)
	defer ticker.Stop()

	log.Info().Dur("tick_interval", r.tickInterval).Msg("Exam runner started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Exam runner stopping")
			return ctx.Err()
		case <-ticker.Chan():
			r.sched.Tick()
		case cmd := <-r.cmdCh:
			cmd.done <- cmd.fn(r.sched)
		}
	}
}

// do runs fn on the runner goroutine and waits for it.
func (r *Runner) do(ctx context.Context, fn func(s *rotation.Scheduler) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case r.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.doneCh:
		return ErrRunnerStopped
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// StartExam starts a new exam. Any pending recovery offer is withdrawn,
// since the new exam's snapshot replaces the old one.
func (r *Runner) StartExam(ctx context.Context, stations []models.Station, numCandidates, readSeconds, changeoverSeconds int) error {
	err := r.do(ctx, func(s *rotation.Scheduler) error {
		return s.StartExam(stations, numCandidates, readSeconds, changeoverSeconds)
	})
	if err == nil {
		r.withdrawRecovery()
	}
	return err
}

func (r *Runner) Pause(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.Pause(); return nil })
}

func (r *Runner) Resume(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.Resume(); return nil })
}

func (r *Runner) TogglePause(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.TogglePause(); return nil })
}

func (r *Runner) SkipPhase(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.SkipPhase(); return nil })
}

func (r *Runner) RestartRound(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.RestartRound(); return nil })
}

func (r *Runner) StopExam(ctx context.Context) error {
	return r.do(ctx, func(s *rotation.Scheduler) error { s.StopExam(); return nil })
}

// View returns the scheduler's current view.
func (r *Runner) View(ctx context.Context) (rotation.View, error) {
	var v rotation.View
	err := r.do(ctx, func(s *rotation.Scheduler) error {
		v = s.View()
		return nil
	})
	return v, err
}

// RecoveryAvailable reports whether a saved exam from a previous process is
// waiting to be restored or discarded.
func (r *Runner) RecoveryAvailable(ctx context.Context) (bool, error) {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	if err := r.checkRecoveryLocked(ctx); err != nil {
		return false, err
	}
	return r.recoveryOffered, nil
}

// Restore consumes the recovery offer and restores the saved exam, paused.
// A snapshot that cannot be decoded or validated is deleted and
// rotation.ErrStateCorruption returned.
func (r *Runner) Restore(ctx context.Context) error {
	if err := r.takeRecovery(ctx); err != nil {
		return err
	}

	var snap rotation.ExamSnapshot
	if err := r.store.Get(ctx, store.KeyActiveState, &snap); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNoRecovery
		}
		log.Warn().Err(err).Msg("Discarding unreadable exam snapshot")
		if delErr := r.store.Delete(ctx, store.KeyActiveState); delErr != nil {
			log.Error().Err(delErr).Msg("Failed to delete unreadable exam snapshot")
		}
		return fmt.Errorf("%w: %v", rotation.ErrStateCorruption, err)
	}

	return r.do(ctx, func(s *rotation.Scheduler) error {
		return s.RestoreState(snap)
	})
}

// Discard consumes the recovery offer and deletes the saved exam.
func (r *Runner) Discard(ctx context.Context) error {
	if err := r.takeRecovery(ctx); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, store.KeyActiveState); err != nil {
		return fmt.Errorf("failed to discard saved exam: %w", err)
	}
	log.Info().Msg("Saved exam discarded")
	return nil
}

func (r *Runner) takeRecovery(ctx context.Context) error {
	r.recoveryMu.Lock()
	defer r.recoveryMu.Unlock()
	if err := r.checkRecoveryLocked(ctx); err != nil {
		return err
	}
	if !r.recoveryOffered {
		return ErrNoRecovery
	}
	r.recoveryOffered = false
	return nil
}

func (r *Runner) withdrawRecovery() {
	r.recoveryMu.Lock()
	r.recoveryChecked = true
	r.recoveryOffered = false
	r.recoveryMu.Unlock()
}

func (r *Runner) checkRecoveryLocked(ctx context.Context) error {
	if r.recoveryChecked {
		return nil
	}
	ok, err := r.store.Has(ctx, store.KeyActiveState)
	if err != nil {
		return fmt.Errorf("failed to check for saved exam: %w", err)
	}
	r.recoveryChecked = true
	r.recoveryOffered = ok
	if ok {
		log.Info().Msg("Saved exam found, recovery available")
	}
	return nil
}
