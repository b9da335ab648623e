// Package phaseclock times a single exam phase against the wall clock.
//
// Remaining time is always recomputed from the phase start time minus time
// spent paused, so late or irregular ticks never accumulate drift.
package phaseclock

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/osce/go/internal/models"
)

// Status is the run state of a Clock.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// Tick is delivered on every evaluation while the clock is running.
type Tick struct {
	Phase     models.Phase
	Remaining time.Duration
	Total     time.Duration
	Progress  float64
}

// Threshold is delivered once per key per Start.
type Threshold struct {
	Key       string
	Kind      Kind
	Phase     models.Phase
	Seconds   int
	Remaining time.Duration
}

// Listener receives clock notifications synchronously. OnComplete may call
// Start on the same Clock.
type Listener interface {
	OnTick(Tick)
	OnThreshold(Threshold)
	OnComplete(phase models.Phase)
}

// Clock is not safe for concurrent use; its owner serialises access.
type Clock struct {
	clock    clockwork.Clock
	listener Listener

	phase     models.Phase
	status    Status
	startedAt time.Time
	total     time.Duration
	pausedFor time.Duration
	pausedAt  time.Time
	remaining time.Duration

	// upper is the highest threshold still reachable in this phase.
	upper int
	fired map[string]bool
}

// New creates an idle clock. A nil clockwork.Clock means the real clock.
func New(clock clockwork.Clock, listener Listener) *Clock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Clock{
		clock:    clock,
		listener: listener,
		status:   StatusIdle,
		fired:    make(map[string]bool),
	}
}

// SetListener replaces the listener.
func (c *Clock) SetListener(l Listener) {
	c.listener = l
}

// Start begins timing a phase of duration d, discarding any previous phase.
func (c *Clock) Start(d time.Duration, phase models.Phase) {
	if d < 0 {
		d = 0
	}
	c.phase = phase
	c.status = StatusRunning
	c.startedAt = c.clock.Now()
	c.total = d
	c.remaining = d
	c.pausedFor = 0
	c.pausedAt = time.Time{}
	c.upper = ceilSeconds(d)
	c.fired = make(map[string]bool)
}

// Tick recomputes remaining time and notifies the listener. It does nothing
// unless the clock is running.
func (c *Clock) Tick() {
	if c.status != StatusRunning {
		return
	}
	c.remaining = c.remainingAt(c.clock.Now())

	if c.listener != nil {
		c.listener.OnTick(Tick{
			Phase:     c.phase,
			Remaining: c.remaining,
			Total:     c.total,
			Progress:  progress(c.remaining, c.total),
		})
	}
	c.evaluateThresholds()

	if c.remaining <= 0 {
		c.complete()
	}
}

// Pause freezes the clock. No-op unless running.
func (c *Clock) Pause() {
	if c.status != StatusRunning {
		return
	}
	now := c.clock.Now()
	c.remaining = c.remainingAt(now)
	c.pausedAt = now
	c.status = StatusPaused
}

// Resume continues a paused clock. No-op unless paused.
func (c *Clock) Resume() {
	if c.status != StatusPaused {
		return
	}
	c.pausedFor += c.clock.Since(c.pausedAt)
	c.pausedAt = time.Time{}
	c.status = StatusRunning
}

// Skip forces the phase to complete now. No thresholds fire.
func (c *Clock) Skip() {
	if c.status == StatusIdle {
		return
	}
	c.remaining = 0
	c.complete()
}

// Stop halts the clock without completing the phase.
func (c *Clock) Stop() {
	c.status = StatusIdle
	c.pausedAt = time.Time{}
}

func (c *Clock) complete() {
	c.status = StatusIdle
	c.pausedAt = time.Time{}
	if c.listener != nil {
		// The listener may restart this clock; nothing may touch c afterwards.
		c.listener.OnComplete(c.phase)
	}
}

func (c *Clock) evaluateThresholds() {
	ceil := ceilSeconds(c.remaining)
	for _, r := range rules {
		if r.only != "" && r.only != c.phase {
			continue
		}
		if c.fired[r.key] || r.seconds > c.upper || ceil > r.seconds {
			continue
		}
		c.fired[r.key] = true
		if c.listener != nil {
			c.listener.OnThreshold(Threshold{
				Key:       r.key,
				Kind:      r.kind,
				Phase:     c.phase,
				Seconds:   r.seconds,
				Remaining: c.remaining,
			})
		}
	}
}

func (c *Clock) remainingAt(now time.Time) time.Duration {
	switch c.status {
	case StatusRunning:
		r := c.total - (now.Sub(c.startedAt) - c.pausedFor)
		if r < 0 {
			return 0
		}
		return r
	case StatusPaused:
		r := c.total - (c.pausedAt.Sub(c.startedAt) - c.pausedFor)
		if r < 0 {
			return 0
		}
		return r
	default:
		return c.remaining
	}
}

// Remaining is the time left in the phase as of now.
func (c *Clock) Remaining() time.Duration {
	return c.remainingAt(c.clock.Now())
}

// Total is the full length of the current phase.
func (c *Clock) Total() time.Duration { return c.total }

// Phase is the phase being timed.
func (c *Clock) Phase() models.Phase { return c.phase }

// Status reports whether the clock is idle, running or paused.
func (c *Clock) Status() Status { return c.status }

// Paused is shorthand for Status() == StatusPaused.
func (c *Clock) Paused() bool { return c.status == StatusPaused }

// Progress is the completed fraction of the phase, 1 for a zero-length phase.
func (c *Clock) Progress() float64 {
	return progress(c.Remaining(), c.total)
}

func progress(remaining, total time.Duration) float64 {
	if total <= 0 {
		return 1
	}
	return 1 - float64(remaining)/float64(total)
}
