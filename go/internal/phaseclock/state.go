package phaseclock

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mcdev12/osce/go/internal/models"
)

// ErrInvalidState is returned by ImportState for values no clock could have exported.
var ErrInvalidState = errors.New("invalid phase clock state")

// State is the serialisable form of a Clock.
type State struct {
	Phase            models.Phase `json:"phase"`
	RemainingSeconds float64      `json:"remaining_seconds"`
	TotalSeconds     float64      `json:"total_seconds"`
	Running          bool         `json:"running"`
	Paused           bool         `json:"paused"`
	FiredKeys        []string     `json:"fired_keys"`
}

// ExportState captures the clock as of now. Fired keys are listed in
// threshold order.
func (c *Clock) ExportState() State {
	keys := make([]string, 0, len(c.fired))
	for _, r := range rules {
		if c.fired[r.key] {
			keys = append(keys, r.key)
		}
	}
	return State{
		Phase:            c.phase,
		RemainingSeconds: c.Remaining().Seconds(),
		TotalSeconds:     c.total.Seconds(),
		Running:          c.status == StatusRunning,
		Paused:           c.status == StatusPaused,
		FiredKeys:        keys,
	}
}

// ImportState replaces the clock with s. The clock is always left paused,
// whatever the exporter's status was; Resume continues from the imported
// remaining time.
func (c *Clock) ImportState(s State) error {
	if err := s.Validate(); err != nil {
		return err
	}

	total := secondsToDuration(s.TotalSeconds)
	remaining := secondsToDuration(s.RemainingSeconds)
	now := c.clock.Now()

	c.phase = s.Phase
	c.total = total
	c.remaining = remaining
	c.startedAt = now.Add(-(total - remaining))
	c.pausedFor = 0
	c.pausedAt = now
	c.status = StatusPaused
	c.upper = ceilSeconds(remaining)
	c.fired = make(map[string]bool, len(s.FiredKeys))
	for _, k := range s.FiredKeys {
		c.fired[k] = true
	}
	return nil
}

// Validate checks that s is something a Clock could have exported.
func (s State) Validate() error {
	if !s.Phase.Valid() {
		return fmt.Errorf("%w: unknown phase %q", ErrInvalidState, s.Phase)
	}
	for _, v := range []float64{s.TotalSeconds, s.RemainingSeconds} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%w: bad duration %v", ErrInvalidState, v)
		}
	}
	if s.RemainingSeconds > s.TotalSeconds {
		return fmt.Errorf("%w: remaining %.3fs exceeds total %.3fs", ErrInvalidState, s.RemainingSeconds, s.TotalSeconds)
	}
	if s.Running && s.Paused {
		return fmt.Errorf("%w: both running and paused", ErrInvalidState)
	}
	for _, k := range s.FiredKeys {
		if !knownKey(k) {
			return fmt.Errorf("%w: unknown threshold key %q", ErrInvalidState, k)
		}
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
