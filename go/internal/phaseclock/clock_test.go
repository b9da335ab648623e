package phaseclock

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/osce/go/internal/models"
)

type recorder struct {
	ticks      []Tick
	thresholds []string
	completed  []models.Phase
	onComplete func(models.Phase)
}

func (r *recorder) OnTick(t Tick) { r.ticks = append(r.ticks, t) }

func (r *recorder) OnThreshold(t Threshold) { r.thresholds = append(r.thresholds, t.Key) }

func (r *recorder) OnComplete(p models.Phase) {
	r.completed = append(r.completed, p)
	if r.onComplete != nil {
		r.onComplete(p)
	}
}

func newTestClock() (*Clock, *clockwork.FakeClock, *recorder) {
	fake := clockwork.NewFakeClock()
	rec := &recorder{}
	return New(fake, rec), fake, rec
}

// step advances the fake clock in increments of every, ticking after each.
func step(c *Clock, fake *clockwork.FakeClock, total, every time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += every {
		fake.Advance(every)
		c.Tick()
	}
}

func TestThresholdsFireOnceInDescendingOrder(t *testing.T) {
	c, fake, rec := newTestClock()
	c.Start(150*time.Second, models.PhaseActivity)

	step(c, fake, 160*time.Second, 100*time.Millisecond)

	want := []string{
		KeyTwoMinutes, KeyOneMinute, KeyThirtySecond,
		"countdown10", "countdown9", "countdown8", "countdown7", "countdown6",
		"countdown5", "countdown4", "countdown3", "countdown2", "countdown1",
	}
	if diff := cmp.Diff(want, rec.thresholds); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Phase{models.PhaseActivity}, rec.completed); diff != "" {
		t.Fatalf("completion mismatch (-want +got):\n%s", diff)
	}
	if c.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", c.Status())
	}
}

func TestCoarseTickFiresEveryCrossedThreshold(t *testing.T) {
	c, fake, rec := newTestClock()
	c.Start(150*time.Second, models.PhaseActivity)

	fake.Advance(125 * time.Second) // remaining 25s
	c.Tick()

	want := []string{KeyTwoMinutes, KeyOneMinute, KeyThirtySecond}
	if diff := cmp.Diff(want, rec.thresholds); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}

	fake.Advance(time.Second)
	c.Tick()
	if len(rec.thresholds) != 3 {
		t.Fatalf("thresholds repeated: %v", rec.thresholds)
	}
}

func TestTwoMinuteWarningOnlyDuringActivity(t *testing.T) {
	c, fake, rec := newTestClock()
	c.Start(150*time.Second, models.PhaseFeedback)
	fake.Advance(35 * time.Second)
	c.Tick()
	if len(rec.thresholds) != 0 {
		t.Fatalf("unexpected thresholds in feedback: %v", rec.thresholds)
	}
}

func TestShortPhaseSkipsUnreachableThresholds(t *testing.T) {
	c, fake, rec := newTestClock()
	c.Start(45*time.Second, models.PhaseChangeover)
	fake.Advance(20 * time.Second)
	c.Tick()

	want := []string{KeyThirtySecond}
	if diff := cmp.Diff(want, rec.thresholds); diff != "" {
		t.Fatalf("thresholds mismatch (-want +got):\n%s", diff)
	}
}

func TestPausePreservesRemaining(t *testing.T) {
	c, fake, _ := newTestClock()
	c.Start(100*time.Second, models.PhaseActivity)

	fake.Advance(40 * time.Second)
	c.Tick()
	c.Pause()
	fake.Advance(30 * time.Second)
	c.Tick() // ignored while paused
	if got := c.Remaining(); got != 60*time.Second {
		t.Fatalf("remaining while paused = %v, want 60s", got)
	}
	c.Resume()
	fake.Advance(10 * time.Second)
	c.Tick()

	if got := c.Remaining(); got != 50*time.Second {
		t.Fatalf("remaining = %v, want 50s", got)
	}
}

func TestPauseResumeAreNoOpsInWrongState(t *testing.T) {
	c, fake, rec := newTestClock()
	c.Resume()
	c.Pause()
	if c.Status() != StatusIdle {
		t.Fatalf("status = %s, want idle", c.Status())
	}

	c.Start(10*time.Second, models.PhaseRead)
	c.Resume()
	if c.Status() != StatusRunning {
		t.Fatalf("status = %s, want running", c.Status())
	}
	c.Pause()
	c.Pause()
	fake.Advance(5 * time.Second)
	c.Resume()
	c.Resume()
	if got := c.Remaining(); got != 10*time.Second {
		t.Fatalf("remaining = %v, want 10s", got)
	}
	if len(rec.completed) != 0 {
		t.Fatal("unexpected completion")
	}
}

func TestSkipCompletesWithoutThresholds(t *testing.T) {
	c, _, rec := newTestClock()
	c.Skip()
	if len(rec.completed) != 0 {
		t.Fatal("skip while idle completed a phase")
	}

	c.Start(90*time.Second, models.PhaseFeedback)
	c.Skip()
	if diff := cmp.Diff([]models.Phase{models.PhaseFeedback}, rec.completed); diff != "" {
		t.Fatalf("completion mismatch (-want +got):\n%s", diff)
	}
	if len(rec.thresholds) != 0 {
		t.Fatalf("skip fired thresholds: %v", rec.thresholds)
	}
}

func TestCompleteCanRestartClock(t *testing.T) {
	c, fake, rec := newTestClock()
	rec.onComplete = func(p models.Phase) {
		if p == models.PhaseRead {
			c.Start(20*time.Second, models.PhaseActivity)
		}
	}
	c.Start(5*time.Second, models.PhaseRead)
	fake.Advance(6 * time.Second)
	c.Tick()

	if c.Phase() != models.PhaseActivity || c.Status() != StatusRunning {
		t.Fatalf("phase = %s status = %s, want running activity", c.Phase(), c.Status())
	}
	if got := c.Remaining(); got != 20*time.Second {
		t.Fatalf("remaining = %v, want 20s", got)
	}
}

func TestZeroLengthPhase(t *testing.T) {
	c, _, rec := newTestClock()
	c.Start(0, models.PhaseFeedback)
	c.Tick()

	if len(rec.ticks) != 1 || rec.ticks[0].Progress != 1 {
		t.Fatalf("ticks = %+v, want one tick with progress 1", rec.ticks)
	}
	if len(rec.completed) != 1 {
		t.Fatalf("completed = %v", rec.completed)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	c, fake, _ := newTestClock()
	c.Start(150*time.Second, models.PhaseActivity)
	fake.Advance(95 * time.Second)
	c.Tick()
	exported := c.ExportState()
	if !exported.Running || exported.Paused {
		t.Fatalf("exported flags = running %v paused %v", exported.Running, exported.Paused)
	}

	restored, fake2, rec := newTestClock()
	if err := restored.ImportState(exported); err != nil {
		t.Fatalf("ImportState: %v", err)
	}
	if restored.Status() != StatusPaused {
		t.Fatalf("status after import = %s, want paused", restored.Status())
	}

	got := restored.ExportState()
	want := exported
	want.Running = false
	want.Paused = true
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	// Time spent before the explicit resume is not counted.
	fake2.Advance(time.Hour)
	restored.Resume()
	fake2.Advance(5 * time.Second)
	restored.Tick()
	if got := restored.Remaining(); got != 50*time.Second {
		t.Fatalf("remaining after resume = %v, want 50s", got)
	}
	if len(rec.thresholds) != 0 {
		t.Fatalf("imported fired keys fired again: %v", rec.thresholds)
	}
}

func TestImportStateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		state State
	}{
		{"unknown phase", State{Phase: "lunch", TotalSeconds: 10, RemainingSeconds: 5}},
		{"negative remaining", State{Phase: models.PhaseRead, TotalSeconds: 10, RemainingSeconds: -1}},
		{"remaining above total", State{Phase: models.PhaseRead, TotalSeconds: 10, RemainingSeconds: 11}},
		{"unknown key", State{Phase: models.PhaseRead, TotalSeconds: 10, RemainingSeconds: 5, FiredKeys: []string{"5min"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClock()
			if err := c.ImportState(tt.state); !errors.Is(err, ErrInvalidState) {
				t.Fatalf("err = %v, want ErrInvalidState", err)
			}
			if c.Status() != StatusIdle {
				t.Fatalf("status = %s, want idle", c.Status())
			}
		})
	}
}
