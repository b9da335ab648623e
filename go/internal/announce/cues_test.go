package announce

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/phaseclock"
)

type recordingAnnouncer struct {
	calls []string
}

func (r *recordingAnnouncer) Speak(text string, interrupt bool) {
	prefix := "say:"
	if !interrupt {
		prefix = "queue:"
	}
	r.calls = append(r.calls, prefix+text)
}

func (r *recordingAnnouncer) PlayTone(t Tone) { r.calls = append(r.calls, "tone:"+string(t)) }

func mustEvent(t *testing.T, typ events.EventType, payload any) *events.Event {
	t.Helper()
	ev, err := events.New("s", typ, time.Now(), payload)
	if err != nil {
		t.Fatal(err)
	}
	return ev
}

func TestPhaseStartCues(t *testing.T) {
	rec := &recordingAnnouncer{}
	c := NewCues(rec)

	c.HandleEvent(mustEvent(t, events.EventTypeExamStarted, events.ExamStartedPayload{ActivitySeconds: 600}))
	for _, p := range []models.Phase{models.PhaseRead, models.PhaseActivity, models.PhaseFeedback, models.PhaseChangeover} {
		c.HandleEvent(mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: p}))
	}

	want := []string{
		"tone:attention",
		"say:Please read your instructions. You have 1 minute.",
		"say:Please begin. You have 10 minutes for the activity phase.",
		"tone:start",
		"tone:warning",
		"say:Please stop. You may now begin feedback and questions.",
		"say:This round is now complete. Please prepare to rotate.",
		"tone:end",
		"queue:Please move to your next station and read the instructions.",
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}
}

func TestActivityTimeKnownAfterRestore(t *testing.T) {
	tests := []struct {
		name   string
		events func(t *testing.T) []*events.Event
	}{
		{"from restore payload", func(t *testing.T) []*events.Event {
			return []*events.Event{
				mustEvent(t, events.EventTypeExamRestored, events.ExamRestoredPayload{Phase: models.PhaseRead, ActivitySeconds: 600}),
				mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: models.PhaseActivity}),
			}
		}},
		{"from activity phase length", func(t *testing.T) []*events.Event {
			return []*events.Event{
				mustEvent(t, events.EventTypeExamRestored, events.ExamRestoredPayload{Phase: models.PhaseRead}),
				mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: models.PhaseActivity, DurationSec: 600}),
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingAnnouncer{}
			c := NewCues(rec)
			for _, ev := range tt.events(t) {
				c.HandleEvent(ev)
			}
			want := []string{
				"say:" + TextRestored,
				"say:Please begin. You have 10 minutes for the activity phase.",
				"tone:start",
			}
			if diff := cmp.Diff(want, rec.calls); diff != "" {
				t.Fatalf("cues mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestThresholdCues(t *testing.T) {
	rec := &recordingAnnouncer{}
	c := NewCues(rec)

	fire := func(key string, kind phaseclock.Kind, secs int) {
		c.HandleEvent(mustEvent(t, events.EventTypeThreshold, events.ThresholdPayload{
			Key: key, Kind: string(kind), Seconds: secs, Phase: models.PhaseActivity,
		}))
	}
	fire(phaseclock.KeyTwoMinutes, phaseclock.KindTwoMinuteWarning, 120)
	fire(phaseclock.KeyOneMinute, phaseclock.KindOneMinuteWarning, 60)
	fire(phaseclock.KeyThirtySecond, phaseclock.KindThirtySecWarning, 30)
	for n := 10; n >= 1; n-- {
		fire(phaseclock.CountdownKey(n), phaseclock.KindCountdown, n)
	}

	want := []string{
		"tone:warning", "say:Two minutes remaining.",
		"tone:warning", "say:One minute remaining.",
		"tone:warning",
		"tone:tick", "tone:tick", "tone:tick", "tone:tick", "tone:tick",
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}
}

func TestDisabledAndCustomTexts(t *testing.T) {
	rec := &recordingAnnouncer{}
	c := NewCues(rec)
	c.SetTexts(map[string]string{KeyActivityStart: "Go! {time} min.", KeyReadStart: "  "})
	c.SetEnabled(map[string]bool{KeyOneMinWarning: false})

	c.HandleEvent(mustEvent(t, events.EventTypeExamStarted, events.ExamStartedPayload{ActivitySeconds: 480}))
	c.HandleEvent(mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: models.PhaseRead}))
	c.HandleEvent(mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: models.PhaseActivity}))
	c.HandleEvent(mustEvent(t, events.EventTypeThreshold, events.ThresholdPayload{Key: phaseclock.KeyOneMinute}))

	want := []string{
		"tone:attention",
		"say:Please read your instructions. You have 1 minute.",
		"say:Go! 8 min.",
		"tone:start",
	}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}
}

func TestMuteSilencesEverything(t *testing.T) {
	rec := &recordingAnnouncer{}
	c := NewCues(rec)
	c.SetMuted(true)
	c.HandleEvent(mustEvent(t, events.EventTypePhaseStarted, events.PhaseStartedPayload{Phase: models.PhaseRead}))
	c.HandleEvent(mustEvent(t, events.EventTypeExamCompleted, events.ExamCompletedPayload{Rounds: 5}))
	if len(rec.calls) != 0 {
		t.Fatalf("muted cues produced %v", rec.calls)
	}

	c.SetMuted(false)
	c.HandleEvent(mustEvent(t, events.EventTypeExamCompleted, events.ExamCompletedPayload{Rounds: 5}))
	want := []string{"tone:complete", "say:" + TextCompleted}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}
}

func TestControlAnnouncements(t *testing.T) {
	rec := &recordingAnnouncer{}
	c := NewCues(rec)
	c.HandleEvent(mustEvent(t, events.EventTypeExamPaused, events.ExamPausedPayload{}))
	c.HandleEvent(mustEvent(t, events.EventTypeExamResumed, events.ExamResumedPayload{}))
	c.HandleEvent(mustEvent(t, events.EventTypeExamRestored, events.ExamRestoredPayload{}))
	c.HandleEvent(mustEvent(t, events.EventTypeExamStopped, events.ExamStoppedPayload{}))
	c.HandleEvent(mustEvent(t, events.EventTypeTimerTick, events.TimerTickPayload{}))

	want := []string{"say:" + TextPaused, "say:" + TextResumed, "say:" + TextRestored, "say:" + TextStopped}
	if diff := cmp.Diff(want, rec.calls); diff != "" {
		t.Fatalf("cues mismatch (-want +got):\n%s", diff)
	}
}
