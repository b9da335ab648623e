package announce

import (
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/phaseclock"
)

// Announcement text keys.
const (
	KeyReadStart     = "readStart"
	KeyActivityStart = "activityStart"
	KeyTwoMinWarning = "twoMinWarning"
	KeyActivityEnd   = "activityEnd"
	KeyOneMinWarning = "oneMinWarning"
	KeyStationEnd    = "stationEnd"
	KeyChangeover    = "changeover"
)

// Keys lists every configurable announcement in the order they occur in a round.
var Keys = []string{
	KeyReadStart, KeyActivityStart, KeyTwoMinWarning, KeyActivityEnd,
	KeyOneMinWarning, KeyStationEnd, KeyChangeover,
}

// TimePlaceholder is replaced with the activity phase length in minutes.
const TimePlaceholder = "{time}"

// Fixed announcements that are not configurable.
const (
	TextPaused    = "Timer paused."
	TextResumed   = "Timer resumed."
	TextRestart   = "Restarting round."
	TextStopped   = "Exam stopped."
	TextRestored  = "Exam restored. Press Resume to continue."
	TextCompleted = "The OSCE examination is now complete. Thank you all for participating."
)

// DefaultTexts returns the stock announcement texts.
func DefaultTexts() map[string]string {
	return map[string]string{
		KeyReadStart:     "Please read your instructions. You have 1 minute.",
		KeyActivityStart: "Please begin. You have {time} minutes for the activity phase.",
		KeyTwoMinWarning: "Two minutes remaining.",
		KeyActivityEnd:   "Please stop. You may now begin feedback and questions.",
		KeyOneMinWarning: "One minute remaining.",
		KeyStationEnd:    "This round is now complete. Please prepare to rotate.",
		KeyChangeover:    "Please move to your next station and read the instructions.",
	}
}

// Cues decides what is said and played for each exam event. It is an
// events.Subscriber.
type Cues struct {
	announcer Announcer

	mu              sync.RWMutex
	texts           map[string]string
	enabled         map[string]bool
	muted           bool
	activityMinutes int
}

func NewCues(announcer Announcer) *Cues {
	return &Cues{
		announcer: announcer,
		texts:     DefaultTexts(),
		enabled:   make(map[string]bool),
	}
}

// SetTexts overrides announcement texts. Missing or blank keys keep their default.
func (c *Cues) SetTexts(texts map[string]string) {
	merged := DefaultTexts()
	for k, v := range texts {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	c.mu.Lock()
	c.texts = merged
	c.mu.Unlock()
}

// SetEnabled toggles individual announcements. Keys not present stay enabled.
func (c *Cues) SetEnabled(enabled map[string]bool) {
	copied := make(map[string]bool, len(enabled))
	for k, v := range enabled {
		copied[k] = v
	}
	c.mu.Lock()
	c.enabled = copied
	c.mu.Unlock()
}

// SetMuted silences everything, tones included.
func (c *Cues) SetMuted(muted bool) {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	log.Info().Bool("muted", muted).Msg("Announcements muted state changed")
}

func (c *Cues) Muted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.muted
}

func (c *Cues) HandleEvent(ev *events.Event) {
	if ev.Type == events.EventTypeTimerTick {
		return
	}
	payload, err := events.ParseEventPayload(ev)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Cues could not parse event")
		return
	}

	switch p := payload.(type) {
	case *events.ExamStartedPayload:
		c.setActivitySeconds(p.ActivitySeconds)
	case *events.PhaseStartedPayload:
		if p.Phase == models.PhaseActivity {
			c.setActivitySeconds(p.DurationSec)
		}
		c.phaseStarted(p.Phase)
	case *events.ThresholdPayload:
		c.threshold(p)
	case *events.ExamPausedPayload:
		c.speak(TextPaused)
	case *events.ExamResumedPayload:
		c.speak(TextResumed)
	case *events.RoundRestartedPayload:
		c.speak(TextRestart)
	case *events.ExamStoppedPayload:
		c.speak(TextStopped)
	case *events.ExamRestoredPayload:
		c.setActivitySeconds(p.ActivitySeconds)
		c.speak(TextRestored)
	case *events.ExamCompletedPayload:
		c.tone(ToneComplete)
		c.speak(TextCompleted)
	}
}

// setActivitySeconds records the activity length used for {time}. Zero keeps
// the last known value.
func (c *Cues) setActivitySeconds(sec int) {
	if sec <= 0 {
		return
	}
	c.mu.Lock()
	c.activityMinutes = sec / 60
	c.mu.Unlock()
}

func (c *Cues) phaseStarted(phase models.Phase) {
	switch phase {
	case models.PhaseRead:
		c.tone(ToneAttention)
		c.say(KeyReadStart, true)
	case models.PhaseActivity:
		c.say(KeyActivityStart, true)
		c.tone(ToneStart)
	case models.PhaseFeedback:
		c.tone(ToneWarning)
		c.say(KeyActivityEnd, true)
	case models.PhaseChangeover:
		c.say(KeyStationEnd, true)
		c.tone(ToneEnd)
		c.say(KeyChangeover, false)
	}
}

func (c *Cues) threshold(p *events.ThresholdPayload) {
	switch p.Key {
	case phaseclock.KeyTwoMinutes:
		if c.isEnabled(KeyTwoMinWarning) {
			c.tone(ToneWarning)
			c.say(KeyTwoMinWarning, true)
		}
	case phaseclock.KeyOneMinute:
		if c.isEnabled(KeyOneMinWarning) {
			c.tone(ToneWarning)
			c.say(KeyOneMinWarning, true)
		}
	case phaseclock.KeyThirtySecond:
		c.tone(ToneWarning)
	default:
		if phaseclock.Kind(p.Kind) == phaseclock.KindCountdown && p.Seconds <= 5 {
			c.tone(ToneTick)
		}
	}
}

func (c *Cues) isEnabled(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	on, ok := c.enabled[key]
	return !ok || on
}

// say speaks the configured text for key if it is enabled.
func (c *Cues) say(key string, interrupt bool) {
	if !c.isEnabled(key) {
		return
	}
	c.mu.RLock()
	text := c.texts[key]
	minutes := c.activityMinutes
	muted := c.muted
	c.mu.RUnlock()
	if muted || text == "" {
		return
	}
	text = strings.ReplaceAll(text, TimePlaceholder, strconv.Itoa(minutes))
	c.announcer.Speak(text, interrupt)
}

func (c *Cues) speak(text string) {
	if c.Muted() {
		return
	}
	c.announcer.Speak(text, true)
}

func (c *Cues) tone(t Tone) {
	if c.Muted() {
		return
	}
	c.announcer.PlayTone(t)
}
