// Package announce turns exam events into spoken announcements and tones.
package announce

import (
	"github.com/rs/zerolog/log"
)

// Tone names a short audio cue.
type Tone string

const (
	ToneAttention Tone = "attention"
	ToneStart     Tone = "start"
	ToneWarning   Tone = "warning"
	ToneEnd       Tone = "end"
	ToneTick      Tone = "tick"
	ToneComplete  Tone = "complete"
)

// Announcer renders speech and tones. Calls must return quickly; they are
// made from the exam's timing loop.
type Announcer interface {
	// Speak says text. interrupt cuts off anything already being spoken.
	Speak(text string, interrupt bool)
	PlayTone(tone Tone)
}

// VoiceSettings are passed through to whatever renders speech.
type VoiceSettings struct {
	Rate   float64 `json:"rate" yaml:"rate"`
	Volume float64 `json:"volume" yaml:"volume"`
	Voice  string  `json:"voice,omitempty" yaml:"voice,omitempty"`
}

// DefaultVoice is normal rate at full volume with the system voice.
func DefaultVoice() VoiceSettings {
	return VoiceSettings{Rate: 1, Volume: 1}
}

// LogAnnouncer writes announcements to the log. It stands in for a voice
// service when none is configured.
type LogAnnouncer struct {
	Voice VoiceSettings
}

func (l LogAnnouncer) Speak(text string, interrupt bool) {
	log.Info().
		Str("text", text).
		Bool("interrupt", interrupt).
		Float64("rate", l.Voice.Rate).
		Float64("volume", l.Voice.Volume).
		Msg("Announcement")
}

func (l LogAnnouncer) PlayTone(tone Tone) {
	log.Debug().Str("tone", string(tone)).Msg("Tone")
}

// Multi fans every call out to each announcer in order.
type Multi []Announcer

func (m Multi) Speak(text string, interrupt bool) {
	for _, a := range m {
		a.Speak(text, interrupt)
	}
}

func (m Multi) PlayTone(tone Tone) {
	for _, a := range m {
		a.PlayTone(tone)
	}
}
