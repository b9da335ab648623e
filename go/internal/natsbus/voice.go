package natsbus

import (
	"encoding/json"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/announce"
)

type msgSender interface {
	PublishMsg(m *nats.Msg) error
}

// SpeakRequest is sent on <prefix>.speak for speech clients to voice.
type SpeakRequest struct {
	Text      string                 `json:"text"`
	Interrupt bool                   `json:"interrupt"`
	Voice     announce.VoiceSettings `json:"voice"`
}

// ToneRequest is sent on <prefix>.tone.
type ToneRequest struct {
	Tone announce.Tone `json:"tone"`
}

// VoiceAnnouncer hands announcements to whatever speech clients are
// subscribed. Delivery is fire-and-forget.
type VoiceAnnouncer struct {
	nc     msgSender
	prefix string

	mu    sync.RWMutex
	voice announce.VoiceSettings
}

var _ announce.Announcer = (*VoiceAnnouncer)(nil)

func NewVoiceAnnouncer(nc *nats.Conn, cfg Config) *VoiceAnnouncer {
	return newVoiceAnnouncer(nc, cfg.VoicePrefix)
}

func newVoiceAnnouncer(nc msgSender, prefix string) *VoiceAnnouncer {
	return &VoiceAnnouncer{nc: nc, prefix: prefix, voice: announce.DefaultVoice()}
}

// SetVoice changes the voice sent with later announcements.
func (v *VoiceAnnouncer) SetVoice(voice announce.VoiceSettings) {
	v.mu.Lock()
	v.voice = voice
	v.mu.Unlock()
}

func (v *VoiceAnnouncer) Speak(text string, interrupt bool) {
	v.mu.RLock()
	req := SpeakRequest{Text: text, Interrupt: interrupt, Voice: v.voice}
	v.mu.RUnlock()
	v.send(v.prefix+".speak", req)
}

func (v *VoiceAnnouncer) PlayTone(tone announce.Tone) {
	v.send(v.prefix+".tone", ToneRequest{Tone: tone})
}

func (v *VoiceAnnouncer) send(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("Failed to encode announcement")
		return
	}
	if err := v.nc.PublishMsg(&nats.Msg{Subject: subject, Data: data}); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to send announcement")
	}
}
