package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/announce"
	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/events"
	"github.com/mcdev12/osce/go/internal/exam"
	"github.com/mcdev12/osce/go/internal/gateway"
	"github.com/mcdev12/osce/go/internal/natsbus"
	"github.com/mcdev12/osce/go/internal/stations"
	"github.com/mcdev12/osce/go/internal/store"
)

type Services struct {
	Store   store.Store
	Bus     *events.Bus
	Cues    *announce.Cues
	Runner  *exam.Runner
	Exam    *exam.Service
	Hub     *gateway.Hub
	NATS    *nats.Conn
	Events  *natsbus.EventPublisher
	Handler *gateway.ExamHandler
	Health  *gateway.HealthChecker
}

func setupServices(ctx context.Context, cfg config.AppConfig) (*Services, error) {
	// Store → bus → runner → service → gateway
	st, err := setupStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s := &Services{Store: st, Bus: events.NewBus()}

	announcers := announce.Multi{announce.LogAnnouncer{Voice: announce.DefaultVoice()}}
	var voice *natsbus.VoiceAnnouncer
	if cfg.NATSURL != "" {
		if err := s.setupNATS(ctx, cfg); err != nil {
			st.Close()
			return nil, err
		}
		voice = natsbus.NewVoiceAnnouncer(s.NATS, natsConfig(cfg))
		announcers = append(announcers, voice)
	}

	s.Cues = announce.NewCues(announcers)
	s.Bus.Subscribe(s.Cues)

	s.Runner = exam.NewRunner(st, s.Bus, exam.WithTickInterval(cfg.TickInterval))
	s.Exam = exam.NewService(s.Runner, st, stations.NewSet(), s.Cues)
	if voice != nil {
		s.Exam.OnVoiceChange(voice.SetVoice)
	}

	if err := s.Exam.LoadSaved(ctx); err != nil {
		log.Warn().Err(err).Msg("Ignoring saved settings")
	}
	if cfg.SettingsFile != "" {
		if err := s.Exam.ImportFile(cfg.SettingsFile); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to import %s: %w", cfg.SettingsFile, err)
		}
	}

	s.Hub = gateway.NewHub(gateway.DefaultHubConfig(), func(ctx context.Context) (any, error) {
		return s.Runner.View(ctx)
	})
	s.Bus.Subscribe(s.Hub)
	s.Handler = gateway.NewExamHandler(s.Exam, s.Hub)
	var natsStatus gateway.ConnStatus
	if s.NATS != nil {
		natsStatus = s.NATS
	}
	s.Health = gateway.NewHealthChecker(st, natsStatus, s.Runner, s.Hub)

	if ok, err := s.Runner.RecoveryAvailable(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not check for a saved exam")
	} else if ok {
		log.Info().Msg("A saved exam can be restored with POST /api/exam/restore")
	}
	return s, nil
}

func (s *Services) setupNATS(ctx context.Context, cfg config.AppConfig) error {
	ncfg := natsConfig(cfg)
	nc, err := natsbus.Connect(ncfg)
	if err != nil {
		return err
	}
	pub, err := natsbus.NewEventPublisher(ctx, nc, ncfg)
	if err != nil {
		nc.Close()
		return err
	}
	s.NATS = nc
	s.Events = pub
	s.Bus.Subscribe(pub)
	log.Info().Str("url", nc.ConnectedUrl()).Str("stream", ncfg.StreamName).Msg("Connected to NATS")
	return nil
}

// Start launches the background loops. The returned channel closes once
// they have all exited after ctx is cancelled.
func (s *Services) Start(ctx context.Context) <-chan struct{} {
	var wg sync.WaitGroup
	run := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	run(func() { s.Runner.Run(ctx) })
	run(func() { s.Hub.Run(ctx) })
	if s.Events != nil {
		run(func() { s.Events.Run(ctx) })
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	return done
}

func (s *Services) Close() {
	if s.NATS != nil {
		if err := s.NATS.Drain(); err != nil {
			log.Warn().Err(err).Msg("NATS drain failed")
		}
	}
	if err := s.Store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close store")
	}
}
