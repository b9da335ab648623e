package exam

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/announce"
	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/models"
	"github.com/mcdev12/osce/go/internal/stations"
	"github.com/mcdev12/osce/go/internal/store"
)

// Service combines the exam runner with the editable setup: stations,
// candidate count, timings and announcement texts.
type Service struct {
	runner   *Runner
	store    store.Store
	stations *stations.Set
	cues     *announce.Cues

	mu            sync.RWMutex
	settings      config.Settings
	voiceHandlers []func(announce.VoiceSettings)
}

// NewService creates a service with default settings. cues may be nil.
func NewService(runner *Runner, st store.Store, set *stations.Set, cues *announce.Cues) *Service {
	s := &Service{
		runner:   runner,
		store:    st,
		stations: set,
		cues:     cues,
		settings: config.Default(),
	}
	s.settings.Stations = set.Export()
	return s
}

// Runner exposes the underlying exam runner.
func (s *Service) Runner() *Runner {
	return s.runner
}

// OnVoiceChange registers fn to receive voice settings whenever they are applied.
func (s *Service) OnVoiceChange(fn func(announce.VoiceSettings)) {
	s.mu.Lock()
	s.voiceHandlers = append(s.voiceHandlers, fn)
	voice := s.settings.Voice
	s.mu.Unlock()
	fn(voice)
}

// LoadSaved applies the settings saved in the store, if any.
func (s *Service) LoadSaved(ctx context.Context) error {
	var saved config.Settings
	if err := s.store.Get(ctx, store.KeyConfig, &saved); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Msg("No saved settings, using defaults")
			return nil
		}
		return fmt.Errorf("failed to load saved settings: %w", err)
	}
	if err := s.ApplySettings(saved); err != nil {
		return fmt.Errorf("saved settings rejected: %w", err)
	}
	log.Info().Int("stations", s.stations.Count()).Msg("Loaded saved settings")
	return nil
}

// Settings returns the current settings including the live station list.
func (s *Service) Settings() config.Settings {
	s.mu.RLock()
	out := s.settings
	out.Announcements = copyMap(s.settings.Announcements)
	out.AnnouncementsEnabled = copyMap(s.settings.AnnouncementsEnabled)
	s.mu.RUnlock()
	out.Stations = s.stations.Export()
	return out
}

func copyMap[V any](m map[string]V) map[string]V {
	if m == nil {
		return nil
	}
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// ApplySettings validates and applies cfg. Nothing changes if any part is
// invalid.
func (s *Service) ApplySettings(cfg config.Settings) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := s.stations.Import(cfg.Stations); err != nil {
		return err
	}

	s.mu.Lock()
	s.settings = cfg
	handlers := slices.Clone(s.voiceHandlers)
	s.mu.Unlock()

	if s.cues != nil {
		s.cues.SetTexts(cfg.Announcements)
		s.cues.SetEnabled(cfg.AnnouncementsEnabled)
	}
	for _, fn := range handlers {
		fn(cfg.Voice)
	}
	return nil
}

// SaveSettings writes the current settings to the store.
func (s *Service) SaveSettings(ctx context.Context) error {
	if err := s.store.Set(ctx, store.KeyConfig, s.Settings()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	log.Info().Msg("Settings saved")
	return nil
}

// ImportSettings parses a settings document and applies it.
func (s *Service) ImportSettings(data []byte, format config.Format) error {
	cfg, err := config.Parse(data, format)
	if err != nil {
		return err
	}
	return s.ApplySettings(cfg)
}

// ExportSettings encodes the current settings.
func (s *Service) ExportSettings(format config.Format) ([]byte, error) {
	return config.Marshal(s.Settings(), format)
}

// ImportFile loads a settings file and applies it.
func (s *Service) ImportFile(path string) error {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := s.ApplySettings(cfg); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Imported settings file")
	return nil
}

// ExportFile writes the current settings to path.
func (s *Service) ExportFile(path string) error {
	return config.SaveFile(path, s.Settings())
}

// SetMuted silences or restores announcements.
func (s *Service) SetMuted(muted bool) {
	if s.cues != nil {
		s.cues.SetMuted(muted)
	}
}

func (s *Service) Stations() []models.Station {
	return s.stations.GetAll()
}

func (s *Service) AddStation(name string, activityMinutes, feedbackMinutes int) (models.Station, error) {
	return s.stations.Add(name, activityMinutes, feedbackMinutes)
}

func (s *Service) UpdateStation(id int, u stations.Update) (models.Station, error) {
	return s.stations.Update(id, u)
}

func (s *Service) RemoveStation(id int) error {
	return s.stations.Remove(id)
}

func (s *Service) ReorderStations(from, to int) error {
	return s.stations.Reorder(from, to)
}

// StartExam starts an exam with the current stations and settings. The
// running exam keeps its own copy of the stations, so later edits only
// affect the next exam.
func (s *Service) StartExam(ctx context.Context) error {
	s.mu.RLock()
	cfg := s.settings
	s.mu.RUnlock()
	return s.runner.StartExam(ctx, s.stations.GetAll(), cfg.NumCandidates, cfg.ReadSeconds, cfg.ChangeoverSeconds)
}
