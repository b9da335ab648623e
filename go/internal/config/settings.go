package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/osce/go/internal/announce"
	"github.com/mcdev12/osce/go/internal/stations"
)

// ErrInvalidSettings is returned for settings documents that cannot be applied.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the exam setup document: what is saved to the store and
// what is imported and exported as a file.
type Settings struct {
	StartTime            string                 `json:"start_time" yaml:"start_time"`
	NumCandidates        int                    `json:"num_candidates" yaml:"num_candidates"`
	ReadSeconds          int                    `json:"read_seconds" yaml:"read_seconds"`
	ChangeoverSeconds    int                    `json:"changeover_seconds" yaml:"changeover_seconds"`
	Voice                announce.VoiceSettings `json:"voice" yaml:"voice"`
	Announcements        map[string]string      `json:"announcements" yaml:"announcements"`
	AnnouncementsEnabled map[string]bool        `json:"announcements_enabled,omitempty" yaml:"announcements_enabled,omitempty"`
	Stations             stations.Export        `json:"stations" yaml:"stations"`
}

// Default returns the settings a fresh install starts with.
func Default() Settings {
	return Settings{
		StartTime:         "13:00",
		NumCandidates:     5,
		ReadSeconds:       60,
		ChangeoverSeconds: 60,
		Voice:             announce.DefaultVoice(),
		Announcements:     announce.DefaultTexts(),
		Stations:          stations.Defaults(),
	}
}

// Validate checks everything except the station list, which
// stations.Set.Import validates when the settings are applied.
func (s Settings) Validate() error {
	if s.StartTime != "" {
		if _, err := time.Parse("15:04", s.StartTime); err != nil {
			return fmt.Errorf("%w: start_time %q is not HH:MM", ErrInvalidSettings, s.StartTime)
		}
	}
	if s.NumCandidates < 1 {
		return fmt.Errorf("%w: num_candidates must be at least 1", ErrInvalidSettings)
	}
	if s.ReadSeconds < 0 || s.ChangeoverSeconds < 0 {
		return fmt.Errorf("%w: read and changeover seconds must not be negative", ErrInvalidSettings)
	}
	if s.Voice.Rate < 0 || s.Voice.Rate > 10 {
		return fmt.Errorf("%w: voice rate %.2f out of range", ErrInvalidSettings, s.Voice.Rate)
	}
	if s.Voice.Volume < 0 || s.Voice.Volume > 1 {
		return fmt.Errorf("%w: voice volume %.2f out of range [0,1]", ErrInvalidSettings, s.Voice.Volume)
	}
	if len(s.Stations.Stations) == 0 {
		return fmt.Errorf("%w: at least one station is required", ErrInvalidSettings)
	}
	return nil
}

// Format is a settings file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks the encoding from a file extension, defaulting to JSON.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Parse decodes and validates a settings document. Fields absent from the
// document keep their defaults.
func Parse(data []byte, format Format) (Settings, error) {
	s := Default()
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Marshal encodes s in the given format.
func Marshal(s Settings, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(s)
	default:
		return json.MarshalIndent(s, "", "  ")
	}
}

// LoadFile reads a settings document, choosing the format by extension.
func LoadFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}
	return Parse(data, FormatForPath(path))
}

// SaveFile writes s to path, choosing the format by extension.
func SaveFile(path string, s Settings) error {
	data, err := Marshal(s, FormatForPath(path))
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}
