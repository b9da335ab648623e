package stations

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/mcdev12/osce/go/internal/models"
)

var (
	// ErrStationNotFound is returned when no station has the requested id.
	ErrStationNotFound = errors.New("station not found")
	// ErrLastStation is returned when a removal would leave the set empty.
	ErrLastStation = errors.New("at least one station is required")
	// ErrInvalidStation is returned for non-positive durations or blank names.
	ErrInvalidStation = errors.New("invalid station")
	// ErrInvalidExport is returned when an imported configuration is malformed.
	ErrInvalidExport = errors.New("invalid station export")
)

var palette = []string{"#10b981", "#3b82f6", "#8b5cf6", "#ec4899", "#f59e0b", "#06b6d4", "#84cc16", "#f43f5e"}

// Update carries the fields to change on a station. Nil fields are left as-is.
type Update struct {
	Name            *string `json:"name,omitempty"`
	ActivityMinutes *int    `json:"activity_minutes,omitempty"`
	FeedbackMinutes *int    `json:"feedback_minutes,omitempty"`
	Color           *string `json:"color,omitempty"`
}

// Export is the serialisable form of a Set, including the id counter.
type Export struct {
	Stations []models.Station `json:"stations" yaml:"stations"`
	NextID   int              `json:"next_id" yaml:"next_id"`
}

// Set holds the ordered list of exam stations. Order defines rotation
// positions 0..Count()-1.
type Set struct {
	mu       sync.RWMutex
	stations []models.Station
	nextID   int
}

// NewSet creates a set seeded with the default stations.
func NewSet() *Set {
	s := &Set{}
	s.Reset()
	return s
}

// Defaults returns the stock five-station configuration.
func Defaults() Export {
	return Export{
		Stations: []models.Station{
			{ID: 1, Name: "History Taking", ActivityMinutes: 10, FeedbackMinutes: 4, Color: palette[0]},
			{ID: 2, Name: "Manual BP", ActivityMinutes: 8, FeedbackMinutes: 6, Color: palette[1]},
			{ID: 3, Name: "Capillary Blood Glucose", ActivityMinutes: 9, FeedbackMinutes: 5, Color: palette[2]},
			{ID: 4, Name: "Observations & Handwashing", ActivityMinutes: 9, FeedbackMinutes: 5, Color: palette[3]},
			{ID: 5, Name: "Urinalysis & Peak Flow", ActivityMinutes: 10, FeedbackMinutes: 4, Color: palette[4]},
		},
		NextID: 6,
	}
}

// Reset restores the default stations and id counter.
func (s *Set) Reset() {
	d := Defaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = d.Stations
	s.nextID = d.NextID
}

// Add appends a station with a fresh id. Ids are never reused.
func (s *Set) Add(name string, activityMinutes, feedbackMinutes int) (models.Station, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Station"
	}
	station := models.Station{
		Name:            name,
		ActivityMinutes: activityMinutes,
		FeedbackMinutes: feedbackMinutes,
	}
	if err := validate(station); err != nil {
		return models.Station{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	station.ID = s.nextID
	station.Color = palette[(station.ID-1)%len(palette)]
	s.nextID++
	s.stations = append(s.stations, station)
	return station, nil
}

// Update applies the non-nil fields of u to the station with the given id.
func (s *Set) Update(id int, u Update) (models.Station, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return models.Station{}, fmt.Errorf("update station %d: %w", id, ErrStationNotFound)
	}
	updated := s.stations[idx]
	if u.Name != nil {
		updated.Name = strings.TrimSpace(*u.Name)
	}
	if u.ActivityMinutes != nil {
		updated.ActivityMinutes = *u.ActivityMinutes
	}
	if u.FeedbackMinutes != nil {
		updated.FeedbackMinutes = *u.FeedbackMinutes
	}
	if u.Color != nil {
		updated.Color = *u.Color
	}
	if err := validate(updated); err != nil {
		return models.Station{}, err
	}
	s.stations[idx] = updated
	return updated, nil
}

// Remove deletes the station with the given id. Removing the last station is
// a precondition violation.
func (s *Set) Remove(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("remove station %d: %w", id, ErrStationNotFound)
	}
	if len(s.stations) <= 1 {
		return fmt.Errorf("remove station %d: %w", id, ErrLastStation)
	}
	s.stations = append(s.stations[:idx], s.stations[idx+1:]...)
	return nil
}

// Reorder moves the station at index from to index to.
func (s *Set) Reorder(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.stations)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("%w: reorder %d -> %d: index out of range [0,%d)", ErrInvalidStation, from, to, n)
	}
	station := s.stations[from]
	s.stations = append(s.stations[:from], s.stations[from+1:]...)
	s.stations = append(s.stations[:to], append([]models.Station{station}, s.stations[to:]...)...)
	return nil
}

// GetAll returns a copy of the stations in rotation order.
func (s *Set) GetAll() []models.Station {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Station, len(s.stations))
	copy(out, s.stations)
	return out
}

// GetByID looks a station up by id.
func (s *Set) GetByID(id int) (models.Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(id); idx >= 0 {
		return s.stations[idx], true
	}
	return models.Station{}, false
}

// GetByIndex looks a station up by rotation position.
func (s *Set) GetByIndex(index int) (models.Station, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.stations) {
		return models.Station{}, false
	}
	return s.stations[index], true
}

// Count returns the number of stations.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stations)
}

// Export returns the stations and id counter.
func (s *Set) Export() Export {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Export{Stations: slices.Clone(s.stations), NextID: s.nextID}
}

// Import replaces the set with e. Nothing changes when e is invalid.
func (s *Set) Import(e Export) error {
	if len(e.Stations) == 0 {
		return fmt.Errorf("%w: no stations", ErrInvalidExport)
	}
	seen := make(map[int]bool, len(e.Stations))
	maxID := 0
	imported := make([]models.Station, len(e.Stations))
	for i, st := range e.Stations {
		if st.ID <= 0 {
			return fmt.Errorf("%w: station %q has non-positive id %d", ErrInvalidExport, st.Name, st.ID)
		}
		if seen[st.ID] {
			return fmt.Errorf("%w: duplicate station id %d", ErrInvalidExport, st.ID)
		}
		if err := validate(st); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidExport, err)
		}
		seen[st.ID] = true
		if st.ID > maxID {
			maxID = st.ID
		}
		if st.Color == "" {
			st.Color = palette[(st.ID-1)%len(palette)]
		}
		imported[i] = st
	}

	nextID := e.NextID
	if nextID <= maxID {
		nextID = maxID + 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.stations = imported
	s.nextID = nextID
	return nil
}

func (s *Set) indexOf(id int) int {
	for i, st := range s.stations {
		if st.ID == id {
			return i
		}
	}
	return -1
}

func validate(st models.Station) error {
	if strings.TrimSpace(st.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidStation)
	}
	if st.ActivityMinutes <= 0 {
		return fmt.Errorf("%w: activity minutes must be positive, got %d", ErrInvalidStation, st.ActivityMinutes)
	}
	if st.FeedbackMinutes <= 0 {
		return fmt.Errorf("%w: feedback minutes must be positive, got %d", ErrInvalidStation, st.FeedbackMinutes)
	}
	return nil
}
