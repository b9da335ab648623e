package models

import "time"

// Station represents one exam station in the rotation.
type Station struct {
	ID              int    `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	ActivityMinutes int    `json:"activity_minutes" yaml:"activity_minutes"`
	FeedbackMinutes int    `json:"feedback_minutes" yaml:"feedback_minutes"`
	Color           string `json:"color,omitempty" yaml:"color,omitempty"`
}

// TotalMinutes is activity plus feedback time.
func (s Station) TotalMinutes() int {
	return s.ActivityMinutes + s.FeedbackMinutes
}

// ActivityDuration returns the station's own activity time.
func (s Station) ActivityDuration() time.Duration {
	return time.Duration(s.ActivityMinutes) * time.Minute
}

// FeedbackDuration returns the station's own feedback time.
func (s Station) FeedbackDuration() time.Duration {
	return time.Duration(s.FeedbackMinutes) * time.Minute
}
