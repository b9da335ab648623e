package rotation

import (
	"time"

	"github.com/mcdev12/osce/go/internal/models"
)

// TotalPositions is the number of rotation slots. Slots at or beyond the
// station count are rest slots.
func TotalPositions(numStations, numCandidates int) int {
	return max(numStations, numCandidates)
}

// ActivityDuration sizes the shared activity phase to the slowest station.
func ActivityDuration(stations []models.Station) time.Duration {
	maxActivity := 0
	for _, s := range stations {
		maxActivity = max(maxActivity, s.ActivityMinutes)
	}
	return time.Duration(maxActivity) * time.Minute
}

// FeedbackDuration is whatever remains of the longest station once the
// longest activity is over, so every station's activity and feedback fit
// inside the shared window.
func FeedbackDuration(stations []models.Station) time.Duration {
	maxActivity, maxTotal := 0, 0
	for _, s := range stations {
		maxActivity = max(maxActivity, s.ActivityMinutes)
		maxTotal = max(maxTotal, s.TotalMinutes())
	}
	return time.Duration(max(0, maxTotal-maxActivity)) * time.Minute
}

// EstimatedDuration is the wall-clock length of an exam with no pauses.
func EstimatedDuration(stations []models.Station, numCandidates int, read, changeover time.Duration) time.Duration {
	if len(stations) == 0 || numCandidates < 1 {
		return 0
	}
	perRound := read + ActivityDuration(stations) + FeedbackDuration(stations) + changeover
	return perRound * time.Duration(TotalPositions(len(stations), numCandidates))
}
