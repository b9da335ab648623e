package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for everything the exam emits
type Event struct {
	ID        string          `json:"id"`         // Event UUID
	SessionID string          `json:"session_id"` // Exam session UUID
	Type      EventType       `json:"type"`       // Event type
	Timestamp time.Time       `json:"timestamp"`  // Event creation time
	Data      json.RawMessage `json:"data"`       // Event-specific payload
}

// EventType represents the type of exam event
type EventType string

const (
	EventTypeExamStarted    EventType = "ExamStarted"
	EventTypePhaseStarted   EventType = "PhaseStarted"
	EventTypePhaseCompleted EventType = "PhaseCompleted"
	EventTypeTimerTick      EventType = "TimerTick"
	EventTypeThreshold      EventType = "Threshold"
	EventTypeRoundCompleted EventType = "RoundCompleted"
	EventTypeRoundRestarted EventType = "RoundRestarted"
	EventTypeExamPaused     EventType = "ExamPaused"
	EventTypeExamResumed    EventType = "ExamResumed"
	EventTypeExamCompleted  EventType = "ExamCompleted"
	EventTypeExamStopped    EventType = "ExamStopped"
	EventTypeExamRestored   EventType = "ExamRestored"
)

// New builds an event with a fresh id and the payload marshalled into Data.
func New(sessionID string, eventType EventType, at time.Time, payload any) (*Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Event{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      eventType,
		Timestamp: at,
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *Event) (any, error) {
	var payload any
	switch event.Type {
	case EventTypeExamStarted:
		payload = &ExamStartedPayload{}
	case EventTypePhaseStarted:
		payload = &PhaseStartedPayload{}
	case EventTypePhaseCompleted:
		payload = &PhaseCompletedPayload{}
	case EventTypeTimerTick:
		payload = &TimerTickPayload{}
	case EventTypeThreshold:
		payload = &ThresholdPayload{}
	case EventTypeRoundCompleted:
		payload = &RoundCompletedPayload{}
	case EventTypeRoundRestarted:
		payload = &RoundRestartedPayload{}
	case EventTypeExamPaused:
		payload = &ExamPausedPayload{}
	case EventTypeExamResumed:
		payload = &ExamResumedPayload{}
	case EventTypeExamCompleted:
		payload = &ExamCompletedPayload{}
	case EventTypeExamStopped:
		payload = &ExamStoppedPayload{}
	case EventTypeExamRestored:
		payload = &ExamRestoredPayload{}
	default:
		return nil, nil // Unknown event type
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, fmt.Errorf("parse %s payload: %w", event.Type, err)
	}
	return payload, nil
}
