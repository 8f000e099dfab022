// Package events defines the event types exchanged between the ingestion
// layer, the step orchestrator and the wake-up scheduler.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic is the single stream every engine event flows through.
const Topic = "cadence.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// StepRequestedEvent asks a worker to process one step of one
	// execution. The engine chains itself by publishing this after each
	// advanced step; the scheduler publishes it for due wake-ups.
	StepRequestedEvent EventType = "execution.step.requested"

	// Execution lifecycle notifications, published for observers.
	ExecutionEnrolledEvent  EventType = "execution.enrolled"
	ExecutionPausedEvent    EventType = "execution.paused"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
)

type BaseEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	Timestamp    time.Time      `json:"timestamp"`
	AutomationID string         `json:"automation_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, automationID string) BaseEvent {
	return BaseEvent{
		ID:           uuid.New().String(),
		Type:         eventType,
		Timestamp:    time.Now().UTC(),
		AutomationID: automationID,
		Metadata:     make(map[string]any),
	}
}

// StepRequested carries the execution to advance. Reason records what
// produced the request (enrollment, chain, wake_up, early_wake, manual).
type StepRequested struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	Reason      string `json:"reason,omitempty"`
}

func (s StepRequested) GetType() EventType {
	return StepRequestedEvent
}

type ExecutionEnrolled struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	ContactID   string `json:"contact_id,omitempty"`
	TriggerType string `json:"trigger_type"`
	EventID     string `json:"event_id"`
}

func (e ExecutionEnrolled) GetType() EventType {
	return ExecutionEnrolledEvent
}

type ExecutionPaused struct {
	BaseEvent

	ExecutionID string    `json:"execution_id"`
	NodeID      string    `json:"node_id"`
	WakeUpTime  time.Time `json:"wake_up_time"`
}

func (e ExecutionPaused) GetType() EventType {
	return ExecutionPausedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	LastNodeID  string `json:"last_node_id"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Error       string `json:"error"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}
