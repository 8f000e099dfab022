// Package web provides the HTTP surface of the execution engine: event
// ingestion, manual step processing and execution inspection.
package web

import (
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

// StepResponse is the outcome of one processed step.
type StepResponse struct {
	Status models.StepStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
	Error  string            `json:"error,omitempty"`
}

// ExecutionResponse is the inspection view of an execution.
type ExecutionResponse struct {
	ID            string                 `json:"id"`
	AutomationID  string                 `json:"automation_id"`
	ContactID     string                 `json:"contact_id,omitempty"`
	CurrentNodeID string                 `json:"current_node_id"`
	Status        models.ExecutionStatus `json:"status"`
	Context       map[string]any         `json:"context"`
	WakeUpTime    *time.Time             `json:"wake_up_time,omitempty"`
	LastError     *string                `json:"last_error,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// TransformExecutionResponse maps the stored execution onto the API view.
func TransformExecutionResponse(execution *models.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:            execution.ID,
		AutomationID:  execution.AutomationID,
		ContactID:     execution.ContactID,
		CurrentNodeID: execution.CurrentNodeID,
		Status:        execution.Status,
		Context:       execution.Context,
		WakeUpTime:    execution.WakeUpTime,
		LastError:     execution.LastError,
		CreatedAt:     execution.CreatedAt,
		CompletedAt:   execution.CompletedAt,
	}
}

// LogResponse is one node attempt within an execution.
type LogResponse struct {
	NodeID      string           `json:"node_id"`
	ActionType  string           `json:"action_type,omitempty"`
	Status      models.LogStatus `json:"status"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// TransformLogResponse maps a stored log row onto the API view.
func TransformLogResponse(entry *models.ExecutionLog) LogResponse {
	return LogResponse{
		NodeID:      entry.NodeID,
		ActionType:  entry.ActionType,
		Status:      entry.Status,
		StartedAt:   entry.StartedAt,
		CompletedAt: entry.CompletedAt,
		Metadata:    entry.Metadata,
	}
}
