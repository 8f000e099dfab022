package models

import "time"

// LogStatus is the state of a single node attempt within an execution.
type LogStatus string

const (
	LogStatusStarted LogStatus = "started"
	LogStatusSuccess LogStatus = "success"
	LogStatusFailure LogStatus = "failure"
)

// ExecutionLog records one attempt at one node of one execution. For a
// given (execution, node) at most one row reaches LogStatusSuccess; that
// row is the idempotency fence and its presence means the node's side
// effect must never run again for that execution.
type ExecutionLog struct {
	ExecutionID string         `json:"execution_id" validate:"required"`
	NodeID      string         `json:"node_id"      validate:"required"`
	ActionType  string         `json:"action_type"`
	Status      LogStatus      `json:"status"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
