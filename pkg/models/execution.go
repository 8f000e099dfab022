package models

import "time"

// ExecutionStatus is the lifecycle state of one contact's run through an
// automation. Completed and failed are terminal; the engine refuses to
// advance a terminal execution.
type ExecutionStatus string

const (
	ExecutionStatusActive    ExecutionStatus = "active"
	ExecutionStatusPaused    ExecutionStatus = "paused"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// IsTerminal reports whether the status permits no further mutation.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed
}

// Execution is one contact's in-progress instance of an automation graph.
// CurrentNodeID points at the node to process next; Context is the opaque
// key/value state seeded at enrollment (contact id, email, event payload,
// opt-in and dry-run flags). WakeUpTime is the sole memory of a pending
// delay while the execution is paused.
type Execution struct {
	ID            string          `json:"id"`
	AutomationID  string          `json:"automation_id"  validate:"required"`
	ContactID     string          `json:"contact_id"`
	CurrentNodeID string          `json:"current_node_id"`
	Context       map[string]any  `json:"context"`
	Status        ExecutionStatus `json:"status"`
	WakeUpTime    *time.Time      `json:"wake_up_time,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
	UniqueEventID string          `json:"unique_event_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// ContextString returns a string field from the execution context.
func (e *Execution) ContextString(key string) string {
	value, _ := e.Context[key].(string)

	return value
}

// Email returns the contact email carried in the context.
func (e *Execution) Email() string {
	return e.ContextString("email")
}

// MarketingOptIn reports whether marketing sends are allowed. The flag is
// tri-state in the context: only an explicit false suppresses sends,
// matching the opt-out semantics of the source events.
func (e *Execution) MarketingOptIn() bool {
	if optIn, ok := e.Context["marketing_opt_in"].(bool); ok {
		return optIn
	}

	return true
}

// DryRun reports whether side effects should be simulated.
func (e *Execution) DryRun() bool {
	dryRun, _ := e.Context["dry_run"].(bool)

	return dryRun
}
