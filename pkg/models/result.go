package models

import "time"

// StepStatus is the outcome of one ProcessStep invocation.
type StepStatus string

const (
	StepStatusProceeding        StepStatus = "proceeding"
	StepStatusSkippedIdempotent StepStatus = "skipped_idempotent"
	StepStatusPaused            StepStatus = "paused"
	StepStatusCompleted         StepStatus = "completed"
	StepStatusFailed            StepStatus = "failed"
)

// StepResult is what the orchestrator reports back to its caller.
type StepResult struct {
	Status StepStatus `json:"status"`
	Reason string     `json:"reason,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ActionResult is what an action executor produced for one node. Data is
// persisted as the success log metadata. A non-nil WakeUpTime means the
// executor requested a pause and the orchestrator must not chain forward.
// Outcome is set only by condition executors and steers edge traversal.
type ActionResult struct {
	Data       map[string]any `json:"data,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Outcome    *bool          `json:"outcome,omitempty"`
	WakeUpTime *time.Time     `json:"wake_up_time,omitempty"`
}

// Metadata flattens the result into the map persisted on the log row.
func (r *ActionResult) Metadata() map[string]any {
	if r == nil {
		return nil
	}

	metadata := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		metadata[k] = v
	}

	if r.Skipped {
		metadata["skipped"] = true
		metadata["reason"] = r.Reason
	}

	if r.Outcome != nil {
		metadata["outcome"] = *r.Outcome
	}

	if r.WakeUpTime != nil {
		metadata["paused_until"] = r.WakeUpTime.UTC().Format(time.RFC3339)
	}

	return metadata
}

// Paused reports whether the executor requested a pause.
func (r *ActionResult) Paused() bool {
	return r != nil && r.WakeUpTime != nil
}
