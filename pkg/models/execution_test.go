package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExecution_MarketingOptIn_TriState(t *testing.T) {
	// Only an explicit false suppresses marketing sends.
	optedOut := &Execution{Context: map[string]any{"marketing_opt_in": false}}
	assert.False(t, optedOut.MarketingOptIn())

	optedIn := &Execution{Context: map[string]any{"marketing_opt_in": true}}
	assert.True(t, optedIn.MarketingOptIn())

	unknown := &Execution{Context: map[string]any{}}
	assert.True(t, unknown.MarketingOptIn())
}

func TestExecution_DryRun(t *testing.T) {
	assert.True(t, (&Execution{Context: map[string]any{"dry_run": true}}).DryRun())
	assert.False(t, (&Execution{Context: map[string]any{}}).DryRun())
}

func TestExecutionStatus_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionStatusActive.IsTerminal())
	assert.False(t, ExecutionStatusPaused.IsTerminal())
	assert.True(t, ExecutionStatusCompleted.IsTerminal())
	assert.True(t, ExecutionStatusFailed.IsTerminal())
}

func TestActionResult_Metadata(t *testing.T) {
	outcome := true
	wake := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	result := &ActionResult{
		Data:       map[string]any{"email_sent": true},
		Outcome:    &outcome,
		WakeUpTime: &wake,
	}

	metadata := result.Metadata()
	assert.Equal(t, true, metadata["email_sent"])
	assert.Equal(t, true, metadata["outcome"])
	assert.Equal(t, "2026-03-01T10:00:00Z", metadata["paused_until"])
}

func TestActionResult_Metadata_Skipped(t *testing.T) {
	result := &ActionResult{Skipped: true, Reason: "opt_out"}

	metadata := result.Metadata()
	assert.Equal(t, true, metadata["skipped"])
	assert.Equal(t, "opt_out", metadata["reason"])
}

func TestActionResult_NilSafety(t *testing.T) {
	var result *ActionResult

	assert.Nil(t, result.Metadata())
	assert.False(t, result.Paused())
}
