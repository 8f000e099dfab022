package models

import "time"

// Funnel is the analytics view over one automation: per-node step
// aggregates plus per-contact journeys.
type Funnel struct {
	ID                  string         `json:"id"`
	AutomationID        string         `json:"automation_id"`
	ConversionGoalEvent string         `json:"conversion_goal_event,omitempty"`
	Settings            map[string]any `json:"settings,omitempty"`
}

// SimulationMode reports whether executions enrolled through this funnel
// should run with dry-run side effects.
func (f *Funnel) SimulationMode() bool {
	if f.Settings == nil {
		return false
	}

	simulation, _ := f.Settings["simulation_mode"].(bool)

	return simulation
}

// StepMetrics are the aggregate counters of one funnel step. All counters
// are monotonically non-decreasing.
type StepMetrics struct {
	Entered   int     `json:"entered"`
	Completed int     `json:"completed"`
	Converted int     `json:"converted"`
	Revenue   float64 `json:"revenue"`
}

// FunnelStep is the per-(funnel, node) aggregate record, lazily created on
// the first visit to the node.
type FunnelStep struct {
	ID         string      `json:"id"`
	FunnelID   string      `json:"funnel_id"`
	NodeID     string      `json:"node_id"`
	Name       string      `json:"name"`
	StepType   string      `json:"step_type"`
	StepOrder  int         `json:"step_order"`
	TemplateID string      `json:"template_id,omitempty"`
	Metrics    StepMetrics `json:"metrics"`
}

// JourneyStatus is the state of one contact's path through a funnel.
type JourneyStatus string

const (
	JourneyStatusActive    JourneyStatus = "active"
	JourneyStatusConverted JourneyStatus = "converted"
	JourneyStatusCompleted JourneyStatus = "completed"
)

// Journey is the per-(funnel, contact) record answering "where is this
// contact right now" independently of the execution's own pointer.
type Journey struct {
	ID               string        `json:"id"`
	FunnelID         string        `json:"funnel_id"`
	ContactID        string        `json:"contact_id"`
	CurrentStepID    string        `json:"current_step_id"`
	Status           JourneyStatus `json:"status"`
	RevenueGenerated float64       `json:"revenue_generated"`
	StartedAt        time.Time     `json:"started_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

// Conversion records revenue attributed to the funnel step a contact was
// on when the conversion event arrived.
type Conversion struct {
	ID               string    `json:"id"`
	FunnelID         string    `json:"funnel_id"`
	ContactID        string    `json:"contact_id"`
	TransactionID    string    `json:"transaction_id,omitempty"`
	Amount           float64   `json:"amount"`
	AttributedStepID string    `json:"attributed_step_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}
