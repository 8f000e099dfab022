// Package models defines the core domain models for the automation execution engine.
package models

import "time"

// AutomationStatus represents the lifecycle state of an automation.
type AutomationStatus string

const (
	AutomationStatusDraft    AutomationStatus = "draft"    // Editable, not enrollable
	AutomationStatusActive   AutomationStatus = "active"   // Enrollable and executable
	AutomationStatusArchived AutomationStatus = "archived" // Historical, not enrollable
)

// Automation is an externally authored marketing-automation graph plus the
// trigger event type that enrolls contacts into it. The engine treats the
// graph as read-only data.
type Automation struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"         validate:"required,min=3"`
	TriggerType string           `json:"trigger_type"`
	Status      AutomationStatus `json:"status"       validate:"required"`
	Graph       *Graph           `json:"graph"        validate:"required"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// IsActive reports whether the automation accepts new enrollments.
func (a *Automation) IsActive() bool {
	return a.Status == AutomationStatusActive
}
