package models

// TriggerEvent is an ingested source event: it may enroll contacts into
// matching automations, wake paused wait_event executions early, or
// attribute conversion revenue.
type TriggerEvent struct {
	EventID        string         `json:"event_id" validate:"required"`
	Type           string         `json:"type"     validate:"required"`
	Email          string         `json:"email"    validate:"required,email"`
	ContactID      string         `json:"contact_id"`
	MarketingOptIn *bool          `json:"marketing_opt_in,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// MetadataString returns a string field from the event metadata.
func (e *TriggerEvent) MetadataString(key string) string {
	value, _ := e.Metadata[key].(string)

	return value
}

// Amount returns the monetary amount carried by conversion events.
func (e *TriggerEvent) Amount() float64 {
	switch value := e.Metadata["amount"].(type) {
	case float64:
		return value
	case int:
		return float64(value)
	default:
		return 0
	}
}
