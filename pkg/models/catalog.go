package models

// EmailTemplate is the stored subject/body pair an email node renders.
// Managed externally; the engine only reads it.
type EmailTemplate struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Tag is an entry in the tag catalog.
type Tag struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}
