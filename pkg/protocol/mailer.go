package protocol

import "context"

// EmailMessage is a fully rendered email, ready for delivery.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string

	// Metadata is attached to the provider call for correlation, e.g. the
	// execution and node ids.
	Metadata map[string]string
}

// Mailer delivers rendered emails through a provider.
type Mailer interface {
	Send(ctx context.Context, message EmailMessage) (messageID string, err error)
}
