package mailer

import "context"

// Message is a rendered notification ready for transport
type Message struct {
	To       []string
	Cc       []string
	Subject  string
	HTMLBody string
}

// Mailer defines the interface for delivering notification email
type Mailer interface {
	// Send delivers the message to all To and Cc recipients
	Send(ctx context.Context, msg Message) error

	// GetName returns the name of the mailer implementation
	GetName() string
}
