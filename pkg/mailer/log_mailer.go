package mailer

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogMailer only logs messages. Used in development so no mail leaves the host.
type LogMailer struct {
	logger *logrus.Logger
}

// NewLogMailer creates a mailer that writes each message to the logger
func NewLogMailer(logger *logrus.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// GetName returns the name of the mailer implementation
func (m *LogMailer) GetName() string {
	return "log"
}

// Send logs the message headers and body size
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.WithFields(logrus.Fields{
		"to":         msg.To,
		"cc":         msg.Cc,
		"subject":    msg.Subject,
		"body_bytes": len(msg.HTMLBody),
	}).Info("Notification email (log mode, not sent)")
	return nil
}
