package mailer

import (
	"context"
	"fmt"

	mail "github.com/wneessen/go-mail"
)

// SMTPConfig holds configuration for the SMTP mailer
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay using STARTTLS
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer creates a new SMTP mailer
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     config.Host,
		port:     config.Port,
		username: config.Username,
		password: config.Password,
		from:     config.From,
	}
}

// GetName returns the name of the mailer implementation
func (m *SMTPMailer) GetName() string {
	return "smtp"
}

// Send delivers msg. With no primary recipients the sender address is used
// as the To header so CC-only notifications still have a valid envelope.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	email, err := m.buildMessage(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if m.username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.username),
			mail.WithPassword(m.password),
		)
	}

	client, err := mail.NewClient(m.host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, email); err != nil {
		return fmt.Errorf("failed to send email via %s:%d: %w", m.host, m.port, err)
	}

	return nil
}

func (m *SMTPMailer) buildMessage(msg Message) (*mail.Msg, error) {
	email := mail.NewMsg()

	if err := email.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address %q: %w", m.from, err)
	}

	to := msg.To
	if len(to) == 0 {
		to = []string{m.from}
	}
	if err := email.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}

	if len(msg.Cc) > 0 {
		if err := email.Cc(msg.Cc...); err != nil {
			return nil, fmt.Errorf("invalid cc address: %w", err)
		}
	}

	email.Subject(msg.Subject)
	email.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)

	return email, nil
}
