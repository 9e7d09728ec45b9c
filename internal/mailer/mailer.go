package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// Outbound mail at its interface boundary. Delivery is always best
// effort; callers never fail on mail errors.
type Mailer interface {
	SendWelcome(to, username string) error
}

type SendGridMailer struct {
	client      *sendgrid.Client
	fromName    string
	fromAddress string
}

func NewSendGrid(apiKey, fromName, fromAddress string) *SendGridMailer {
	return &SendGridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		fromName:    fromName,
		fromAddress: fromAddress,
	}
}

func (m *SendGridMailer) SendWelcome(to, username string) error {
	from := mail.NewEmail(m.fromName, m.fromAddress)
	subject := "Welcome to NexAPI"
	recipient := mail.NewEmail(username, to)
	plain := fmt.Sprintf("Hi %s,\n\nYour account is ready. Register an API and fire your first test call from the dashboard.\n", username)

	message := mail.NewSingleEmail(from, subject, recipient, plain, "")

	response, err := m.client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d", response.StatusCode)
	}

	return nil
}

// Used when no SendGrid key is configured (local development).
type NoopMailer struct {
	logger *logrus.Logger
}

func NewNoop(logger *logrus.Logger) *NoopMailer {
	return &NoopMailer{logger: logger}
}

func (m *NoopMailer) SendWelcome(to, username string) error {
	m.logger.WithFields(logrus.Fields{"to": to, "user": username}).Debug("mail delivery disabled, skipping welcome email")
	return nil
}
