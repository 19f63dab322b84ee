package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"
)

// Outcome reports how a dispatch attempt ended. Callers may log it but
// must never let a failed send interrupt the state transition that
// triggered it.
type Outcome struct {
	Sent   bool
	Reason string
}

func sent() Outcome { return Outcome{Sent: true} }

func failed(err error) Outcome {
	return Outcome{Sent: false, Reason: err.Error()}
}

// Sender delivers a single message.
type Sender interface {
	Send(to, subject, htmlBody string) error
}

// SendGridSender delivers mail through the SendGrid API.
type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	return &SendGridSender{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (s *SendGridSender) Send(to, subject, htmlBody string) error {
	from := mail.NewEmail(s.fromName, s.from)
	recipient := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, recipient, stripTags(htmlBody), htmlBody)

	resp, err := s.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// Mailer renders and dispatches the portal's notification emails.
type Mailer struct {
	sender   Sender
	siteName string
	siteURL  string
}

func New(sender Sender, siteName, siteURL string) *Mailer {
	return &Mailer{sender: sender, siteName: siteName, siteURL: siteURL}
}

func (m *Mailer) send(subject, body, recipient string) Outcome {
	if err := m.sender.Send(recipient, subject, body); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"subject":   subject,
			"recipient": recipient,
		}).Error("email failed")
		return failed(err)
	}
	log.WithFields(log.Fields{
		"subject":   subject,
		"recipient": recipient,
	}).Info("email sent")
	return sent()
}
