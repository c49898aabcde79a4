package mail

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Mailer delivers transactional email (verification and password-reset codes).
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogMailer writes mail to the log instead of sending it. Used in development
// when no SendGrid key is configured.
type LogMailer struct {
	Log *logrus.Logger
}

func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	m.Log.WithFields(logrus.Fields{
		"to":      to,
		"subject": subject,
		"body":    body,
	}).Info("Mail delivery disabled, logging instead")
	return nil
}
