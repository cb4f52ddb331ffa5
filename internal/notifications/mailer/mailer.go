package mailer

import (
	"context"
	"fmt"

	"labbook/pkg/config"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"gopkg.in/gomail.v2"
)

type Mailer interface {
	Send(ctx context.Context, job model.EmailJob) error
}

// Dialer is the subset of *gomail.Dialer the mailer needs.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPMailer struct {
	dialer    Dialer
	from      string
	templates *Templates
	log       *logger.Logger
}

func NewSMTPMailer(cfg *config.Config) (*SMTPMailer, error) {
	templates, err := NewTemplates()
	if err != nil {
		return nil, err
	}
	dialer := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return newSMTPMailer(dialer, cfg.SMTPFrom, templates, cfg.Log), nil
}

func newSMTPMailer(dialer Dialer, from string, templates *Templates, log *logger.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer:    dialer,
		from:      from,
		templates: templates,
		log:       log.Component("mailer"),
	}
}

// Send renders job and delivers it over a fresh SMTP connection. Rendering
// failures wrap ErrRender.
func (m *SMTPMailer) Send(ctx context.Context, job model.EmailJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := m.templates.Render(job)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetAddressHeader("To", job.To, job.Name)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", job.Message)
	msg.AddAlternative("text/html", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", job.To, err)
	}

	m.log.Info("Email sent", "to", job.To, "type", job.Type, "user_id", job.UserID)
	return nil
}
