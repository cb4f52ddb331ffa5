package consumer

import (
	"context"
	"errors"

	"labbook/internal/notifications/mailer"
	"labbook/pkg/kafka"
	"labbook/pkg/logger"
	"labbook/pkg/model"
)

// NewEmailHandler delivers email jobs read from the mail topic. Undecodable
// or unrenderable jobs are permanent failures; SMTP errors are retried.
func NewEmailHandler(m mailer.Mailer, log *logger.Logger) kafka.MessageHandler {
	log = log.Component("email-consumer")

	return func(ctx context.Context, msg kafka.Message) error {
		var job model.EmailJob
		if err := msg.DecodeValue(&job); err != nil {
			return err
		}
		if job.To == "" {
			return kafka.NewPermanentError("email job has no recipient", nil)
		}

		if err := m.Send(ctx, job); err != nil {
			if errors.Is(err, mailer.ErrRender) {
				return kafka.NewPermanentError("email cannot be rendered", err)
			}
			log.Warn("Email delivery failed", "to", job.To, "event_id", msg.GetEventID(), "retry", msg.GetRetryCount(), "error", err)
			return kafka.NewTransientError("smtp delivery failed", err)
		}
		return nil
	}
}
