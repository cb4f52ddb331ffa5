package dispatcher

import (
	"context"
	"fmt"

	"labbook/internal/notifications/mailer"
	"labbook/pkg/kafka"
	kafka_config "labbook/pkg/kafka/config"
	"labbook/pkg/middleware"
	"labbook/pkg/model"
)

const emailSchemaVersion = "1"

// MailQueue hands an email job to whatever delivers it.
type MailQueue interface {
	Enqueue(ctx context.Context, job model.EmailJob) error
	Close() error
}

// Publisher is the subset of *kafka.Producer the queue needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaMailQueue publishes jobs for the notifier process. Messages are keyed
// by recipient so one user's emails stay ordered.
type KafkaMailQueue struct {
	producer Publisher
	topic    string
	source   string
}

// NewKafkaMailQueue wraps a producer bound to cfg.Email.Topic.
func NewKafkaMailQueue(producer Publisher, cfg *kafka_config.Config) *KafkaMailQueue {
	return &KafkaMailQueue{
		producer: producer,
		topic:    cfg.Email.Topic,
		source:   cfg.ClientID,
	}
}

func (q *KafkaMailQueue) Enqueue(ctx context.Context, job model.EmailJob) error {
	msg, err := kafka.NewMessage().
		WithKey(job.UserID).
		WithValue(job).
		WithEventType(string(job.Type)).
		WithRequestID(middleware.RequestID(ctx)).
		WithSchemaVersion(emailSchemaVersion).
		WithSource(q.source).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build email message: %w", err)
	}

	if err := q.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish email job to %s: %w", q.topic, err)
	}
	return nil
}

func (q *KafkaMailQueue) Close() error {
	return q.producer.Close()
}

// DirectMailQueue sends in the calling goroutine. Used when Kafka is off.
type DirectMailQueue struct {
	mailer mailer.Mailer
}

func NewDirectMailQueue(m mailer.Mailer) *DirectMailQueue {
	return &DirectMailQueue{mailer: m}
}

func (q *DirectMailQueue) Enqueue(ctx context.Context, job model.EmailJob) error {
	return q.mailer.Send(ctx, job)
}

func (q *DirectMailQueue) Close() error {
	return nil
}
