package consumer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"labbook/internal/notifications/mailer"
	"labbook/pkg/kafka"
	"labbook/pkg/logger"
	"labbook/pkg/model"
)

type mockMailer struct {
	sendFunc func(ctx context.Context, job model.EmailJob) error
	sent     []model.EmailJob
}

func (m *mockMailer) Send(ctx context.Context, job model.EmailJob) error {
	if m.sendFunc != nil {
		if err := m.sendFunc(ctx, job); err != nil {
			return err
		}
	}
	m.sent = append(m.sent, job)
	return nil
}

func message(t *testing.T, value any) kafka.Message {
	t.Helper()
	msg, err := kafka.NewMessage().WithKey("u1").WithValue(value).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return msg
}

func TestEmailHandler_Delivers(t *testing.T) {
	m := &mockMailer{}
	handler := NewEmailHandler(m, logger.Discard())

	job := model.EmailJob{To: "ana@example.edu", UserID: "u1", Type: model.NotificationBookingCreated, Title: "Booking Created"}
	if err := handler(context.Background(), message(t, job)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(m.sent) != 1 || m.sent[0].To != job.To {
		t.Errorf("unexpected deliveries %+v", m.sent)
	}
}

func TestEmailHandler_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		msg     func(t *testing.T) kafka.Message
		sendErr error
		want    kafka.ErrorType
	}{
		{
			name: "garbage payload",
			msg: func(t *testing.T) kafka.Message {
				return kafka.Message{Key: "u1", Value: []byte("not json")}
			},
			want: kafka.ErrorTypePermanent,
		},
		{
			name: "missing recipient",
			msg: func(t *testing.T) kafka.Message {
				return message(t, model.EmailJob{UserID: "u1"})
			},
			want: kafka.ErrorTypePermanent,
		},
		{
			name: "render failure",
			msg: func(t *testing.T) kafka.Message {
				return message(t, model.EmailJob{To: "a@b.c"})
			},
			sendErr: fmt.Errorf("%w: bad template", mailer.ErrRender),
			want:    kafka.ErrorTypePermanent,
		},
		{
			name: "smtp failure",
			msg: func(t *testing.T) kafka.Message {
				return message(t, model.EmailJob{To: "a@b.c"})
			},
			sendErr: errors.New("421 service not available"),
			want:    kafka.ErrorTypeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mockMailer{sendFunc: func(context.Context, model.EmailJob) error { return tt.sendErr }}
			err := NewEmailHandler(m, logger.Discard())(context.Background(), tt.msg(t))
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := kafka.ClassifyError(err); got != tt.want {
				t.Errorf("expected %v, got %v (%v)", tt.want, got, err)
			}
		})
	}
}
