package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"labbook/pkg/logger"
	"labbook/pkg/model"

	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, m...)
	return nil
}

func mustTemplates(t *testing.T) *Templates {
	t.Helper()
	tmpl, err := NewTemplates()
	if err != nil {
		t.Fatalf("NewTemplates: %v", err)
	}
	return tmpl
}

func approvedJob() model.EmailJob {
	return model.EmailJob{
		To:      "ana@example.edu",
		Name:    "Ana",
		UserID:  "u1",
		Type:    model.NotificationBookingApproved,
		Title:   "Booking Approved",
		Message: `Your booking "Titration practice" has been approved.`,
		Data: map[string]any{
			"title":      "Titration practice",
			"lab_name":   "Chemistry Lab",
			"date":       "2025-03-11",
			"start_time": "09:00",
			"end_time":   "10:00",
		},
		ActionURL: "https://labbook.example.edu/bookings/b1",
	}
}

func TestRender_BookingTemplate(t *testing.T) {
	subject, body, err := mustTemplates(t).Render(approvedJob())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if subject != "Booking Approved: Titration practice" {
		t.Errorf("unexpected subject %q", subject)
	}
	for _, want := range []string{"Hello Ana", "Chemistry Lab", "09:00 - 10:00", "View details", "https://labbook.example.edu/bookings/b1"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}
	if strings.Contains(body, "Reason:") {
		t.Error("absent fields should not be rendered")
	}
}

func TestRender_EscapesUserContent(t *testing.T) {
	job := approvedJob()
	job.Data["title"] = "<script>alert(1)</script>"

	_, body, err := mustTemplates(t).Render(job)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(body, "<script>") {
		t.Error("title was not escaped")
	}
}

func TestRender_UnknownTypeFallsBack(t *testing.T) {
	subject, body, err := mustTemplates(t).Render(model.EmailJob{
		Type:    "weekly_digest",
		Message: "Hello there",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Notification" {
		t.Errorf("unexpected subject %q", subject)
	}
	if !strings.Contains(body, "Hello there") {
		t.Error("message missing from fallback body")
	}
}

func TestSend(t *testing.T) {
	dialer := &fakeDialer{}
	m := newSMTPMailer(dialer, "labbook@example.edu", mustTemplates(t), logger.Discard())

	if err := m.Send(context.Background(), approvedJob()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(dialer.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(dialer.sent))
	}

	msg := dialer.sent[0]
	if got := msg.GetHeader("From"); len(got) != 1 || got[0] != "labbook@example.edu" {
		t.Errorf("unexpected From %v", got)
	}
	if got := msg.GetHeader("To"); len(got) != 1 || !strings.Contains(got[0], "ana@example.edu") {
		t.Errorf("unexpected To %v", got)
	}
}

func TestSend_Errors(t *testing.T) {
	smtpErr := errors.New("connection refused")
	m := newSMTPMailer(&fakeDialer{err: smtpErr}, "labbook@example.edu", mustTemplates(t), logger.Discard())

	if err := m.Send(context.Background(), approvedJob()); !errors.Is(err, smtpErr) {
		t.Errorf("expected wrapped SMTP error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Send(ctx, approvedJob()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
