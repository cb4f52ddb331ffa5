package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"labbook/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type mockWriter struct {
	mu        sync.Mutex
	messages  []kafka.Message
	writeFunc func(msgs ...kafka.Message) error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.writeFunc != nil {
		if err := m.writeFunc(msgs...); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("user-1").
		WithValue(map[string]string{"to": "a@b.c"}).
		WithEventType("booking_approved").
		WithRequestID("").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if msg.GetEventID() == "" {
		t.Error("expected generated event id")
	}
	if msg.GetEventType() != "booking_approved" {
		t.Errorf("unexpected event type %q", msg.GetEventType())
	}
	if _, ok := msg.Headers[HeaderRequestID]; ok {
		t.Error("empty header values should be skipped")
	}

	if _, err := NewMessage().WithKey("k").WithValue(make(chan int)).Build(); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("expected ErrInvalidMessage, got %v", err)
	}
}

func TestRetryCount(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"wrapped transient", NewTransientError("smtp", errors.New("x")), ErrorTypeTransient},
		{"wrapped permanent", NewPermanentError("bad", nil), ErrorTypePermanent},
		{"deadline", context.DeadlineExceeded, ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"unknown", errors.New("weird"), ErrorTypePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestProducer_Publish(t *testing.T) {
	w := &mockWriter{}
	p := newProducer(w, nil, "labbook.email", "", logger.Discard())

	var seen []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		seen = append(seen, msg.Topic)
		return next(ctx, msg)
	})

	msg, _ := NewMessage().WithKey("u1").WithValue("hi").Build()
	if err := p.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.messages) != 1 || string(w.messages[0].Key) != "u1" {
		t.Fatalf("unexpected writes %+v", w.messages)
	}
	if len(seen) != 1 || seen[0] != "labbook.email" {
		t.Errorf("middleware did not see topic, got %v", seen)
	}
}

func TestProducer_Validation(t *testing.T) {
	p := newProducer(&mockWriter{}, nil, "t", "", logger.Discard())

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	_ = p.Close()
	if err := p.Publish(context.Background(), Message{Key: "k", Value: []byte("x")}); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
}

func TestProducer_FailureGoesToDLQ(t *testing.T) {
	brokerErr := errors.New("leader not available")
	w := &mockWriter{writeFunc: func(...kafka.Message) error { return brokerErr }}
	dlq := &mockWriter{}
	p := newProducer(w, dlq, "labbook.email", "labbook.email.dlq", logger.Discard())

	msg, _ := NewMessage().WithKey("u1").WithValue("hi").Build()
	if err := p.Publish(context.Background(), msg); !errors.Is(err, brokerErr) {
		t.Fatalf("expected broker error, got %v", err)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected one DLQ message, got %d", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderOriginalTopic); got != "labbook.email" {
		t.Errorf("unexpected original topic %q", got)
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("caller's message headers must not be mutated")
	}
}

type mockReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func (m *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	m.mu.Lock()
	if len(m.queue) > 0 {
		msg := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		return msg, nil
	}
	m.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (m *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.committed = append(m.committed, msg.Offset)
	}
	if len(m.queue) == 0 && m.drained != nil {
		close(m.drained)
		m.drained = nil
	}
	return nil
}

func (m *mockReader) Close() error { return nil }

func runConsumer(t *testing.T, c *Consumer, r *mockReader) {
	t.Helper()
	drained := r.drained
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not drain queue")
	}
	cancel()
	<-done
}

func TestConsumer_RetriesTransientThenSucceeds(t *testing.T) {
	r := &mockReader{
		queue:   []kafka.Message{{Key: []byte("u1"), Value: []byte(`{}`), Offset: 7}},
		drained: make(chan struct{}),
	}

	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		if calls < 3 {
			return NewTransientError("smtp busy", nil)
		}
		return nil
	}

	c := newConsumer(r, nil, "labbook.email", "notifier", "", handler, logger.Discard())
	c.maxRetries = 3
	c.backoff = time.Millisecond

	runConsumer(t, c, r)

	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(r.committed) != 1 || r.committed[0] != 7 {
		t.Errorf("expected offset 7 committed, got %v", r.committed)
	}
}

func TestConsumer_PermanentFailureGoesToDLQ(t *testing.T) {
	r := &mockReader{
		queue:   []kafka.Message{{Key: []byte("u1"), Value: []byte(`not json`), Offset: 1}},
		drained: make(chan struct{}),
	}
	dlq := &mockWriter{}

	calls := 0
	handler := func(ctx context.Context, msg Message) error {
		calls++
		var v map[string]any
		return msg.DecodeValue(&v)
	}

	c := newConsumer(r, dlq, "labbook.email", "notifier", "labbook.email.dlq", handler, logger.Discard())
	c.maxRetries = 3
	c.backoff = time.Millisecond

	runConsumer(t, c, r)

	if calls != 1 {
		t.Errorf("permanent errors must not be retried, got %d calls", calls)
	}
	if len(dlq.messages) != 1 {
		t.Fatalf("expected DLQ message, got %d", len(dlq.messages))
	}
	if got := header(dlq.messages[0], HeaderDLQGroup); got != "notifier" {
		t.Errorf("unexpected DLQ group header %q", got)
	}
	if len(r.committed) != 1 {
		t.Errorf("expected offset to be committed after DLQ, got %v", r.committed)
	}
}
