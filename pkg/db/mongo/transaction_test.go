package mongo

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPassthroughManager_RunsFunction(t *testing.T) {
	tm := NewTransactionManager(nil, true)

	called := false
	err := tm.ExecuteTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		if InSession(ctx) {
			t.Error("expected plain context without a session")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("expected function to be called")
	}
}

func TestPassthroughManager_PropagatesError(t *testing.T) {
	tm := NewTransactionManager(nil, false)
	want := errors.New("boom")

	if err := tm.ExecuteTransaction(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestWithTimeout_UsesSoonerDeadline(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	ctx, cancel2 := WithTimeout(parent, time.Hour)
	defer cancel2()

	deadline, ok := ctx.Deadline()
	if !ok || time.Until(deadline) > time.Second {
		t.Errorf("expected parent deadline to win, got %v", deadline)
	}
}

func TestWithTimeout_AppliesTimeout(t *testing.T) {
	ctx, cancel := WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, ok := ctx.Deadline(); !ok {
		t.Error("expected a deadline")
	}
}
