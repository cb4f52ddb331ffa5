package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"labbook/pkg/model"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-with-enough-length"

func TestTokenManager_RoundTrip(t *testing.T) {
	m := NewTokenManager(testSecret, "labbook")
	want := Principal{ID: "64b7f0c2a1b2c3d4e5f60718", Role: model.RoleTeacher}

	raw, err := m.Issue(want, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	got, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	m := NewTokenManager(testSecret, "labbook")
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	raw, err := m.Issue(Principal{ID: "u1", Role: model.RoleStudent}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	m.now = time.Now
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	raw, _ := NewTokenManager("another-secret-of-some-length", "labbook").
		Issue(Principal{ID: "u1", Role: model.RoleAdmin}, time.Hour)

	if _, err := NewTokenManager(testSecret, "labbook").Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenManager_AcceptsUserIDClaim(t *testing.T) {
	claims := Claims{
		UserID: "legacy-user",
		Role:   model.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "labbook",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	p, err := NewTokenManager(testSecret, "labbook").Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.ID != "legacy-user" {
		t.Errorf("expected legacy-user, got %s", p.ID)
	}
}

func TestTokenManager_RejectsUnknownRole(t *testing.T) {
	m := NewTokenManager(testSecret, "labbook")
	raw, _ := m.Issue(Principal{ID: "u1", Role: "superuser"}, time.Hour)

	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalidClaim) {
		t.Errorf("expected ErrInvalidClaim, got %v", err)
	}
	if _, err := m.Parse(""); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestPrincipal_CanActOn(t *testing.T) {
	owner := Principal{ID: "u1", Role: model.RoleStudent}
	other := Principal{ID: "u2", Role: model.RoleTeacher}
	admin := Principal{ID: "a1", Role: model.RoleAdmin}

	if !owner.CanActOn("u1") {
		t.Error("owner should act on own resource")
	}
	if other.CanActOn("u1") {
		t.Error("non-owner should not act on resource")
	}
	if !admin.CanActOn("u1") {
		t.Error("admin should act on any resource")
	}
}

func TestFromContext(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no principal in empty context")
	}

	ctx := WithPrincipal(context.Background(), Principal{ID: "u1", Role: model.RoleStudent})
	p, ok := FromContext(ctx)
	if !ok || p.ID != "u1" {
		t.Errorf("expected principal u1, got %+v (ok=%v)", p, ok)
	}
}
