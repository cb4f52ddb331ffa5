package repository

import (
	"testing"
	"time"

	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBuildMatch(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	got := buildMatch(BookingMatch{
		From:     &from,
		To:       &to,
		LabID:    "lab-1",
		Statuses: []model.BookingStatus{model.StatusApproved, model.StatusCompleted},
	})

	dateRange, ok := got["date"].(bson.M)
	if !ok || dateRange["$gte"] != from || dateRange["$lte"] != to {
		t.Errorf("unexpected date range %v", got["date"])
	}
	if got["lab_id"] != "lab-1" {
		t.Errorf("unexpected lab filter %v", got["lab_id"])
	}
	statuses := got["status"].(bson.M)["$in"].([]model.BookingStatus)
	if len(statuses) != 2 {
		t.Errorf("unexpected status filter %v", statuses)
	}
}

func TestBuildMatch_OpenEnded(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	got := buildMatch(BookingMatch{From: &from})
	dateRange := got["date"].(bson.M)
	if _, ok := dateRange["$lte"]; ok {
		t.Error("open-ended range must not have an upper bound")
	}

	if empty := buildMatch(BookingMatch{}); len(empty) != 0 {
		t.Errorf("expected empty match, got %v", empty)
	}
}

func TestCountWhere(t *testing.T) {
	cond := countWhere(model.StatusApproved)["$sum"].(bson.M)["$cond"].(bson.A)
	if len(cond) != 3 || cond[1] != 1 || cond[2] != 0 {
		t.Fatalf("unexpected $cond %v", cond)
	}
	eq := cond[0].(bson.M)["$eq"].(bson.A)
	if eq[0] != "$status" || eq[1] != model.StatusApproved {
		t.Errorf("unexpected comparison %v", eq)
	}
}
