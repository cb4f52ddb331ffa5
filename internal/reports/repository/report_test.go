package repository

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func stage(t *testing.T, d bson.D, key string) any {
	t.Helper()
	if len(d) != 1 || d[0].Key != key {
		t.Fatalf("expected %s stage, got %v", key, d)
	}
	return d[0].Value
}

func TestStatsPipeline(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	pipeline := statsPipeline(&from, nil)
	if len(pipeline) != 2 {
		t.Fatalf("expected match and facet stages, got %d", len(pipeline))
	}

	match := stage(t, pipeline[0], "$match").(bson.M)
	created, ok := match["created_at"].(bson.M)
	if !ok || created["$gte"] != from {
		t.Errorf("expected created_at lower bound, got %v", match)
	}
	if _, ok := created["$lte"]; ok {
		t.Error("open-ended range must not have an upper bound")
	}

	facet := stage(t, pipeline[1], "$facet").(bson.M)
	for _, key := range []string{"by_type", "by_status", "by_format", "monthly_trend"} {
		if _, ok := facet[key]; !ok {
			t.Errorf("expected %s facet", key)
		}
	}

	trend := facet["monthly_trend"].(bson.A)
	if limit := trend[len(trend)-1].(bson.M)["$limit"]; limit != trendMonths {
		t.Errorf("expected trend limited to %d months, got %v", trendMonths, limit)
	}
}

func TestStatsPipeline_Unbounded(t *testing.T) {
	match := stage(t, statsPipeline(nil, nil)[0], "$match").(bson.M)
	if len(match) != 0 {
		t.Errorf("expected empty match, got %v", match)
	}
}
