package model

import "time"

// SlotLock is an advisory lock document guarding one lab-day while a booking
// is checked and written. ExpiresAt backs a TTL index so abandoned locks go
// away on their own.
type SlotLock struct {
	ID        string    `bson:"_id" json:"id"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
