package model

import (
	"time"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusApproved  BookingStatus = "approved"
	StatusRejected  BookingStatus = "rejected"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
)

// BlockingStatuses are the statuses that occupy a slot for conflict purposes.
var BlockingStatuses = []BookingStatus{StatusPending, StatusApproved}

var transitions = map[BookingStatus][]BookingStatus{
	StatusPending:  {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s BookingStatus) Blocks() bool {
	return s == StatusPending || s == StatusApproved
}

func (s BookingStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type RecurringFrequency string

const (
	FrequencyWeekly   RecurringFrequency = "weekly"
	FrequencyBiweekly RecurringFrequency = "biweekly"
	FrequencyMonthly  RecurringFrequency = "monthly"
)

type Recurring struct {
	IsRecurring bool               `json:"is_recurring" bson:"is_recurring"`
	Frequency   RecurringFrequency `json:"frequency,omitempty" bson:"frequency,omitempty" validate:"omitempty,oneof=weekly biweekly monthly"`
	EndDate     *time.Time         `json:"end_date,omitempty" bson:"end_date,omitempty"`
}

// RecurringInput is the request form of Recurring; EndDate is a calendar day.
type RecurringInput struct {
	IsRecurring bool               `json:"is_recurring"`
	Frequency   RecurringFrequency `json:"frequency,omitempty" validate:"omitempty,oneof=weekly biweekly monthly"`
	EndDate     string             `json:"end_date,omitempty"`
}

type Booking struct {
	ID                 string        `json:"id,omitempty" bson:"_id,omitempty"`
	LabID              string        `json:"lab_id" bson:"lab_id"`
	UserID             string        `json:"user_id" bson:"user_id"`
	Title              string        `json:"title" bson:"title"`
	Description        string        `json:"description,omitempty" bson:"description,omitempty"`
	Date               time.Time     `json:"date" bson:"date"`
	StartTime          string        `json:"start_time" bson:"start_time"`
	EndTime            string        `json:"end_time" bson:"end_time"`
	Duration           int           `json:"duration" bson:"duration"`
	Status             BookingStatus `json:"status" bson:"status"`
	Participants       int           `json:"participants" bson:"participants"`
	Recurring          *Recurring    `json:"recurring,omitempty" bson:"recurring,omitempty"`
	AdminNotes         string        `json:"admin_notes,omitempty" bson:"admin_notes,omitempty"`
	CancellationReason string        `json:"cancellation_reason,omitempty" bson:"cancellation_reason,omitempty"`
	CreatedAt          time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at" bson:"updated_at"`

	Lab  *LabSummary  `json:"lab,omitempty" bson:"-"`
	User *UserSummary `json:"user,omitempty" bson:"-"`
}

// BookingInput is the create request body.
type BookingInput struct {
	LabID        string          `json:"lab_id" validate:"required,mongodb"`
	Title        string          `json:"title" validate:"required,min=5,max=200"`
	Description  string          `json:"description" validate:"max=1000"`
	Date         string          `json:"date" validate:"required"`
	StartTime    string          `json:"start_time" validate:"required,hhmm"`
	EndTime      string          `json:"end_time" validate:"required,hhmm"`
	Participants int             `json:"participants" validate:"required,min=1"`
	Recurring    *RecurringInput `json:"recurring,omitempty" validate:"omitempty"`
}

// BookingPatch carries the fields an owner or admin may change. Nil means
// unchanged.
type BookingPatch struct {
	LabID        *string         `json:"lab_id,omitempty" validate:"omitempty,mongodb"`
	Title        *string         `json:"title,omitempty" validate:"omitempty,min=5,max=200"`
	Description  *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	Date         *string         `json:"date,omitempty" validate:"omitempty"`
	StartTime    *string         `json:"start_time,omitempty" validate:"omitempty,hhmm"`
	EndTime      *string         `json:"end_time,omitempty" validate:"omitempty,hhmm"`
	Participants *int            `json:"participants,omitempty" validate:"omitempty,min=1"`
	Recurring    *RecurringInput `json:"recurring,omitempty" validate:"omitempty"`
}

// TouchesSlot reports whether the patch can move the booking's slot.
func (p *BookingPatch) TouchesSlot() bool {
	return p.LabID != nil || p.Date != nil || p.StartTime != nil || p.EndTime != nil
}

// BookingFilter is the typed query used by admin listing.
type BookingFilter struct {
	Statuses []BookingStatus
	LabID    string
	UserID   string
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Sort     string
	Page     int
	Limit    int
}

// SlotQuery selects bookings of one lab and day whose interval overlaps
// [StartTime, EndTime).
type SlotQuery struct {
	LabID     string
	Date      time.Time
	StartTime string
	EndTime   string
	Statuses  []BookingStatus
	ExcludeID string
}

// Availability is the answer to an availability check.
type Availability struct {
	Available          bool            `json:"available"`
	ConflictingBooking *ConflictSummary `json:"conflicting_booking,omitempty"`
}

type ConflictSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	User      string `json:"user,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}
