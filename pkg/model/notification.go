package model

import "time"

type NotificationType string

const (
	NotificationBookingCreated   NotificationType = "booking_created"
	NotificationBookingApproved  NotificationType = "booking_approved"
	NotificationBookingRejected  NotificationType = "booking_rejected"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationBookingReminder  NotificationType = "booking_reminder"
	NotificationSystemAlert      NotificationType = "system_alert"
	NotificationAnnouncement     NotificationType = "announcement"
	NotificationReportReady      NotificationType = "report_ready"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

const (
	RelatedBooking = "Booking"
	RelatedLab     = "Lab"
	RelatedArticle = "Article"
	RelatedReport  = "Report"
	RelatedUser    = "User"
)

type RelatedTo struct {
	Model string `json:"model" bson:"model" validate:"required,oneof=Booking Lab Article Report User"`
	ID    string `json:"id" bson:"id" validate:"required"`
}

type Notification struct {
	ID          string           `json:"id,omitempty" bson:"_id,omitempty"`
	UserID      string           `json:"user_id" bson:"user_id"`
	Title       string           `json:"title" bson:"title"`
	Message     string           `json:"message" bson:"message"`
	Type        NotificationType `json:"type" bson:"type"`
	RelatedTo   *RelatedTo       `json:"related_to,omitempty" bson:"related_to,omitempty"`
	Data        map[string]any   `json:"data,omitempty" bson:"data,omitempty"`
	IsRead      bool             `json:"is_read" bson:"is_read"`
	Priority    Priority         `json:"priority" bson:"priority"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	ActionURL   string           `json:"action_url,omitempty" bson:"action_url,omitempty"`
	ActionLabel string           `json:"action_label,omitempty" bson:"action_label,omitempty"`
	CreatedAt   time.Time        `json:"created_at" bson:"created_at"`
}

type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Type       NotificationType
	Page       int
	Limit      int
}

type NotificationTypeCount struct {
	Type   NotificationType `json:"type" bson:"_id"`
	Total  int64            `json:"total" bson:"total"`
	Unread int64            `json:"unread" bson:"unread"`
}

// NotificationStats covers every user's notifications. Daily holds the most
// recent days that saw any, newest first.
type NotificationStats struct {
	ByType             []NotificationTypeCount `json:"by_type" bson:"by_type"`
	Daily              []DailyCount            `json:"daily" bson:"daily"`
	TotalNotifications int64                   `json:"total_notifications" bson:"-"`
	TotalUnread        int64                   `json:"total_unread" bson:"-"`
}

// Announcement is an admin broadcast to a role, or to everyone when Role is
// empty.
type Announcement struct {
	Title     string   `json:"title" validate:"required,max=200"`
	Message   string   `json:"message" validate:"required,max=1000"`
	Role      Role     `json:"role,omitempty" validate:"omitempty,oneof=admin teacher student"`
	Priority  Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	SendEmail bool     `json:"send_email"`
}

// EmailJob is the payload placed on the mail queue.
type EmailJob struct {
	To      string           `json:"to"`
	Name    string           `json:"name,omitempty"`
	UserID  string           `json:"user_id"`
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message"`
	Data    map[string]any   `json:"data,omitempty"`

	ActionURL   string `json:"action_url,omitempty"`
	ActionLabel string `json:"action_label,omitempty"`
}

// NotifyOptions carries the optional parts of a notification. The zero value
// sends an email with medium priority.
type NotifyOptions struct {
	RelatedTo   *RelatedTo
	Priority    Priority
	ExpiresAt   *time.Time
	ActionURL   string
	ActionLabel string
	Data        map[string]any
	SkipEmail   bool
}
