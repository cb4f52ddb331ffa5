package model

import "time"

type ReportType string

const (
	ReportBookingSummary ReportType = "booking_summary"
	ReportLabUtilization ReportType = "lab_utilization"
	ReportUserActivity   ReportType = "user_activity"
)

type ReportStatus string

const (
	ReportProcessing ReportStatus = "processing"
	ReportCompleted  ReportStatus = "completed"
	ReportFailed     ReportStatus = "failed"
)

const ReportFormatJSON = "json"

type ReportFilters struct {
	StartDate  *time.Time `json:"start_date,omitempty" bson:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty" bson:"end_date,omitempty"`
	LabID      string     `json:"lab_id,omitempty" bson:"lab_id,omitempty"`
	Department string     `json:"department,omitempty" bson:"department,omitempty"`
	Role       Role       `json:"role,omitempty" bson:"role,omitempty"`
}

type Report struct {
	ID          string         `json:"id,omitempty" bson:"_id,omitempty"`
	Title       string         `json:"title" bson:"title"`
	Description string         `json:"description,omitempty" bson:"description,omitempty"`
	Type        ReportType     `json:"type" bson:"type"`
	Format      string         `json:"format" bson:"format"`
	GeneratedBy string         `json:"generated_by" bson:"generated_by"`
	Filters     ReportFilters  `json:"filters" bson:"filters"`
	Summary     map[string]any `json:"summary,omitempty" bson:"summary,omitempty"`
	Status      ReportStatus   `json:"status" bson:"status"`
	RecordCount int            `json:"record_count" bson:"record_count"`
	Error       string         `json:"error,omitempty" bson:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at" bson:"created_at"`
}

// ReportRequest is the body of a report generation call.
type ReportRequest struct {
	Title       string `json:"title" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=1000"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
	LabID       string `json:"lab_id" validate:"omitempty,mongodb"`
	Department  string `json:"department" validate:"omitempty,max=100"`
	Role        Role   `json:"role" validate:"omitempty,oneof=admin teacher student"`
}

type StatusCount struct {
	Count             int64 `json:"count" bson:"count"`
	TotalParticipants int64 `json:"total_participants" bson:"total_participants"`
}

type DailyCount struct {
	Date  string `json:"date" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type LabCount struct {
	LabID string `json:"lab_id" bson:"_id"`
	Name  string `json:"name,omitempty" bson:"-"`
	Code  string `json:"code,omitempty" bson:"-"`
	Count int64  `json:"count" bson:"count"`
}

type BookingStats struct {
	Total       int64                  `json:"total"`
	ByStatus    map[string]StatusCount `json:"by_status"`
	Trend       []DailyCount           `json:"trend"`
	PopularLabs []LabCount             `json:"popular_labs"`
}

// LabUsage is the raw booked time of one lab in a range.
type LabUsage struct {
	LabID         string `bson:"_id"`
	BookingCount  int64  `bson:"booking_count"`
	BookedMinutes int64  `bson:"booked_minutes"`
}

type LabUtilization struct {
	LabID           string  `json:"lab_id"`
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	BookingCount    int64   `json:"booking_count"`
	BookedHours     float64 `json:"booked_hours"`
	AvailableHours  float64 `json:"available_hours"`
	UtilizationRate float64 `json:"utilization_rate"`
}

type HourCount struct {
	Hour  string `json:"hour" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

type UtilizationReport struct {
	StartDate          string           `json:"start_date"`
	EndDate            string           `json:"end_date"`
	Days               int              `json:"days"`
	Labs               []LabUtilization `json:"labs"`
	AverageUtilization float64          `json:"average_utilization"`
	PeakHours          []HourCount      `json:"peak_hours"`
}

type UserCount struct {
	UserID       string `json:"user_id" bson:"_id"`
	Name         string `json:"name,omitempty" bson:"-"`
	Email        string `json:"email,omitempty" bson:"-"`
	Count        int64  `json:"count" bson:"count"`
	Participants int64  `json:"participants" bson:"participants"`
}

type BookingSummary struct {
	StartDate         string                 `json:"start_date"`
	EndDate           string                 `json:"end_date"`
	TotalBookings     int64                  `json:"total_bookings"`
	TotalParticipants int64                  `json:"total_participants"`
	TotalHours        float64                `json:"total_hours"`
	ByStatus          map[string]StatusCount `json:"by_status"`
	ByLab             []LabCount             `json:"by_lab"`
	ByUser            []UserCount            `json:"by_user"`
	ByDay             []DailyCount           `json:"by_day"`
}

// UserBookings is the raw booking activity of one user in a range.
type UserBookings struct {
	UserID       string    `bson:"_id"`
	Total        int64     `bson:"total"`
	Approved     int64     `bson:"approved"`
	Pending      int64     `bson:"pending"`
	Participants int64     `bson:"participants"`
	FirstDate    time.Time `bson:"first_date"`
	LastDate     time.Time `bson:"last_date"`
}

type UserActivity struct {
	UserID            string     `json:"user_id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Department        string     `json:"department,omitempty"`
	Role              Role       `json:"role"`
	TotalBookings     int64      `json:"total_bookings"`
	ApprovedBookings  int64      `json:"approved_bookings"`
	PendingBookings   int64      `json:"pending_bookings"`
	TotalParticipants int64      `json:"total_participants"`
	LastBooking       *time.Time `json:"last_booking,omitempty"`
	BookingFrequency  string     `json:"booking_frequency"`
}

type UserActivityReport struct {
	StartDate     string         `json:"start_date"`
	EndDate       string         `json:"end_date"`
	TotalUsers    int            `json:"total_users"`
	ActiveUsers   int            `json:"active_users"`
	TotalBookings int64          `json:"total_bookings"`
	Users         []UserActivity `json:"users"`
}

// BucketCount is one group of a report aggregation.
type BucketCount struct {
	Key   string `json:"key" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

// ReportStats describes the stored reports themselves.
type ReportStats struct {
	TotalReports int64         `json:"total_reports" bson:"-"`
	ByType       []BucketCount `json:"by_type" bson:"by_type"`
	ByStatus     []BucketCount `json:"by_status" bson:"by_status"`
	ByFormat     []BucketCount `json:"by_format" bson:"by_format"`
	MonthlyTrend []BucketCount `json:"monthly_trend" bson:"monthly_trend"`
}
