package model

import "time"

const (
	EquipmentAvailable    = "available"
	EquipmentMaintenance  = "maintenance"
	EquipmentOutOfService = "out_of_service"
)

var Facilities = []string{
	"projector",
	"whiteboard",
	"air_conditioner",
	"wifi",
	"computers",
	"sound_system",
}

type Equipment struct {
	Name     string `json:"name" bson:"name" validate:"required,max=100"`
	Quantity int    `json:"quantity" bson:"quantity" validate:"min=0"`
	Status   string `json:"status" bson:"status" validate:"omitempty,oneof=available maintenance out_of_service"`
}

type Location struct {
	Building string `json:"building" bson:"building" validate:"required,max=100"`
	Floor    string `json:"floor,omitempty" bson:"floor,omitempty" validate:"max=20"`
	Room     string `json:"room" bson:"room" validate:"required,max=50"`
}

type OperatingHours struct {
	Open  string `json:"open" bson:"open" validate:"required,hhmm"`
	Close string `json:"close" bson:"close" validate:"required,hhmm"`
}

type Lab struct {
	ID             string         `json:"id,omitempty" bson:"_id,omitempty"`
	Name           string         `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Code           string         `json:"code" bson:"code" validate:"required,labcode"`
	Description    string         `json:"description,omitempty" bson:"description,omitempty" validate:"max=500"`
	Capacity       int            `json:"capacity" bson:"capacity" validate:"required,min=1,max=100"`
	Equipment      []Equipment    `json:"equipment" bson:"equipment" validate:"omitempty,dive"`
	Facilities     []string       `json:"facilities" bson:"facilities" validate:"omitempty,dive,oneof=projector whiteboard air_conditioner wifi computers sound_system"`
	Location       Location       `json:"location" bson:"location" validate:"required"`
	OperatingHours OperatingHours `json:"operating_hours" bson:"operating_hours" validate:"required"`
	IsActive       bool           `json:"is_active" bson:"is_active"`
	MaintainedBy   string         `json:"maintained_by,omitempty" bson:"maintained_by,omitempty" validate:"omitempty,mongodb"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" bson:"updated_at"`
}

// IsAvailable is true when the lab is active and every piece of equipment
// is in service.
func (l *Lab) IsAvailable() bool {
	if !l.IsActive {
		return false
	}
	for _, e := range l.Equipment {
		if e.Status != "" && e.Status != EquipmentAvailable {
			return false
		}
	}
	return true
}

func (l *Lab) Summary() *LabSummary {
	return &LabSummary{
		ID:       l.ID,
		Name:     l.Name,
		Code:     l.Code,
		Location: l.Location,
	}
}

type LabSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Code     string   `json:"code"`
	Location Location `json:"location"`
}

type LabUpdate struct {
	Name           *string         `json:"name,omitempty" validate:"omitempty,min=2,max=100"`
	Code           *string         `json:"code,omitempty" validate:"omitempty,labcode"`
	Description    *string         `json:"description,omitempty" validate:"omitempty,max=500"`
	Capacity       *int            `json:"capacity,omitempty" validate:"omitempty,min=1,max=100"`
	Equipment      *[]Equipment    `json:"equipment,omitempty" validate:"omitempty,dive"`
	Facilities     *[]string       `json:"facilities,omitempty" validate:"omitempty,dive,oneof=projector whiteboard air_conditioner wifi computers sound_system"`
	Location       *Location       `json:"location,omitempty" validate:"omitempty"`
	OperatingHours *OperatingHours `json:"operating_hours,omitempty" validate:"omitempty"`
	MaintainedBy   *string         `json:"maintained_by,omitempty" validate:"omitempty,mongodb"`
}

type LabFilter struct {
	Search      string
	Building    string
	Facility    string
	IsActive    *bool
	MinCapacity int
	Sort        string
	Page        int
	Limit       int
}

// LabDetails is a lab together with its booking counters and upcoming
// approved bookings.
type LabDetails struct {
	*Lab
	IsAvailable      bool             `json:"is_available"`
	BookingStats     map[string]int64 `json:"booking_stats"`
	UpcomingBookings []*Booking       `json:"upcoming_bookings"`
}

// EquipmentUpdate patches one item of a lab's equipment list.
type EquipmentUpdate struct {
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Quantity *int    `json:"quantity,omitempty" validate:"omitempty,min=0"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=available maintenance out_of_service"`
}

// LabInventory is the lab-side half of LabStats.
type LabInventory struct {
	Total         int64                  `bson:"total"`
	Active        int64                  `bson:"active"`
	TotalCapacity int64                  `bson:"total_capacity"`
	Equipment     []EquipmentStatusCount `bson:"equipment"`
}

type EquipmentStatusCount struct {
	Status   string `json:"status" bson:"_id"`
	Items    int64  `json:"items" bson:"items"`
	Quantity int64  `json:"quantity" bson:"quantity"`
	Labs     int64  `json:"labs" bson:"labs"`
}

// LabBookingCount is the raw booking tally of one lab.
type LabBookingCount struct {
	LabID    string `bson:"_id"`
	Total    int64  `bson:"total"`
	Approved int64  `bson:"approved"`
}

type LabApprovalRate struct {
	LabID            string  `json:"lab_id"`
	Name             string  `json:"name"`
	Code             string  `json:"code"`
	TotalBookings    int64   `json:"total_bookings"`
	ApprovedBookings int64   `json:"approved_bookings"`
	ApprovalRate     float64 `json:"approval_rate"`
}

type LabStats struct {
	Total         int64                  `json:"total"`
	Active        int64                  `json:"active"`
	Inactive      int64                  `json:"inactive"`
	TotalCapacity int64                  `json:"total_capacity"`
	Equipment     []EquipmentStatusCount `json:"equipment"`
	Utilization   []LabApprovalRate      `json:"utilization"`
}
