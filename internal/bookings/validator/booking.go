package validator

import (
	"errors"
	"strings"
	"time"

	"labbook/pkg/logger"
	"labbook/pkg/model"
	"labbook/pkg/timeslot"
	"labbook/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Slot is a parsed booking slot: a UTC-midnight day and zero-padded clock
// times.
type Slot struct {
	Date      time.Time
	StartTime string
	EndTime   string
	Duration  int
}

func (s Slot) Range() timeslot.Range {
	start, _ := timeslot.Minutes(s.StartTime)
	end, _ := timeslot.Minutes(s.EndTime)
	return timeslot.Range{Start: start, End: end}
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validation.New(log)

	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateInput checks a create request. The returned error is a
// validation.ValidationErrors.
func (v *BookingValidator) ValidateInput(in *model.BookingInput) error {
	var errs validation.ValidationErrors
	if err := validation.Struct(v.validate, in); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}

	// Slot and recurring checks only make sense on well-formed fields.
	if len(errs) == 0 {
		slot, err := ParseSlot(in.Date, in.StartTime, in.EndTime)
		if err != nil {
			errs = append(errs, asValidationErrors(err)...)
		} else if _, err := ParseRecurring(in.Recurring, slot.Date); err != nil {
			errs = append(errs, asValidationErrors(err)...)
		}
	}

	if len(errs) > 0 {
		v.logger.Debug("Booking input validation failed", "errors", errs.Error())
		return errs
	}
	return nil
}

// ValidatePatch checks the fields present in an update. Cross-field rules are
// checked again by the caller on the merged booking.
func (v *BookingValidator) ValidatePatch(p *model.BookingPatch) error {
	var errs validation.ValidationErrors
	if err := validation.Struct(v.validate, p); err != nil {
		if !errors.As(err, &errs) {
			return err
		}
	}

	if p.Date != nil {
		if _, err := timeslot.ParseDate(*p.Date); err != nil {
			errs = append(errs, validation.ValidationError{Field: "date", Message: "date must be in YYYY-MM-DD or RFC3339 format"})
		}
	}

	if len(errs) > 0 {
		v.logger.Debug("Booking patch validation failed", "errors", errs.Error())
		return errs
	}
	return nil
}

// ValidateAvailabilityQuery checks the parameters of an availability check.
func (v *BookingValidator) ValidateAvailabilityQuery(labID, date, start, end string) (Slot, error) {
	var errs validation.ValidationErrors
	if labID == "" || date == "" || start == "" || end == "" {
		return Slot{}, validation.Field("query", "Please provide lab, date, startTime, and endTime")
	}
	if !primitive.IsValidObjectID(labID) {
		errs = append(errs, validation.ValidationError{Field: "lab", Message: "lab must be a valid ID"})
	}

	slot, err := ParseSlot(date, start, end)
	if err != nil {
		errs = append(errs, asValidationErrors(err)...)
	}
	if len(errs) > 0 {
		return Slot{}, errs
	}
	return slot, nil
}

// ParseSlot normalizes a day and a clock range.
func ParseSlot(date, start, end string) (Slot, error) {
	var errs validation.ValidationErrors

	day, err := timeslot.ParseDate(date)
	if err != nil {
		errs = append(errs, validation.ValidationError{Field: "date", Message: "date must be in YYYY-MM-DD or RFC3339 format"})
	}

	startTime, err := timeslot.Normalize(start)
	if err != nil {
		errs = append(errs, validation.ValidationError{Field: "start_time", Message: "start_time must be in HH:MM 24-hour format"})
	}
	endTime, err := timeslot.Normalize(end)
	if err != nil {
		errs = append(errs, validation.ValidationError{Field: "end_time", Message: "end_time must be in HH:MM 24-hour format"})
	}
	if len(errs) > 0 {
		return Slot{}, errs
	}

	duration, err := timeslot.Duration(startTime, endTime)
	if err != nil {
		return Slot{}, validation.Field("end_time", "End time must be after start time")
	}

	return Slot{
		Date:      day,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
	}, nil
}

// ParseRecurring converts the request form. A nil or non-recurring input
// yields nil.
func ParseRecurring(in *model.RecurringInput, day time.Time) (*model.Recurring, error) {
	if in == nil || !in.IsRecurring {
		return nil, nil
	}

	if in.Frequency == "" {
		return nil, validation.Field("recurring.frequency", "Frequency is required for recurring bookings")
	}
	switch in.Frequency {
	case model.FrequencyWeekly, model.FrequencyBiweekly, model.FrequencyMonthly:
	default:
		return nil, validation.Field("recurring.frequency", "frequency must be one of: weekly biweekly monthly")
	}

	if strings.TrimSpace(in.EndDate) == "" {
		return nil, validation.Field("recurring.end_date", "End date is required for recurring bookings")
	}
	endDate, err := timeslot.ParseDate(in.EndDate)
	if err != nil {
		return nil, validation.Field("recurring.end_date", "end_date must be in YYYY-MM-DD or RFC3339 format")
	}
	if endDate.Before(day) {
		return nil, validation.Field("recurring.end_date", "End date must be on or after the booking date")
	}

	return &model.Recurring{
		IsRecurring: true,
		Frequency:   in.Frequency,
		EndDate:     &endDate,
	}, nil
}

func asValidationErrors(err error) validation.ValidationErrors {
	var errs validation.ValidationErrors
	if errors.As(err, &errs) {
		return errs
	}
	return validation.Field("error", err.Error())
}
