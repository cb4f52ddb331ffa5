package service

import (
	"context"
	"fmt"

	"labbook/pkg/model"
	"labbook/pkg/timeslot"
)

func (s *bookingService) notifyCreated(ctx context.Context, b *model.Booking) {
	ctx = s.detach(ctx)

	opts := s.bookingNotification(b, model.PriorityMedium)
	s.notifier.Notify(ctx, b.UserID,
		"Booking Created",
		fmt.Sprintf("Your booking %q has been created successfully and is pending approval.", b.Title),
		model.NotificationBookingCreated,
		opts,
	)

	requester := "a user"
	if b.User != nil && b.User.Name != "" {
		requester = b.User.Name
	}
	adminOpts := s.bookingNotification(b, model.PriorityMedium)
	adminOpts.ActionURL = s.cfg.AppBaseURL + "/admin/bookings/" + b.ID
	adminOpts.ActionLabel = "Review booking"
	s.notifier.NotifyRole(ctx, model.RoleAdmin,
		"New Booking Request",
		fmt.Sprintf("New booking %q has been submitted by %s.", b.Title, requester),
		model.NotificationBookingCreated,
		adminOpts,
	)
}

func (s *bookingService) notifyApproved(ctx context.Context, b *model.Booking) {
	ctx = s.detach(ctx)

	s.notifier.Notify(ctx, b.UserID,
		"Booking Approved",
		fmt.Sprintf("Your booking %q has been approved.", b.Title),
		model.NotificationBookingApproved,
		s.bookingNotification(b, model.PriorityHigh),
	)

	start, err := timeslot.At(b.Date, b.StartTime)
	if err != nil {
		s.cfg.Log.Warn("Skipping booking reminder", "id", b.ID, "error", err)
		return
	}
	remindAt := start.Add(-s.cfg.ReminderLead)

	reminder := s.bookingNotification(b, model.PriorityMedium)
	reminder.ExpiresAt = &remindAt
	s.notifier.Notify(ctx, b.UserID,
		"Booking Reminder",
		fmt.Sprintf("Reminder: You have a booking %q starting at %s.", b.Title, b.StartTime),
		model.NotificationBookingReminder,
		reminder,
	)
}

func (s *bookingService) bookingNotification(b *model.Booking, priority model.Priority) model.NotifyOptions {
	data := map[string]any{
		"booking_id":   b.ID,
		"title":        b.Title,
		"date":         timeslot.FormatDate(b.Date),
		"start_time":   b.StartTime,
		"end_time":     b.EndTime,
		"status":       string(b.Status),
		"participants": b.Participants,
	}
	if b.Lab != nil {
		data["lab_name"] = b.Lab.Name
		data["lab_code"] = b.Lab.Code
	}
	if b.AdminNotes != "" {
		data["admin_notes"] = b.AdminNotes
	}
	if b.CancellationReason != "" {
		data["cancellation_reason"] = b.CancellationReason
	}

	return model.NotifyOptions{
		RelatedTo:   &model.RelatedTo{Model: model.RelatedBooking, ID: b.ID},
		Priority:    priority,
		ActionURL:   s.cfg.AppBaseURL + "/bookings/" + b.ID,
		ActionLabel: "View booking",
		Data:        data,
	}
}
