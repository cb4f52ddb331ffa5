package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bookingserrors "labbook/internal/bookings/errors"
	"labbook/internal/bookings/repository"
	"labbook/internal/bookings/validator"
	labserrors "labbook/internal/labs/errors"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/lock"
	"labbook/pkg/model"
	"labbook/pkg/sanitizer"
	"labbook/pkg/timeslot"
	"labbook/pkg/validation"
)

const (
	defaultApproveNotes = "Booking approved"
	defaultRejectNotes  = "Booking rejected"
	defaultCancelReason = "Cancelled by user"
	noReasonProvided    = "No reason provided"
)

// LabReader is the part of the lab directory the booking core reads.
type LabReader interface {
	FindByID(ctx context.Context, id string) (*model.Lab, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.Lab, error)
}

// UserReader resolves display fields for booking owners.
type UserReader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*model.User, error)
}

// Notifier delivers notifications in the background. Implementations must
// not block on delivery.
type Notifier interface {
	Notify(ctx context.Context, userID, title, message string, typ model.NotificationType, opts model.NotifyOptions)
	NotifyRole(ctx context.Context, role model.Role, title, message string, typ model.NotificationType, opts model.NotifyOptions)
}

type BookingService interface {
	Create(ctx context.Context, in *model.BookingInput, principal auth.Principal) (*model.Booking, error)
	Approve(ctx context.Context, id, adminNotes string, principal auth.Principal) (*model.Booking, error)
	Reject(ctx context.Context, id, adminNotes string, principal auth.Principal) (*model.Booking, error)
	Cancel(ctx context.Context, id, reason string, principal auth.Principal) (*model.Booking, error)
	Complete(ctx context.Context, id string, principal auth.Principal) (*model.Booking, error)
	Update(ctx context.Context, id string, patch *model.BookingPatch, principal auth.Principal) (*model.Booking, error)
	Delete(ctx context.Context, id string, principal auth.Principal) error
	Get(ctx context.Context, id string, principal auth.Principal) (*model.Booking, error)
	List(ctx context.Context, filter model.BookingFilter, principal auth.Principal) ([]*model.Booking, int64, error)
	ListMine(ctx context.Context, principal auth.Principal) ([]*model.Booking, error)
	ListForLab(ctx context.Context, labID string, from, to *time.Time) ([]*model.Booking, error)
	CheckAvailability(ctx context.Context, labID, date, startTime, endTime string) (*model.Availability, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	labs      LabReader
	users     UserReader
	notifier  Notifier
	locker    lock.Locker
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	labs LabReader,
	users UserReader,
	notifier Notifier,
	locker lock.Locker,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		labs:      labs,
		users:     users,
		notifier:  notifier,
		locker:    locker,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) Create(ctx context.Context, in *model.BookingInput, principal auth.Principal) (*model.Booking, error) {
	if principal.ID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	s.sanitizeInput(in)
	if err := s.validator.ValidateInput(in); err != nil {
		return nil, s.validationError(err)
	}
	slot, err := validator.ParseSlot(in.Date, in.StartTime, in.EndTime)
	if err != nil {
		return nil, s.validationError(err)
	}
	recurring, err := validator.ParseRecurring(in.Recurring, slot.Date)
	if err != nil {
		return nil, s.validationError(err)
	}

	lab, err := s.loadLab(ctx, in.LabID)
	if err != nil {
		return nil, err
	}
	if !lab.IsActive {
		return nil, apperrors.InvalidInput("Lab not found or not available")
	}
	if in.Participants > lab.Capacity {
		return nil, capacityError(lab)
	}
	if slot.Date.Before(s.today()) {
		return nil, apperrors.InvalidInput("Cannot book for past dates")
	}

	booking := &model.Booking{
		LabID:        lab.ID,
		UserID:       principal.ID,
		Title:        in.Title,
		Description:  in.Description,
		Date:         slot.Date,
		StartTime:    slot.StartTime,
		EndTime:      slot.EndTime,
		Duration:     slot.Duration,
		Status:       model.StatusPending,
		Participants: in.Participants,
		Recurring:    recurring,
	}

	err = s.withSlotLock(ctx, []string{lock.SlotKey(lab.ID, slot.Date)}, func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if err := s.ensureFree(txCtx, model.SlotQuery{
				LabID:     lab.ID,
				Date:      slot.Date,
				StartTime: slot.StartTime,
				EndTime:   slot.EndTime,
				Statuses:  model.BlockingStatuses,
			}, "Time slot overlaps with existing booking"); err != nil {
				return err
			}
			if err := checkOperatingHours(lab, slot); err != nil {
				return err
			}
			if err := s.repo.Create(txCtx, booking); err != nil {
				return apperrors.Internal("Failed to create booking", err)
			}
			return nil
		})
	})
	if err != nil {
		s.logFailure("Failed to create booking", err, "lab_id", lab.ID, "date", timeslot.FormatDate(slot.Date))
		return nil, err
	}

	s.cfg.Log.Info("Booking created successfully",
		"id", booking.ID,
		"lab_id", booking.LabID,
		"user_id", booking.UserID,
		"date", timeslot.FormatDate(booking.Date),
		"start_time", booking.StartTime,
		"end_time", booking.EndTime,
	)

	booking.Lab = lab.Summary()
	s.hydrateUsers(ctx, []*model.Booking{booking})
	s.notifyCreated(ctx, booking)

	return booking, nil
}

func (s *bookingService) Approve(ctx context.Context, id, adminNotes string, principal auth.Principal) (*model.Booking, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can approve bookings")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(booking.Status, model.StatusApproved) {
		return nil, apperrors.InvalidTransition(string(booking.Status), string(model.StatusApproved))
	}

	notes := defaultText(sanitizer.Multiline(adminNotes), defaultApproveNotes)

	err = s.withSlotLock(ctx, []string{lock.SlotKey(booking.LabID, booking.Date)}, func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if err := s.ensureFree(txCtx, model.SlotQuery{
				LabID:     booking.LabID,
				Date:      booking.Date,
				StartTime: booking.StartTime,
				EndTime:   booking.EndTime,
				Statuses:  []model.BookingStatus{model.StatusApproved},
				ExcludeID: booking.ID,
			}, "Time slot overlaps with existing approved booking"); err != nil {
				return err
			}
			return s.transition(txCtx, booking, repository.StatusChange{
				From:       model.StatusPending,
				To:         model.StatusApproved,
				AdminNotes: &notes,
			})
		})
	})
	if err != nil {
		s.logFailure("Failed to approve booking", err, "id", id)
		return nil, err
	}

	booking.Status = model.StatusApproved
	booking.AdminNotes = notes
	s.cfg.Log.Info("Booking approved", "id", booking.ID, "admin_id", principal.ID)

	s.hydrate(ctx, []*model.Booking{booking})
	s.notifyApproved(ctx, booking)

	return booking, nil
}

func (s *bookingService) Reject(ctx context.Context, id, adminNotes string, principal auth.Principal) (*model.Booking, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can reject bookings")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(booking.Status, model.StatusRejected) {
		return nil, apperrors.InvalidTransition(string(booking.Status), string(model.StatusRejected))
	}

	reason := sanitizer.Multiline(adminNotes)
	notes := defaultText(reason, defaultRejectNotes)

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.transition(txCtx, booking, repository.StatusChange{
			From:       model.StatusPending,
			To:         model.StatusRejected,
			AdminNotes: &notes,
		})
	})
	if err != nil {
		s.logFailure("Failed to reject booking", err, "id", id)
		return nil, err
	}

	booking.Status = model.StatusRejected
	booking.AdminNotes = notes
	s.cfg.Log.Info("Booking rejected", "id", booking.ID, "admin_id", principal.ID)

	s.hydrate(ctx, []*model.Booking{booking})
	s.notifier.Notify(s.detach(ctx), booking.UserID,
		"Booking Rejected",
		fmt.Sprintf("Your booking %q has been rejected. Reason: %s", booking.Title, defaultText(reason, noReasonProvided)),
		model.NotificationBookingRejected,
		s.bookingNotification(booking, model.PriorityMedium),
	)

	return booking, nil
}

func (s *bookingService) Cancel(ctx context.Context, id, reason string, principal auth.Principal) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanActOn(booking.UserID) {
		return nil, apperrors.Forbidden("Not authorized to cancel this booking")
	}
	if !model.CanTransition(booking.Status, model.StatusCancelled) {
		return nil, apperrors.InvalidTransition(string(booking.Status), string(model.StatusCancelled))
	}

	if !principal.IsAdmin() {
		start, err := timeslot.At(booking.Date, booking.StartTime)
		if err != nil {
			return nil, apperrors.Internal("Stored booking has an invalid start time", err)
		}
		if start.Sub(s.now()) < s.cfg.CancellationWindow {
			return nil, apperrors.TooLateToCancel(formatWindow(s.cfg.CancellationWindow))
		}
	}

	cancellation := defaultText(sanitizer.Multiline(reason), defaultCancelReason)

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.transition(txCtx, booking, repository.StatusChange{
			From:               booking.Status,
			To:                 model.StatusCancelled,
			CancellationReason: &cancellation,
		})
	})
	if err != nil {
		s.logFailure("Failed to cancel booking", err, "id", id)
		return nil, err
	}

	booking.Status = model.StatusCancelled
	booking.CancellationReason = cancellation
	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "by", principal.ID)

	s.hydrate(ctx, []*model.Booking{booking})
	s.notifier.Notify(s.detach(ctx), booking.UserID,
		"Booking Cancelled",
		fmt.Sprintf("Your booking %q has been cancelled.", booking.Title),
		model.NotificationBookingCancelled,
		s.bookingNotification(booking, model.PriorityMedium),
	)

	return booking, nil
}

func (s *bookingService) Complete(ctx context.Context, id string, principal auth.Principal) (*model.Booking, error) {
	if !principal.IsAdmin() {
		return nil, apperrors.Forbidden("Only admins can complete bookings")
	}

	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(booking.Status, model.StatusCompleted) {
		return nil, apperrors.InvalidTransition(string(booking.Status), string(model.StatusCompleted))
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		return s.transition(txCtx, booking, repository.StatusChange{
			From: model.StatusApproved,
			To:   model.StatusCompleted,
		})
	})
	if err != nil {
		s.logFailure("Failed to complete booking", err, "id", id)
		return nil, err
	}

	booking.Status = model.StatusCompleted
	s.cfg.Log.Info("Booking completed", "id", booking.ID)

	s.hydrate(ctx, []*model.Booking{booking})
	return booking, nil
}

func (s *bookingService) Update(ctx context.Context, id string, patch *model.BookingPatch, principal auth.Principal) (*model.Booking, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanActOn(existing.UserID) {
		return nil, apperrors.Forbidden("Not authorized to update this booking")
	}
	if existing.Status == model.StatusCompleted || existing.Status == model.StatusCancelled {
		return nil, apperrors.InvalidInput("Cannot modify completed or cancelled bookings")
	}
	if existing.Status == model.StatusApproved && s.hasStarted(existing) {
		return nil, apperrors.InvalidInput("Cannot modify completed or ongoing approved bookings")
	}

	s.sanitizePatch(patch)
	if err := s.validator.ValidatePatch(patch); err != nil {
		s.cfg.Log.Warn("Booking update validation failed", "id", id, "error", err)
		return nil, s.validationError(err)
	}

	merged, slot, err := s.mergeBookingPatch(existing, patch)
	if err != nil {
		return nil, err
	}

	needsLab := patch.TouchesSlot() || patch.Participants != nil
	var lab *model.Lab
	if needsLab {
		lab, err = s.loadLab(ctx, merged.LabID)
		if err != nil {
			return nil, err
		}
		if merged.LabID != existing.LabID && !lab.IsActive {
			return nil, apperrors.InvalidInput("Lab not found or not available")
		}
		if merged.Participants > lab.Capacity {
			return nil, capacityError(lab)
		}
	}
	if patch.Date != nil && merged.Date.Before(s.today()) {
		return nil, apperrors.InvalidInput("Cannot book for past dates")
	}

	write := func(ctx context.Context) error {
		return s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
			if patch.TouchesSlot() {
				if err := s.ensureFree(txCtx, model.SlotQuery{
					LabID:     merged.LabID,
					Date:      merged.Date,
					StartTime: merged.StartTime,
					EndTime:   merged.EndTime,
					Statuses:  model.BlockingStatuses,
					ExcludeID: merged.ID,
				}, "Time slot overlaps with existing booking"); err != nil {
					return err
				}
				if err := checkOperatingHours(lab, slot); err != nil {
					return err
				}
			}
			if err := s.repo.Update(txCtx, id, merged); err != nil {
				if errors.Is(err, bookingserrors.ErrNotFound) {
					return apperrors.NotFoundWithID("Booking", id)
				}
				return apperrors.Internal("Failed to update booking", err)
			}
			return nil
		})
	}

	if patch.TouchesSlot() {
		err = s.withSlotLock(ctx, []string{
			lock.SlotKey(existing.LabID, existing.Date),
			lock.SlotKey(merged.LabID, merged.Date),
		}, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		s.logFailure("Failed to update booking", err, "id", id)
		return nil, err
	}

	s.cfg.Log.Info("Booking updated successfully", "id", id)

	s.hydrate(ctx, []*model.Booking{merged})
	return merged, nil
}

func (s *bookingService) Delete(ctx context.Context, id string, principal auth.Principal) error {
	booking, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !principal.CanActOn(booking.UserID) {
		return apperrors.Forbidden("Not authorized to delete this booking")
	}
	if booking.Status == model.StatusApproved && s.hasStarted(booking) {
		return apperrors.InvalidInput("Cannot delete completed or ongoing approved bookings")
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, bookingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Booking", id)
			}
			if errors.Is(err, bookingserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid booking ID format")
			}
			return apperrors.Internal("Failed to delete booking", err)
		}
		return nil
	})
	if err != nil {
		s.logFailure("Failed to delete booking", err, "id", id)
		return err
	}

	s.cfg.Log.Info("Booking deleted successfully", "id", id, "by", principal.ID)
	return nil
}

func (s *bookingService) Get(ctx context.Context, id string, principal auth.Principal) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !principal.CanActOn(booking.UserID) {
		return nil, apperrors.Forbidden("Not authorized to access this booking")
	}

	s.hydrate(ctx, []*model.Booking{booking})
	return booking, nil
}

func (s *bookingService) List(ctx context.Context, filter model.BookingFilter, principal auth.Principal) ([]*model.Booking, int64, error) {
	if !principal.IsAdmin() {
		return nil, 0, apperrors.Forbidden("Only admins can list all bookings")
	}
	if !repository.ValidSort(filter.Sort) {
		return nil, 0, apperrors.InvalidInput("sort must use date, startTime or createdAt")
	}
	for _, status := range filter.Statuses {
		if !status.Valid() {
			return nil, 0, apperrors.InvalidInput(fmt.Sprintf("unknown booking status: %s", status))
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateTo.Before(*filter.DateFrom) {
		return nil, 0, apperrors.InvalidInput("endDate must be on or after startDate")
	}
	filter.Search = sanitizer.Text(filter.Search)

	var count int64
	var bookings []*model.Booking
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx, filter)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", errCount)
			errCount = apperrors.Internal("Failed to count bookings", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		bookings, errFind = s.repo.List(ctx, filter)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list bookings", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve bookings", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	s.hydrate(ctx, bookings)
	return bookings, count, nil
}

func (s *bookingService) ListMine(ctx context.Context, principal auth.Principal) ([]*model.Booking, error) {
	if principal.ID == "" {
		return nil, apperrors.Unauthorized("Authentication required")
	}

	bookings, err := s.repo.FindByUser(ctx, principal.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to list user bookings", "user_id", principal.ID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	s.hydrateLabs(ctx, bookings)
	return bookings, nil
}

func (s *bookingService) ListForLab(ctx context.Context, labID string, from, to *time.Time) ([]*model.Booking, error) {
	if labID == "" {
		return nil, apperrors.InvalidInput("Lab ID cannot be empty")
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, apperrors.InvalidInput("endDate must be on or after startDate")
	}

	bookings, err := s.repo.FindByLab(ctx, labID, from, to)
	if err != nil {
		s.cfg.Log.Error("Failed to list lab bookings", "lab_id", labID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}

	s.hydrateUsers(ctx, bookings)
	return bookings, nil
}

func (s *bookingService) CheckAvailability(ctx context.Context, labID, date, startTime, endTime string) (*model.Availability, error) {
	slot, err := s.validator.ValidateAvailabilityQuery(labID, date, startTime, endTime)
	if err != nil {
		return nil, s.validationError(err)
	}

	conflicts, err := s.repo.FindConflicts(ctx, model.SlotQuery{
		LabID:     labID,
		Date:      slot.Date,
		StartTime: slot.StartTime,
		EndTime:   slot.EndTime,
		Statuses:  model.BlockingStatuses,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to check availability", "lab_id", labID, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}

	if len(conflicts) == 0 {
		return &model.Availability{Available: true}, nil
	}

	first := conflicts[0]
	s.hydrateUsers(ctx, []*model.Booking{first})
	return &model.Availability{
		Available:          false,
		ConflictingBooking: conflictSummary(first),
	}, nil
}

// --- Helpers ---

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", id)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *bookingService) loadLab(ctx context.Context, id string) (*model.Lab, error) {
	lab, err := s.labs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, labserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Lab", id)
		}
		if errors.Is(err, labserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid lab ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve lab", err)
	}
	return lab, nil
}

// withSlotLock runs fn while holding every slot key. Lock contention past the
// configured wait is reported as a 409. fn must finish within the lock lease;
// its context is cancelled once the lease is spent.
func (s *bookingService) withSlotLock(ctx context.Context, keys []string, fn func(context.Context) error) error {
	unlock, err := lock.LockAll(ctx, s.locker, keys...)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return apperrors.Conflict("This time slot is being booked by another request. Please try again.")
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return apperrors.Timeout("Timed out waiting for the booking slot")
		}
		return apperrors.Internal("Failed to acquire slot lock", err)
	}
	defer func() {
		if releaseErr := unlock(context.WithoutCancel(ctx)); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release slot lock", "keys", keys, "error", releaseErr)
		}
	}()

	leaseCtx := ctx
	if lease := lock.Lease(s.cfg.LockTTL); lease > 0 {
		var cancel context.CancelFunc
		leaseCtx, cancel = context.WithTimeout(ctx, lease)
		defer cancel()
	}

	err = fn(leaseCtx)
	if err != nil && ctx.Err() == nil && errors.Is(leaseCtx.Err(), context.DeadlineExceeded) {
		s.cfg.Log.Warn("Slot lock lease expired before the booking write finished", "keys", keys, "lock_ttl", s.cfg.LockTTL, "error", err)
		return apperrors.Timeout("The booking could not be completed in time. Please try again.")
	}
	return err
}

func (s *bookingService) ensureFree(ctx context.Context, query model.SlotQuery, message string) error {
	conflicts, err := s.repo.FindConflicts(ctx, query)
	if err != nil {
		return apperrors.Internal("Failed to check existing bookings", err)
	}
	if len(conflicts) == 0 {
		return nil
	}

	first := conflicts[0]
	return apperrors.SlotConflict(message, map[string]any{
		"conflicting_booking": map[string]any{
			"id":         first.ID,
			"start_time": first.StartTime,
			"end_time":   first.EndTime,
			"status":     first.Status,
		},
	})
}

func (s *bookingService) transition(ctx context.Context, booking *model.Booking, change repository.StatusChange) error {
	if err := s.repo.Transition(ctx, booking.ID, change); err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrStatusChanged):
			return apperrors.Conflict("Booking was modified by another request. Please reload and try again.")
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return apperrors.InvalidInput("Invalid booking ID format")
		default:
			return apperrors.Internal("Failed to update booking status", err)
		}
	}
	return nil
}

func (s *bookingService) mergeBookingPatch(existing *model.Booking, patch *model.BookingPatch) (*model.Booking, validator.Slot, error) {
	merged := *existing

	if patch.LabID != nil {
		merged.LabID = *patch.LabID
	}
	if patch.Title != nil {
		merged.Title = *patch.Title
	}
	if patch.Description != nil {
		merged.Description = *patch.Description
	}
	if patch.Participants != nil {
		merged.Participants = *patch.Participants
	}

	date := timeslot.FormatDate(existing.Date)
	if patch.Date != nil {
		date = *patch.Date
	}
	start := existing.StartTime
	if patch.StartTime != nil {
		start = *patch.StartTime
	}
	end := existing.EndTime
	if patch.EndTime != nil {
		end = *patch.EndTime
	}

	slot, err := validator.ParseSlot(date, start, end)
	if err != nil {
		return nil, validator.Slot{}, s.validationError(err)
	}
	merged.Date = slot.Date
	merged.StartTime = slot.StartTime
	merged.EndTime = slot.EndTime
	merged.Duration = slot.Duration

	if patch.Recurring != nil {
		recurring, err := validator.ParseRecurring(patch.Recurring, merged.Date)
		if err != nil {
			return nil, validator.Slot{}, s.validationError(err)
		}
		merged.Recurring = recurring
	} else if merged.Recurring != nil && merged.Recurring.EndDate != nil && merged.Recurring.EndDate.Before(merged.Date) {
		return nil, validator.Slot{}, s.validationError(validation.Field("recurring.end_date", "End date must be on or after the booking date"))
	}

	merged.Lab = nil
	merged.User = nil
	return &merged, slot, nil
}

func (s *bookingService) sanitizeInput(in *model.BookingInput) {
	in.LabID = sanitizer.Text(in.LabID)
	in.Title = sanitizer.Text(in.Title)
	in.Description = sanitizer.Multiline(in.Description)
	in.Date = sanitizer.Text(in.Date)
	in.StartTime = sanitizer.Text(in.StartTime)
	in.EndTime = sanitizer.Text(in.EndTime)
}

func (s *bookingService) sanitizePatch(p *model.BookingPatch) {
	sanitizeField(p.LabID, sanitizer.Text)
	sanitizeField(p.Title, sanitizer.Text)
	sanitizeField(p.Description, sanitizer.Multiline)
	sanitizeField(p.Date, sanitizer.Text)
	sanitizeField(p.StartTime, sanitizer.Text)
	sanitizeField(p.EndTime, sanitizer.Text)
}

func sanitizeField(field *string, fn func(string) string) {
	if field != nil {
		*field = fn(*field)
	}
}

func (s *bookingService) validationError(err error) error {
	var errs validation.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation("Booking validation failed", errs.Details())
	}
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.InvalidInput(err.Error())
}

func (s *bookingService) today() time.Time {
	return timeslot.Day(s.now())
}

func (s *bookingService) hasStarted(b *model.Booking) bool {
	start, err := timeslot.At(b.Date, b.StartTime)
	if err != nil {
		return b.Date.Before(s.today())
	}
	return !start.After(s.now())
}

func (s *bookingService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.StatusCode() < 500 {
		s.cfg.Log.Warn(msg, args...)
		return
	}
	s.cfg.Log.Error(msg, args...)
}

// detach keeps request values such as the request ID but drops the request
// deadline, since notifications outlive the response.
func (s *bookingService) detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func checkOperatingHours(lab *model.Lab, slot validator.Slot) error {
	hours, err := timeslot.ParseRange(lab.OperatingHours.Open, lab.OperatingHours.Close)
	if err != nil {
		return apperrors.Internal("Lab has invalid operating hours", err)
	}
	if !slot.Range().Within(hours) {
		return apperrors.InvalidInput(fmt.Sprintf(
			"Booking time must be within lab operating hours (%s - %s)",
			lab.OperatingHours.Open,
			lab.OperatingHours.Close,
		))
	}
	return nil
}

func capacityError(lab *model.Lab) error {
	return apperrors.InvalidInput(fmt.Sprintf("Number of participants exceeds lab capacity (%d)", lab.Capacity))
}

func conflictSummary(b *model.Booking) *model.ConflictSummary {
	summary := &model.ConflictSummary{
		ID:        b.ID,
		Title:     b.Title,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
	}
	if b.User != nil {
		summary.User = b.User.Name
	}
	return summary
}

func defaultText(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		hours := int(d / time.Hour)
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return d.String()
}
