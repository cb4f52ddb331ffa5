package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	labserrors "labbook/internal/labs/errors"
	"labbook/internal/labs/repository"
	"labbook/internal/labs/validator"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/model"
	"labbook/pkg/sanitizer"
	"labbook/pkg/timeslot"
	"labbook/pkg/validation"
)

const (
	upcomingLimit = 5

	reasonLabUnavailable = "Lab temporarily unavailable"
	reasonLabDeleted     = "Lab deleted"
)

// BookingStore is the slice of the booking store the lab directory needs
// for its detail view and lifecycle rules.
type BookingStore interface {
	CountByStatusForLab(ctx context.Context, labID string) (map[string]int64, error)
	FindUpcomingForLab(ctx context.Context, labID string, from time.Time, limit int) ([]*model.Booking, error)
	CountApprovedFrom(ctx context.Context, labID string, from time.Time) (int64, error)
	CancelPendingForLab(ctx context.Context, labID string, from time.Time, reason string) (int64, error)
	BusyLabs(ctx context.Context, query model.SlotQuery) ([]string, error)
	CountByLab(ctx context.Context) ([]model.LabBookingCount, error)
}

type LabService interface {
	Create(ctx context.Context, lab *model.Lab) error
	GetByID(ctx context.Context, id string) (*model.LabDetails, error)
	List(ctx context.Context, filter model.LabFilter) ([]*model.Lab, int64, error)
	Update(ctx context.Context, id string, updates *model.LabUpdate) (*model.Lab, error)
	SetStatus(ctx context.Context, id string, active bool) (*model.Lab, error)
	Delete(ctx context.Context, id string) error
	FindAvailable(ctx context.Context, date, startTime, endTime string) ([]*model.Lab, error)
	Stats(ctx context.Context) (*model.LabStats, error)

	AddEquipment(ctx context.Context, id string, item *model.Equipment) (*model.Lab, error)
	UpdateEquipment(ctx context.Context, id, name string, update *model.EquipmentUpdate) (*model.Lab, error)
	RemoveEquipment(ctx context.Context, id, name string) (*model.Lab, error)
}

type labService struct {
	repo      repository.LabRepository
	bookings  BookingStore
	validator *validator.LabValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewLabService(
	repo repository.LabRepository,
	bookings BookingStore,
	validator *validator.LabValidator,
	cfg *config.Config,
) LabService {
	return &labService{
		repo:      repo,
		bookings:  bookings,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *labService) Create(ctx context.Context, lab *model.Lab) error {
	s.sanitize(lab)
	lab.ID = ""
	lab.IsActive = true

	if err := s.validator.Validate(lab); err != nil {
		s.cfg.Log.Warn("Lab validation failed",
			"name", lab.Name,
			"code", lab.Code,
			"error", err,
		)
		return validationError(err)
	}

	if err := s.repo.Create(ctx, lab); err != nil {
		if errors.Is(err, labserrors.ErrDuplicate) {
			return apperrors.Conflict("Lab with this name or code already exists")
		}
		s.cfg.Log.Error("Failed to create lab",
			"name", lab.Name,
			"code", lab.Code,
			"error", err,
		)
		return apperrors.Internal("Failed to create lab", err)
	}

	s.cfg.Log.Info("Lab created successfully",
		"id", lab.ID,
		"name", lab.Name,
		"code", lab.Code,
		"capacity", lab.Capacity,
	)
	return nil
}

func (s *labService) GetByID(ctx context.Context, id string) (*model.LabDetails, error) {
	lab, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var stats map[string]int64
	var upcoming []*model.Booking
	var errStats, errUpcoming error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		stats, errStats = s.bookings.CountByStatusForLab(ctx, lab.ID)
	}()
	go func() {
		defer wg.Done()
		upcoming, errUpcoming = s.bookings.FindUpcomingForLab(ctx, lab.ID, s.today(), upcomingLimit)
	}()
	wg.Wait()

	if errStats != nil {
		s.cfg.Log.Error("Failed to count lab bookings", "id", id, "error", errStats)
		return nil, apperrors.Internal("Failed to retrieve lab booking statistics", errStats)
	}
	if errUpcoming != nil {
		s.cfg.Log.Error("Failed to load upcoming lab bookings", "id", id, "error", errUpcoming)
		return nil, apperrors.Internal("Failed to retrieve upcoming bookings", errUpcoming)
	}

	if stats == nil {
		stats = map[string]int64{}
	}
	if upcoming == nil {
		upcoming = []*model.Booking{}
	}

	return &model.LabDetails{
		Lab:              lab,
		IsAvailable:      lab.IsAvailable(),
		BookingStats:     stats,
		UpcomingBookings: upcoming,
	}, nil
}

func (s *labService) List(ctx context.Context, filter model.LabFilter) ([]*model.Lab, int64, error) {
	if !repository.ValidSort(filter.Sort) {
		return nil, 0, apperrors.InvalidInput("Invalid sort field: " + filter.Sort)
	}
	if filter.MinCapacity < 0 {
		return nil, 0, apperrors.InvalidInput("minCapacity cannot be negative")
	}
	filter.Search = sanitizer.Text(filter.Search)
	filter.Building = sanitizer.Text(filter.Building)
	filter.Facility = sanitizer.Key(filter.Facility)
	filter.Page = config.NormalizePage(filter.Page)
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)

	var count int64
	var labs []*model.Lab
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count labs", "error", err)
			errCount = apperrors.Internal("Failed to count labs", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		labs, err = s.repo.List(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to list labs",
				"page", filter.Page,
				"limit", filter.Limit,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve labs", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return labs, count, nil
}

func (s *labService) Update(ctx context.Context, id string, updates *model.LabUpdate) (*model.Lab, error) {
	existing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, validationError(err)
	}

	merged := mergeLabUpdate(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		return nil, validationError(err)
	}

	if err := s.repo.Update(ctx, id, merged); err != nil {
		switch {
		case errors.Is(err, labserrors.ErrDuplicate):
			return nil, apperrors.Conflict("Lab with this name or code already exists")
		case errors.Is(err, labserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Lab", id)
		}
		s.cfg.Log.Error("Failed to update lab", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to update lab", err)
	}

	s.cfg.Log.Info("Lab updated successfully", "id", id, "code", merged.Code)
	return merged, nil
}

// SetStatus toggles is_active. Deactivating cancels every future pending
// booking of the lab.
func (s *labService) SetStatus(ctx context.Context, id string, active bool) (*model.Lab, error) {
	lab, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	var cancelled int64
	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.SetActive(ctx, id, active); err != nil {
			return err
		}
		if active {
			return nil
		}
		var err error
		cancelled, err = s.bookings.CancelPendingForLab(ctx, id, s.today(), reasonLabUnavailable)
		return err
	})
	if err != nil {
		if errors.Is(err, labserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Lab", id)
		}
		s.cfg.Log.Error("Failed to change lab status", "id", id, "active", active, "error", err)
		return nil, apperrors.Internal("Failed to change lab status", err)
	}

	lab.IsActive = active
	s.cfg.Log.Info("Lab status changed",
		"id", id,
		"active", active,
		"cancelled_bookings", cancelled,
	)
	return lab, nil
}

// Delete refuses while approved bookings remain from today on. Pending
// bookings of the lab are cancelled with it. The approved count is checked
// again inside the transaction, after the pending bookings are cancelled.
func (s *labService) Delete(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err != nil {
		return err
	}

	approved, err := s.bookings.CountApprovedFrom(ctx, id, s.today())
	if err != nil {
		s.cfg.Log.Error("Failed to count approved bookings", "id", id, "error", err)
		return apperrors.Internal("Failed to check lab bookings", err)
	}
	if approved > 0 {
		return apperrors.HasFutureBookings(approved)
	}

	var cancelled int64
	err = s.repo.ExecuteTransaction(ctx, func(ctx context.Context) error {
		var err error
		cancelled, err = s.bookings.CancelPendingForLab(ctx, id, time.Time{}, reasonLabDeleted)
		if err != nil {
			return err
		}
		// Approval only moves a pending booking, so nothing can become
		// approved after the cancel above. Recount before removing the lab.
		approved, err := s.bookings.CountApprovedFrom(ctx, id, s.today())
		if err != nil {
			return err
		}
		if approved > 0 {
			return apperrors.HasFutureBookings(approved)
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			s.cfg.Log.Warn("Lab delete refused after recount", "id", id, "error", err)
			return err
		}
		if errors.Is(err, labserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Lab", id)
		}
		s.cfg.Log.Error("Failed to delete lab", "id", id, "error", err)
		return apperrors.Internal("Failed to delete lab", err)
	}

	s.cfg.Log.Info("Lab deleted successfully", "id", id, "cancelled_bookings", cancelled)
	return nil
}

// FindAvailable lists active labs without a pending or approved booking
// overlapping the slot.
func (s *labService) FindAvailable(ctx context.Context, date, startTime, endTime string) ([]*model.Lab, error) {
	if date == "" || startTime == "" || endTime == "" {
		return nil, validationError(validation.Field("query", "Please provide date, startTime, and endTime"))
	}
	day, err := timeslot.ParseDate(date)
	if err != nil {
		return nil, validationError(validation.Field("date", "date must be in YYYY-MM-DD or RFC3339 format"))
	}
	start, errStart := timeslot.Normalize(startTime)
	end, errEnd := timeslot.Normalize(endTime)
	if errStart != nil || errEnd != nil {
		return nil, validationError(validation.Field("time", "startTime and endTime must be in HH:MM 24-hour format"))
	}
	if _, err := timeslot.Duration(start, end); err != nil {
		return nil, validationError(validation.Field("end_time", "End time must be after start time"))
	}

	labs, err := s.repo.FindActive(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to list active labs", "error", err)
		return nil, apperrors.Internal("Failed to retrieve labs", err)
	}

	busy, err := s.bookings.BusyLabs(ctx, model.SlotQuery{
		Date:      day,
		StartTime: start,
		EndTime:   end,
		Statuses:  model.BlockingStatuses,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to find busy labs", "date", date, "error", err)
		return nil, apperrors.Internal("Failed to check existing bookings", err)
	}

	taken := make(map[string]struct{}, len(busy))
	for _, id := range busy {
		taken[id] = struct{}{}
	}

	available := make([]*model.Lab, 0, len(labs))
	for _, lab := range labs {
		if _, ok := taken[lab.ID]; !ok {
			available = append(available, lab)
		}
	}
	return available, nil
}

func (s *labService) load(ctx context.Context, id string) (*model.Lab, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Lab ID cannot be empty")
	}

	lab, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, labserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Lab", id)
		}
		if errors.Is(err, labserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid lab ID format")
		}
		s.cfg.Log.Error("Failed to get lab by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve lab", err)
	}
	return lab, nil
}

func (s *labService) today() time.Time {
	return timeslot.Day(s.now())
}

func (s *labService) sanitize(lab *model.Lab) {
	lab.Name = sanitizer.Text(lab.Name)
	lab.Code = sanitizer.LabCode(lab.Code)
	lab.Description = sanitizer.Multiline(lab.Description)
	lab.Facilities = sanitizer.Slice(lab.Facilities, sanitizer.Key)
	lab.Location = sanitizeLocation(lab.Location)
	lab.OperatingHours = normalizeHours(lab.OperatingHours)
	for i := range lab.Equipment {
		lab.Equipment[i].Name = sanitizer.Text(lab.Equipment[i].Name)
		if lab.Equipment[i].Status == "" {
			lab.Equipment[i].Status = model.EquipmentAvailable
		}
	}
	if lab.Equipment == nil {
		lab.Equipment = []model.Equipment{}
	}
	lab.MaintainedBy = sanitizer.Text(lab.MaintainedBy)
}

func (s *labService) sanitizeUpdate(u *model.LabUpdate) {
	if u.Name != nil {
		*u.Name = sanitizer.Text(*u.Name)
	}
	if u.Code != nil {
		*u.Code = sanitizer.LabCode(*u.Code)
	}
	if u.Description != nil {
		*u.Description = sanitizer.Multiline(*u.Description)
	}
	if u.Facilities != nil {
		cleaned := sanitizer.Slice(*u.Facilities, sanitizer.Key)
		u.Facilities = &cleaned
	}
	if u.Location != nil {
		loc := sanitizeLocation(*u.Location)
		u.Location = &loc
	}
	if u.OperatingHours != nil {
		hours := normalizeHours(*u.OperatingHours)
		u.OperatingHours = &hours
	}
	if u.Equipment != nil {
		for i := range *u.Equipment {
			e := &(*u.Equipment)[i]
			e.Name = sanitizer.Text(e.Name)
			if e.Status == "" {
				e.Status = model.EquipmentAvailable
			}
		}
	}
}

// Stats summarizes the lab inventory and how often each lab's bookings get
// approved. Bookings of deleted labs are left out.
func (s *labService) Stats(ctx context.Context) (*model.LabStats, error) {
	var (
		inventory    *model.LabInventory
		counts       []model.LabBookingCount
		inventoryErr error
		countsErr    error
		wg           sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		inventory, inventoryErr = s.repo.Inventory(ctx)
	}()
	go func() {
		defer wg.Done()
		counts, countsErr = s.bookings.CountByLab(ctx)
	}()
	wg.Wait()

	if err := errors.Join(inventoryErr, countsErr); err != nil {
		s.cfg.Log.Error("Failed to compute lab statistics", "error", err)
		return nil, apperrors.Internal("Failed to compute lab statistics", err)
	}

	ids := make([]string, 0, len(counts))
	for _, c := range counts {
		ids = append(ids, c.LabID)
	}
	labs, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to resolve labs for statistics", "error", err)
		return nil, apperrors.Internal("Failed to compute lab statistics", err)
	}

	stats := &model.LabStats{
		Total:         inventory.Total,
		Active:        inventory.Active,
		Inactive:      inventory.Total - inventory.Active,
		TotalCapacity: inventory.TotalCapacity,
		Equipment:     inventory.Equipment,
		Utilization:   make([]model.LabApprovalRate, 0, len(counts)),
	}
	if stats.Equipment == nil {
		stats.Equipment = []model.EquipmentStatusCount{}
	}

	for _, c := range counts {
		lab, ok := labs[c.LabID]
		if !ok || c.Total == 0 {
			continue
		}
		stats.Utilization = append(stats.Utilization, model.LabApprovalRate{
			LabID:            c.LabID,
			Name:             lab.Name,
			Code:             lab.Code,
			TotalBookings:    c.Total,
			ApprovedBookings: c.Approved,
			ApprovalRate:     timeslot.Round2(float64(c.Approved) / float64(c.Total) * 100),
		})
	}
	sort.SliceStable(stats.Utilization, func(i, j int) bool {
		a, b := stats.Utilization[i], stats.Utilization[j]
		if a.ApprovalRate != b.ApprovalRate {
			return a.ApprovalRate > b.ApprovalRate
		}
		return a.Name < b.Name
	})
	return stats, nil
}

func (s *labService) AddEquipment(ctx context.Context, id string, item *model.Equipment) (*model.Lab, error) {
	lab, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Name = sanitizer.Text(item.Name)
	if item.Status == "" {
		item.Status = model.EquipmentAvailable
	}
	if err := s.validator.ValidateEquipment(item); err != nil {
		return nil, validationError(err)
	}
	if findEquipment(lab.Equipment, item.Name) >= 0 {
		return nil, apperrors.Conflict("Equipment with this name already exists in the lab")
	}

	if err := s.repo.AddEquipment(ctx, id, *item); err != nil {
		return nil, s.equipmentError(err, id, "Failed to add equipment")
	}

	s.cfg.Log.Info("Equipment added", "lab_id", id, "name", item.Name, "quantity", item.Quantity)
	return s.load(ctx, id)
}

// UpdateEquipment patches the entry whose name matches name, ignoring case.
func (s *labService) UpdateEquipment(ctx context.Context, id, name string, update *model.EquipmentUpdate) (*model.Lab, error) {
	lab, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	i := findEquipment(lab.Equipment, name)
	if i < 0 {
		return nil, apperrors.NotFound("Equipment")
	}
	if update.Name != nil {
		*update.Name = sanitizer.Text(*update.Name)
	}
	if err := s.validator.ValidateEquipmentUpdate(update); err != nil {
		return nil, validationError(err)
	}

	current := lab.Equipment[i]
	merged := current
	if update.Name != nil {
		merged.Name = *update.Name
	}
	if update.Quantity != nil {
		merged.Quantity = *update.Quantity
	}
	if update.Status != nil {
		merged.Status = *update.Status
	}
	if other := findEquipment(lab.Equipment, merged.Name); other >= 0 && other != i {
		return nil, apperrors.Conflict("Equipment with this name already exists in the lab")
	}

	if err := s.repo.UpdateEquipment(ctx, id, current.Name, merged); err != nil {
		return nil, s.equipmentError(err, id, "Failed to update equipment")
	}

	s.cfg.Log.Info("Equipment updated", "lab_id", id, "name", merged.Name, "status", merged.Status)
	return s.load(ctx, id)
}

func (s *labService) RemoveEquipment(ctx context.Context, id, name string) (*model.Lab, error) {
	lab, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	i := findEquipment(lab.Equipment, name)
	if i < 0 {
		return nil, apperrors.NotFound("Equipment")
	}

	if err := s.repo.RemoveEquipment(ctx, id, lab.Equipment[i].Name); err != nil {
		return nil, s.equipmentError(err, id, "Failed to remove equipment")
	}

	s.cfg.Log.Info("Equipment removed", "lab_id", id, "name", lab.Equipment[i].Name)
	return s.load(ctx, id)
}

func (s *labService) equipmentError(err error, id, message string) error {
	switch {
	case errors.Is(err, labserrors.ErrNotFound), errors.Is(err, labserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Lab", id)
	case errors.Is(err, labserrors.ErrEquipmentNotFound):
		return apperrors.NotFound("Equipment")
	case errors.Is(err, labserrors.ErrDuplicateEquipment):
		return apperrors.Conflict("Equipment with this name already exists in the lab")
	}
	s.cfg.Log.Error(message, "lab_id", id, "error", err)
	return apperrors.Internal(message, err)
}

func findEquipment(items []model.Equipment, name string) int {
	name = strings.TrimSpace(name)
	for i, e := range items {
		if strings.EqualFold(e.Name, name) {
			return i
		}
	}
	return -1
}

func sanitizeLocation(loc model.Location) model.Location {
	return model.Location{
		Building: sanitizer.Text(loc.Building),
		Floor:    sanitizer.Text(loc.Floor),
		Room:     sanitizer.Text(loc.Room),
	}
}

// normalizeHours zero-pads well-formed clocks and leaves the rest for the
// validator to reject.
func normalizeHours(h model.OperatingHours) model.OperatingHours {
	if open, err := timeslot.Normalize(h.Open); err == nil {
		h.Open = open
	}
	if closing, err := timeslot.Normalize(h.Close); err == nil {
		h.Close = closing
	}
	return h
}

func mergeLabUpdate(existing *model.Lab, u *model.LabUpdate) *model.Lab {
	merged := *existing

	if u.Name != nil {
		merged.Name = *u.Name
	}
	if u.Code != nil {
		merged.Code = *u.Code
	}
	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.Capacity != nil {
		merged.Capacity = *u.Capacity
	}
	if u.Equipment != nil {
		merged.Equipment = *u.Equipment
	}
	if u.Facilities != nil {
		merged.Facilities = *u.Facilities
	}
	if u.Location != nil {
		merged.Location = *u.Location
	}
	if u.OperatingHours != nil {
		merged.OperatingHours = *u.OperatingHours
	}
	if u.MaintainedBy != nil {
		merged.MaintainedBy = *u.MaintainedBy
	}

	return &merged
}

func validationError(err error) error {
	var errs validation.ValidationErrors
	if errors.As(err, &errs) {
		return apperrors.Validation("Lab validation failed", errs.Details())
	}
	return apperrors.InvalidInput(err.Error())
}
