package service

import (
	"context"
	"sort"
	"sync"
	"time"

	bookingserrors "labbook/internal/bookings/errors"
	"labbook/internal/bookings/repository"
	"labbook/internal/bookings/validator"
	labserrors "labbook/internal/labs/errors"
	"labbook/pkg/config"
	mongotx "labbook/pkg/db/mongo"
	"labbook/pkg/lock"
	"labbook/pkg/logger"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ────────────────────────────────────────────────
// In-memory booking repository
// ────────────────────────────────────────────────

type fakeBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking

	createErr     error
	conflictDelay time.Duration
}

func newFakeBookingRepository() *fakeBookingRepository {
	return &fakeBookingRepository{bookings: map[string]*model.Booking{}}
}

func (f *fakeBookingRepository) Create(ctx context.Context, b *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	b.ID = primitive.NewObjectID().Hex()
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	stored := *b
	f.bookings[b.ID] = &stored
	return nil
}

func (f *fakeBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, bookingserrors.ErrInvalidID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBookingRepository) Update(_ context.Context, id string, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	stored := *b
	stored.Lab, stored.User = nil, nil
	f.bookings[id] = &stored
	return nil
}

func (f *fakeBookingRepository) Transition(_ context.Context, id string, change repository.StatusChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.Status != change.From {
		return bookingserrors.ErrStatusChanged
	}
	b.Status = change.To
	if change.AdminNotes != nil {
		b.AdminNotes = *change.AdminNotes
	}
	if change.CancellationReason != nil {
		b.CancellationReason = *change.CancellationReason
	}
	return nil
}

func (f *fakeBookingRepository) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[id]; !ok {
		return bookingserrors.ErrNotFound
	}
	delete(f.bookings, id)
	return nil
}

func (f *fakeBookingRepository) FindConflicts(ctx context.Context, q model.SlotQuery) ([]*model.Booking, error) {
	if f.conflictDelay > 0 {
		select {
		case <-time.After(f.conflictDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Booking
	for _, b := range f.bookings {
		if b.LabID != q.LabID || !b.Date.Equal(q.Date) || b.ID == q.ExcludeID {
			continue
		}
		if !containsStatus(q.Statuses, b.Status) {
			continue
		}
		if b.StartTime < q.EndTime && b.EndTime > q.StartTime {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (f *fakeBookingRepository) List(_ context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	return f.matching(func(b *model.Booking) bool {
		return len(filter.Statuses) == 0 || containsStatus(filter.Statuses, b.Status)
	}), nil
}

func (f *fakeBookingRepository) Count(ctx context.Context, filter model.BookingFilter) (int64, error) {
	list, _ := f.List(ctx, filter)
	return int64(len(list)), nil
}

func (f *fakeBookingRepository) FindByUser(_ context.Context, userID string) ([]*model.Booking, error) {
	return f.matching(func(b *model.Booking) bool { return b.UserID == userID }), nil
}

func (f *fakeBookingRepository) FindByLab(_ context.Context, labID string, from, to *time.Time) ([]*model.Booking, error) {
	return f.matching(func(b *model.Booking) bool {
		if b.LabID != labID {
			return false
		}
		if from != nil && b.Date.Before(*from) {
			return false
		}
		if to != nil && b.Date.After(*to) {
			return false
		}
		return true
	}), nil
}

func (f *fakeBookingRepository) CountByStatusForLab(context.Context, string) (map[string]int64, error) {
	return map[string]int64{}, nil
}

func (f *fakeBookingRepository) CountByLab(context.Context) ([]model.LabBookingCount, error) {
	return nil, nil
}

func (f *fakeBookingRepository) FindUpcomingForLab(context.Context, string, time.Time, int) ([]*model.Booking, error) {
	return nil, nil
}

func (f *fakeBookingRepository) CountApprovedFrom(context.Context, string, time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeBookingRepository) CancelPendingForLab(context.Context, string, time.Time, string) (int64, error) {
	return 0, nil
}

func (f *fakeBookingRepository) BusyLabs(context.Context, model.SlotQuery) ([]string, error) {
	return nil, nil
}

func (f *fakeBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

func (f *fakeBookingRepository) matching(keep func(*model.Booking) bool) []*model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*model.Booking
	for _, b := range f.bookings {
		if keep(b) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (f *fakeBookingRepository) get(id string) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *f.bookings[id]
	return &cp
}

func (f *fakeBookingRepository) countStatus(status model.BookingStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.bookings {
		if b.Status == status {
			n++
		}
	}
	return n
}

func containsStatus(statuses []model.BookingStatus, s model.BookingStatus) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}
	return false
}

// ────────────────────────────────────────────────
// Lab and user readers
// ────────────────────────────────────────────────

type fakeLabs map[string]*model.Lab

func (f fakeLabs) FindByID(_ context.Context, id string) (*model.Lab, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, labserrors.ErrInvalidID
	}
	lab, ok := f[id]
	if !ok {
		return nil, labserrors.ErrNotFound
	}
	return lab, nil
}

func (f fakeLabs) FindByIDs(_ context.Context, ids []string) (map[string]*model.Lab, error) {
	out := map[string]*model.Lab{}
	for _, id := range ids {
		if lab, ok := f[id]; ok {
			out[id] = lab
		}
	}
	return out, nil
}

type fakeUsers map[string]*model.User

func (f fakeUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, labserrors.ErrNotFound
}

func (f fakeUsers) FindByIDs(_ context.Context, ids []string) (map[string]*model.User, error) {
	out := map[string]*model.User{}
	for _, id := range ids {
		if u, ok := f[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

// ────────────────────────────────────────────────
// Notifier
// ────────────────────────────────────────────────

type sentNotification struct {
	UserID string
	Role   model.Role
	Title  string
	Type   model.NotificationType
	Opts   model.NotifyOptions
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *recordingNotifier) Notify(_ context.Context, userID, title, _ string, typ model.NotificationType, opts model.NotifyOptions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Title: title, Type: typ, Opts: opts})
}

func (n *recordingNotifier) NotifyRole(_ context.Context, role model.Role, title, _ string, typ model.NotificationType, opts model.NotifyOptions) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{Role: role, Title: title, Type: typ, Opts: opts})
}

func (n *recordingNotifier) ofType(typ model.NotificationType) []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentNotification
	for _, s := range n.sent {
		if s.Type == typ {
			out = append(out, s)
		}
	}
	return out
}

// ────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────

type fixture struct {
	svc      *bookingService
	repo     *fakeBookingRepository
	notifier *recordingNotifier
	lab      *model.Lab
	clock    time.Time
}

var (
	ownerID = primitive.NewObjectID().Hex()
	otherID = primitive.NewObjectID().Hex()
	adminID = primitive.NewObjectID().Hex()
)

// newFixture builds a service around a 20 seat lab open 08:00-17:00. The
// clock starts at 2025-03-10 08:00 UTC.
func newFixture() *fixture {
	lab := &model.Lab{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Physics Lab",
		Code:           "PHY101",
		Capacity:       20,
		IsActive:       true,
		OperatingHours: model.OperatingHours{Open: "08:00", Close: "17:00"},
		Location:       model.Location{Building: "A", Room: "101"},
	}

	cfg := &config.Config{
		Log:                logger.Discard(),
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		CancellationWindow: 2 * time.Hour,
		ReminderLead:       time.Hour,
		AppBaseURL:         "http://app.test",
	}

	repo := newFakeBookingRepository()
	notifier := &recordingNotifier{}
	users := fakeUsers{
		ownerID: {ID: ownerID, Name: "Owner", Email: "owner@test", Role: model.RoleStudent},
		otherID: {ID: otherID, Name: "Other", Email: "other@test", Role: model.RoleTeacher},
		adminID: {ID: adminID, Name: "Admin", Email: "admin@test", Role: model.RoleAdmin},
	}

	svc := NewBookingService(
		repo,
		fakeLabs{lab.ID: lab},
		users,
		notifier,
		lock.NewKeyedMutex(2*time.Second),
		validator.NewBookingValidator(cfg.Log),
		cfg,
	).(*bookingService)

	f := &fixture{
		svc:      svc,
		repo:     repo,
		notifier: notifier,
		lab:      lab,
		clock:    time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC),
	}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) input(date, start, end string, participants int) *model.BookingInput {
	return &model.BookingInput{
		LabID:        f.lab.ID,
		Title:        "Optics practical",
		Date:         date,
		StartTime:    start,
		EndTime:      end,
		Participants: participants,
	}
}
