package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	notificationserrors "labbook/internal/notifications/errors"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/logger"
	"labbook/pkg/model"
)

type fakeRepository struct {
	mu    sync.Mutex
	items map[string]*model.Notification
	err   error
}

func newFakeRepository(items ...*model.Notification) *fakeRepository {
	f := &fakeRepository{items: make(map[string]*model.Notification)}
	for _, n := range items {
		f.items[n.ID] = n
	}
	return f
}

func (f *fakeRepository) Create(context.Context, *model.Notification) error { return nil }

func (f *fakeRepository) CreateMany(context.Context, []*model.Notification) error { return nil }

func (f *fakeRepository) matching(filter model.NotificationFilter) []*model.Notification {
	var out []*model.Notification
	for _, n := range f.items {
		if n.UserID != filter.UserID {
			continue
		}
		if filter.UnreadOnly && n.IsRead {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		out = append(out, n)
	}
	return out
}

func (f *fakeRepository) List(_ context.Context, filter model.NotificationFilter) ([]*model.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(filter)
	if len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	return all, nil
}

func (f *fakeRepository) Count(_ context.Context, filter model.NotificationFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.matching(filter))), nil
}

func (f *fakeRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return f.Count(ctx, model.NotificationFilter{UserID: userID, UnreadOnly: true})
}

func (f *fakeRepository) MarkRead(_ context.Context, id, userID string) (*model.Notification, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.UserID != userID {
		return nil, fmt.Errorf("%w: %s", notificationserrors.ErrNotFound, id)
	}
	n.IsRead = true
	return n, nil
}

func (f *fakeRepository) MarkAllRead(_ context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updated int64
	for _, n := range f.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			updated++
		}
	}
	return updated, nil
}

func (f *fakeRepository) Delete(_ context.Context, id, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.items[id]
	if !ok || n.UserID != userID {
		return fmt.Errorf("%w: %s", notificationserrors.ErrNotFound, id)
	}
	delete(f.items, id)
	return nil
}

func (f *fakeRepository) Stats(context.Context) (*model.NotificationStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	index := map[model.NotificationType]int{}
	stats := &model.NotificationStats{}
	for _, id := range []string{"n1", "n2", "n3", "n4"} {
		n, ok := f.items[id]
		if !ok {
			continue
		}
		i, seen := index[n.Type]
		if !seen {
			i = len(stats.ByType)
			index[n.Type] = i
			stats.ByType = append(stats.ByType, model.NotificationTypeCount{Type: n.Type})
		}
		stats.ByType[i].Total++
		if !n.IsRead {
			stats.ByType[i].Unread++
		}
	}
	return stats, nil
}

type broadcast struct {
	role  model.Role
	title string
	opts  model.NotifyOptions
}

type recordingBroadcaster struct {
	sent []broadcast
}

func (b *recordingBroadcaster) NotifyRole(_ context.Context, role model.Role, title, _ string, _ model.NotificationType, opts model.NotifyOptions) {
	b.sent = append(b.sent, broadcast{role: role, title: title, opts: opts})
}

func newService(repo *fakeRepository, b *recordingBroadcaster) NotificationService {
	return NewNotificationService(repo, b, &config.Config{Log: logger.Discard()})
}

func seed() *fakeRepository {
	return newFakeRepository(
		&model.Notification{ID: "n1", UserID: "u1", Type: model.NotificationBookingCreated},
		&model.Notification{ID: "n2", UserID: "u1", Type: model.NotificationBookingApproved, IsRead: true},
		&model.Notification{ID: "n3", UserID: "u1", Type: model.NotificationBookingApproved},
		&model.Notification{ID: "n4", UserID: "u2", Type: model.NotificationBookingApproved},
	)
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if !apperrors.HasCode(err, code) {
		t.Fatalf("expected %s, got %v", code, err)
	}
}

func TestList(t *testing.T) {
	svc := newService(seed(), &recordingBroadcaster{})

	items, total, unread, err := svc.List(context.Background(), model.NotificationFilter{UserID: "u1", Type: model.NotificationBookingApproved})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 || total != 2 {
		t.Errorf("expected 2 approved notifications, got %d/%d", len(items), total)
	}
	if unread != 2 {
		t.Errorf("unread count covers every type, expected 2 got %d", unread)
	}
}

func TestList_RepositoryFailure(t *testing.T) {
	repo := seed()
	repo.err = errors.New("mongo down")
	_, _, _, err := newService(repo, &recordingBroadcaster{}).List(context.Background(), model.NotificationFilter{UserID: "u1"})
	expectCode(t, err, apperrors.CodeInternal)
}

func TestMarkRead_OwnNotificationsOnly(t *testing.T) {
	svc := newService(seed(), &recordingBroadcaster{})

	n, err := svc.MarkRead(context.Background(), "n1", "u1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !n.IsRead {
		t.Error("expected notification to be read")
	}

	_, err = svc.MarkRead(context.Background(), "n4", "u1")
	expectCode(t, err, apperrors.CodeNotFound)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	svc := newService(seed(), &recordingBroadcaster{})

	updated, err := svc.MarkAllRead(context.Background(), "u1")
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if updated != 2 {
		t.Errorf("expected 2 updated, got %d", updated)
	}

	if n, _ := svc.UnreadCount(context.Background(), "u1"); n != 0 {
		t.Errorf("expected no unread for u1, got %d", n)
	}
	if n, _ := svc.UnreadCount(context.Background(), "u2"); n != 1 {
		t.Errorf("u2 should be untouched, got %d", n)
	}
}

func TestDelete(t *testing.T) {
	svc := newService(seed(), &recordingBroadcaster{})

	expectCode(t, svc.Delete(context.Background(), "n4", "u1"), apperrors.CodeNotFound)
	if err := svc.Delete(context.Background(), "n4", "u2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestAnnounce(t *testing.T) {
	b := &recordingBroadcaster{}
	svc := newService(seed(), b)
	admin := auth.Principal{ID: "admin-1", Role: model.RoleAdmin}

	err := svc.Announce(context.Background(), &model.Announcement{
		Title:   "  Lab  closure ",
		Message: "Building B is closed on Friday.",
		Role:    model.RoleStudent,
	}, admin)
	if err != nil {
		t.Fatalf("Announce: %v", err)
	}

	if len(b.sent) != 1 {
		t.Fatalf("expected one broadcast, got %d", len(b.sent))
	}
	got := b.sent[0]
	if got.role != model.RoleStudent || got.title != "Lab closure" {
		t.Errorf("unexpected broadcast %+v", got)
	}
	if got.opts.Priority != model.PriorityMedium || !got.opts.SkipEmail {
		t.Errorf("expected medium priority without email, got %+v", got.opts)
	}
}

func TestAnnounce_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		principal auth.Principal
		input     model.Announcement
		code      string
	}{
		{"student", auth.Principal{ID: "u1", Role: model.RoleStudent}, model.Announcement{Title: "t", Message: "m"}, apperrors.CodeForbidden},
		{"missing title", auth.Principal{ID: "a", Role: model.RoleAdmin}, model.Announcement{Title: "   ", Message: "m"}, apperrors.CodeValidation},
		{"bad role", auth.Principal{ID: "a", Role: model.RoleAdmin}, model.Announcement{Title: "t", Message: "m", Role: "guest"}, apperrors.CodeValidation},
		{"long message", auth.Principal{ID: "a", Role: model.RoleAdmin}, model.Announcement{Title: "t", Message: strings.Repeat("x", 1001)}, apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &recordingBroadcaster{}
			input := tt.input
			err := newService(seed(), b).Announce(context.Background(), &input, tt.principal)
			expectCode(t, err, tt.code)
			if len(b.sent) != 0 {
				t.Error("rejected announcement must not be broadcast")
			}
		})
	}
}

func TestStats(t *testing.T) {
	stats, err := newService(seed(), &recordingBroadcaster{}).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}

	if stats.TotalNotifications != 4 || stats.TotalUnread != 3 {
		t.Errorf("expected 4 total and 3 unread, got %d/%d", stats.TotalNotifications, stats.TotalUnread)
	}
	if len(stats.ByType) != 2 {
		t.Fatalf("expected two types, got %+v", stats.ByType)
	}
	if stats.Daily == nil {
		t.Error("expected empty daily breakdown, got nil")
	}
}

func TestStats_Empty(t *testing.T) {
	stats, err := newService(newFakeRepository(), &recordingBroadcaster{}).Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.ByType == nil || stats.TotalNotifications != 0 {
		t.Errorf("expected zeroed stats with empty slices, got %+v", stats)
	}
}

func TestStats_RepositoryFailure(t *testing.T) {
	repo := seed()
	repo.err = errors.New("mongo down")
	_, err := newService(repo, &recordingBroadcaster{}).Stats(context.Background())
	expectCode(t, err, apperrors.CodeInternal)
}
