package service

import (
	"context"
	"errors"
	"sync"

	notificationserrors "labbook/internal/notifications/errors"
	"labbook/internal/notifications/repository"
	"labbook/pkg/auth"
	"labbook/pkg/config"
	apperrors "labbook/pkg/errors"
	"labbook/pkg/model"
	"labbook/pkg/sanitizer"
	"labbook/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// Broadcaster fans a notification out to a role.
type Broadcaster interface {
	NotifyRole(ctx context.Context, role model.Role, title, message string, typ model.NotificationType, opts model.NotifyOptions)
}

type NotificationService interface {
	List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, int64, int64, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, id, userID string) (*model.Notification, error)
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id, userID string) error
	Announce(ctx context.Context, announcement *model.Announcement, principal auth.Principal) error
	Stats(ctx context.Context) (*model.NotificationStats, error)
}

type notificationService struct {
	repo        repository.NotificationRepository
	broadcaster Broadcaster
	validate    *validator.Validate
	cfg         *config.Config
}

func NewNotificationService(repo repository.NotificationRepository, broadcaster Broadcaster, cfg *config.Config) NotificationService {
	return &notificationService{
		repo:        repo,
		broadcaster: broadcaster,
		validate:    validation.New(cfg.Log),
		cfg:         cfg,
	}
}

// List returns one page of the caller's notifications with the page total
// and the overall unread count.
func (s *notificationService) List(ctx context.Context, filter model.NotificationFilter) ([]*model.Notification, int64, int64, error) {
	filter.Page = config.NormalizePage(filter.Page)
	filter.Limit = config.NormalizePaginationLimit(filter.Limit)

	var (
		notifications []*model.Notification
		total, unread int64
		listErr       error
		countErr      error
		unreadErr     error
		wg            sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		notifications, listErr = s.repo.List(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		total, countErr = s.repo.Count(ctx, filter)
	}()
	go func() {
		defer wg.Done()
		unread, unreadErr = s.repo.CountUnread(ctx, filter.UserID)
	}()
	wg.Wait()

	if err := errors.Join(listErr, countErr, unreadErr); err != nil {
		s.cfg.Log.Error("Failed to list notifications", "user_id", filter.UserID, "error", err)
		return nil, 0, 0, apperrors.Internal("Failed to retrieve notifications", err)
	}
	return notifications, total, unread, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to count unread notifications", "user_id", userID, "error", err)
		return 0, apperrors.Internal("Failed to count notifications", err)
	}
	return count, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id, userID string) (*model.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return nil, s.mapError(err, id, "Failed to update notification")
	}
	return n, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to mark notifications read", "user_id", userID, "error", err)
		return 0, apperrors.Internal("Failed to update notifications", err)
	}
	return updated, nil
}

func (s *notificationService) Delete(ctx context.Context, id, userID string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return s.mapError(err, id, "Failed to delete notification")
	}
	return nil
}

func (s *notificationService) Announce(ctx context.Context, a *model.Announcement, principal auth.Principal) error {
	if !principal.IsAdmin() {
		return apperrors.Forbidden("Only admins can send announcements")
	}

	a.Title = sanitizer.Text(a.Title)
	a.Message = sanitizer.Multiline(a.Message)
	if err := validation.Struct(s.validate, a); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			return apperrors.Validation("Announcement validation failed", verrs.Details())
		}
		return apperrors.InvalidInput(err.Error())
	}

	priority := a.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	s.broadcaster.NotifyRole(context.WithoutCancel(ctx), a.Role, a.Title, a.Message, model.NotificationAnnouncement, model.NotifyOptions{
		RelatedTo: &model.RelatedTo{Model: model.RelatedUser, ID: principal.ID},
		Priority:  priority,
		SkipEmail: !a.SendEmail,
	})

	s.cfg.Log.Info("Announcement queued", "by", principal.ID, "role", a.Role, "email", a.SendEmail)
	return nil
}

// Stats aggregates notifications across all users by type and by day.
func (s *notificationService) Stats(ctx context.Context) (*model.NotificationStats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		s.cfg.Log.Error("Failed to compute notification statistics", "error", err)
		return nil, apperrors.Internal("Failed to compute notification statistics", err)
	}

	if stats.ByType == nil {
		stats.ByType = []model.NotificationTypeCount{}
	}
	if stats.Daily == nil {
		stats.Daily = []model.DailyCount{}
	}
	stats.TotalNotifications, stats.TotalUnread = 0, 0
	for _, t := range stats.ByType {
		stats.TotalNotifications += t.Total
		stats.TotalUnread += t.Unread
	}
	return stats, nil
}

func (s *notificationService) mapError(err error, id, message string) error {
	switch {
	case errors.Is(err, notificationserrors.ErrNotFound), errors.Is(err, notificationserrors.ErrInvalidID):
		return apperrors.NotFoundWithID("Notification", id)
	default:
		s.cfg.Log.Error(message, "id", id, "error", err)
		return apperrors.Internal(message, err)
	}
}
