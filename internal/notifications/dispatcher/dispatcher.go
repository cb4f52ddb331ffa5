package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	notificationserrors "labbook/internal/notifications/errors"
	"labbook/internal/notifications/repository"
	"labbook/pkg/config"
	"labbook/pkg/logger"
	"labbook/pkg/model"
)

// UserDirectory resolves recipients.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByRole(ctx context.Context, role model.Role) ([]*model.User, error)
	FindAll(ctx context.Context) ([]*model.User, error)
}

type task struct {
	ctx     context.Context
	userID  string
	role    model.Role
	toRole  bool
	title   string
	message string
	typ     model.NotificationType
	opts    model.NotifyOptions
}

// Dispatcher persists notifications and queues their emails on a fixed pool
// of workers. Notify and NotifyRole never block and never fail the caller.
type Dispatcher struct {
	repo    repository.NotificationRepository
	users   UserDirectory
	queue   MailQueue
	timeout time.Duration
	log     *logger.Logger

	tasks  chan task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func New(repo repository.NotificationRepository, users UserDirectory, queue MailQueue, cfg *config.Config) *Dispatcher {
	d := newDispatcher(repo, users, queue, cfg.NotifyQueueSize, cfg.WriteTimeout, cfg.Log)
	d.start(cfg.NotifyWorkers)
	return d
}

func newDispatcher(repo repository.NotificationRepository, users UserDirectory, queue MailQueue, size int, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	return &Dispatcher{
		repo:    repo,
		users:   users,
		queue:   queue,
		timeout: timeout,
		log:     log.Component("notifications"),
		tasks:   make(chan task, size),
	}
}

func (d *Dispatcher) start(workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *Dispatcher) Notify(ctx context.Context, userID, title, message string, typ model.NotificationType, opts model.NotifyOptions) {
	d.submit(task{ctx: ctx, userID: userID, title: title, message: message, typ: typ, opts: opts})
}

// NotifyRole notifies every active user holding role. An empty role reaches
// all active users.
func (d *Dispatcher) NotifyRole(ctx context.Context, role model.Role, title, message string, typ model.NotificationType, opts model.NotifyOptions) {
	d.submit(task{ctx: ctx, role: role, toRole: true, title: title, message: message, typ: typ, opts: opts})
}

func (d *Dispatcher) submit(t task) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Notification dropped", "type", t.typ, "user_id", t.userID, "role", t.role, "error", notificationserrors.ErrDispatcherClosed)
		return
	}

	select {
	case d.tasks <- t:
	default:
		d.log.Error("Notification dropped", "type", t.typ, "user_id", t.userID, "role", t.role, "error", notificationserrors.ErrQueueFull)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.tasks {
		d.process(t)
	}
}

func (d *Dispatcher) process(t task) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	if t.toRole {
		d.deliverToRole(ctx, t)
		return
	}
	d.deliverToUser(ctx, t)
}

func (d *Dispatcher) deliverToUser(ctx context.Context, t task) {
	n := d.build(t.userID, t)
	if err := d.repo.Create(ctx, n); err != nil {
		d.log.Error("Failed to persist notification", "user_id", t.userID, "type", t.typ, "error", err)
	}

	if t.opts.SkipEmail {
		return
	}

	user, err := d.users.FindByID(ctx, t.userID)
	if err != nil {
		d.log.Warn("Failed to resolve notification recipient", "user_id", t.userID, "error", err)
		return
	}
	d.email(ctx, user, t)
}

func (d *Dispatcher) deliverToRole(ctx context.Context, t task) {
	var (
		users []*model.User
		err   error
	)
	if t.role == "" {
		users, err = d.users.FindAll(ctx)
	} else {
		users, err = d.users.FindByRole(ctx, t.role)
	}
	if err != nil {
		d.log.Error("Failed to resolve notification recipients", "role", t.role, "error", err)
		return
	}
	if len(users) == 0 {
		return
	}

	notifications := make([]*model.Notification, 0, len(users))
	for _, u := range users {
		notifications = append(notifications, d.build(u.ID, t))
	}
	if err := d.repo.CreateMany(ctx, notifications); err != nil {
		d.log.Error("Failed to persist notifications", "role", t.role, "type", t.typ, "recipients", len(users), "error", err)
	}

	if t.opts.SkipEmail {
		return
	}
	for _, u := range users {
		d.email(ctx, u, t)
	}
}

func (d *Dispatcher) build(userID string, t task) *model.Notification {
	priority := t.opts.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	return &model.Notification{
		UserID:      userID,
		Title:       t.title,
		Message:     t.message,
		Type:        t.typ,
		RelatedTo:   t.opts.RelatedTo,
		Data:        t.opts.Data,
		Priority:    priority,
		ExpiresAt:   t.opts.ExpiresAt,
		ActionURL:   t.opts.ActionURL,
		ActionLabel: t.opts.ActionLabel,
	}
}

func (d *Dispatcher) email(ctx context.Context, user *model.User, t task) {
	if user.Email == "" {
		d.log.Warn("Skipping email", "user_id", user.ID, "error", notificationserrors.ErrNoRecipient)
		return
	}

	job := model.EmailJob{
		To:          user.Email,
		Name:        user.Name,
		UserID:      user.ID,
		Type:        t.typ,
		Title:       t.title,
		Message:     t.message,
		Data:        t.opts.Data,
		ActionURL:   t.opts.ActionURL,
		ActionLabel: t.opts.ActionLabel,
	}
	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.log.Error("Failed to queue email", "user_id", user.ID, "type", t.typ, "error", err)
	}
}

// Close stops accepting work and waits for queued notifications to finish,
// or for ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.tasks)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(ctx.Err(), d.queue.Close())
	}
	return d.queue.Close()
}
