package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"examflow/internal/platform/metrics"
	id "examflow/pkg/domain"
	"examflow/pkg/requestcontext"
)

// Store is the durable record of every notification ever dispatched.
type Store interface {
	Append(ctx context.Context, n *Notification) error
	MarkRead(ctx context.Context, nID id.NotificationID, recipient id.UserID) error
	MarkAllRead(ctx context.Context, recipient id.UserID) (int, error)
	ListByRecipient(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]*Notification, error)
	CountUnread(ctx context.Context, recipient id.UserID) (int, error)
}

// UnreadCache tracks unread counts out of band so badge reads avoid the
// store. Misses and failures fall back to the store count.
type UnreadCache interface {
	Increment(ctx context.Context, recipient id.UserID) error
	Reset(ctx context.Context, recipient id.UserID, count int) error
	Get(ctx context.Context, recipient id.UserID) (int, bool, error)
}

// Dispatcher persists notifications and feeds an in-process queue for sink
// delivery. Persistence is the only step Enqueue waits on; everything past
// it is best effort and never reaches the caller.
type Dispatcher struct {
	store   Store
	cache   UnreadCache
	queue   chan *Notification
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type DispatcherOption func(*Dispatcher)

func WithQueueSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		d.queue = make(chan *Notification, size)
	}
}

func WithUnreadCache(cache UnreadCache) DispatcherOption {
	return func(d *Dispatcher) {
		d.cache = cache
	}
}

func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

func NewDispatcher(store Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		queue:  make(chan *Notification, 256),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Queue exposes the delivery feed for the worker.
func (d *Dispatcher) Queue() <-chan *Notification {
	return d.queue
}

// Enqueue persists the notification and hands it to the delivery queue.
// Returns an error only when persistence fails; a full queue drops the sink
// delivery and logs, the stored row remains readable either way.
func (d *Dispatcher) Enqueue(ctx context.Context, recipient id.UserID, docID id.DocumentID, typ Type, message string) error {
	n, err := New(id.NotificationID(uuid.New()), recipient, docID, typ, message, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := d.store.Append(ctx, n); err != nil {
		return err
	}
	if d.metrics != nil {
		d.metrics.NotificationsEnqueued.Inc()
	}

	if d.cache != nil {
		if err := d.cache.Increment(ctx, recipient); err != nil {
			d.logger.WarnContext(ctx, "unread cache increment failed",
				slog.String("recipient_id", recipient.String()),
				slog.String("error", err.Error()))
		}
	}

	select {
	case d.queue <- n:
	default:
		d.logger.WarnContext(ctx, "notification queue full, skipping sink delivery",
			slog.String("notification_id", n.ID.String()))
	}
	return nil
}

// MarkRead flips one notification and keeps the unread cache honest.
func (d *Dispatcher) MarkRead(ctx context.Context, nID id.NotificationID, recipient id.UserID) error {
	if err := d.store.MarkRead(ctx, nID, recipient); err != nil {
		return err
	}
	d.refreshCache(ctx, recipient)
	return nil
}

func (d *Dispatcher) MarkAllRead(ctx context.Context, recipient id.UserID) (int, error) {
	flipped, err := d.store.MarkAllRead(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if d.cache != nil {
		if err := d.cache.Reset(ctx, recipient, 0); err != nil {
			d.logger.WarnContext(ctx, "unread cache reset failed",
				slog.String("recipient_id", recipient.String()),
				slog.String("error", err.Error()))
		}
	}
	return flipped, nil
}

func (d *Dispatcher) ListByRecipient(ctx context.Context, recipient id.UserID, unreadOnly bool) ([]*Notification, error) {
	return d.store.ListByRecipient(ctx, recipient, unreadOnly)
}

// CountUnread serves from the cache when it has an answer and falls back to
// the store otherwise.
func (d *Dispatcher) CountUnread(ctx context.Context, recipient id.UserID) (int, error) {
	if d.cache != nil {
		count, ok, err := d.cache.Get(ctx, recipient)
		if err == nil && ok {
			return count, nil
		}
		if err != nil {
			d.logger.WarnContext(ctx, "unread cache read failed, falling back to store",
				slog.String("recipient_id", recipient.String()),
				slog.String("error", err.Error()))
		}
	}
	count, err := d.store.CountUnread(ctx, recipient)
	if err != nil {
		return 0, err
	}
	if d.cache != nil {
		if cacheErr := d.cache.Reset(ctx, recipient, count); cacheErr != nil {
			d.logger.WarnContext(ctx, "unread cache refresh failed",
				slog.String("recipient_id", recipient.String()),
				slog.String("error", cacheErr.Error()))
		}
	}
	return count, nil
}

func (d *Dispatcher) refreshCache(ctx context.Context, recipient id.UserID) {
	if d.cache == nil {
		return
	}
	count, err := d.store.CountUnread(ctx, recipient)
	if err != nil {
		d.logger.WarnContext(ctx, "unread recount failed",
			slog.String("recipient_id", recipient.String()),
			slog.String("error", err.Error()))
		return
	}
	if err := d.cache.Reset(ctx, recipient, count); err != nil {
		d.logger.WarnContext(ctx, "unread cache reset failed",
			slog.String("recipient_id", recipient.String()),
			slog.String("error", err.Error()))
	}
}
