package notification

import (
	"context"
	"log/slog"
	"time"

	"examflow/internal/platform/metrics"
)

// Sink is an external delivery channel. Implementations must be safe for a
// single goroutine; the worker does not deliver concurrently.
type Sink interface {
	Deliver(ctx context.Context, n *Notification) error
}

// Worker drains the dispatcher queue and pushes each notification to the
// sink with bounded retries. Delivery failures are logged and counted but
// never surface to the workflow that produced the notification.
type Worker struct {
	sink        Sink
	inbox       <-chan *Notification
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	baseBackoff time.Duration
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) {
		w.maxAttempts = n
	}
}

func WithBaseBackoff(d time.Duration) WorkerOption {
	return func(w *Worker) {
		w.baseBackoff = d
	}
}

func NewWorker(sink Sink, inbox <-chan *Notification, opts ...WorkerOption) *Worker {
	w := &Worker{
		sink:        sink,
		inbox:       inbox,
		logger:      slog.Default(),
		maxAttempts: 3,
		baseBackoff: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-w.inbox:
			w.deliver(ctx, n)
		}
	}
}

func (w *Worker) deliver(ctx context.Context, n *Notification) {
	backoff := w.baseBackoff
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.sink.Deliver(ctx, n)
		if err == nil {
			if w.metrics != nil {
				w.metrics.NotificationsDelivered.Inc()
			}
			return
		}
		w.logger.WarnContext(ctx, "notification delivery failed",
			slog.String("notification_id", n.ID.String()),
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if w.metrics != nil {
		w.metrics.NotificationFailures.Inc()
	}
	w.logger.ErrorContext(ctx, "notification delivery exhausted retries",
		slog.String("notification_id", n.ID.String()),
		slog.String("recipient_id", n.RecipientID.String()))
}
