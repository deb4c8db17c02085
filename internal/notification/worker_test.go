package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	id "examflow/pkg/domain"
)

type recordingSink struct {
	mu        sync.Mutex
	delivered []*Notification
	failures  int
}

func (s *recordingSink) Deliver(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.delivered = append(s.delivered, n)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func testNotification(t *testing.T) *Notification {
	t.Helper()
	n, err := New(
		id.NotificationID(uuid.New()),
		id.UserID(uuid.New()),
		id.DocumentID(uuid.New()),
		TypeReviewRequest,
		"CS101 Final Exam is awaiting your review",
		time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return n
}

func TestWorkerDeliversFromQueue(t *testing.T) {
	sink := &recordingSink{}
	inbox := make(chan *Notification, 4)
	worker := NewWorker(sink, inbox, WithBaseBackoff(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = worker.Run(ctx)
	}()

	inbox <- testNotification(t)
	inbox <- testNotification(t)

	require.Eventually(t, func() bool { return sink.count() == 2 },
		time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	sink := &recordingSink{failures: 2}
	inbox := make(chan *Notification, 1)
	worker := NewWorker(sink, inbox,
		WithBaseBackoff(time.Millisecond),
		WithMaxAttempts(3),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	inbox <- testNotification(t)

	require.Eventually(t, func() bool { return sink.count() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	sink := &recordingSink{failures: 10}
	inbox := make(chan *Notification, 1)
	worker := NewWorker(sink, inbox,
		WithBaseBackoff(time.Millisecond),
		WithMaxAttempts(2),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	inbox <- testNotification(t)

	// Two attempts consume two queued failures and deliver nothing.
	require.Never(t, func() bool { return sink.count() > 0 },
		200*time.Millisecond, 10*time.Millisecond)

	sink.mu.Lock()
	remaining := sink.failures
	sink.mu.Unlock()
	require.Equal(t, 8, remaining)
}
