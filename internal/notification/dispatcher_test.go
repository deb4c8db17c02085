package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

type fakeUnreadCache struct {
	mu     sync.Mutex
	counts map[id.UserID]int
	primed map[id.UserID]bool
	fail   bool
}

func newFakeUnreadCache() *fakeUnreadCache {
	return &fakeUnreadCache{
		counts: make(map[id.UserID]int),
		primed: make(map[id.UserID]bool),
	}
}

func (c *fakeUnreadCache) Increment(_ context.Context, recipient id.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	if c.primed[recipient] {
		c.counts[recipient]++
	}
	return nil
}

func (c *fakeUnreadCache) Reset(_ context.Context, recipient id.UserID, count int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.counts[recipient] = count
	c.primed[recipient] = true
	return nil
}

func (c *fakeUnreadCache) Get(_ context.Context, recipient id.UserID) (int, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return 0, false, errors.New("cache down")
	}
	if !c.primed[recipient] {
		return 0, false, nil
	}
	return c.counts[recipient], true, nil
}

type DispatcherSuite struct {
	suite.Suite
	store      *InMemoryStore
	cache      *fakeUnreadCache
	dispatcher *Dispatcher
	ctx        context.Context
	recipient  id.UserID
	docID      id.DocumentID
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.store = NewInMemory()
	s.cache = newFakeUnreadCache()
	s.dispatcher = NewDispatcher(s.store,
		WithUnreadCache(s.cache),
		WithQueueSize(8),
	)
	s.recipient = id.UserID(uuid.New())
	s.docID = id.DocumentID(uuid.New())
	s.ctx = requestcontext.WithTime(context.Background(),
		time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC))
}

func (s *DispatcherSuite) TestEnqueuePersistsAndQueues() {
	err := s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeReviewRequest,
		"CS101 Final Exam is awaiting your review")
	s.Require().NoError(err)

	stored, err := s.store.ListByRecipient(s.ctx, s.recipient, false)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(TypeReviewRequest, stored[0].Type)
	s.False(stored[0].Read)

	select {
	case queued := <-s.dispatcher.Queue():
		s.Equal(stored[0].ID, queued.ID)
	default:
		s.Fail("expected a queued notification")
	}
}

func (s *DispatcherSuite) TestEnqueueSurvivesFullQueue() {
	d := NewDispatcher(s.store, WithQueueSize(1))
	s.Require().NoError(d.Enqueue(s.ctx, s.recipient, s.docID, TypeInfo, "first"))
	s.Require().NoError(d.Enqueue(s.ctx, s.recipient, s.docID, TypeInfo, "second"))

	stored, err := s.store.ListByRecipient(s.ctx, s.recipient, false)
	s.Require().NoError(err)
	s.Len(stored, 2)
}

func (s *DispatcherSuite) TestEnqueueRejectsInvalidType() {
	err := s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, Type("fax"), "hello")
	s.Require().Error(err)
}

func (s *DispatcherSuite) TestCountUnread() {
	s.Run("falls back to store and primes the cache", func() {
		s.Require().NoError(s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeApproval, "approved"))
		s.Require().NoError(s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeInfo, "fyi"))

		count, err := s.dispatcher.CountUnread(s.ctx, s.recipient)
		s.Require().NoError(err)
		s.Equal(2, count)
	})

	s.Run("serves subsequent reads from the cache", func() {
		s.Require().NoError(s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeInfo, "another"))

		count, err := s.dispatcher.CountUnread(s.ctx, s.recipient)
		s.Require().NoError(err)
		s.Equal(3, count)
	})

	s.Run("cache failure falls back to the store", func() {
		s.cache.fail = true
		count, err := s.dispatcher.CountUnread(s.ctx, s.recipient)
		s.Require().NoError(err)
		s.Equal(3, count)
		s.cache.fail = false
	})
}

func (s *DispatcherSuite) TestMarkRead() {
	s.Require().NoError(s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeRejection,
		"CS101 Final Exam was returned with feedback"))
	stored, err := s.store.ListByRecipient(s.ctx, s.recipient, false)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)

	s.Run("recipient can mark their notification", func() {
		s.Require().NoError(s.dispatcher.MarkRead(s.ctx, stored[0].ID, s.recipient))

		unread, err := s.store.ListByRecipient(s.ctx, s.recipient, true)
		s.Require().NoError(err)
		s.Empty(unread)
	})

	s.Run("another user cannot mark it", func() {
		err := s.dispatcher.MarkRead(s.ctx, stored[0].ID, id.UserID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *DispatcherSuite) TestMarkAllRead() {
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.dispatcher.Enqueue(s.ctx, s.recipient, s.docID, TypeInfo, "msg"))
	}

	flipped, err := s.dispatcher.MarkAllRead(s.ctx, s.recipient)
	s.Require().NoError(err)
	s.Equal(3, flipped)

	count, err := s.dispatcher.CountUnread(s.ctx, s.recipient)
	s.Require().NoError(err)
	s.Equal(0, count)

	flipped, err = s.dispatcher.MarkAllRead(s.ctx, s.recipient)
	s.Require().NoError(err)
	s.Equal(0, flipped)
}
