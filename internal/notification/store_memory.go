package notification

import (
	"context"
	"sort"
	"sync"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	byID        map[id.NotificationID]*Notification
	byRecipient map[id.UserID][]id.NotificationID
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:        make(map[id.NotificationID]*Notification),
		byRecipient: make(map[id.UserID][]id.NotificationID),
	}
}

func (s *InMemoryStore) Append(_ context.Context, n *Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[n.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *n
	s.byID[n.ID] = &cp
	s.byRecipient[n.RecipientID] = append(s.byRecipient[n.RecipientID], n.ID)
	return nil
}

// MarkRead flips a single notification. Only the recipient may mark their own
// notifications; a mismatched recipient reads as not found.
func (s *InMemoryStore) MarkRead(_ context.Context, nID id.NotificationID, recipient id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.byID[nID]
	if !ok || n.RecipientID != recipient {
		return sentinel.ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *InMemoryStore) MarkAllRead(_ context.Context, recipient id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var flipped int
	for _, nID := range s.byRecipient[recipient] {
		n := s.byID[nID]
		if !n.Read {
			n.Read = true
			flipped++
		}
	}
	return flipped, nil
}

// ListByRecipient returns notifications newest first.
func (s *InMemoryStore) ListByRecipient(_ context.Context, recipient id.UserID, unreadOnly bool) ([]*Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byRecipient[recipient]
	out := make([]*Notification, 0, len(ids))
	for _, nID := range ids {
		n := s.byID[nID]
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountUnread(_ context.Context, recipient id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, nID := range s.byRecipient[recipient] {
		if !s.byID[nID].Read {
			count++
		}
	}
	return count, nil
}
