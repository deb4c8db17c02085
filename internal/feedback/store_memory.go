package feedback

import (
	"context"
	"sort"
	"sync"

	id "examflow/pkg/domain"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.DocumentID][]*Feedback
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.DocumentID][]*Feedback)}
}

func (s *InMemoryStore) Append(_ context.Context, fb *Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *fb
	s.entries[fb.DocumentID] = append(s.entries[fb.DocumentID], &cp)
	return nil
}

// ListByDocument returns the ledger newest first.
func (s *InMemoryStore) ListByDocument(_ context.Context, docID id.DocumentID) ([]*Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.entries[docID]
	out := make([]*Feedback, 0, len(stored))
	for _, fb := range stored {
		cp := *fb
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
