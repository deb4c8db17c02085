package version

import (
	"context"
	"sync"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

// InMemoryStore keeps version history in process. It favors clarity over
// performance and doubles as the fake for engine tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	versions map[id.DocumentID][]*Version
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{versions: make(map[id.DocumentID][]*Version)}
}

// Append records a new version. The version number must be the next in
// sequence for the document; anything else is a programming error upstream
// and is rejected as a conflict.
func (s *InMemoryStore) Append(_ context.Context, v *Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := s.versions[v.DocumentID]
	if v.VersionNumber != len(history)+1 {
		return sentinel.ErrConflict
	}
	copied := *v
	s.versions[v.DocumentID] = append(history, &copied)
	return nil
}

// ListByDocument returns the history oldest first.
func (s *InMemoryStore) ListByDocument(_ context.Context, docID id.DocumentID) ([]*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[docID]
	out := make([]*Version, 0, len(history))
	for _, v := range history {
		copied := *v
		out = append(out, &copied)
	}
	return out, nil
}

// Find returns one version or sentinel.ErrNotFound.
func (s *InMemoryStore) Find(_ context.Context, docID id.DocumentID, number int) (*Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.versions[docID]
	if number < 1 || number > len(history) {
		return nil, sentinel.ErrNotFound
	}
	copied := *history[number-1]
	return &copied, nil
}
