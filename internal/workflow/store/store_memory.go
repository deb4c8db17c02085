package store

import (
	"context"
	"sort"
	"sync"

	"examflow/internal/workflow/models"
	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

// InMemoryStore keeps documents under a single mutex. The compare half of
// Update happens under the same lock as the swap, which is what gives the
// memory store the same lost-update protection as the SQL revision guard.
type InMemoryStore struct {
	mu        sync.RWMutex
	documents map[id.DocumentID]*models.Document
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{documents: make(map[id.DocumentID]*models.Document)}
}

func (s *InMemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, docID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[docID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

// Update swaps in doc only while the stored revision still equals
// expectedRevision. A stale token returns ErrConflict and changes nothing.
func (s *InMemoryStore) Update(_ context.Context, doc *models.Document, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.documents[doc.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return sentinel.ErrConflict
	}
	cp := *doc
	s.documents[doc.ID] = &cp
	return nil
}

// ListByState returns matching documents oldest-updated first so reviewers
// see the longest-waiting submissions at the top.
func (s *InMemoryStore) ListByState(_ context.Context, state models.State, dept *id.DepartmentID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Document
	for _, doc := range s.documents {
		if doc.State != state {
			continue
		}
		if dept != nil && doc.DepartmentID != *dept {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	return out, nil
}

// ListByOwner returns the owner's documents newest-updated first.
func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Document
	for _, doc := range s.documents {
		if doc.OwnerID != ownerID {
			continue
		}
		cp := *doc
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}
