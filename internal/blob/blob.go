// Package blob abstracts where exam-document content bytes live. The review
// pipeline only ever handles locators; content itself stays out of the
// relational store.
package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"examflow/pkg/platform/sentinel"
)

// Store puts and gets opaque content blobs by locator.
type Store interface {
	Put(ctx context.Context, content []byte, contentType string) (locator string, err error)
	Get(ctx context.Context, locator string) (content []byte, contentType string, err error)
}

type object struct {
	content     []byte
	contentType string
}

// InMemoryStore backs development and tests. Locators are opaque and
// single-writer; objects are immutable once stored.
type InMemoryStore struct {
	mu      sync.RWMutex
	objects map[string]object
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{objects: make(map[string]object)}
}

func (s *InMemoryStore) Put(_ context.Context, content []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	locator := fmt.Sprintf("mem://%s", uuid.NewString())
	cp := make([]byte, len(content))
	copy(cp, content)
	s.objects[locator] = object{content: cp, contentType: contentType}
	return locator, nil
}

func (s *InMemoryStore) Get(_ context.Context, locator string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[locator]
	if !ok {
		return nil, "", sentinel.ErrNotFound
	}
	cp := make([]byte, len(obj.content))
	copy(cp, obj.content)
	return cp, obj.contentType, nil
}
