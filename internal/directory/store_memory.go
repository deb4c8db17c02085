package directory

import (
	"context"
	"sort"
	"strings"
	"sync"

	id "examflow/pkg/domain"
	"examflow/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	departments map[id.DepartmentID]*Department
	users       map[id.UserID]*User
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		departments: make(map[id.DepartmentID]*Department),
		users:       make(map[id.UserID]*User),
	}
}

func (s *InMemoryStore) CreateDepartment(_ context.Context, dept *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.departments {
		if strings.EqualFold(existing.Name, dept.Name) {
			return sentinel.ErrConflict
		}
	}
	cp := *dept
	s.departments[dept.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetDepartment(_ context.Context, deptID id.DepartmentID) (*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dept, ok := s.departments[deptID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *dept
	return &cp, nil
}

func (s *InMemoryStore) ListDepartments(_ context.Context) ([]*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Department, 0, len(s.departments))
	for _, dept := range s.departments {
		cp := *dept
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out, nil
}

func (s *InMemoryStore) UpdateDepartment(_ context.Context, dept *Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[dept.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *dept
	s.departments[dept.ID] = &cp
	return nil
}

func (s *InMemoryStore) PutUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *InMemoryStore) GetUser(_ context.Context, userID id.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (s *InMemoryStore) ListUsersByRole(_ context.Context, role id.Role) ([]*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*User
	for _, user := range s.users {
		if user.Role == role {
			cp := *user
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
