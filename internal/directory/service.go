package directory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
	"examflow/pkg/platform/sentinel"
	"examflow/pkg/requestcontext"
)

type Store interface {
	CreateDepartment(ctx context.Context, dept *Department) error
	GetDepartment(ctx context.Context, deptID id.DepartmentID) (*Department, error)
	ListDepartments(ctx context.Context) ([]*Department, error)
	UpdateDepartment(ctx context.Context, dept *Department) error
	PutUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, userID id.UserID) (*User, error)
	ListUsersByRole(ctx context.Context, role id.Role) ([]*User, error)
}

// Service answers the questions the review pipeline asks of the org chart:
// who is this actor, which department do they belong to, and who approves
// for a given department.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateDepartment(ctx context.Context, name, code string) (*Department, error) {
	dept, err := NewDepartment(id.DepartmentID(uuid.New()), name, code, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateDepartment(ctx, dept); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "department %q already exists", dept.Name)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create department")
	}
	s.logger.InfoContext(ctx, "department created",
		slog.String("department_id", dept.ID.String()),
		slog.String("name", dept.Name))
	return dept, nil
}

func (s *Service) GetDepartment(ctx context.Context, deptID id.DepartmentID) (*Department, error) {
	dept, err := s.store.GetDepartment(ctx, deptID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "department not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get department")
	}
	return dept, nil
}

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	depts, err := s.store.ListDepartments(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list departments")
	}
	return depts, nil
}

// AssignApprover binds a department approver to a department. The user must
// exist and hold the department approver role.
func (s *Service) AssignApprover(ctx context.Context, deptID id.DepartmentID, approverID id.UserID) (*Department, error) {
	approver, err := s.GetUser(ctx, approverID)
	if err != nil {
		return nil, err
	}
	if approver.Role != id.RoleDeptApprover {
		return nil, dErrors.Newf(dErrors.CodeValidation,
			"user %s does not hold the department approver role", approverID)
	}
	dept, err := s.GetDepartment(ctx, deptID)
	if err != nil {
		return nil, err
	}
	dept.ApproverID = &approverID
	dept.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.UpdateDepartment(ctx, dept); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "department not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "assign approver")
	}
	s.logger.InfoContext(ctx, "department approver assigned",
		slog.String("department_id", deptID.String()),
		slog.String("approver_id", approverID.String()))
	return dept, nil
}

// ApproverFor resolves the first-stage reviewer for a department. A
// department without an approver cannot receive submissions, which callers
// surface as a validation failure.
func (s *Service) ApproverFor(ctx context.Context, deptID id.DepartmentID) (id.UserID, error) {
	dept, err := s.GetDepartment(ctx, deptID)
	if err != nil {
		return id.UserID{}, err
	}
	if dept.ApproverID == nil {
		return id.UserID{}, dErrors.Newf(dErrors.CodeValidation,
			"department %q has no approver assigned", dept.Name)
	}
	return *dept.ApproverID, nil
}

func (s *Service) RegisterUser(ctx context.Context, name, email string, role id.Role, dept *id.DepartmentID) (*User, error) {
	if dept != nil {
		if _, err := s.GetDepartment(ctx, *dept); err != nil {
			return nil, err
		}
	}
	user, err := NewUser(id.UserID(uuid.New()), name, email, role, dept)
	if err != nil {
		return nil, err
	}
	if err := s.store.PutUser(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Newf(dErrors.CodeConflict, "email %s is already registered", user.Email)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "register user")
	}
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, userID id.UserID) (*User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get user")
	}
	return user, nil
}

// RoleOf resolves an actor's role for authorization checks.
func (s *Service) RoleOf(ctx context.Context, userID id.UserID) (id.Role, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// DepartmentOf resolves a user's department binding; nil for roles that are
// not department-scoped.
func (s *Service) DepartmentOf(ctx context.Context, userID id.UserID) (*id.DepartmentID, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.DepartmentID, nil
}

// FinalApprovers lists every user holding the terminal approval role.
func (s *Service) FinalApprovers(ctx context.Context) ([]*User, error) {
	users, err := s.store.ListUsersByRole(ctx, id.RoleFinalApprover)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list final approvers")
	}
	return users, nil
}
