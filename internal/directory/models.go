package directory

import (
	"strings"
	"time"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// Department groups document owners under one first-stage approver. The
// approver binding is what routes a submitted document to its reviewer.
type Department struct {
	ID         id.DepartmentID
	Name       string
	Code       string
	ApproverID *id.UserID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// User is a directory entry. Role assignment is administrative; the pipeline
// only ever reads it.
type User struct {
	ID           id.UserID
	Name         string
	Email        string
	Role         id.Role
	DepartmentID *id.DepartmentID
}

func NewDepartment(deptID id.DepartmentID, name, code string, at time.Time) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "department name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeValidation, "department name exceeds 128 characters")
	}
	return &Department{
		ID:        deptID,
		Name:      name,
		Code:      strings.TrimSpace(code),
		CreatedAt: at,
		UpdatedAt: at,
	}, nil
}

func NewUser(userID id.UserID, name, email string, role id.Role, dept *id.DepartmentID) (*User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "user name cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, dErrors.New(dErrors.CodeValidation, "user email is invalid")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if role == id.RoleLecturer && dept == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "lecturers must belong to a department")
	}
	return &User{ID: userID, Name: name, Email: email, Role: role, DepartmentID: dept}, nil
}
