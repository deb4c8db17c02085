package domain

import dErrors "examflow/pkg/domain-errors"

// Role is a closed enum of the review-pipeline roles. The originator writes
// documents, the department approver performs the first-stage review for their
// bound department, and the final approver performs the terminal
// institution-wide approval.
//
// Usage: construct via ParseRole at trust boundaries to enforce the allowlist;
// direct casting bypasses validation.
type Role string

const (
	RoleLecturer      Role = "lecturer"
	RoleDeptApprover  Role = "dept_approver"
	RoleFinalApprover Role = "final_approver"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleLecturer:      true,
	RoleDeptApprover:  true,
	RoleFinalApprover: true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks if the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}
