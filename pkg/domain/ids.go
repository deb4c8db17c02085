package domain

import (
	"github.com/google/uuid"

	dErrors "examflow/pkg/domain-errors"
)

// Typed IDs prevent cross-entity assignment at compile time. Construct via the
// Parse helpers at trust boundaries; direct casting bypasses validation.
type (
	DocumentID     uuid.UUID
	UserID         uuid.UUID
	DepartmentID   uuid.UUID
	FeedbackID     uuid.UUID
	NotificationID uuid.UUID
)

func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id cannot be the nil UUID")
	}
	return u, nil
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID(s)
	return DocumentID(u), err
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s)
	return UserID(u), err
}

func ParseDepartmentID(s string) (DepartmentID, error) {
	u, err := parseUUID(s)
	return DepartmentID(u), err
}

func ParseFeedbackID(s string) (FeedbackID, error) {
	u, err := parseUUID(s)
	return FeedbackID(u), err
}

func ParseNotificationID(s string) (NotificationID, error) {
	u, err := parseUUID(s)
	return NotificationID(u), err
}

func (d DocumentID) String() string     { return uuid.UUID(d).String() }
func (u UserID) String() string         { return uuid.UUID(u).String() }
func (d DepartmentID) String() string   { return uuid.UUID(d).String() }
func (f FeedbackID) String() string     { return uuid.UUID(f).String() }
func (n NotificationID) String() string { return uuid.UUID(n).String() }

func (d DocumentID) IsNil() bool     { return uuid.UUID(d) == uuid.Nil }
func (u UserID) IsNil() bool         { return uuid.UUID(u) == uuid.Nil }
func (d DepartmentID) IsNil() bool   { return uuid.UUID(d) == uuid.Nil }
func (f FeedbackID) IsNil() bool     { return uuid.UUID(f) == uuid.Nil }
func (n NotificationID) IsNil() bool { return uuid.UUID(n) == uuid.Nil }

// Text marshaling keeps typed IDs as canonical UUID strings in JSON.

func (d DocumentID) MarshalText() ([]byte, error)     { return []byte(d.String()), nil }
func (u UserID) MarshalText() ([]byte, error)         { return []byte(u.String()), nil }
func (d DepartmentID) MarshalText() ([]byte, error)   { return []byte(d.String()), nil }
func (f FeedbackID) MarshalText() ([]byte, error)     { return []byte(f.String()), nil }
func (n NotificationID) MarshalText() ([]byte, error) { return []byte(n.String()), nil }

func (d *DocumentID) UnmarshalText(text []byte) error {
	parsed, err := ParseDocumentID(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (u *UserID) UnmarshalText(text []byte) error {
	parsed, err := ParseUserID(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func (d *DepartmentID) UnmarshalText(text []byte) error {
	parsed, err := ParseDepartmentID(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (f *FeedbackID) UnmarshalText(text []byte) error {
	parsed, err := ParseFeedbackID(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func (n *NotificationID) UnmarshalText(text []byte) error {
	parsed, err := ParseNotificationID(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
