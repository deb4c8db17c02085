package models

import (
	"strings"
	"time"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// Document is the aggregate root for one logical exam file moving through the
// review pipeline.
//
// Invariants:
//   - Title is non-empty and at most 256 characters
//   - State is always one of the closed State enum values
//   - CurrentVersion is >= 1 and only ever increases
//   - Revision increases by exactly 1 on every committed transition; it is the
//     optimistic concurrency token, never exposed for arithmetic by callers
//   - Exactly one Document row exists per logical file, with exactly one
//     current version at a time
type Document struct {
	ID             id.DocumentID   `json:"id"`
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	OwnerID        id.UserID       `json:"owner_id"`
	DepartmentID   id.DepartmentID `json:"department_id"`
	State          State           `json:"state"`
	CurrentVersion int             `json:"current_version"`
	Revision       int64           `json:"revision"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewDocument constructs a Document in DRAFT at version 1, revision 1.
func NewDocument(docID id.DocumentID, title, description string, ownerID id.UserID, departmentID id.DepartmentID, now time.Time) (*Document, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document title cannot be empty")
	}
	if len(title) > 256 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document title must be 256 characters or less")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document owner is required")
	}
	if departmentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "document department is required")
	}
	return &Document{
		ID:             docID,
		Title:          title,
		Description:    description,
		OwnerID:        ownerID,
		DepartmentID:   departmentID,
		State:          StateDraft,
		CurrentVersion: 1,
		Revision:       1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanApply checks the source-state half of the transition table for action.
// Authorization and required-input checks happen earlier in the engine.
// Use with ApplyTransition in Execute callbacks.
func (d *Document) CanApply(action Action) error {
	rule, ok := RuleFor(action)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown workflow action: "+action.String())
	}
	if !rule.AllowsSource(d.State) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"action %s is not allowed from state %s", action, d.State)
	}
	return nil
}

// ApplyTransition moves the document to the action's target state and bumps
// the revision token. For uploads it also advances the current version.
// Call CanApply first to validate the transition.
func (d *Document) ApplyTransition(action Action, now time.Time) {
	rule := transitionTable[action]
	d.State = rule.Target
	d.Revision++
	d.UpdatedAt = now
	if action == ActionUploadNewVersion {
		d.CurrentVersion++
	}
}
