package feedback

import (
	"time"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// Outcome records which way a review decision went.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

func (o Outcome) IsValid() bool {
	return o == OutcomeApproved || o == OutcomeRejected
}

// Feedback is one immutable review entry. Entries are never edited or
// deleted; the ledger is the audit trail of every decision made on a
// document.
type Feedback struct {
	ID            id.FeedbackID
	DocumentID    id.DocumentID
	VersionNumber int
	ReviewerID    id.UserID
	ReviewerRole  id.Role
	Outcome       Outcome
	Comments      string
	CreatedAt     time.Time
}

// New validates and builds a feedback entry. Rejections must carry comments;
// approvals may leave them empty.
func New(fbID id.FeedbackID, docID id.DocumentID, versionNumber int, reviewer id.UserID, role id.Role, outcome Outcome, comments string, at time.Time) (*Feedback, error) {
	if !outcome.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown feedback outcome %q", outcome)
	}
	if outcome == OutcomeRejected && comments == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "comments are mandatory when rejecting a document")
	}
	if versionNumber < 1 {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "feedback version number must be positive, got %d", versionNumber)
	}
	return &Feedback{
		ID:            fbID,
		DocumentID:    docID,
		VersionNumber: versionNumber,
		ReviewerID:    reviewer,
		ReviewerRole:  role,
		Outcome:       outcome,
		Comments:      comments,
		CreatedAt:     at,
	}, nil
}
