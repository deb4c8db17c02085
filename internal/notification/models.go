package notification

import (
	"time"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// Type classifies what a notification is asking of its recipient.
type Type string

const (
	// TypeReviewRequest tells an approver a document is waiting on them.
	TypeReviewRequest Type = "review_request"
	// TypeApproval tells an owner their document advanced.
	TypeApproval Type = "approval"
	// TypeRejection tells an owner their document was sent back.
	TypeRejection Type = "rejection"
	// TypeInfo carries everything else.
	TypeInfo Type = "info"
)

var validTypes = map[Type]bool{
	TypeReviewRequest: true,
	TypeApproval:      true,
	TypeRejection:     true,
	TypeInfo:          true,
}

func (t Type) IsValid() bool {
	return validTypes[t]
}

// Notification is one message addressed to one recipient. Delivery to
// external sinks is best effort; the stored row is the durable record.
type Notification struct {
	ID          id.NotificationID
	RecipientID id.UserID
	DocumentID  id.DocumentID
	Type        Type
	Message     string
	Read        bool
	CreatedAt   time.Time
}

func New(nID id.NotificationID, recipient id.UserID, docID id.DocumentID, typ Type, message string, at time.Time) (*Notification, error) {
	if !typ.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown notification type %q", typ)
	}
	if message == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "notification message cannot be empty")
	}
	return &Notification{
		ID:          nID,
		RecipientID: recipient,
		DocumentID:  docID,
		Type:        typ,
		Message:     message,
		CreatedAt:   at,
	}, nil
}
