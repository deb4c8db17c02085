package models

import (
	"strings"

	id "examflow/pkg/domain"
	dErrors "examflow/pkg/domain-errors"
)

// NewVersionPayload carries the opaque handles for an uploaded version. The
// engine never inspects content; the locator comes from the blob store and the
// key handle from whatever encrypted the bytes.
type NewVersionPayload struct {
	ContentLocator string `json:"content_locator"`
	KeyHandle      string `json:"key_handle"`
	Description    string `json:"description"`
}

// Validate enforces presence of both opaque handles.
func (p *NewVersionPayload) Validate() error {
	if p == nil {
		return dErrors.New(dErrors.CodeValidation, "a new version payload is required for this action")
	}
	if strings.TrimSpace(p.ContentLocator) == "" {
		return dErrors.New(dErrors.CodeValidation, "content locator is required")
	}
	if strings.TrimSpace(p.KeyHandle) == "" {
		return dErrors.New(dErrors.CodeValidation, "key handle is required")
	}
	return nil
}

// TransitionRequest is one caller-issued attempt to move a document through
// the pipeline. ExpectedRevision is the caller's last-observed revision token;
// a stale value aborts the commit with a conflict and zero side effects.
type TransitionRequest struct {
	DocumentID       id.DocumentID
	Action           Action
	ActorID          id.UserID
	ExpectedRevision int64
	Comments         string
	NewVersion       *NewVersionPayload
}

// ValidateInputs enforces the rule's required inputs. State and authorization
// are checked separately, in the engine's fixed order.
func (r *TransitionRequest) ValidateInputs(rule Rule) error {
	if rule.RequiresComments && strings.TrimSpace(r.Comments) == "" {
		return dErrors.New(dErrors.CodeValidation, "comments are mandatory when rejecting a document")
	}
	if rule.RequiresPayload {
		if err := r.NewVersion.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TransitionResult reports a committed transition back to the caller.
// VersionNumber is set only for uploads; FeedbackID only when a feedback row
// was appended.
type TransitionResult struct {
	NewState      State          `json:"new_state"`
	NewRevision   int64          `json:"new_revision"`
	VersionNumber int            `json:"version_number,omitempty"`
	FeedbackID    *id.FeedbackID `json:"feedback_id,omitempty"`
}
