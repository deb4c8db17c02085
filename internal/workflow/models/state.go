package models

import dErrors "examflow/pkg/domain-errors"

// State is the closed enum of document workflow states. Every stored document
// is in exactly one of these; transitions between them go through the
// transition table, never through ad-hoc string comparison.
type State string

const (
	StateDraft              State = "DRAFT"
	StatePendingDeptReview  State = "PENDING_DEPT_REVIEW"
	StateNeedsRevision      State = "NEEDS_REVISION"
	StatePendingFinalReview State = "PENDING_FINAL_REVIEW"
	StateApproved           State = "APPROVED"
)

var validStates = map[State]bool{
	StateDraft:              true,
	StatePendingDeptReview:  true,
	StateNeedsRevision:      true,
	StatePendingFinalReview: true,
	StateApproved:           true,
}

// ParseState constructs a State from external input (store rows, requests).
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown workflow state: "+s)
	}
	return st, nil
}

func (s State) IsValid() bool {
	return validStates[s]
}

func (s State) String() string {
	return string(s)
}

// Action is the closed enum of workflow transitions a caller can request.
type Action string

const (
	ActionSubmitForReview  Action = "submit_for_review"
	ActionDeptApprove      Action = "dept_approve"
	ActionDeptReject       Action = "dept_reject"
	ActionFinalApprove     Action = "final_approve"
	ActionFinalReject      Action = "final_reject"
	ActionUploadNewVersion Action = "upload_new_version"
)

// ParseAction constructs an Action from external input.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitionTable[a]; !ok {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown workflow action: "+s)
	}
	return a, nil
}

func (a Action) String() string {
	return string(a)
}
