package models

// ActorKind identifies who may perform a transition. The engine resolves the
// kind against the Role Directory and the document's department binding.
type ActorKind string

const (
	// ActorOwner is the document's originator.
	ActorOwner ActorKind = "owner"
	// ActorDeptApprover is the approver bound to the document's department.
	ActorDeptApprover ActorKind = "dept_approver"
	// ActorFinalApprover is the institution-wide approver.
	ActorFinalApprover ActorKind = "final_approver"
)

// Rule describes one row of the transition table: which source states permit
// the action, the target state, the required actor, and the required inputs.
type Rule struct {
	Sources          []State
	Target           State
	Actor            ActorKind
	RequiresComments bool
	RequiresPayload  bool
}

// AllowsSource reports whether the rule permits the action from state s.
func (r Rule) AllowsSource(s State) bool {
	for _, src := range r.Sources {
		if src == s {
			return true
		}
	}
	return false
}

// transitionTable is the single source of truth for the workflow. Approvals
// never skip a stage, rejects always need comments, and a new upload resets
// the cycle from any state except the two in-review states.
var transitionTable = map[Action]Rule{
	ActionSubmitForReview: {
		Sources: []State{StateDraft, StateNeedsRevision},
		Target:  StatePendingDeptReview,
		Actor:   ActorOwner,
	},
	ActionDeptApprove: {
		Sources: []State{StatePendingDeptReview},
		Target:  StatePendingFinalReview,
		Actor:   ActorDeptApprover,
	},
	ActionDeptReject: {
		Sources:          []State{StatePendingDeptReview},
		Target:           StateNeedsRevision,
		Actor:            ActorDeptApprover,
		RequiresComments: true,
	},
	ActionFinalApprove: {
		Sources: []State{StatePendingFinalReview},
		Target:  StateApproved,
		Actor:   ActorFinalApprover,
	},
	ActionFinalReject: {
		Sources:          []State{StatePendingFinalReview},
		Target:           StateNeedsRevision,
		Actor:            ActorFinalApprover,
		RequiresComments: true,
	},
	ActionUploadNewVersion: {
		Sources:         []State{StateDraft, StateNeedsRevision, StateApproved},
		Target:          StateDraft,
		Actor:           ActorOwner,
		RequiresPayload: true,
	},
}

// RuleFor returns the transition rule for an action.
func RuleFor(action Action) (Rule, bool) {
	r, ok := transitionTable[action]
	return r, ok
}

// Actions returns every known action; used by exhaustive tests.
func Actions() []Action {
	return []Action{
		ActionSubmitForReview,
		ActionDeptApprove,
		ActionDeptReject,
		ActionFinalApprove,
		ActionFinalReject,
		ActionUploadNewVersion,
	}
}

// States returns every known state; used by exhaustive tests.
func States() []State {
	return []State{
		StateDraft,
		StatePendingDeptReview,
		StateNeedsRevision,
		StatePendingFinalReview,
		StateApproved,
	}
}
