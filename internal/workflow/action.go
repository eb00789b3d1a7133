package workflow

import "fmt"

// Action is a workflow verb consumed by the engine.
type Action string

const (
	ActionRouteReview    Action = "ROUTE_REVIEW"
	ActionRouteApproval  Action = "ROUTE_APPROVAL"
	ActionReview         Action = "REVIEW"
	ActionApprove        Action = "APPROVE"
	ActionReject         Action = "REJECT"
	ActionRequestUpdates Action = "REQUEST_UPDATES"
	ActionRelease        Action = "RELEASE"
	ActionRevert         Action = "REVERT"
	ActionClose          Action = "CLOSE"
	ActionMakeEffective  Action = "MAKE_EFFECTIVE"
	ActionRetire         Action = "RETIRE"
	ActionRevise         Action = "REVISE"
	ActionCheckin        Action = "CHECKIN"
)

// AllActions lists every action the engine understands.
var AllActions = []Action{
	ActionRouteReview,
	ActionRouteApproval,
	ActionReview,
	ActionApprove,
	ActionReject,
	ActionRequestUpdates,
	ActionRelease,
	ActionRevert,
	ActionClose,
	ActionMakeEffective,
	ActionRetire,
	ActionRevise,
	ActionCheckin,
}

// IsExecutionOnly reports whether the action only exists for executable documents.
func (a Action) IsExecutionOnly() bool {
	switch a {
	case ActionRelease, ActionRevert, ActionClose:
		return true
	default:
		return false
	}
}

// IsValid reports whether a is a known action.
func (a Action) IsValid() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

func (a Action) String() string {
	return string(a)
}

// ParseAction converts a string into an Action.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}
