package workflow

import (
	"errors"
	"fmt"
)

// Engine answers every question about legal document transitions.
// It holds no mutable state; all inputs are supplied by the caller.
type Engine struct {
	table *Table
}

// NewEngine creates an engine over the given table.
func NewEngine(table *Table) *Engine {
	return &Engine{table: table}
}

// Table returns the engine's transition table.
func (e *Engine) Table() *Table {
	return e.table
}

// Transition returns the row for the given triple.
func (e *Engine) Transition(current Status, action Action, executable bool) (StatusTransition, error) {
	row, ok := e.table.Lookup(current, action, executable)
	if !ok {
		return StatusTransition{}, &TransitionError{From: current, Action: action, Executable: executable}
	}
	return row, nil
}

// IsReviewStatus reports whether reviewers are currently tasked.
func (e *Engine) IsReviewStatus(s Status) bool {
	return reviewStatuses.has(s)
}

// IsApprovalStatus reports whether approvers are currently tasked.
func (e *Engine) IsApprovalStatus(s Status) bool {
	return approvalStatuses.has(s)
}

// IsEditable reports whether document content may be checked out in s.
func (e *Engine) IsEditable(s Status) bool {
	return editableStatuses.has(s)
}

// InferPhase returns the executable phase a status belongs to.
func (e *Engine) InferPhase(s Status) Phase {
	return inferPhase(s)
}

func inferPhase(s Status) Phase {
	switch {
	case prePhaseStatuses.has(s):
		return PhasePre
	case postPhaseStatuses.has(s):
		return PhasePost
	default:
		return PhaseNone
	}
}

// statusExecutable reports whether a status other than DRAFT is only held by executable documents.
func statusExecutable(s Status) bool {
	return s != StatusDraft && inferPhase(s) != PhaseNone
}

// ReviewedStatus returns the status reached once a review round completes.
func (e *Engine) ReviewedStatus(current Status) (Status, error) {
	if !e.IsReviewStatus(current) {
		return "", fmt.Errorf("%w: %s is not a review status", ErrNotApplicable, current)
	}
	row, err := e.Transition(current, ActionReview, statusExecutable(current))
	if err != nil {
		return "", err
	}
	return row.To, nil
}

// ApprovedStatus returns the status reached once an approval round completes.
// Non-executable documents become effective in the same step.
func (e *Engine) ApprovedStatus(current Status, executable bool) (Status, error) {
	if !e.IsApprovalStatus(current) {
		return "", fmt.Errorf("%w: %s is not an approval status", ErrNotApplicable, current)
	}
	row, err := e.Transition(current, ActionApprove, executable)
	if err != nil {
		return "", err
	}
	if executable {
		return row.To, nil
	}
	next, err := e.Transition(row.To, ActionMakeEffective, executable)
	if err != nil {
		return "", err
	}
	return next.To, nil
}

// RejectionTarget returns where an approver's rejection sends the document.
func (e *Engine) RejectionTarget(current Status) (Status, error) {
	if !e.IsApprovalStatus(current) {
		return "", fmt.Errorf("%w: %s is not an approval status", ErrNotApplicable, current)
	}
	row, err := e.Transition(current, ActionReject, statusExecutable(current))
	if err != nil {
		return "", err
	}
	return row.To, nil
}

// RequestUpdatesTarget returns where a review-stage send-back leaves the document.
func (e *Engine) RequestUpdatesTarget(current Status) (Status, error) {
	if !e.IsReviewStatus(current) {
		return "", fmt.Errorf("%w: %s is not a review status", ErrNotApplicable, current)
	}
	row, err := e.Transition(current, ActionRequestUpdates, statusExecutable(current))
	if err != nil {
		return "", err
	}
	return row.To, nil
}

// BackwardAction picks the send-back action for the current stage.
func (e *Engine) BackwardAction(current Status) (Action, error) {
	switch {
	case e.IsApprovalStatus(current):
		return ActionReject, nil
	case e.IsReviewStatus(current):
		return ActionRequestUpdates, nil
	default:
		return "", fmt.Errorf("%w: %s is neither a review nor an approval status", ErrNotApplicable, current)
	}
}

// CheckinTarget returns the status after content is checked back in.
// Statuses with no CHECKIN row are left unchanged.
func (e *Engine) CheckinTarget(current Status, executable bool) Status {
	row, err := e.Transition(current, ActionCheckin, executable)
	if err != nil {
		return current
	}
	return row.To
}

// PlanInput carries everything the engine needs to validate one action.
type PlanInput struct {
	Status     Status
	Action     Action
	Executable bool
	Assignees  []string
	Reviews    []Review
}

// Plan validates an action in order: category, approval gate, table.
func (e *Engine) Plan(in PlanInput) (StatusTransition, error) {
	if in.Action.IsExecutionOnly() && !in.Executable {
		return StatusTransition{}, &CategoryError{Action: in.Action}
	}

	if in.Action == ActionRouteApproval {
		phase := PhaseNone
		if in.Executable {
			phase = e.InferPhase(in.Status)
		}
		if err := e.CheckApprovalGate(in.Assignees, reviewsInPhase(in.Reviews, phase)); err != nil {
			return StatusTransition{}, err
		}
	}

	return e.Transition(in.Status, in.Action, in.Executable)
}

// IsRefusal reports whether err is one of the engine's refusal kinds.
func IsRefusal(err error) bool {
	return errors.Is(err, ErrTransitionNotFound) ||
		errors.Is(err, ErrApprovalGateUnsatisfied) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrNotApplicable)
}
