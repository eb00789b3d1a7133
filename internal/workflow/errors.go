package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrTransitionNotFound indicates no table row matches the requested transition.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrApprovalGateUnsatisfied indicates an assignee has not recommended the document.
	ErrApprovalGateUnsatisfied = errors.New("approval gate unsatisfied")
	// ErrInvalidCategory indicates an execution-only action on a non-executable document.
	ErrInvalidCategory = errors.New("action not valid for document category")
	// ErrInvalidTable indicates the transition table is malformed.
	ErrInvalidTable = errors.New("invalid transition table")
	// ErrNotApplicable indicates a status query was asked about a status outside its domain.
	ErrNotApplicable = errors.New("status query not applicable")
)

// TransitionError carries the triple that failed to resolve.
type TransitionError struct {
	From       Status
	Action     Action
	Executable bool
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s from %s (executable=%t)", ErrTransitionNotFound, e.Action, e.From, e.Executable)
}

func (e *TransitionError) Unwrap() error {
	return ErrTransitionNotFound
}

// GateError lists the assignees blocking approval routing.
type GateError struct {
	Missing          []string
	RequestedUpdates []string
}

func (e *GateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "no review from "+strings.Join(e.Missing, ", "))
	}
	if len(e.RequestedUpdates) > 0 {
		parts = append(parts, "updates requested by "+strings.Join(e.RequestedUpdates, ", "))
	}
	return fmt.Sprintf("%s: %s", ErrApprovalGateUnsatisfied, strings.Join(parts, "; "))
}

func (e *GateError) Unwrap() error {
	return ErrApprovalGateUnsatisfied
}

// CategoryError reports an execution-only action against a non-executable document.
type CategoryError struct {
	Action Action
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s: %s requires an executable document", ErrInvalidCategory, e.Action)
}

func (e *CategoryError) Unwrap() error {
	return ErrInvalidCategory
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
