package workflow

import "fmt"

// VersionBump describes how a transition changes the document version.
type VersionBump string

const (
	BumpNone  VersionBump = ""
	BumpMinor VersionBump = "minor"
	BumpMajor VersionBump = "major"
)

// StatusTransition is one immutable row of the transition table.
type StatusTransition struct {
	From        Status
	To          Status
	Action      Action
	Category    Category
	Phase       Phase
	VersionBump VersionBump
	ClearsOwner bool
}

// Table is an ordered, validated set of transitions.
type Table struct {
	rows []StatusTransition
}

// NewTable validates rows and returns an immutable table.
func NewTable(rows []StatusTransition) (*Table, error) {
	type key struct {
		from       Status
		action     Action
		executable bool
	}
	seen := make(map[key]int, len(rows))

	for i, row := range rows {
		if !row.From.IsValid() || !row.To.IsValid() {
			return nil, fmt.Errorf("%w: row %d has unknown status", ErrInvalidTable, i)
		}
		if !row.Action.IsValid() {
			return nil, fmt.Errorf("%w: row %d has unknown action %q", ErrInvalidTable, i, row.Action)
		}
		if row.Category == CategoryNonExecutable && row.Phase != PhaseNone {
			return nil, fmt.Errorf("%w: row %d is non-executable but carries phase %s", ErrInvalidTable, i, row.Phase)
		}
		if row.Phase != PhaseNone && inferPhase(row.From) != row.Phase {
			return nil, fmt.Errorf("%w: row %d phase %s disagrees with status %s", ErrInvalidTable, i, row.Phase, row.From)
		}
		for _, executable := range []bool{false, true} {
			if !row.Category.Matches(executable) {
				continue
			}
			k := key{from: row.From, action: row.Action, executable: executable}
			if prev, ok := seen[k]; ok {
				return nil, fmt.Errorf("%w: rows %d and %d both match %s from %s (executable=%t)",
					ErrInvalidTable, prev, i, row.Action, row.From, executable)
			}
			seen[k] = i
		}
	}

	return &Table{rows: append([]StatusTransition(nil), rows...)}, nil
}

// MustNewTable is NewTable for tables known at compile time.
func MustNewTable(rows []StatusTransition) *Table {
	t, err := NewTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Rows returns a copy of the table rows in order.
func (t *Table) Rows() []StatusTransition {
	return append([]StatusTransition(nil), t.rows...)
}

// Lookup returns the first row matching the triple.
func (t *Table) Lookup(from Status, action Action, executable bool) (StatusTransition, bool) {
	for _, row := range t.rows {
		if row.From == from && row.Action == action && row.Category.Matches(executable) {
			return row, true
		}
	}
	return StatusTransition{}, false
}

func nonExec(from, to Status, action Action) StatusTransition {
	return StatusTransition{From: from, To: to, Action: action, Category: CategoryNonExecutable, Phase: PhaseNone}
}

func exec(from, to Status, action Action, phase Phase) StatusTransition {
	return StatusTransition{From: from, To: to, Action: action, Category: CategoryExecutable, Phase: phase}
}

func withBump(row StatusTransition, bump VersionBump) StatusTransition {
	row.VersionBump = bump
	return row
}

func clearingOwner(row StatusTransition) StatusTransition {
	row.ClearsOwner = true
	return row
}

// DefaultRows returns the document-control transition rows.
func DefaultRows() []StatusTransition {
	return []StatusTransition{
		// Non-executable cycle.
		nonExec(StatusDraft, StatusInReview, ActionRouteReview),
		nonExec(StatusReviewed, StatusInReview, ActionRouteReview),
		nonExec(StatusInReview, StatusReviewed, ActionReview),
		nonExec(StatusInReview, StatusDraft, ActionRequestUpdates),
		nonExec(StatusReviewed, StatusDraft, ActionCheckin),
		nonExec(StatusReviewed, StatusInApproval, ActionRouteApproval),
		withBump(nonExec(StatusInApproval, StatusApproved, ActionApprove), BumpMajor),
		nonExec(StatusInApproval, StatusReviewed, ActionReject),
		clearingOwner(nonExec(StatusApproved, StatusEffective, ActionMakeEffective)),
		clearingOwner(nonExec(StatusApproved, StatusRetired, ActionRetire)),
		withBump(nonExec(StatusEffective, StatusDraft, ActionRevise), BumpMinor),

		// Executable pre-execution cycle.
		exec(StatusDraft, StatusInPreReview, ActionRouteReview, PhasePre),
		exec(StatusPreReviewed, StatusInPreReview, ActionRouteReview, PhasePre),
		exec(StatusInPreReview, StatusPreReviewed, ActionReview, PhasePre),
		exec(StatusInPreReview, StatusDraft, ActionRequestUpdates, PhasePre),
		exec(StatusPreReviewed, StatusDraft, ActionCheckin, PhasePre),
		exec(StatusPreReviewed, StatusInPreApproval, ActionRouteApproval, PhasePre),
		withBump(exec(StatusInPreApproval, StatusPreApproved, ActionApprove, PhasePre), BumpMajor),
		exec(StatusInPreApproval, StatusPreReviewed, ActionReject, PhasePre),
		exec(StatusPreApproved, StatusInExecution, ActionRelease, PhasePre),

		// Executable post-execution cycle.
		exec(StatusInExecution, StatusInPostReview, ActionRouteReview, PhasePost),
		exec(StatusPostReviewed, StatusInPostReview, ActionRouteReview, PhasePost),
		exec(StatusInPostReview, StatusPostReviewed, ActionReview, PhasePost),
		exec(StatusInPostReview, StatusInExecution, ActionRequestUpdates, PhasePost),
		exec(StatusPostReviewed, StatusInExecution, ActionCheckin, PhasePost),
		exec(StatusPostReviewed, StatusInExecution, ActionRevert, PhasePost),
		exec(StatusPostReviewed, StatusInPostApproval, ActionRouteApproval, PhasePost),
		withBump(exec(StatusInPostApproval, StatusPostApproved, ActionApprove, PhasePost), BumpMajor),
		exec(StatusInPostApproval, StatusPostReviewed, ActionReject, PhasePost),
		clearingOwner(exec(StatusPostApproved, StatusClosed, ActionClose, PhasePost)),
		clearingOwner(exec(StatusPostApproved, StatusRetired, ActionRetire, PhasePost)),
	}
}

// DefaultTable builds the document-control transition table.
func DefaultTable() *Table {
	return MustNewTable(DefaultRows())
}
