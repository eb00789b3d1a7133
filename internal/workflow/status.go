package workflow

// Status is a node in the document state machine.
type Status string

const (
	StatusDraft Status = "DRAFT"

	// Non-executable cycle.
	StatusInReview   Status = "IN_REVIEW"
	StatusReviewed   Status = "REVIEWED"
	StatusInApproval Status = "IN_APPROVAL"
	StatusApproved   Status = "APPROVED"
	StatusEffective  Status = "EFFECTIVE"

	// Executable cycle.
	StatusInPreReview    Status = "IN_PRE_REVIEW"
	StatusPreReviewed    Status = "PRE_REVIEWED"
	StatusInPreApproval  Status = "IN_PRE_APPROVAL"
	StatusPreApproved    Status = "PRE_APPROVED"
	StatusInExecution    Status = "IN_EXECUTION"
	StatusInPostReview   Status = "IN_POST_REVIEW"
	StatusPostReviewed   Status = "POST_REVIEWED"
	StatusInPostApproval Status = "IN_POST_APPROVAL"
	StatusPostApproved   Status = "POST_APPROVED"
	StatusClosed         Status = "CLOSED"

	StatusRetired Status = "RETIRED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusDraft,
	StatusInReview, StatusReviewed, StatusInApproval, StatusApproved, StatusEffective,
	StatusInPreReview, StatusPreReviewed, StatusInPreApproval, StatusPreApproved,
	StatusInExecution,
	StatusInPostReview, StatusPostReviewed, StatusInPostApproval, StatusPostApproved, StatusClosed,
	StatusRetired,
}

type statusSet map[Status]struct{}

func newStatusSet(statuses ...Status) statusSet {
	set := make(statusSet, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return set
}

func (s statusSet) has(status Status) bool {
	_, ok := s[status]
	return ok
}

var (
	reviewStatuses    = newStatusSet(StatusInReview, StatusInPreReview, StatusInPostReview)
	approvalStatuses  = newStatusSet(StatusInApproval, StatusInPreApproval, StatusInPostApproval)
	terminalStatuses  = newStatusSet(StatusEffective, StatusClosed, StatusRetired)
	completedStatuses = newStatusSet(StatusEffective, StatusClosed)

	// prePhaseStatuses are the executable statuses before release.
	prePhaseStatuses = newStatusSet(
		StatusDraft, StatusInPreReview, StatusPreReviewed, StatusInPreApproval, StatusPreApproved,
	)
	// postPhaseStatuses are the executable statuses from release onwards.
	postPhaseStatuses = newStatusSet(
		StatusInExecution, StatusInPostReview, StatusPostReviewed, StatusInPostApproval,
		StatusPostApproved, StatusClosed,
	)

	// Content may only change while the document rests at a phase entry or
	// between a completed review and the next routing.
	editableStatuses = newStatusSet(
		StatusDraft, StatusReviewed, StatusPreReviewed, StatusPostReviewed, StatusInExecution, StatusEffective,
	)

	validStatuses = newStatusSet(AllStatuses...)
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return validStatuses.has(s)
}

// IsTerminal reports whether s ends a lifecycle.
func (s Status) IsTerminal() bool {
	return terminalStatuses.has(s)
}

// IsCompleted reports whether s is the successful end of a lifecycle.
func (s Status) IsCompleted() bool {
	return completedStatuses.has(s)
}

func (s Status) String() string {
	return string(s)
}

// Phase is the half of an executable workflow a status belongs to.
type Phase string

const (
	PhaseNone Phase = "NONE"
	PhasePre  Phase = "PRE"
	PhasePost Phase = "POST"
)

// Category says which document categories a transition row applies to.
type Category string

const (
	CategoryExecutable    Category = "EXECUTABLE"
	CategoryNonExecutable Category = "NON_EXECUTABLE"
	CategoryBoth          Category = "BOTH"
)

// Matches reports whether the category admits a document with the given flag.
func (c Category) Matches(executable bool) bool {
	switch c {
	case CategoryBoth:
		return true
	case CategoryExecutable:
		return executable
	case CategoryNonExecutable:
		return !executable
	default:
		return false
	}
}
