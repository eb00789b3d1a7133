package document

import (
	"errors"

	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

var (
	// ErrDocumentNotFound indicates the document doesn't exist.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrCheckoutConflict indicates the checkout lock is not in the required state.
	ErrCheckoutConflict = errors.New("checkout conflict")
	// ErrConflict indicates the document changed between load and commit.
	ErrConflict = errors.New("document modified concurrently")
	// ErrAlreadyExists indicates a document with the same ID already exists.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrInvalidInput indicates invalid input for document operations.
	ErrInvalidInput = errors.New("invalid document input")
	// ErrNotInReview indicates the document is not awaiting review.
	ErrNotInReview = errors.New("document is not in review")
	// ErrNotInApproval indicates the document is not awaiting approval.
	ErrNotInApproval = errors.New("document is not in approval")
	// ErrNotInWorkflow indicates the document has no active review or approval round.
	ErrNotInWorkflow = errors.New("document has no active workflow")
	// ErrNotEditable indicates content cannot be checked out in the current status.
	ErrNotEditable = errors.New("document cannot be checked out in its current status")
	// ErrNotFixable indicates fix was attempted outside EFFECTIVE/CLOSED.
	ErrNotFixable = errors.New("fix only applies to EFFECTIVE or CLOSED documents")
	// ErrCannotCancel indicates the document was already released.
	ErrCannotCancel = errors.New("document cannot be cancelled")
	// ErrConfirmationRequired indicates a destructive operation needs explicit confirmation.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrCommentsHidden indicates comments are withheld during an open review.
	ErrCommentsHidden = errors.New("comments are not visible during review")
)

// Error kinds shared by the CLI and the tool server.
const (
	KindPermissionDenied   = "permission_denied"
	KindTransitionNotFound = "transition_not_found"
	KindApprovalGate       = "approval_gate_unsatisfied"
	KindInvalidCategory    = "invalid_category"
	KindNotFound           = "not_found"
	KindCheckoutConflict   = "checkout_conflict"
	KindConflict           = "conflict"
	KindInvalidInput       = "invalid_input"
	KindInvalidState       = "invalid_state"
	KindInternal           = "internal"
)

// ErrorKind classifies err into a stable kind string.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, permission.ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, workflow.ErrApprovalGateUnsatisfied):
		return KindApprovalGate
	case errors.Is(err, workflow.ErrInvalidCategory):
		return KindInvalidCategory
	case errors.Is(err, workflow.ErrTransitionNotFound), errors.Is(err, workflow.ErrNotApplicable):
		return KindTransitionNotFound
	case errors.Is(err, ErrDocumentNotFound):
		return KindNotFound
	case errors.Is(err, ErrCheckoutConflict):
		return KindCheckoutConflict
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfirmationRequired):
		return KindInvalidInput
	case errors.Is(err, ErrNotInReview), errors.Is(err, ErrNotInApproval), errors.Is(err, ErrNotInWorkflow),
		errors.Is(err, ErrNotEditable), errors.Is(err, ErrNotFixable), errors.Is(err, ErrCannotCancel),
		errors.Is(err, ErrCommentsHidden):
		return KindInvalidState
	default:
		return KindInternal
	}
}
