package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var recoveryHints = map[string]string{
	document.KindPermissionDenied:   "Check the user's group and whether they own or are assigned to the document",
	document.KindTransitionNotFound: "Call status to see the current status, then pick a command valid from it",
	document.KindApprovalGate:       "Every reviewer of the last round must recommend; route for review again",
	document.KindInvalidCategory:    "release, revert and close only apply to executable documents",
	document.KindNotFound:           "Check ID spelling",
	document.KindCheckoutConflict:   "Check in the document, or wait for its owner to",
	document.KindConflict:           "The document changed underneath you; read it again and retry",
	document.KindInvalidInput:       "Fix the arguments and retry",
	document.KindInvalidState:       "Call status to see the current status",
}

// MapError maps domain errors to MCP error codes. It returns nil for internal errors.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	kind := document.ErrorKind(err)
	if kind == document.KindInternal {
		return nil
	}
	out := &APIError{
		Code:         strings.ToUpper(kind),
		Message:      err.Error(),
		RecoveryHint: recoveryHints[kind],
	}

	var denied *permission.PermissionDeniedError
	var gate *workflow.GateError
	var transition *workflow.TransitionError
	switch {
	case errors.As(err, &denied):
		out.Details = map[string]any{
			"reason":   denied.Reason,
			"group":    denied.Actual,
			"required": denied.Required,
		}
	case errors.As(err, &gate):
		out.Details = map[string]any{
			"missing":           gate.Missing,
			"requested_updates": gate.RequestedUpdates,
		}
	case errors.As(err, &transition):
		out.Details = map[string]any{
			"from":   transition.From,
			"action": transition.Action,
		}
	}
	return out
}
