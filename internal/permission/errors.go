package permission

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPermissionDenied indicates the actor may not run the command.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrUnknownCommand indicates the command has no policy entry.
	ErrUnknownCommand = errors.New("unknown command")
)

// Denial reasons.
const (
	ReasonGroup           = "group"
	ReasonNotResponsible  = "not_responsible"
	ReasonNotAssigned     = "not_assigned"
	ReasonNotInAllowlist  = "not_in_allowlist"
	ReasonUnknownIdentity = "unknown_identity"
)

// PermissionDeniedError describes why a command was refused.
type PermissionDeniedError struct {
	Command  Command
	User     string
	Required []Group
	Actual   Group
	Reason   string
}

func (e *PermissionDeniedError) Error() string {
	switch e.Reason {
	case ReasonNotResponsible:
		return fmt.Sprintf("%s: %s: %s is not the responsible user", ErrPermissionDenied, e.Command, e.User)
	case ReasonNotAssigned:
		return fmt.Sprintf("%s: %s: %s is not assigned to this workflow", ErrPermissionDenied, e.Command, e.User)
	case ReasonNotInAllowlist:
		return fmt.Sprintf("%s: %s: %s is not on the %s allowlist", ErrPermissionDenied, e.Command, e.User, e.Command)
	case ReasonUnknownIdentity:
		return fmt.Sprintf("%s: %s: unknown user %q", ErrPermissionDenied, e.Command, e.User)
	}
	required := make([]string, len(e.Required))
	for i, g := range e.Required {
		required[i] = string(g)
	}
	return fmt.Sprintf("%s: %s requires %s, %s is %s",
		ErrPermissionDenied, e.Command, strings.Join(required, " or "), e.User, e.Actual)
}

func (e *PermissionDeniedError) Unwrap() error {
	return ErrPermissionDenied
}
