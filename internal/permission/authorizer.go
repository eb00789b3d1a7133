package permission

import (
	"context"
	"fmt"
	"log/slog"
)

// Subject is the document state a restricted rule is checked against.
type Subject struct {
	ResponsibleUser string
	// Assignees are the users still expected to act; nil skips the assignment check.
	Assignees []string
}

// Authorizer decides whether a user may run a command.
type Authorizer struct {
	policy   *Policy
	resolver Resolver
	logger   *slog.Logger
}

// NewAuthorizer creates an authorizer over an immutable policy.
func NewAuthorizer(policy *Policy, resolver Resolver, logger *slog.Logger) *Authorizer {
	return &Authorizer{policy: policy, resolver: resolver, logger: logger}
}

// GroupOf resolves the user's group; hardcoded administrators win over configuration.
func (a *Authorizer) GroupOf(ctx context.Context, username string) (Group, error) {
	if a.policy.IsAdmin(username) {
		return GroupAdministrator, nil
	}
	if a.resolver == nil {
		return GroupUnknown, nil
	}
	g, err := a.resolver.ResolveGroup(ctx, username)
	if err != nil {
		return GroupUnknown, fmt.Errorf("resolving group for %s: %w", username, err)
	}
	return g, nil
}

// Authorize returns nil if username may run cmd against subject.
func (a *Authorizer) Authorize(ctx context.Context, username string, cmd Command, subject Subject) error {
	rule, ok := a.policy.Rule(cmd)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, cmd)
	}

	if len(rule.Allowlist) > 0 {
		if contains(rule.Allowlist, username) {
			return nil
		}
		// Group is informational here; resolution errors don't change the outcome.
		group, _ := a.GroupOf(ctx, username)
		return a.deny(username, cmd, rule, group, ReasonNotInAllowlist)
	}

	group, err := a.GroupOf(ctx, username)
	if err != nil {
		return err
	}
	deny := func(reason string) error {
		return a.deny(username, cmd, rule, group, reason)
	}

	if !group.IsKnown() {
		return deny(ReasonUnknownIdentity)
	}
	if !allows(rule.Groups, group) {
		return deny(ReasonGroup)
	}

	switch rule.Restriction {
	case RestrictResponsible:
		if subject.ResponsibleUser != "" && subject.ResponsibleUser != username {
			return deny(ReasonNotResponsible)
		}
	case RestrictAssigned:
		if subject.Assignees != nil && !contains(subject.Assignees, username) {
			return deny(ReasonNotAssigned)
		}
	}
	return nil
}

func (a *Authorizer) deny(username string, cmd Command, rule Rule, group Group, reason string) error {
	if a.logger != nil {
		a.logger.Debug("permission denied", "user", username, "group", group, "command", cmd, "reason", reason)
	}
	return &PermissionDeniedError{Command: cmd, User: username, Required: rule.Groups, Actual: group, Reason: reason}
}

func allows(groups []Group, g Group) bool {
	for _, allowed := range groups {
		if g.Includes(allowed) {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
