package permission

import "fmt"

// Command is a protected action from the command vocabulary.
type Command string

const (
	CommandCreate    Command = "create"
	CommandCheckout  Command = "checkout"
	CommandCheckin   Command = "checkin"
	CommandRoute     Command = "route"
	CommandAssign    Command = "assign"
	CommandReview    Command = "review"
	CommandApprove   Command = "approve"
	CommandReject    Command = "reject"
	CommandRelease   Command = "release"
	CommandRevert    Command = "revert"
	CommandClose     Command = "close"
	CommandCancel    Command = "cancel"
	CommandFix       Command = "fix"
	CommandRead      Command = "read"
	CommandStatus    Command = "status"
	CommandInbox     Command = "inbox"
	CommandWorkspace Command = "workspace"
	CommandHistory   Command = "history"
	CommandComments  Command = "comments"
)

// AllCommands lists every command in matrix order.
var AllCommands = []Command{
	CommandCreate, CommandCheckout, CommandCheckin, CommandRoute, CommandAssign,
	CommandReview, CommandApprove, CommandReject, CommandRelease, CommandRevert,
	CommandClose, CommandCancel, CommandFix, CommandRead, CommandStatus,
	CommandInbox, CommandWorkspace, CommandHistory, CommandComments,
}

// Restriction narrows a rule beyond group membership.
type Restriction string

const (
	RestrictNone        Restriction = ""
	RestrictResponsible Restriction = "responsible"
	RestrictAssigned    Restriction = "assigned"
)

// Rule is one row of the capability matrix.
type Rule struct {
	Groups      []Group
	Restriction Restriction
	// Allowlist replaces the group check entirely when non-empty.
	Allowlist []string
}

// PolicyConfig is the input to NewPolicy.
type PolicyConfig struct {
	Rules  map[Command]Rule
	Admins []string
}

// Policy is an immutable capability matrix.
type Policy struct {
	rules  map[Command]Rule
	admins map[string]struct{}
}

// NewPolicy validates cfg and copies it into an immutable policy.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	p := &Policy{
		rules:  make(map[Command]Rule, len(cfg.Rules)),
		admins: make(map[string]struct{}, len(cfg.Admins)),
	}
	for cmd, rule := range cfg.Rules {
		if len(rule.Groups) == 0 && len(rule.Allowlist) == 0 {
			return nil, fmt.Errorf("rule for %s grants nobody", cmd)
		}
		for _, g := range rule.Groups {
			if !g.IsKnown() {
				return nil, fmt.Errorf("rule for %s names unknown group %q", cmd, g)
			}
		}
		p.rules[cmd] = Rule{
			Groups:      append([]Group(nil), rule.Groups...),
			Restriction: rule.Restriction,
			Allowlist:   append([]string(nil), rule.Allowlist...),
		}
	}
	for _, a := range cfg.Admins {
		p.admins[a] = struct{}{}
	}
	return p, nil
}

// Rule returns the rule for a command.
func (p *Policy) Rule(cmd Command) (Rule, bool) {
	r, ok := p.rules[cmd]
	if !ok {
		return Rule{}, false
	}
	return Rule{
		Groups:      append([]Group(nil), r.Groups...),
		Restriction: r.Restriction,
		Allowlist:   append([]string(nil), r.Allowlist...),
	}, true
}

// IsAdmin reports whether the user is a hardcoded administrator.
func (p *Policy) IsAdmin(user string) bool {
	_, ok := p.admins[user]
	return ok
}

// HardcodedAdmins are administrators regardless of configuration.
var HardcodedAdmins = []string{"lead", "claude"}

// FixAllowlist names the only users who may run fix.
// This bypasses the group matrix on purpose and is pending product-owner
// confirmation; do not widen it to the administrator group.
var FixAllowlist = []string{"qa", "lead"}

// DefaultPolicyConfig returns the document-control capability matrix.
func DefaultPolicyConfig() PolicyConfig {
	everyone := []Group{GroupReviewer}
	return PolicyConfig{
		Admins: HardcodedAdmins,
		Rules: map[Command]Rule{
			CommandCreate:    {Groups: []Group{GroupInitiator}},
			CommandCheckout:  {Groups: []Group{GroupInitiator}},
			CommandCheckin:   {Groups: []Group{GroupInitiator}, Restriction: RestrictResponsible},
			CommandRoute:     {Groups: []Group{GroupInitiator, GroupQuality}, Restriction: RestrictResponsible},
			CommandAssign:    {Groups: []Group{GroupQuality}},
			CommandReview:    {Groups: []Group{GroupInitiator, GroupQuality, GroupReviewer}, Restriction: RestrictAssigned},
			CommandApprove:   {Groups: []Group{GroupQuality, GroupReviewer}, Restriction: RestrictAssigned},
			CommandReject:    {Groups: []Group{GroupQuality, GroupReviewer}, Restriction: RestrictAssigned},
			CommandRelease:   {Groups: []Group{GroupInitiator}, Restriction: RestrictResponsible},
			CommandRevert:    {Groups: []Group{GroupInitiator}, Restriction: RestrictResponsible},
			CommandClose:     {Groups: []Group{GroupInitiator}, Restriction: RestrictResponsible},
			CommandCancel:    {Groups: []Group{GroupInitiator}},
			CommandFix:       {Allowlist: FixAllowlist},
			CommandRead:      {Groups: everyone},
			CommandStatus:    {Groups: everyone},
			CommandInbox:     {Groups: everyone},
			CommandWorkspace: {Groups: everyone},
			CommandHistory:   {Groups: everyone},
			CommandComments:  {Groups: everyone},
		},
	}
}

// DefaultPolicy builds the default capability matrix.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultPolicyConfig())
	if err != nil {
		panic(err)
	}
	return p
}
