package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

const serverInstructions = `qms controls documents through review and approval.

Core concepts:
- Document: a typed, versioned record (SOP-001, CR-002, CR-002-TP-001). Versions start at 0.1; approval makes them N.0.
- Non-executable documents (SOP, RS, DS, ...) go DRAFT -> IN_REVIEW -> REVIEWED -> IN_APPROVAL -> APPROVED -> EFFECTIVE.
- Executable documents (CR, INV, CAPA, TP, ER, VAR) run a pre phase, an execution phase and a post phase before CLOSED.
- Checkout is an edit lock. Only the owner may check in or route.
- Review rounds complete when every assignee has reviewed. Approval needs every reviewer of the last round to recommend.

Default workflow:
1) Call status or list to orient. Call inbox for pending review work, workspace for your checkouts.
2) create, edit, checkin, then route with target=review.
3) Reviewers call review with RECOMMEND or REQUEST_UPDATES and a comment.
4) route with target=approval; approvers call approve or reject.
5) Executable documents: release after pre-approval, route again for post review, then close.

Errors carry a code such as PERMISSION_DENIED, TRANSITION_NOT_FOUND or APPROVAL_GATE_UNSATISFIED,
plus a recovery_hint.

Docs:
- qms://docs/index
- qms://workflow/transitions
- qms://permissions/matrix
- qms://audit/recent
`

const workflowGuide = `# qms: Agent Docs Index

## Commands

| Tool | Who | Effect |
|------|-----|--------|
| create | initiator | New document in DRAFT at 0.1 |
| checkout / checkin | initiator | Take or release the edit lock |
| route | owner | Send for review or approval |
| assign | quality | Add assignees to an open round |
| review | assignee | RECOMMEND or REQUEST_UPDATES |
| approve / reject | assignee | Decide an approval round |
| release / revert / close | owner | Executable document phases |
| cancel | owner | Delete a never-effective document (confirm=true) |
| fix | qa, lead | Repair metadata on EFFECTIVE or CLOSED documents |
| list / status / history / comments | anyone | Read-only |
| inbox / workspace | anyone | Your pending work and checkouts |

## Rules worth knowing

- Editing a document after a completed review returns it to the start of its phase, and the review must be repeated.
- Comments are hidden while a review round is open.
- Routing an approval with retire=true retires the document instead of making it effective.
- Cancel removes the document and its history permanently. Children block it.

## More

- qms://workflow/transitions lists every legal status change.
- qms://permissions/matrix lists which groups may run each command.
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	MIMEType    string
	Render      func(ctx context.Context) (string, error)
}

func staticText(text string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return text, nil }
}

func buildDocResources(engine *workflow.Engine, policy *permission.Policy, audits AuditService) []docResource {
	docs := []docResource{
		{
			URI:         "qms://docs/index",
			Name:        "docs_index",
			Title:       "qms docs index",
			Description: "Entry point: commands, who may run them, and workflow rules.",
			MIMEType:    "text/markdown",
			Render:      staticText(workflowGuide),
		},
	}
	if engine != nil {
		docs = append(docs, docResource{
			URI:         "qms://workflow/transitions",
			Name:        "workflow_transitions",
			Title:       "Workflow transition table",
			Description: "Every legal status change with its action and version effect.",
			MIMEType:    "text/markdown",
			Render:      staticText(renderTransitions(engine.Table())),
		})
	}
	if policy != nil {
		docs = append(docs, docResource{
			URI:         "qms://permissions/matrix",
			Name:        "permission_matrix",
			Title:       "Permission matrix",
			Description: "Groups and restrictions required per command.",
			MIMEType:    "text/markdown",
			Render:      staticText(renderPermissions(policy)),
		})
	}
	if audits != nil {
		docs = append(docs, docResource{
			URI:         "qms://audit/recent",
			Name:        "audit_recent",
			Title:       "Recent audit events",
			Description: "The latest audit trail entries across all documents, newest first.",
			MIMEType:    "application/json",
			Render: func(ctx context.Context) (string, error) {
				events, err := audits.Recent(ctx, audit.ListOptions{})
				if err != nil {
					return "", err
				}
				data, err := json.MarshalIndent(EventListResponse{Events: nonNilEvents(events)}, "", "  ")
				if err != nil {
					return "", err
				}
				return string(data), nil
			},
		})
	}
	return docs
}

func renderTransitions(table *workflow.Table) string {
	var b strings.Builder
	b.WriteString("# Transitions\n\n")
	b.WriteString("| From | Action | To | Category | Phase | Version | Clears owner |\n")
	b.WriteString("|------|--------|----|----------|-------|---------|--------------|\n")
	for _, row := range table.Rows() {
		bump := string(row.VersionBump)
		if bump == "" {
			bump = "-"
		}
		phase := string(row.Phase)
		if phase == "" {
			phase = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %t |\n",
			row.From, row.Action, row.To, row.Category, phase, bump, row.ClearsOwner)
	}
	return b.String()
}

func renderPermissions(policy *permission.Policy) string {
	var b strings.Builder
	b.WriteString("# Permissions\n\n")
	b.WriteString("Groups inherit the capabilities of groups below them: administrator > initiator > quality > reviewer.\n\n")
	b.WriteString("| Command | Groups | Restriction |\n")
	b.WriteString("|---------|--------|-------------|\n")
	for _, cmd := range permission.AllCommands {
		rule, ok := policy.Rule(cmd)
		if !ok {
			continue
		}
		who := make([]string, 0, len(rule.Groups))
		for _, g := range rule.Groups {
			who = append(who, string(g))
		}
		if len(rule.Allowlist) > 0 {
			who = []string{"users: " + strings.Join(rule.Allowlist, ", ")}
		}
		if len(who) == 0 {
			who = []string{"any"}
		}
		restriction := string(rule.Restriction)
		if restriction == "" {
			restriction = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cmd, strings.Join(who, ", "), restriction)
	}
	return b.String()
}

func registerDocResources(server *sdkmcp.Server, docs []docResource) {
	for _, doc := range docs {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    doc.MIMEType,
		}, func(ctx context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			text, err := doc.Render(ctx)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", doc.URI, err)
			}
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: doc.MIMEType,
					Text:     text,
				}},
			}, nil
		})
	}
}
