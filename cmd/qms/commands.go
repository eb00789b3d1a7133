package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
	cli "github.com/urfave/cli/v3"
)

// singleDocument runs a command that takes only a document ID.
type singleDocument func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error)

// singleDocumentCommands maps each ID-only command to its service method.
var singleDocumentCommands = map[permission.Command]struct {
	usage string
	run   singleDocument
}{
	permission.CommandCheckout: {"Take the edit lock; an EFFECTIVE document opens a new revision", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Checkout
	}},
	permission.CommandCheckin: {"Release the edit lock", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Checkin
	}},
	permission.CommandApprove: {"Approve a document assigned to you", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Approve
	}},
	permission.CommandRelease: {"Start execution of a PRE_APPROVED executable document", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Release
	}},
	permission.CommandClose: {"Close a POST_APPROVED executable document", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Close
	}},
	permission.CommandStatus: {"Show a document's workflow state", func(s *document.Service) func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return s.Status
	}},
}

func documentCommands() []*cli.Command {
	cmds := []*cli.Command{
		createCmd(),
		routeCmd(),
		assignCmd(),
		reviewCmd(),
		rejectCmd(),
		revertCmd(),
		cancelCmd(),
		fixCmd(),
		listCmd(),
		inboxCmd(),
		workspaceCmd(),
		historyCmd(),
		commentsCmd(),
	}
	for _, name := range []permission.Command{
		permission.CommandCheckout,
		permission.CommandCheckin,
		permission.CommandApprove,
		permission.CommandRelease,
		permission.CommandClose,
		permission.CommandStatus,
	} {
		cmds = append(cmds, singleDocumentCmd(name))
	}
	return cmds
}

func singleDocumentCmd(name permission.Command) *cli.Command {
	entry := singleDocumentCommands[name]
	return &cli.Command{
		Name:      string(name),
		Usage:     entry.usage,
		ArgsUsage: "<doc-id>",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			doc, err := entry.run(env.docs)(ctx, document.DocumentRequest{Actor: actor, DocumentID: id})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func createCmd() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a new DRAFT document",
		ArgsUsage: "<type>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Document title", Required: true},
			&cli.StringFlag{Name: "parent", Usage: "Parent document ID (CAPA, TP, ER, VAR)"},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			docType := cmd.Args().First()
			if docType == "" {
				return fmt.Errorf("%w: document type argument is required", document.ErrInvalidInput)
			}
			doc, err := env.docs.Create(ctx, document.CreateRequest{
				Actor:    actor,
				Type:     docType,
				Title:    cmd.String("title"),
				ParentID: cmd.String("parent"),
			})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func routeCmd() *cli.Command {
	return &cli.Command{
		Name:      "route",
		Usage:     "Send a document for review or approval",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "review", Usage: "Route for review"},
			&cli.BoolFlag{Name: "approval", Usage: "Route for approval"},
			&cli.StringSliceFlag{Name: "assignees", Aliases: []string{"a"}, Usage: "Users to assign (default qa)"},
			&cli.BoolFlag{Name: "retire", Usage: "Retire the document when approved"},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			var target document.RouteTarget
			switch {
			case cmd.Bool("review") && cmd.Bool("approval"):
				return fmt.Errorf("%w: --review and --approval are mutually exclusive", document.ErrInvalidInput)
			case cmd.Bool("review"):
				target = document.RouteReview
			case cmd.Bool("approval"):
				target = document.RouteApproval
			default:
				return fmt.Errorf("%w: one of --review or --approval is required", document.ErrInvalidInput)
			}
			doc, err := env.docs.Route(ctx, document.RouteRequest{
				Actor:      actor,
				DocumentID: id,
				Target:     target,
				Assignees:  splitUsers(cmd.StringSlice("assignees")),
				Retire:     cmd.Bool("retire"),
			})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func assignCmd() *cli.Command {
	return &cli.Command{
		Name:      "assign",
		Usage:     "Add assignees to the open review or approval round",
		ArgsUsage: "<doc-id> <user>...",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			users := splitUsers(cmd.Args().Tail())
			if len(users) == 0 {
				return fmt.Errorf("%w: at least one user is required", document.ErrInvalidInput)
			}
			doc, err := env.docs.Assign(ctx, document.AssignRequest{Actor: actor, DocumentID: id, Assignees: users})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func reviewCmd() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Record your review of a document",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "recommend", Usage: "Recommend for approval"},
			&cli.BoolFlag{Name: "request-updates", Usage: "Request changes"},
			&cli.StringFlag{Name: "comment", Aliases: []string{"m"}, Usage: "Review comment", Required: true},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			var outcome workflow.Outcome
			switch {
			case cmd.Bool("recommend") && cmd.Bool("request-updates"):
				return fmt.Errorf("%w: --recommend and --request-updates are mutually exclusive", document.ErrInvalidInput)
			case cmd.Bool("recommend"):
				outcome = workflow.OutcomeRecommend
			case cmd.Bool("request-updates"):
				outcome = workflow.OutcomeRequestUpdates
			default:
				return fmt.Errorf("%w: one of --recommend or --request-updates is required", document.ErrInvalidInput)
			}
			doc, err := env.docs.Review(ctx, document.ReviewRequest{
				Actor:      actor,
				DocumentID: id,
				Outcome:    outcome,
				Comment:    cmd.String("comment"),
			})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func rejectCmd() *cli.Command {
	return &cli.Command{
		Name:      "reject",
		Usage:     "Send a document back with a comment",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "comment", Aliases: []string{"m"}, Usage: "Reason for rejection", Required: true},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			doc, err := env.docs.Reject(ctx, document.RejectRequest{Actor: actor, DocumentID: id, Comment: cmd.String("comment")})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func revertCmd() *cli.Command {
	return &cli.Command{
		Name:      "revert",
		Usage:     "Return a POST_REVIEWED document to execution",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "reason", Usage: "Why execution must resume", Required: true},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			doc, err := env.docs.Revert(ctx, document.RevertRequest{Actor: actor, DocumentID: id, Reason: cmd.String("reason")})
			if err != nil {
				return err
			}
			return printDocument(cmd, doc)
		}),
	}
}

func cancelCmd() *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Permanently delete a document that never became effective",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Confirm deletion"},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			if err := env.docs.Cancel(ctx, document.CancelRequest{Actor: actor, DocumentID: id, Confirm: cmd.Bool("confirm")}); err != nil {
				return err
			}
			return printMessage(cmd, map[string]any{"doc_id": id, "cancelled": true}, fmt.Sprintf("%s cancelled", id))
		}),
	}
}

func fixCmd() *cli.Command {
	return &cli.Command{
		Name:      "fix",
		Usage:     "Repair administrative metadata on an EFFECTIVE or CLOSED document",
		ArgsUsage: "<doc-id>",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			res, err := env.docs.Fix(ctx, document.DocumentRequest{Actor: actor, DocumentID: id})
			if err != nil {
				return err
			}
			if useJSON(cmd) {
				return writeJSON(cmd, res)
			}
			if len(res.Changes) == 0 {
				fmt.Fprintf(out(cmd), "%s: nothing to fix\n", id)
				return nil
			}
			for _, c := range res.Changes {
				fmt.Fprintf(out(cmd), "%s: %s\n", id, c)
			}
			return nil
		}),
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List documents",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "type", Usage: "Filter by document type"},
			&cli.StringSliceFlag{Name: "status", Usage: "Filter by status"},
			&cli.StringFlag{Name: "parent", Usage: "Only children of this document"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of documents"},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			opts := document.ListOptions{
				Types: cmd.StringSlice("type"),
				Limit: int(cmd.Int("limit")),
			}
			for _, s := range cmd.StringSlice("status") {
				opts.Statuses = append(opts.Statuses, workflow.Status(strings.ToUpper(s)))
			}
			if parent := cmd.String("parent"); parent != "" {
				opts.ParentID = &parent
			}
			docs, err := env.docs.List(ctx, actor, opts)
			if err != nil {
				return err
			}
			return printDocuments(cmd, docs)
		}),
	}
}

func inboxCmd() *cli.Command {
	return &cli.Command{
		Name:  "inbox",
		Usage: "List documents awaiting your review or approval",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			docs, err := env.docs.Inbox(ctx, actor)
			if err != nil {
				return err
			}
			return printDocuments(cmd, docs)
		}),
	}
}

func workspaceCmd() *cli.Command {
	return &cli.Command{
		Name:  "workspace",
		Usage: "List documents you have checked out",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			docs, err := env.docs.Workspace(ctx, actor)
			if err != nil {
				return err
			}
			return printDocuments(cmd, docs)
		}),
	}
}

func historyCmd() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show a document's audit trail",
		ArgsUsage: "<doc-id>",
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			events, err := env.docs.History(ctx, document.DocumentRequest{Actor: actor, DocumentID: id})
			if err != nil {
				return err
			}
			return printEvents(cmd, events)
		}),
	}
}

func commentsCmd() *cli.Command {
	return &cli.Command{
		Name:      "comments",
		Usage:     "Show review comments for a version",
		ArgsUsage: "<doc-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "version", Usage: "Version (default: current)"},
		},
		Action: withEnvironment(func(ctx context.Context, cmd *cli.Command, env *environment, actor string) error {
			id, err := docIDArg(cmd)
			if err != nil {
				return err
			}
			events, err := env.docs.Comments(ctx, document.CommentsRequest{Actor: actor, DocumentID: id, Version: cmd.String("version")})
			if err != nil {
				return err
			}
			return printEvents(cmd, events)
		}),
	}
}

func docIDArg(cmd *cli.Command) (string, error) {
	id := strings.TrimSpace(cmd.Args().First())
	if id == "" {
		return "", fmt.Errorf("%w: document ID argument is required", document.ErrInvalidInput)
	}
	return strings.ToUpper(id), nil
}

// splitUsers accepts repeated flags and comma-separated lists.
func splitUsers(in []string) []string {
	var out []string
	for _, v := range in {
		for _, u := range strings.Split(v, ",") {
			if u = strings.TrimSpace(u); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}
