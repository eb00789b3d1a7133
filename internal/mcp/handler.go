package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

// DocumentService defines document operations needed by MCP.
type DocumentService interface {
	Create(ctx context.Context, req document.CreateRequest) (*document.Document, error)
	Checkout(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	Checkin(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	Route(ctx context.Context, req document.RouteRequest) (*document.Document, error)
	Assign(ctx context.Context, req document.AssignRequest) (*document.Document, error)
	Review(ctx context.Context, req document.ReviewRequest) (*document.Document, error)
	Approve(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	Reject(ctx context.Context, req document.RejectRequest) (*document.Document, error)
	Release(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	Revert(ctx context.Context, req document.RevertRequest) (*document.Document, error)
	Close(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	Cancel(ctx context.Context, req document.CancelRequest) error
	Fix(ctx context.Context, req document.DocumentRequest) (*document.FixResult, error)
	Status(ctx context.Context, req document.DocumentRequest) (*document.Document, error)
	List(ctx context.Context, actor string, opts document.ListOptions) ([]document.Document, error)
	Inbox(ctx context.Context, actor string) ([]document.Document, error)
	Workspace(ctx context.Context, actor string) ([]document.Document, error)
	History(ctx context.Context, req document.DocumentRequest) ([]audit.Event, error)
	Comments(ctx context.Context, req document.CommentsRequest) ([]audit.Event, error)
}

// AuditService defines audit queries needed by MCP.
type AuditService interface {
	Recent(ctx context.Context, opts audit.ListOptions) ([]audit.Event, error)
}

// toolFunc runs one tool for an already identified actor.
type toolFunc func(ctx context.Context, actor string, params json.RawMessage) (any, error)

// Handler dispatches MCP tool calls to the document service.
type Handler struct {
	docs  DocumentService
	tools map[permission.Command]toolFunc
}

// NewHandler creates a new MCP handler.
func NewHandler(docs DocumentService) *Handler {
	h := &Handler{docs: docs}
	h.tools = map[permission.Command]toolFunc{
		permission.CommandCreate:    h.create,
		permission.CommandCheckout:  h.documentCommand(docs.Checkout),
		permission.CommandCheckin:   h.documentCommand(docs.Checkin),
		permission.CommandRoute:     h.route,
		permission.CommandAssign:    h.assign,
		permission.CommandReview:    h.review,
		permission.CommandApprove:   h.documentCommand(docs.Approve),
		permission.CommandReject:    h.reject,
		permission.CommandRelease:   h.documentCommand(docs.Release),
		permission.CommandRevert:    h.revert,
		permission.CommandClose:     h.documentCommand(docs.Close),
		permission.CommandCancel:    h.cancel,
		permission.CommandFix:       h.fix,
		permission.CommandRead:      h.list,
		permission.CommandStatus:    h.documentCommand(docs.Status),
		permission.CommandInbox:     h.inbox,
		permission.CommandWorkspace: h.workspace,
		permission.CommandHistory:   h.history,
		permission.CommandComments:  h.comments,
	}
	return h
}

// Tools returns the commands the handler serves, sorted.
func (h *Handler) Tools() []permission.Command {
	out := make([]permission.Command, 0, len(h.tools))
	for cmd := range h.tools {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Handle dispatches a tool call to the domain service.
func (h *Handler) Handle(ctx context.Context, actor string, cmd permission.Command, params json.RawMessage) (any, error) {
	fn, ok := h.tools[cmd]
	if !ok {
		return nil, &APIError{Code: "UNKNOWN_TOOL", Message: fmt.Sprintf("unknown tool %q", cmd)}
	}
	result, err := fn(ctx, actor, params)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

func (h *Handler) create(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req CreateParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Create(ctx, document.CreateRequest{
		Actor:    actor,
		Type:     req.Type,
		Title:    req.Title,
		ParentID: req.ParentID,
	})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

// documentCommand adapts commands that only need a document ID.
func (h *Handler) documentCommand(fn func(context.Context, document.DocumentRequest) (*document.Document, error)) toolFunc {
	return func(ctx context.Context, actor string, params json.RawMessage) (any, error) {
		var req DocumentParams
		if err := decodeParams(params, &req); err != nil {
			return nil, err
		}
		doc, err := fn(ctx, document.DocumentRequest{Actor: actor, DocumentID: req.DocumentID})
		if err != nil {
			return nil, err
		}
		return toDocumentResponse(doc), nil
	}
}

func (h *Handler) route(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req RouteParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Route(ctx, document.RouteRequest{
		Actor:      actor,
		DocumentID: req.DocumentID,
		Target:     document.RouteTarget(strings.ToLower(req.Target)),
		Assignees:  req.Assignees,
		Retire:     req.Retire,
	})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (h *Handler) assign(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req AssignParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Assign(ctx, document.AssignRequest{Actor: actor, DocumentID: req.DocumentID, Assignees: req.Assignees})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (h *Handler) review(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req ReviewParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Review(ctx, document.ReviewRequest{
		Actor:      actor,
		DocumentID: req.DocumentID,
		Outcome:    workflow.Outcome(strings.ToUpper(req.Outcome)),
		Comment:    req.Comment,
	})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (h *Handler) reject(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req RejectParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Reject(ctx, document.RejectRequest{Actor: actor, DocumentID: req.DocumentID, Comment: req.Comment})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (h *Handler) revert(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req RevertParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	doc, err := h.docs.Revert(ctx, document.RevertRequest{Actor: actor, DocumentID: req.DocumentID, Reason: req.Reason})
	if err != nil {
		return nil, err
	}
	return toDocumentResponse(doc), nil
}

func (h *Handler) cancel(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req CancelParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	err := h.docs.Cancel(ctx, document.CancelRequest{Actor: actor, DocumentID: req.DocumentID, Confirm: req.Confirm})
	if err != nil {
		return nil, err
	}
	return CancelResponse{DocumentID: req.DocumentID, Cancelled: true}, nil
}

func (h *Handler) fix(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req DocumentParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	res, err := h.docs.Fix(ctx, document.DocumentRequest{Actor: actor, DocumentID: req.DocumentID})
	if err != nil {
		return nil, err
	}
	changes := res.Changes
	if changes == nil {
		changes = []string{}
	}
	return FixResponse{Document: toDocumentResponse(res.Document), Changes: changes}, nil
}

func (h *Handler) list(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req ListParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	docs, err := h.docs.List(ctx, actor, document.ListOptions{
		Types:    req.Types,
		Statuses: toStatuses(req.Statuses),
		ParentID: req.ParentID,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return nil, err
	}
	return toDocumentList(docs), nil
}

func (h *Handler) inbox(ctx context.Context, actor string, _ json.RawMessage) (any, error) {
	docs, err := h.docs.Inbox(ctx, actor)
	if err != nil {
		return nil, err
	}
	return toDocumentList(docs), nil
}

func (h *Handler) workspace(ctx context.Context, actor string, _ json.RawMessage) (any, error) {
	docs, err := h.docs.Workspace(ctx, actor)
	if err != nil {
		return nil, err
	}
	return toDocumentList(docs), nil
}

func (h *Handler) history(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req DocumentParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	events, err := h.docs.History(ctx, document.DocumentRequest{Actor: actor, DocumentID: req.DocumentID})
	if err != nil {
		return nil, err
	}
	return EventListResponse{Events: nonNilEvents(events)}, nil
}

func (h *Handler) comments(ctx context.Context, actor string, params json.RawMessage) (any, error) {
	var req CommentsParams
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	events, err := h.docs.Comments(ctx, document.CommentsRequest{Actor: actor, DocumentID: req.DocumentID, Version: req.Version})
	if err != nil {
		return nil, err
	}
	return EventListResponse{Events: nonNilEvents(events)}, nil
}

func decodeParams(params json.RawMessage, out any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return &APIError{Code: "INVALID_INPUT", Message: fmt.Sprintf("malformed arguments: %v", err)}
	}
	return nil
}

func mapError(err error) error {
	if apiErr := MapError(err); apiErr != nil {
		return apiErr
	}
	return err
}

func nonNilEvents(events []audit.Event) []audit.Event {
	if events == nil {
		return []audit.Event{}
	}
	return events
}
