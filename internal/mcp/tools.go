package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/permission"
)

// ToolDefinition describes a callable tool
type ToolDefinition struct {
	Name        string
	Command     permission.Command
	Description string
	InputSchema map[string]any
}

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func userListProp(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

// objectSchema builds an input schema; every tool accepts an optional user.
func objectSchema(props map[string]any, required ...string) map[string]any {
	all := map[string]any{
		"user": stringProp("Acting user. Ignored when the transport authenticates the caller"),
	}
	for k, v := range props {
		all[k] = v
	}
	schema := map[string]any{
		"type":       "object",
		"properties": all,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

var docIDProp = stringProp("Document ID, e.g. SOP-001 or CR-002-TP-001")

// buildToolCatalog returns all available MCP tools
func buildToolCatalog() []ToolDefinition {
	docOnly := objectSchema(map[string]any{"doc_id": docIDProp}, "doc_id")

	return []ToolDefinition{
		{
			Name:        "create",
			Command:     permission.CommandCreate,
			Description: "Create a new controlled document in DRAFT at version 0.1, owned by the acting user",
			InputSchema: objectSchema(map[string]any{
				"type":      stringProp("Document type: SOP, RS, DS, CS, RTM, OQ, TEMPLATE, CR, INV, CAPA, TP, ER or VAR"),
				"title":     stringProp("Document title"),
				"parent_id": stringProp("Parent document ID; required for CAPA, TP, ER and VAR"),
			}, "type", "title"),
		},
		{
			Name:        "checkout",
			Command:     permission.CommandCheckout,
			Description: "Take the edit lock on a document. Checking out an EFFECTIVE document starts a new minor revision",
			InputSchema: docOnly,
		},
		{
			Name:        "checkin",
			Command:     permission.CommandCheckin,
			Description: "Release the edit lock. Edits after a completed review return the document to its phase entry status",
			InputSchema: docOnly,
		},
		{
			Name:        "route",
			Command:     permission.CommandRoute,
			Description: "Send a checked-in document for review or approval. Approval requires every reviewer of the last round to have recommended",
			InputSchema: objectSchema(map[string]any{
				"doc_id": docIDProp,
				"target": map[string]any{
					"type":        "string",
					"description": "Round to route into",
					"enum":        []string{"review", "approval"},
				},
				"assignees": userListProp("Users to assign; defaults to qa"),
				"retire": map[string]any{
					"type":        "boolean",
					"description": "Retire the document when this approval completes",
				},
			}, "doc_id", "target"),
		},
		{
			Name:        "assign",
			Command:     permission.CommandAssign,
			Description: "Add assignees to the active review or approval round",
			InputSchema: objectSchema(map[string]any{
				"doc_id":    docIDProp,
				"assignees": userListProp("Users to add"),
			}, "doc_id", "assignees"),
		},
		{
			Name:        "review",
			Command:     permission.CommandReview,
			Description: "Record a review outcome. The round completes when every assignee has reviewed",
			InputSchema: objectSchema(map[string]any{
				"doc_id": docIDProp,
				"outcome": map[string]any{
					"type":        "string",
					"description": "Review outcome",
					"enum":        []string{"RECOMMEND", "REQUEST_UPDATES"},
				},
				"comment": stringProp("Review comment"),
			}, "doc_id", "outcome", "comment"),
		},
		{
			Name:        "approve",
			Command:     permission.CommandApprove,
			Description: "Approve a document. The last approval bumps the major version",
			InputSchema: docOnly,
		},
		{
			Name:        "reject",
			Command:     permission.CommandReject,
			Description: "Reject a document in review or approval, sending it back with a comment",
			InputSchema: objectSchema(map[string]any{
				"doc_id":  docIDProp,
				"comment": stringProp("Reason for rejection"),
			}, "doc_id", "comment"),
		},
		{
			Name:        "release",
			Command:     permission.CommandRelease,
			Description: "Start execution of a PRE_APPROVED executable document",
			InputSchema: docOnly,
		},
		{
			Name:        "revert",
			Command:     permission.CommandRevert,
			Description: "Return a POST_REVIEWED executable document to execution",
			InputSchema: objectSchema(map[string]any{
				"doc_id": docIDProp,
				"reason": stringProp("Why execution must resume"),
			}, "doc_id", "reason"),
		},
		{
			Name:        "close",
			Command:     permission.CommandClose,
			Description: "Close a POST_APPROVED executable document",
			InputSchema: docOnly,
		},
		{
			Name:        "cancel",
			Command:     permission.CommandCancel,
			Description: "Permanently delete a document that was never released, with its audit trail",
			InputSchema: objectSchema(map[string]any{
				"doc_id": docIDProp,
				"confirm": map[string]any{
					"type":        "boolean",
					"description": "Must be true",
				},
			}, "doc_id", "confirm"),
		},
		{
			Name:        "fix",
			Command:     permission.CommandFix,
			Description: "Repair administrative metadata on an EFFECTIVE or CLOSED document",
			InputSchema: docOnly,
		},
		{
			Name:        "list",
			Command:     permission.CommandRead,
			Description: "List documents, optionally filtered by type, status or parent",
			InputSchema: objectSchema(map[string]any{
				"types":     userListProp("Document types"),
				"statuses":  userListProp("Statuses"),
				"parent_id": stringProp("Only children of this document"),
				"limit":     map[string]any{"type": "integer", "description": "Maximum number of results"},
				"offset":    map[string]any{"type": "integer", "description": "Offset for pagination"},
			}),
		},
		{
			Name:        "status",
			Command:     permission.CommandStatus,
			Description: "Show a document's status, version, owner and assignees",
			InputSchema: docOnly,
		},
		{
			Name:        "inbox",
			Command:     permission.CommandInbox,
			Description: "List documents awaiting the acting user's review or approval",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "workspace",
			Command:     permission.CommandWorkspace,
			Description: "List documents checked out by the acting user",
			InputSchema: objectSchema(nil),
		},
		{
			Name:        "history",
			Command:     permission.CommandHistory,
			Description: "Show a document's audit trail, oldest first",
			InputSchema: docOnly,
		},
		{
			Name:        "comments",
			Command:     permission.CommandComments,
			Description: "Show review and rejection comments for a version. Hidden while a review is open",
			InputSchema: objectSchema(map[string]any{
				"doc_id":  docIDProp,
				"version": stringProp("Version, e.g. 1.1; defaults to the current version"),
			}, "doc_id"),
		},
	}
}

// registerTools adds every catalog entry to the server.
func registerTools(server *sdkmcp.Server, handler *Handler, logger *slog.Logger) {
	for _, def := range buildToolCatalog() {
		server.AddTool(&sdkmcp.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, toolHandler(handler, def.Command, logger))
	}
}

func toolHandler(handler *Handler, cmd permission.Command, logger *slog.Logger) sdkmcp.ToolHandler {
	return func(ctx context.Context, req *sdkmcp.CallToolRequest) (*sdkmcp.CallToolResult, error) {
		var args json.RawMessage
		if req != nil && req.Params != nil {
			args = req.Params.Arguments
		}

		var user UserParams
		if err := decodeParams(args, &user); err != nil {
			return errorResult(err), nil
		}
		actor, err := resolveActor(ctx, user.User)
		if err != nil {
			return errorResult(err), nil
		}

		result, err := handler.Handle(ctx, actor, cmd, args)
		if err != nil {
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				if logger != nil {
					logger.Error("tool failed", "tool", cmd, "user", actor, "error", err)
				}
				return nil, fmt.Errorf("%s: internal error", cmd)
			}
			return errorResult(apiErr), nil
		}
		return jsonResult(result), nil
	}
}

func jsonResult(v any) *sdkmcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(&APIError{Code: "INTERNAL", Message: err.Error()})
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}

func errorResult(err error) *sdkmcp.CallToolResult {
	payload := MapError(err)
	if payload == nil {
		payload = &APIError{Code: "INTERNAL", Message: err.Error()}
	}
	data, _ := json.Marshal(map[string]any{"error": payload})
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(data)}},
	}
}
