package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// docStub returns a canned document for every command unless a hook is set.
type docStub struct {
	calls []string

	createFn   func(context.Context, document.CreateRequest) (*document.Document, error)
	routeFn    func(context.Context, document.RouteRequest) (*document.Document, error)
	reviewFn   func(context.Context, document.ReviewRequest) (*document.Document, error)
	approveFn  func(context.Context, document.DocumentRequest) (*document.Document, error)
	cancelFn   func(context.Context, document.CancelRequest) error
	listFn     func(context.Context, string, document.ListOptions) ([]document.Document, error)
	commentsFn func(context.Context, document.CommentsRequest) ([]audit.Event, error)
}

func sampleDocument(id string) *document.Document {
	return &document.Document{
		ID:         id,
		Type:       "SOP",
		Title:      "Document control",
		Status:     workflow.StatusDraft,
		Version:    workflow.InitialVersion,
		ModifiedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (s *docStub) record(name string) { s.calls = append(s.calls, name) }

func (s *docStub) Create(ctx context.Context, req document.CreateRequest) (*document.Document, error) {
	s.record("create")
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return sampleDocument("SOP-001"), nil
}
func (s *docStub) Checkout(_ context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("checkout")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Checkin(_ context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("checkin")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Route(ctx context.Context, req document.RouteRequest) (*document.Document, error) {
	s.record("route")
	if s.routeFn != nil {
		return s.routeFn(ctx, req)
	}
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Assign(_ context.Context, req document.AssignRequest) (*document.Document, error) {
	s.record("assign")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Review(ctx context.Context, req document.ReviewRequest) (*document.Document, error) {
	s.record("review")
	if s.reviewFn != nil {
		return s.reviewFn(ctx, req)
	}
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Approve(ctx context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("approve")
	if s.approveFn != nil {
		return s.approveFn(ctx, req)
	}
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Reject(_ context.Context, req document.RejectRequest) (*document.Document, error) {
	s.record("reject")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Release(_ context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("release")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Revert(_ context.Context, req document.RevertRequest) (*document.Document, error) {
	s.record("revert")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Close(_ context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("close")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) Cancel(ctx context.Context, req document.CancelRequest) error {
	s.record("cancel")
	if s.cancelFn != nil {
		return s.cancelFn(ctx, req)
	}
	return nil
}
func (s *docStub) Fix(_ context.Context, req document.DocumentRequest) (*document.FixResult, error) {
	s.record("fix")
	return &document.FixResult{Document: sampleDocument(req.DocumentID)}, nil
}
func (s *docStub) Status(_ context.Context, req document.DocumentRequest) (*document.Document, error) {
	s.record("status")
	return sampleDocument(req.DocumentID), nil
}
func (s *docStub) List(ctx context.Context, actor string, opts document.ListOptions) ([]document.Document, error) {
	s.record("list")
	if s.listFn != nil {
		return s.listFn(ctx, actor, opts)
	}
	return nil, nil
}
func (s *docStub) Inbox(_ context.Context, _ string) ([]document.Document, error) {
	s.record("inbox")
	return []document.Document{*sampleDocument("SOP-001")}, nil
}
func (s *docStub) Workspace(_ context.Context, _ string) ([]document.Document, error) {
	s.record("workspace")
	return nil, nil
}
func (s *docStub) History(_ context.Context, _ document.DocumentRequest) ([]audit.Event, error) {
	s.record("history")
	return nil, nil
}
func (s *docStub) Comments(ctx context.Context, req document.CommentsRequest) ([]audit.Event, error) {
	s.record("comments")
	if s.commentsFn != nil {
		return s.commentsFn(ctx, req)
	}
	return nil, nil
}

type auditStub struct {
	events []audit.Event
	err    error
}

func (a auditStub) Recent(_ context.Context, _ audit.ListOptions) ([]audit.Event, error) {
	return a.events, a.err
}

func TestHandler_EveryToolDispatches(t *testing.T) {
	ctx := context.Background()
	stub := &docStub{}
	handler := NewHandler(stub)

	params := map[permission.Command]any{
		permission.CommandCreate:    CreateParams{Type: "SOP", Title: "Document control"},
		permission.CommandCheckout:  DocumentParams{DocumentID: "SOP-001"},
		permission.CommandCheckin:   DocumentParams{DocumentID: "SOP-001"},
		permission.CommandRoute:     RouteParams{DocumentID: "SOP-001", Target: "review"},
		permission.CommandAssign:    AssignParams{DocumentID: "SOP-001", Assignees: []string{"bob"}},
		permission.CommandReview:    ReviewParams{DocumentID: "SOP-001", Outcome: "recommend", Comment: "ok"},
		permission.CommandApprove:   DocumentParams{DocumentID: "SOP-001"},
		permission.CommandReject:    RejectParams{DocumentID: "SOP-001", Comment: "no"},
		permission.CommandRelease:   DocumentParams{DocumentID: "CR-001"},
		permission.CommandRevert:    RevertParams{DocumentID: "CR-001", Reason: "rework"},
		permission.CommandClose:     DocumentParams{DocumentID: "CR-001"},
		permission.CommandCancel:    CancelParams{DocumentID: "SOP-001", Confirm: true},
		permission.CommandFix:       DocumentParams{DocumentID: "SOP-001"},
		permission.CommandRead:      ListParams{},
		permission.CommandStatus:    DocumentParams{DocumentID: "SOP-001"},
		permission.CommandInbox:     nil,
		permission.CommandWorkspace: nil,
		permission.CommandHistory:   DocumentParams{DocumentID: "SOP-001"},
		permission.CommandComments:  CommentsParams{DocumentID: "SOP-001"},
	}
	require.Len(t, params, len(permission.AllCommands))

	for _, cmd := range handler.Tools() {
		p, ok := params[cmd]
		require.True(t, ok, "no params for %s", cmd)
		var raw json.RawMessage
		if p != nil {
			raw = mustJSON(t, p)
		}
		result, err := handler.Handle(ctx, "alice", cmd, raw)
		require.NoError(t, err, "%s", cmd)
		require.NotNil(t, result, "%s", cmd)
	}
	assert.Len(t, stub.calls, len(permission.AllCommands))
}

func TestHandler_NormalizesArguments(t *testing.T) {
	ctx := context.Background()
	var gotRoute document.RouteRequest
	var gotReview document.ReviewRequest
	stub := &docStub{
		routeFn: func(_ context.Context, req document.RouteRequest) (*document.Document, error) {
			gotRoute = req
			return sampleDocument(req.DocumentID), nil
		},
		reviewFn: func(_ context.Context, req document.ReviewRequest) (*document.Document, error) {
			gotReview = req
			return sampleDocument(req.DocumentID), nil
		},
	}
	handler := NewHandler(stub)

	_, err := handler.Handle(ctx, "alice", permission.CommandRoute, mustJSON(t, RouteParams{DocumentID: "SOP-001", Target: "Approval", Retire: true}))
	require.NoError(t, err)
	assert.Equal(t, "alice", gotRoute.Actor)
	assert.Equal(t, document.RouteTarget("approval"), gotRoute.Target)
	assert.True(t, gotRoute.Retire)

	_, err = handler.Handle(ctx, "bob", permission.CommandReview, mustJSON(t, ReviewParams{DocumentID: "SOP-001", Outcome: "request_updates", Comment: "fix 3.2"}))
	require.NoError(t, err)
	assert.Equal(t, "bob", gotReview.Actor)
	assert.Equal(t, workflow.OutcomeRequestUpdates, gotReview.Outcome)
}

func TestHandler_EmptyListsEncodeAsArrays(t *testing.T) {
	handler := NewHandler(&docStub{})

	result, err := handler.Handle(context.Background(), "alice", permission.CommandWorkspace, nil)
	require.NoError(t, err)
	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"documents":[]}`, string(data))

	result, err = handler.Handle(context.Background(), "alice", permission.CommandHistory, mustJSON(t, DocumentParams{DocumentID: "SOP-001"}))
	require.NoError(t, err)
	data, err = json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"events":[]}`, string(data))
}

func TestHandler_UnknownTool(t *testing.T) {
	handler := NewHandler(&docStub{})

	_, err := handler.Handle(context.Background(), "alice", permission.Command("frobnicate"), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "UNKNOWN_TOOL", apiErr.Code)
}

func TestHandler_MalformedArguments(t *testing.T) {
	handler := NewHandler(&docStub{})

	_, err := handler.Handle(context.Background(), "alice", permission.CommandStatus, json.RawMessage(`{"doc_id": 7}`))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_INPUT", apiErr.Code)
}

func TestHandler_ErrorMapping(t *testing.T) {
	ctx := context.Background()

	t.Run("permission denied", func(t *testing.T) {
		stub := &docStub{approveFn: func(context.Context, document.DocumentRequest) (*document.Document, error) {
			return nil, &permission.PermissionDeniedError{
				Command: permission.CommandApprove,
				User:    "carol",
				Reason:  permission.ReasonNotAssigned,
			}
		}}
		_, err := NewHandler(stub).Handle(ctx, "carol", permission.CommandApprove, mustJSON(t, DocumentParams{DocumentID: "SOP-001"}))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "PERMISSION_DENIED", apiErr.Code)
		assert.NotEmpty(t, apiErr.RecoveryHint)
		details, ok := apiErr.Details.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, permission.ReasonNotAssigned, details["reason"])
	})

	t.Run("approval gate", func(t *testing.T) {
		stub := &docStub{routeFn: func(context.Context, document.RouteRequest) (*document.Document, error) {
			return nil, fmt.Errorf("route: %w", &workflow.GateError{RequestedUpdates: []string{"bob"}})
		}}
		_, err := NewHandler(stub).Handle(ctx, "alice", permission.CommandRoute, mustJSON(t, RouteParams{DocumentID: "SOP-001", Target: "approval"}))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "APPROVAL_GATE_UNSATISFIED", apiErr.Code)
	})

	t.Run("invalid state", func(t *testing.T) {
		stub := &docStub{commentsFn: func(context.Context, document.CommentsRequest) ([]audit.Event, error) {
			return nil, document.ErrCommentsHidden
		}}
		_, err := NewHandler(stub).Handle(ctx, "alice", permission.CommandComments, mustJSON(t, CommentsParams{DocumentID: "SOP-001"}))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, "INVALID_STATE", apiErr.Code)
	})

	t.Run("internal error passes through", func(t *testing.T) {
		boom := errors.New("disk on fire")
		stub := &docStub{cancelFn: func(context.Context, document.CancelRequest) error { return boom }}
		_, err := NewHandler(stub).Handle(ctx, "alice", permission.CommandCancel, mustJSON(t, CancelParams{DocumentID: "SOP-001", Confirm: true}))
		require.ErrorIs(t, err, boom)
		var apiErr *APIError
		assert.False(t, errors.As(err, &apiErr))
	})
}

func TestResolveActor(t *testing.T) {
	authed := context.WithValue(context.Background(), identityKey, identity{user: "alice", authenticated: true})
	anonymous := context.WithValue(context.Background(), identityKey, identity{user: "lead"})

	tests := []struct {
		name      string
		ctx       context.Context
		requested string
		want      string
		wantErr   bool
	}{
		{name: "authenticated", ctx: authed, want: "alice"},
		{name: "authenticated same user", ctx: authed, requested: "alice", want: "alice"},
		{name: "authenticated mismatch", ctx: authed, requested: "bob", wantErr: true},
		{name: "default user", ctx: anonymous, want: "lead"},
		{name: "requested overrides default", ctx: anonymous, requested: "bob", want: "bob"},
		{name: "nobody", ctx: context.Background(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveActor(tt.ctx, tt.requested)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func connectTestClient(t *testing.T, cfg Config) *sdkmcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	server := NewServer(cfg)
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()

	ss, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestServer_ToolsOverInMemoryTransport(t *testing.T) {
	ctx := context.Background()
	var createdBy string
	stub := &docStub{createFn: func(_ context.Context, req document.CreateRequest) (*document.Document, error) {
		createdBy = req.Actor
		return sampleDocument("SOP-001"), nil
	}}
	cs := connectTestClient(t, Config{
		Services:    Services{Documents: stub, Audit: auditStub{}},
		Engine:      workflow.NewEngine(workflow.DefaultTable()),
		Policy:      permission.DefaultPolicy(),
		DefaultUser: "lead",
	})

	tools, err := cs.ListTools(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, tools.Tools, len(permission.AllCommands))

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "create",
		Arguments: map[string]any{"type": "SOP", "title": "Document control"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "lead", createdBy)

	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var doc DocumentResponse
	require.NoError(t, json.Unmarshal([]byte(text.Text), &doc))
	assert.Equal(t, "SOP-001", doc.ID)
	assert.Equal(t, "0.1", doc.Version)

	_, err = cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "create",
		Arguments: map[string]any{"type": "SOP", "title": "Other", "user": "alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice", createdBy)
}

func TestServer_DomainErrorsBecomeToolErrors(t *testing.T) {
	ctx := context.Background()
	stub := &docStub{approveFn: func(context.Context, document.DocumentRequest) (*document.Document, error) {
		return nil, document.ErrDocumentNotFound
	}}
	cs := connectTestClient(t, Config{Services: Services{Documents: stub}, DefaultUser: "lead"})

	res, err := cs.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      "approve",
		Arguments: map[string]any{"doc_id": "SOP-404"},
	})
	require.NoError(t, err)
	require.True(t, res.IsError)

	text, ok := res.Content[0].(*sdkmcp.TextContent)
	require.True(t, ok)
	var payload struct {
		Error APIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	assert.Equal(t, "NOT_FOUND", payload.Error.Code)
}

func TestServer_Resources(t *testing.T) {
	ctx := context.Background()
	cs := connectTestClient(t, Config{
		Services: Services{
			Documents: &docStub{},
			Audit: auditStub{events: []audit.Event{{
				ID: "e1", DocumentID: "SOP-001", Type: audit.EventCreate, Actor: "alice", Version: "0.1",
			}}},
		},
		Engine:      workflow.NewEngine(workflow.DefaultTable()),
		Policy:      permission.DefaultPolicy(),
		DefaultUser: "lead",
	})

	res, err := cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "qms://workflow/transitions"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Contains(t, res.Contents[0].Text, "| DRAFT | ROUTE_REVIEW | IN_REVIEW |")

	res, err = cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "qms://permissions/matrix"})
	require.NoError(t, err)
	assert.Contains(t, res.Contents[0].Text, "| fix | users: qa, lead |")

	res, err = cs.ReadResource(ctx, &sdkmcp.ReadResourceParams{URI: "qms://audit/recent"})
	require.NoError(t, err)
	var events EventListResponse
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &events))
	require.Len(t, events.Events, 1)
	assert.Equal(t, "SOP-001", events.Events[0].DocumentID)
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
