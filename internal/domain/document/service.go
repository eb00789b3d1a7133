package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/repository"
	"github.com/rpggio/qms/internal/workflow"
)

// DefaultAssignee receives a routing that names nobody.
const DefaultAssignee = "qa"

// Service orchestrates document commands: load, authorize, plan, commit.
type Service struct {
	repo     Repository
	engine   *workflow.Engine
	auth     Authorizer
	history  HistoryReader
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new document service.
func NewService(
	repo Repository,
	engine *workflow.Engine,
	auth Authorizer,
	history HistoryReader,
	recorder Recorder,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		auth:     auth,
		history:  history,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CreateRequest describes a document creation request.
type CreateRequest struct {
	Actor    string `validate:"required,username"`
	Type     string `validate:"required"`
	Title    string `validate:"required,notblank,max=200"`
	ParentID string
}

// DocumentRequest identifies an actor and a document.
type DocumentRequest struct {
	Actor      string `validate:"required,username"`
	DocumentID string `validate:"required"`
}

// RouteTarget selects the round a document is routed into.
type RouteTarget string

const (
	RouteReview   RouteTarget = "review"
	RouteApproval RouteTarget = "approval"
)

// RouteRequest describes a routing request.
type RouteRequest struct {
	Actor      string      `validate:"required,username"`
	DocumentID string      `validate:"required"`
	Target     RouteTarget `validate:"required,oneof=review approval"`
	Assignees  []string    `validate:"dive,username"`
	Retire     bool
}

// AssignRequest adds assignees to the active round.
type AssignRequest struct {
	Actor      string   `validate:"required,username"`
	DocumentID string   `validate:"required"`
	Assignees  []string `validate:"required,min=1,dive,username"`
}

// ReviewRequest records a reviewer's verdict.
type ReviewRequest struct {
	Actor      string           `validate:"required,username"`
	DocumentID string           `validate:"required"`
	Outcome    workflow.Outcome `validate:"required,oneof=RECOMMEND REQUEST_UPDATES"`
	Comment    string           `validate:"required,notblank"`
}

// RejectRequest sends a document back with a reason.
type RejectRequest struct {
	Actor      string `validate:"required,username"`
	DocumentID string `validate:"required"`
	Comment    string `validate:"required,notblank"`
}

// RevertRequest returns an executable document to execution.
type RevertRequest struct {
	Actor      string `validate:"required,username"`
	DocumentID string `validate:"required"`
	Reason     string `validate:"required,notblank"`
}

// CancelRequest deletes a never-released document.
type CancelRequest struct {
	Actor      string `validate:"required,username"`
	DocumentID string `validate:"required"`
	Confirm    bool
}

// CommentsRequest lists reviewer comments for a version; empty means current.
type CommentsRequest struct {
	Actor      string `validate:"required,username"`
	DocumentID string `validate:"required"`
	Version    string
}

// Create creates a new DRAFT document owned by the actor.
func (s *Service) Create(ctx context.Context, req CreateRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandCreate, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	dt, ok := workflow.LookupDocumentType(req.Type)
	if !ok {
		return nil, fmt.Errorf("%w: unknown document type %q", ErrInvalidInput, req.Type)
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandCreate, permission.Subject{}); err != nil {
		return nil, err
	}

	var parentID *string
	switch {
	case dt.IsChild():
		if req.ParentID == "" {
			return nil, fmt.Errorf("%w: %s requires a parent document", ErrInvalidInput, dt.Code)
		}
		parent, err := s.load(ctx, req.ParentID)
		if err != nil {
			return nil, err
		}
		parentType, _ := workflow.LookupDocumentType(parent.Type)
		if !dt.AcceptsParent(parentType) {
			return nil, fmt.Errorf("%w: %s cannot be created under %s", ErrInvalidInput, dt.Code, parent.Type)
		}
		parentID = &parent.ID
	case req.ParentID != "":
		return nil, fmt.Errorf("%w: %s does not take a parent", ErrInvalidInput, dt.Code)
	}

	id, err := s.nextID(ctx, dt, parentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc = &Document{
		ID:              id,
		Type:            dt.Code,
		Title:           req.Title,
		Status:          workflow.StatusDraft,
		Version:         workflow.InitialVersion,
		Executable:      dt.Executable,
		ResponsibleUser: req.Actor,
		ParentID:        parentID,
		CreatedAt:       now,
	}

	created := s.event(doc, audit.EventCreate, req.Actor)
	created.ToStatus = string(doc.Status)
	created.Details = details(map[string]any{"title": doc.Title})

	if err := s.commit(ctx, nil, doc, nil, created); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) nextID(ctx context.Context, dt workflow.DocumentType, parentID *string) (string, error) {
	if dt.Singleton {
		id := dt.SingletonID()
		if _, err := s.repo.Get(ctx, id); err == nil {
			return "", fmt.Errorf("%w: %s", ErrAlreadyExists, id)
		} else if !errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("checking %s: %w", id, err)
		}
		return id, nil
	}

	parent := ""
	if parentID != nil {
		parent = *parentID
	}
	n, err := s.repo.NextSequence(ctx, dt.IDPrefix(parent))
	if err != nil {
		return "", fmt.Errorf("allocating document number: %w", err)
	}
	return dt.FormatID(parent, n), nil
}

// Checkout takes the edit lock. Checking out an EFFECTIVE document opens a new draft revision.
func (s *Service) Checkout(ctx context.Context, req DocumentRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandCheckout, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandCheckout, permission.Subject{}); err != nil {
		return nil, err
	}

	if doc.CheckedOut {
		if doc.ResponsibleUser == req.Actor {
			return nil, fmt.Errorf("%w: %s is already checked out by you", ErrCheckoutConflict, doc.ID)
		}
		return nil, fmt.Errorf("%w: %s is checked out by %s", ErrCheckoutConflict, doc.ID, doc.ResponsibleUser)
	}
	if !s.engine.IsEditable(doc.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotEditable, doc.ID, doc.Status)
	}

	now := s.now()
	after := doc.clone()
	after.CheckedOut = true
	after.CheckedOutAt = &now
	after.ResponsibleUser = req.Actor

	checkout := s.event(after, audit.EventCheckout, req.Actor)
	info := map[string]any{}
	if doc.ResponsibleUser != "" && doc.ResponsibleUser != req.Actor {
		info["from_owner"] = doc.ResponsibleUser
	}

	var statusEvents []audit.Event
	if row, err := s.engine.Transition(doc.Status, workflow.ActionRevise, doc.Executable); err == nil {
		s.apply(after, row)
		after.EffectiveVersion = doc.Version.String()
		after.Reviewers = nil
		checkout.Version = after.Version.String()
		info["from_version"] = doc.Version.String()
		statusEvents = append(statusEvents, s.statusChange(after, req.Actor, doc.Status, after.Status))
	}
	if len(info) > 0 {
		checkout.Details = details(info)
	}
	events := append([]audit.Event{checkout}, statusEvents...)

	if err := s.commit(ctx, doc, after, nil, events...); err != nil {
		return nil, err
	}
	return after, nil
}

// Checkin releases the edit lock. Content edited after a completed review returns
// the document to its phase entry status.
func (s *Service) Checkin(ctx context.Context, req DocumentRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandCheckin, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandCheckin, permission.Subject{ResponsibleUser: doc.ResponsibleUser}); err != nil {
		return nil, err
	}
	if !doc.CheckedOut || doc.ResponsibleUser != req.Actor {
		return nil, fmt.Errorf("%w: %s is not checked out by %s", ErrCheckoutConflict, doc.ID, req.Actor)
	}

	after := doc.clone()
	after.CheckedOut = false
	after.CheckedOutAt = nil
	after.Status = s.engine.CheckinTarget(doc.Status, doc.Executable)

	events := []audit.Event{s.event(after, audit.EventCheckin, req.Actor)}
	if after.Status != doc.Status {
		events = append(events, s.statusChange(after, req.Actor, doc.Status, after.Status))
	}

	if err := s.commit(ctx, doc, after, nil, events...); err != nil {
		return nil, err
	}
	return after, nil
}

// Cancel permanently removes a document that was never released, with its trail.
func (s *Service) Cancel(ctx context.Context, req CancelRequest) (err error) {
	defer func() { s.finish(permission.CommandCancel, err) }()

	if err := ValidateRequest(req); err != nil {
		return err
	}
	doc, err := s.load(ctx, req.DocumentID)
	if err != nil {
		return err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandCancel, permission.Subject{}); err != nil {
		return err
	}
	if doc.Version.IsReleased() {
		return fmt.Errorf("%w: %s was released at v%s; retire it instead", ErrCannotCancel, doc.ID, doc.Version)
	}
	if doc.CheckedOut {
		return fmt.Errorf("%w: %s is checked out by %s", ErrCheckoutConflict, doc.ID, doc.ResponsibleUser)
	}
	if !req.Confirm {
		return fmt.Errorf("%w: cancelling %s deletes it and its audit trail", ErrConfirmationRequired, doc.ID)
	}

	if err := s.repo.Delete(ctx, doc.ID, doc.Revision); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrConflict
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, doc.ID)
		}
		if errors.Is(err, repository.ErrForeignKeyViolation) {
			return fmt.Errorf("%w: %s has child documents", ErrCannotCancel, doc.ID)
		}
		return fmt.Errorf("deleting %s: %w", doc.ID, err)
	}
	s.log().Info("document cancelled", "id", doc.ID, "actor", req.Actor)
	return nil
}

// Fix repairs administrative metadata on EFFECTIVE or CLOSED documents.
func (s *Service) Fix(ctx context.Context, req DocumentRequest) (res *FixResult, err error) {
	defer func() { s.finish(permission.CommandFix, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandFix, permission.Subject{}); err != nil {
		return nil, err
	}
	if !doc.Status.IsCompleted() {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotFixable, doc.ID, doc.Status)
	}

	after := doc.clone()
	var changes []string
	if after.CheckedOut {
		after.CheckedOut = false
		after.CheckedOutAt = nil
		changes = append(changes, "cleared checked_out flag")
	}
	if after.Status == workflow.StatusEffective && after.EffectiveAt == nil {
		now := s.now()
		after.EffectiveAt = &now
		changes = append(changes, "set effective date")
	}
	if len(changes) == 0 {
		return &FixResult{Document: doc}, nil
	}

	fixed := s.event(after, audit.EventFix, req.Actor)
	fixed.Details = details(map[string]any{"changes": changes})
	if err := s.commit(ctx, doc, after, nil, fixed); err != nil {
		return nil, err
	}
	return &FixResult{Document: after, Changes: changes}, nil
}

// Status returns the current state of a document.
func (s *Service) Status(ctx context.Context, req DocumentRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandStatus, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandStatus, permission.Subject{}); err != nil {
		return nil, err
	}
	return doc, nil
}

// List lists documents visible to the actor.
func (s *Service) List(ctx context.Context, actor string, opts ListOptions) (docs []Document, err error) {
	defer func() { s.finish(permission.CommandRead, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, permission.CommandRead, permission.Subject{}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, opts)
}

// Inbox lists documents awaiting the actor's review or approval.
func (s *Service) Inbox(ctx context.Context, actor string) (docs []Document, err error) {
	defer func() { s.finish(permission.CommandInbox, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, permission.CommandInbox, permission.Subject{}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListOptions{PendingAssignee: actor})
}

// Workspace lists documents the actor has checked out.
func (s *Service) Workspace(ctx context.Context, actor string) (docs []Document, err error) {
	defer func() { s.finish(permission.CommandWorkspace, err) }()

	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, actor, permission.CommandWorkspace, permission.Subject{}); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, ListOptions{CheckedOutBy: actor})
}

// History returns a document's audit trail.
func (s *Service) History(ctx context.Context, req DocumentRequest) (events []audit.Event, err error) {
	defer func() { s.finish(permission.CommandHistory, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, req.DocumentID); err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandHistory, permission.Subject{}); err != nil {
		return nil, err
	}
	return s.history.History(ctx, req.DocumentID)
}

// Comments returns reviewer comments once the review round is over.
func (s *Service) Comments(ctx context.Context, req CommentsRequest) (events []audit.Event, err error) {
	defer func() { s.finish(permission.CommandComments, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandComments, permission.Subject{}); err != nil {
		return nil, err
	}
	if s.engine.IsReviewStatus(doc.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrCommentsHidden, doc.ID, doc.Status)
	}

	version := req.Version
	if version == "" {
		version = doc.Version.String()
	} else if _, err := workflow.ParseVersion(version); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.history.Comments(ctx, doc.ID, version)
}

func validateActor(actor string) error {
	if err := requestValidate.Var(actor, "required,username"); err != nil {
		return fmt.Errorf("%w: invalid user %q", ErrInvalidInput, actor)
	}
	return nil
}

func (s *Service) load(ctx context.Context, id string) (*Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
		}
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return doc, nil
}

// commit persists after, the optional review and the events in one change.
// before is nil for a new document.
func (s *Service) commit(ctx context.Context, before, after *Document, review *ReviewRecord, events ...audit.Event) error {
	var expected int64
	if before != nil {
		expected = before.Revision
	}
	after.Revision = expected + 1
	after.ModifiedAt = s.now()
	after.ExecutionPhase = s.phaseOf(after)

	err := s.repo.Commit(ctx, Change{
		Document:         after,
		ExpectedRevision: expected,
		Review:           review,
		Events:           events,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return fmt.Errorf("%w: %s", ErrConflict, after.ID)
		case errors.Is(err, repository.ErrDuplicate):
			return fmt.Errorf("%w: %s", ErrAlreadyExists, after.ID)
		case errors.Is(err, repository.ErrNotFound):
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, after.ID)
		}
		return fmt.Errorf("committing %s: %w", after.ID, err)
	}

	switch {
	case before == nil:
		s.log().Info("document created", "id", after.ID, "type", after.Type, "owner", after.ResponsibleUser)
	case before.Status != after.Status:
		s.log().Info("document transition",
			"id", after.ID, "from", before.Status, "to", after.Status, "version", after.Version.String())
		if s.recorder != nil {
			s.recorder.ObserveTransition(after.Type, before.Status, after.Status)
		}
	}
	return nil
}

// apply copies a table row's effects onto doc.
func (s *Service) apply(doc *Document, row workflow.StatusTransition) {
	doc.Status = row.To
	doc.Version = doc.Version.Bump(row.VersionBump)
	if row.ClearsOwner {
		doc.ResponsibleUser = ""
	}
}

func (s *Service) phaseOf(doc *Document) workflow.Phase {
	if !doc.Executable {
		return workflow.PhaseNone
	}
	return s.engine.InferPhase(doc.Status)
}

func (s *Service) event(doc *Document, typ audit.EventType, actor string) audit.Event {
	return audit.Event{
		ID:           uuid.NewString(),
		DocumentID:   doc.ID,
		DocumentType: doc.Type,
		Type:         typ,
		Actor:        actor,
		Version:      doc.Version.String(),
		CreatedAt:    s.now(),
	}
}

func (s *Service) statusChange(doc *Document, actor string, from, to workflow.Status) audit.Event {
	e := s.event(doc, audit.EventStatusChange, actor)
	e.FromStatus = string(from)
	e.ToStatus = string(to)
	return e
}

func (s *Service) finish(cmd permission.Command, err error) {
	if s.recorder != nil {
		kind := "ok"
		if err != nil {
			kind = ErrorKind(err)
		}
		s.recorder.ObserveCommand(string(cmd), kind)
	}
	if err != nil {
		s.log().Debug("command refused", "command", cmd, "error", err)
	}
}

func (s *Service) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

func details(v map[string]any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
