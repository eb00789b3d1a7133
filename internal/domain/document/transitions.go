package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

// Route sends a checked-in document into a review or approval round.
func (s *Service) Route(ctx context.Context, req RouteRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandRoute, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandRoute, permission.Subject{ResponsibleUser: doc.ResponsibleUser}); err != nil {
		return nil, err
	}
	if doc.CheckedOut {
		return nil, fmt.Errorf("%w: %s must be checked in before routing", ErrCheckoutConflict, doc.ID)
	}

	action, eventType := workflow.ActionRouteReview, audit.EventRouteReview
	if req.Target == RouteApproval {
		action, eventType = workflow.ActionRouteApproval, audit.EventRouteApproval
	}
	if req.Retire {
		if err := s.checkRetire(doc, req.Target); err != nil {
			return nil, err
		}
	}

	reviews, err := s.reviewsFor(ctx, doc)
	if err != nil {
		return nil, err
	}
	row, err := s.engine.Plan(workflow.PlanInput{
		Status:     doc.Status,
		Action:     action,
		Executable: doc.Executable,
		Assignees:  doc.Reviewers,
		Reviews:    reviews,
	})
	if err != nil {
		return nil, err
	}

	assignees := mergeUsers(nil, req.Assignees...)
	if len(assignees) == 0 {
		assignees = []string{DefaultAssignee}
	}

	after := doc.clone()
	s.apply(after, row)
	after.Assignees = assignees
	after.Completed = nil
	after.Retiring = req.Retire

	routed := s.event(after, eventType, req.Actor)
	routed.FromStatus = string(doc.Status)
	routed.ToStatus = string(after.Status)
	routed.Details = details(map[string]any{"assignees": assignees, "retire": req.Retire})

	if err := s.commit(ctx, doc, after, nil, routed, s.statusChange(after, req.Actor, doc.Status, after.Status)); err != nil {
		return nil, err
	}
	return after, nil
}

// checkRetire allows retirement only on the final approval of a released document.
func (s *Service) checkRetire(doc *Document, target RouteTarget) error {
	if target != RouteApproval {
		return fmt.Errorf("%w: retire is only valid when routing for approval", ErrInvalidInput)
	}
	if !doc.Version.IsReleased() {
		return fmt.Errorf("%w: %s was never released; cancel it instead", ErrInvalidInput, doc.ID)
	}
	if doc.Executable && s.phaseOf(doc) != workflow.PhasePost {
		return fmt.Errorf("%w: executable documents retire on post-execution approval", ErrInvalidInput)
	}
	return nil
}

// Assign adds assignees to the active review or approval round.
func (s *Service) Assign(ctx context.Context, req AssignRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandAssign, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandAssign, permission.Subject{}); err != nil {
		return nil, err
	}
	if !s.engine.IsReviewStatus(doc.Status) && !s.engine.IsApprovalStatus(doc.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInWorkflow, doc.ID, doc.Status)
	}

	var added []string
	for _, a := range req.Assignees {
		if !containsUser(doc.Assignees, a) && !containsUser(added, a) {
			added = append(added, a)
		}
	}
	if len(added) == 0 {
		return doc, nil
	}

	after := doc.clone()
	after.Assignees = mergeUsers(after.Assignees, added...)

	assigned := s.event(after, audit.EventAssign, req.Actor)
	assigned.Details = details(map[string]any{"assignees": added})
	if err := s.commit(ctx, doc, after, nil, assigned); err != nil {
		return nil, err
	}
	return after, nil
}

// Review records an assignee's verdict. The round completes when every assignee has reviewed.
func (s *Service) Review(ctx context.Context, req ReviewRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandReview, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !s.engine.IsReviewStatus(doc.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInReview, doc.ID, doc.Status)
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandReview, permission.Subject{Assignees: doc.Pending()}); err != nil {
		return nil, err
	}

	review := &ReviewRecord{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Reviewer:   req.Actor,
		Outcome:    req.Outcome,
		Comment:    req.Comment,
		Phase:      s.phaseOf(doc),
		Version:    doc.Version.String(),
		CreatedAt:  s.now(),
	}

	after := doc.clone()
	after.Completed = mergeUsers(after.Completed, req.Actor)

	reviewed := s.event(after, audit.EventReview, req.Actor)
	reviewed.Outcome = string(req.Outcome)
	reviewed.Comment = req.Comment
	events := []audit.Event{reviewed}

	if len(after.Pending()) == 0 {
		row, err := s.engine.Plan(workflow.PlanInput{
			Status:     doc.Status,
			Action:     workflow.ActionReview,
			Executable: doc.Executable,
		})
		if err != nil {
			return nil, err
		}
		s.apply(after, row)
		after.Reviewers = after.Assignees
		after.Assignees = nil
		after.Completed = nil
		events = append(events, s.statusChange(after, req.Actor, doc.Status, after.Status))
	}

	if err := s.commit(ctx, doc, after, review, events...); err != nil {
		return nil, err
	}
	return after, nil
}

// Approve records an assignee's approval. When the last assignee approves the document
// advances, becoming EFFECTIVE or RETIRED where the table says so.
func (s *Service) Approve(ctx context.Context, req DocumentRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandApprove, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if !s.engine.IsApprovalStatus(doc.Status) {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInApproval, doc.ID, doc.Status)
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandApprove, permission.Subject{Assignees: doc.Pending()}); err != nil {
		return nil, err
	}

	after := doc.clone()
	after.Completed = mergeUsers(after.Completed, req.Actor)
	events := []audit.Event{s.event(after, audit.EventApprove, req.Actor)}

	if len(after.Pending()) == 0 {
		row, err := s.engine.Plan(workflow.PlanInput{
			Status:     doc.Status,
			Action:     workflow.ActionApprove,
			Executable: doc.Executable,
		})
		if err != nil {
			return nil, err
		}
		s.apply(after, row)
		events = append(events, s.statusChange(after, req.Actor, doc.Status, row.To))

		follow, followEvent := workflow.Action(""), audit.EventType("")
		switch {
		case doc.Retiring:
			follow, followEvent = workflow.ActionRetire, audit.EventRetire
		case !doc.Executable:
			follow, followEvent = workflow.ActionMakeEffective, audit.EventEffective
		}
		if follow != "" {
			next, err := s.engine.Transition(after.Status, follow, doc.Executable)
			if err != nil {
				return nil, err
			}
			s.apply(after, next)

			final := s.event(after, followEvent, req.Actor)
			final.FromStatus = string(row.To)
			final.ToStatus = string(next.To)
			final.Details = details(map[string]any{"from_version": doc.Version.String(), "to_version": after.Version.String()})
			events = append(events, final, s.statusChange(after, req.Actor, row.To, next.To))

			if next.To == workflow.StatusEffective {
				now := s.now()
				after.EffectiveAt = &now
				after.EffectiveVersion = after.Version.String()
			}
		}

		after.Assignees = nil
		after.Completed = nil
		after.Retiring = false
	}

	if err := s.commit(ctx, doc, after, nil, events...); err != nil {
		return nil, err
	}
	return after, nil
}

// Reject sends the document backwards. During approval it returns to the reviewed
// status; during review it is a request for updates and returns to the phase entry.
func (s *Service) Reject(ctx context.Context, req RejectRequest) (doc *Document, err error) {
	defer func() { s.finish(permission.CommandReject, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	action, err := s.engine.BackwardAction(doc.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInWorkflow, doc.ID, doc.Status)
	}
	if err := s.auth.Authorize(ctx, req.Actor, permission.CommandReject, permission.Subject{Assignees: doc.Pending()}); err != nil {
		return nil, err
	}

	row, err := s.engine.Plan(workflow.PlanInput{
		Status:     doc.Status,
		Action:     action,
		Executable: doc.Executable,
	})
	if err != nil {
		return nil, err
	}

	after := doc.clone()
	s.apply(after, row)
	after.Assignees = nil
	after.Completed = nil
	after.Retiring = false

	stage := "approval"
	var review *ReviewRecord
	if action == workflow.ActionRequestUpdates {
		stage = "review"
		review = &ReviewRecord{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Reviewer:   req.Actor,
			Outcome:    workflow.OutcomeRequestUpdates,
			Comment:    req.Comment,
			Phase:      s.phaseOf(doc),
			Version:    doc.Version.String(),
			CreatedAt:  s.now(),
		}
	}

	rejected := s.event(after, audit.EventReject, req.Actor)
	rejected.FromStatus = string(doc.Status)
	rejected.ToStatus = string(after.Status)
	rejected.Comment = req.Comment
	rejected.Details = details(map[string]any{"stage": stage})

	if err := s.commit(ctx, doc, after, review, rejected, s.statusChange(after, req.Actor, doc.Status, after.Status)); err != nil {
		return nil, err
	}
	return after, nil
}

// Release starts execution of a pre-approved executable document.
func (s *Service) Release(ctx context.Context, req DocumentRequest) (*Document, error) {
	return s.ownerTransition(ctx, permission.CommandRelease, workflow.ActionRelease, audit.EventRelease, req, "")
}

// Revert returns a post-reviewed executable document to execution.
func (s *Service) Revert(ctx context.Context, req RevertRequest) (*Document, error) {
	if err := ValidateRequest(req); err != nil {
		s.finish(permission.CommandRevert, err)
		return nil, err
	}
	return s.ownerTransition(ctx, permission.CommandRevert, workflow.ActionRevert, audit.EventRevert,
		DocumentRequest{Actor: req.Actor, DocumentID: req.DocumentID}, req.Reason)
}

// Close closes a post-approved executable document.
func (s *Service) Close(ctx context.Context, req DocumentRequest) (*Document, error) {
	return s.ownerTransition(ctx, permission.CommandClose, workflow.ActionClose, audit.EventClose, req, "")
}

// ownerTransition runs an execution-only action reserved for the responsible user.
func (s *Service) ownerTransition(
	ctx context.Context,
	cmd permission.Command,
	action workflow.Action,
	eventType audit.EventType,
	req DocumentRequest,
	comment string,
) (doc *Document, err error) {
	defer func() { s.finish(cmd, err) }()

	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	doc, err = s.load(ctx, req.DocumentID)
	if err != nil {
		return nil, err
	}
	if err := s.auth.Authorize(ctx, req.Actor, cmd, permission.Subject{ResponsibleUser: doc.ResponsibleUser}); err != nil {
		return nil, err
	}
	row, err := s.engine.Plan(workflow.PlanInput{
		Status:     doc.Status,
		Action:     action,
		Executable: doc.Executable,
	})
	if err != nil {
		return nil, err
	}
	if doc.CheckedOut {
		return nil, fmt.Errorf("%w: %s must be checked in first", ErrCheckoutConflict, doc.ID)
	}

	after := doc.clone()
	s.apply(after, row)

	e := s.event(after, eventType, req.Actor)
	e.FromStatus = string(doc.Status)
	e.ToStatus = string(after.Status)
	e.Comment = comment

	if err := s.commit(ctx, doc, after, nil, e, s.statusChange(after, req.Actor, doc.Status, after.Status)); err != nil {
		return nil, err
	}
	return after, nil
}

func (s *Service) reviewsFor(ctx context.Context, doc *Document) ([]workflow.Review, error) {
	records, err := s.repo.Reviews(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("loading reviews: %w", err)
	}
	version := doc.Version.String()
	out := make([]workflow.Review, 0, len(records))
	for _, r := range records {
		if r.Version != version {
			continue
		}
		out = append(out, workflow.Review{
			Reviewer:  r.Reviewer,
			Outcome:   r.Outcome,
			Phase:     r.Phase,
			CreatedAt: r.CreatedAt,
		})
	}
	return out, nil
}
