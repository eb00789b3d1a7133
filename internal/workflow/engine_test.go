package workflow_test

import (
	"testing"
	"time"

	"github.com/rpggio/qms/internal/workflow"
	"github.com/stretchr/testify/require"
)

func newEngine() *workflow.Engine {
	return workflow.NewEngine(workflow.DefaultTable())
}

func TestEngine_StatusCategories(t *testing.T) {
	engine := newEngine()

	for _, s := range []workflow.Status{workflow.StatusInReview, workflow.StatusInPreReview, workflow.StatusInPostReview} {
		require.True(t, engine.IsReviewStatus(s), s)
		require.False(t, engine.IsApprovalStatus(s), s)
	}
	for _, s := range []workflow.Status{workflow.StatusInApproval, workflow.StatusInPreApproval, workflow.StatusInPostApproval} {
		require.True(t, engine.IsApprovalStatus(s), s)
		require.False(t, engine.IsReviewStatus(s), s)
	}
	require.False(t, engine.IsReviewStatus(workflow.StatusReviewed))
	require.False(t, engine.IsApprovalStatus(workflow.StatusApproved))
}

func TestEngine_InferPhase(t *testing.T) {
	engine := newEngine()

	pre := []workflow.Status{
		workflow.StatusDraft, workflow.StatusInPreReview, workflow.StatusPreReviewed,
		workflow.StatusInPreApproval, workflow.StatusPreApproved,
	}
	post := []workflow.Status{
		workflow.StatusInExecution, workflow.StatusInPostReview, workflow.StatusPostReviewed,
		workflow.StatusInPostApproval, workflow.StatusPostApproved, workflow.StatusClosed,
	}
	for _, s := range pre {
		require.Equal(t, workflow.PhasePre, engine.InferPhase(s), s)
	}
	for _, s := range post {
		require.Equal(t, workflow.PhasePost, engine.InferPhase(s), s)
	}
	require.Equal(t, workflow.PhaseNone, engine.InferPhase(workflow.StatusInReview))
	require.Equal(t, workflow.PhaseNone, engine.InferPhase(workflow.StatusEffective))
}

func TestEngine_ReviewedStatus(t *testing.T) {
	engine := newEngine()

	cases := map[workflow.Status]workflow.Status{
		workflow.StatusInReview:     workflow.StatusReviewed,
		workflow.StatusInPreReview:  workflow.StatusPreReviewed,
		workflow.StatusInPostReview: workflow.StatusPostReviewed,
	}
	for from, want := range cases {
		got, err := engine.ReviewedStatus(from)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := engine.ReviewedStatus(workflow.StatusDraft)
	require.ErrorIs(t, err, workflow.ErrNotApplicable)
}

func TestEngine_ApprovedStatus(t *testing.T) {
	engine := newEngine()

	got, err := engine.ApprovedStatus(workflow.StatusInApproval, false)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusEffective, got)

	got, err = engine.ApprovedStatus(workflow.StatusInPreApproval, true)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPreApproved, got)

	got, err = engine.ApprovedStatus(workflow.StatusInPostApproval, true)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPostApproved, got)

	// Category mismatches never resolve.
	_, err = engine.ApprovedStatus(workflow.StatusInApproval, true)
	require.ErrorIs(t, err, workflow.ErrTransitionNotFound)
	_, err = engine.ApprovedStatus(workflow.StatusInPreApproval, false)
	require.ErrorIs(t, err, workflow.ErrTransitionNotFound)

	for _, s := range workflow.AllStatuses {
		if engine.IsApprovalStatus(s) {
			continue
		}
		_, err := engine.ApprovedStatus(s, false)
		require.ErrorIs(t, err, workflow.ErrNotApplicable, s)
		_, err = engine.ApprovedStatus(s, true)
		require.ErrorIs(t, err, workflow.ErrNotApplicable, s)
	}
}

func TestEngine_RejectionTargetIsTotalOverApprovalStatuses(t *testing.T) {
	engine := newEngine()

	cases := map[workflow.Status]workflow.Status{
		workflow.StatusInApproval:     workflow.StatusReviewed,
		workflow.StatusInPreApproval:  workflow.StatusPreReviewed,
		workflow.StatusInPostApproval: workflow.StatusPostReviewed,
	}
	for _, s := range workflow.AllStatuses {
		got, err := engine.RejectionTarget(s)
		want, ok := cases[s]
		if !ok {
			require.ErrorIs(t, err, workflow.ErrNotApplicable, s)
			continue
		}
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.NotEqual(t, workflow.StatusDraft, got)
	}
}

func TestEngine_RequestUpdatesTargetDiffersFromRejection(t *testing.T) {
	engine := newEngine()

	cases := map[workflow.Status]workflow.Status{
		workflow.StatusInReview:     workflow.StatusDraft,
		workflow.StatusInPreReview:  workflow.StatusDraft,
		workflow.StatusInPostReview: workflow.StatusInExecution,
	}
	for from, want := range cases {
		got, err := engine.RequestUpdatesTarget(from)
		require.NoError(t, err)
		require.Equal(t, want, got)

		_, err = engine.RejectionTarget(from)
		require.ErrorIs(t, err, workflow.ErrNotApplicable)
	}

	_, err := engine.RequestUpdatesTarget(workflow.StatusInApproval)
	require.ErrorIs(t, err, workflow.ErrNotApplicable)
}

func TestEngine_BackwardAction(t *testing.T) {
	engine := newEngine()

	action, err := engine.BackwardAction(workflow.StatusInPreApproval)
	require.NoError(t, err)
	require.Equal(t, workflow.ActionReject, action)

	action, err = engine.BackwardAction(workflow.StatusInPostReview)
	require.NoError(t, err)
	require.Equal(t, workflow.ActionRequestUpdates, action)

	_, err = engine.BackwardAction(workflow.StatusDraft)
	require.ErrorIs(t, err, workflow.ErrNotApplicable)
}

func TestEngine_CheckinTarget(t *testing.T) {
	engine := newEngine()

	require.Equal(t, workflow.StatusDraft, engine.CheckinTarget(workflow.StatusReviewed, false))
	require.Equal(t, workflow.StatusDraft, engine.CheckinTarget(workflow.StatusPreReviewed, true))
	require.Equal(t, workflow.StatusInExecution, engine.CheckinTarget(workflow.StatusPostReviewed, true))
	require.Equal(t, workflow.StatusDraft, engine.CheckinTarget(workflow.StatusDraft, false))
	require.Equal(t, workflow.StatusInExecution, engine.CheckinTarget(workflow.StatusInExecution, true))
}

func TestEngine_PlanReleaseOnNonExecutableIsInvalidCategory(t *testing.T) {
	engine := newEngine()

	for _, action := range []workflow.Action{workflow.ActionRelease, workflow.ActionRevert, workflow.ActionClose} {
		for _, s := range workflow.AllStatuses {
			_, err := engine.Plan(workflow.PlanInput{Status: s, Action: action, Executable: false})
			require.ErrorIs(t, err, workflow.ErrInvalidCategory, "%s from %s", action, s)
			require.NotErrorIs(t, err, workflow.ErrTransitionNotFound)
		}
	}
}

func TestEngine_PlanApprovalGate(t *testing.T) {
	engine := newEngine()
	t0 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)

	in := workflow.PlanInput{
		Status:     workflow.StatusReviewed,
		Action:     workflow.ActionRouteApproval,
		Executable: false,
		Assignees:  []string{"A", "B"},
		Reviews: []workflow.Review{
			{Reviewer: "A", Outcome: workflow.OutcomeRecommend, Phase: workflow.PhaseNone, CreatedAt: t0},
			{Reviewer: "B", Outcome: workflow.OutcomeRequestUpdates, Phase: workflow.PhaseNone, CreatedAt: t0},
		},
	}

	_, err := engine.Plan(in)
	require.ErrorIs(t, err, workflow.ErrApprovalGateUnsatisfied)
	require.NotErrorIs(t, err, workflow.ErrTransitionNotFound)
	var gateErr *workflow.GateError
	require.ErrorAs(t, err, &gateErr)
	require.Equal(t, []string{"B"}, gateErr.RequestedUpdates)

	in.Reviews = append(in.Reviews, workflow.Review{
		Reviewer: "B", Outcome: workflow.OutcomeRecommend, Phase: workflow.PhaseNone, CreatedAt: t0.Add(time.Hour),
	})
	row, err := engine.Plan(in)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInApproval, row.To)
}

func TestEngine_PlanGateRunsBeforeTableLookup(t *testing.T) {
	engine := newEngine()

	// DRAFT has no ROUTE_APPROVAL row, but the gate still answers first.
	_, err := engine.Plan(workflow.PlanInput{
		Status:    workflow.StatusDraft,
		Action:    workflow.ActionRouteApproval,
		Assignees: []string{"qa"},
	})
	require.ErrorIs(t, err, workflow.ErrApprovalGateUnsatisfied)
}

func TestEngine_PlanGateIgnoresOtherPhaseReviews(t *testing.T) {
	engine := newEngine()

	_, err := engine.Plan(workflow.PlanInput{
		Status:     workflow.StatusPostReviewed,
		Action:     workflow.ActionRouteApproval,
		Executable: true,
		Assignees:  []string{"qa"},
		Reviews: []workflow.Review{
			{Reviewer: "qa", Outcome: workflow.OutcomeRecommend, Phase: workflow.PhasePre, CreatedAt: time.Now()},
		},
	})
	var gateErr *workflow.GateError
	require.ErrorAs(t, err, &gateErr)
	require.Equal(t, []string{"qa"}, gateErr.Missing)
}

// Walks an executable document through the pre-execution cycle.
func TestEngine_PhaseInferenceRoundTrip(t *testing.T) {
	engine := newEngine()
	assignees := []string{"qa", "tu_sim"}
	status := workflow.StatusDraft

	row, err := engine.Plan(workflow.PlanInput{Status: status, Action: workflow.ActionRouteReview, Executable: true})
	require.NoError(t, err)
	status = row.To
	require.Equal(t, workflow.StatusInPreReview, status)

	var reviews []workflow.Review
	for _, a := range assignees {
		reviews = append(reviews, workflow.Review{Reviewer: a, Outcome: workflow.OutcomeRecommend, Phase: engine.InferPhase(status)})
	}
	status, err = engine.ReviewedStatus(status)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPreReviewed, status)

	row, err = engine.Plan(workflow.PlanInput{
		Status: status, Action: workflow.ActionRouteApproval, Executable: true,
		Assignees: assignees, Reviews: reviews,
	})
	require.NoError(t, err)
	status = row.To
	require.Equal(t, workflow.StatusInPreApproval, status)

	approved, err := engine.ApprovedStatus(status, true)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPreApproved, approved)
	require.NotEqual(t, workflow.StatusEffective, approved)
	require.NotEqual(t, workflow.StatusPostApproved, approved)
}

func TestEngine_RejectThenRecover(t *testing.T) {
	engine := newEngine()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	status, err := engine.RejectionTarget(workflow.StatusInPreApproval)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPreReviewed, status)

	row, err := engine.Plan(workflow.PlanInput{Status: status, Action: workflow.ActionRouteReview, Executable: true})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInPreReview, row.To)

	status, err = engine.ReviewedStatus(row.To)
	require.NoError(t, err)

	reviews := []workflow.Review{
		{Reviewer: "qa", Outcome: workflow.OutcomeRequestUpdates, Phase: workflow.PhasePre, CreatedAt: t0},
		{Reviewer: "qa", Outcome: workflow.OutcomeRecommend, Phase: workflow.PhasePre, CreatedAt: t0.Add(time.Minute)},
	}
	row, err = engine.Plan(workflow.PlanInput{
		Status: status, Action: workflow.ActionRouteApproval, Executable: true,
		Assignees: []string{"qa"}, Reviews: reviews,
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusInPreApproval, row.To)
}
