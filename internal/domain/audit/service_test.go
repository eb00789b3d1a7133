package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/repository/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuditService_History(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, audit.ListOptions{DocumentID: "SOP-001"}).Return([]audit.Event{
		{Type: audit.EventCreate},
		{Type: audit.EventCheckout},
	}, nil)

	svc := audit.NewService(repo, nil)
	events, err := svc.History(ctx, "SOP-001")
	require.NoError(t, err)
	require.Len(t, events, 2)

	_, err = svc.History(ctx, " ")
	require.ErrorIs(t, err, audit.ErrInvalidInput)
}

func TestAuditService_Comments(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, audit.ListOptions{
		DocumentID: "SOP-001",
		Types:      []audit.EventType{audit.EventReview, audit.EventReject},
		Version:    "0.1",
	}).Return([]audit.Event{
		{Type: audit.EventReview, Comment: "looks good"},
		{Type: audit.EventReview},
		{Type: audit.EventReject, Comment: "missing scope"},
	}, nil)

	svc := audit.NewService(repo, nil)
	comments, err := svc.Comments(ctx, "SOP-001", "0.1")
	require.NoError(t, err)
	require.Len(t, comments, 2)
	require.Equal(t, "missing scope", comments[1].Comment)
}

func TestAuditService_Recent(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, mock.MatchedBy(func(opts audit.ListOptions) bool {
		return opts.Descending && opts.Limit == 50 && opts.Actor == "qa"
	})).Return([]audit.Event{}, nil)

	svc := audit.NewService(repo, nil)
	_, err := svc.Recent(ctx, audit.ListOptions{Actor: "qa"})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAuditService_RepositoryError(t *testing.T) {
	ctx := context.Background()
	repo := &mocks.AuditRepository{}
	repo.On("List", ctx, mock.Anything).Return(nil, errors.New("disk gone"))

	svc := audit.NewService(repo, nil)
	_, err := svc.History(ctx, "SOP-001")
	require.ErrorContains(t, err, "disk gone")
}
