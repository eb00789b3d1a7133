package sqlite

import (
	"context"
	"testing"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/stretchr/testify/require"
)

func TestAuditRepository_List(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	docs := NewDocumentRepository(db)

	doc := newDocument("SOP-001", "SOP")
	events := []audit.Event{
		{DocumentID: doc.ID, DocumentType: "SOP", Type: audit.EventCreate, Actor: "alice", Version: "0.1"},
		{DocumentID: doc.ID, DocumentType: "SOP", Type: audit.EventRouteReview, Actor: "alice", Version: "0.1", FromStatus: "DRAFT", ToStatus: "IN_REVIEW"},
		{DocumentID: doc.ID, DocumentType: "SOP", Type: audit.EventReview, Actor: "qa", Version: "0.1", Outcome: "RECOMMEND", Comment: "looks good"},
		{DocumentID: doc.ID, DocumentType: "SOP", Type: audit.EventApprove, Actor: "qa", Version: "1.0", Details: `{"from_version":"0.1"}`},
	}
	require.NoError(t, docs.Commit(ctx, document.Change{Document: doc, Events: events}))

	other := newDocument("SOP-002", "SOP")
	require.NoError(t, docs.Commit(ctx, document.Change{
		Document: other,
		Events:   []audit.Event{{DocumentID: other.ID, DocumentType: "SOP", Type: audit.EventCreate, Actor: "bob", Version: "0.1"}},
	}))

	repo := NewAuditRepository(db)

	t.Run("written order", func(t *testing.T) {
		got, err := repo.List(ctx, audit.ListOptions{DocumentID: "SOP-001"})
		require.NoError(t, err)
		require.Len(t, got, 4)
		require.Equal(t, audit.EventCreate, got[0].Type)
		require.Equal(t, audit.EventApprove, got[3].Type)
		require.Equal(t, "DRAFT", got[1].FromStatus)
		require.Equal(t, "IN_REVIEW", got[1].ToStatus)
		require.Equal(t, `{"from_version":"0.1"}`, got[3].Details)
	})

	t.Run("descending", func(t *testing.T) {
		got, err := repo.List(ctx, audit.ListOptions{Descending: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, got, 2)
		require.Equal(t, "SOP-002", got[0].DocumentID)
	})

	t.Run("filters", func(t *testing.T) {
		got, err := repo.List(ctx, audit.ListOptions{
			DocumentID: "SOP-001",
			Types:      []audit.EventType{audit.EventReview, audit.EventReject},
			Version:    "0.1",
		})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "looks good", got[0].Comment)

		got, err = repo.List(ctx, audit.ListOptions{Actor: "bob"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "SOP-002", got[0].DocumentID)
	})
}
