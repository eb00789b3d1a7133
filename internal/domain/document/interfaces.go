package document

import (
	"context"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/permission"
	"github.com/rpggio/qms/internal/workflow"
)

// Change is everything one command writes. It is committed atomically.
type Change struct {
	Document *Document
	// ExpectedRevision is the revision the command loaded; zero inserts a new document.
	ExpectedRevision int64
	Review           *ReviewRecord
	Events           []audit.Event
}

// Repository provides persistence for documents and their review records.
type Repository interface {
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, opts ListOptions) ([]Document, error)
	Reviews(ctx context.Context, documentID string) ([]ReviewRecord, error)
	NextSequence(ctx context.Context, idPrefix string) (int, error)
	Commit(ctx context.Context, change Change) error
	Delete(ctx context.Context, id string, expectedRevision int64) error
}

// Authorizer decides whether a user may run a command.
type Authorizer interface {
	Authorize(ctx context.Context, username string, cmd permission.Command, subject permission.Subject) error
}

// HistoryReader reads the audit trail.
type HistoryReader interface {
	History(ctx context.Context, documentID string) ([]audit.Event, error)
	Comments(ctx context.Context, documentID, version string) ([]audit.Event, error)
}

// Recorder observes command outcomes.
type Recorder interface {
	ObserveCommand(command, kind string)
	ObserveTransition(docType string, from, to workflow.Status)
}
