package audit

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Service handles audit trail queries.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// History returns the full trail of a document, oldest first.
func (s *Service) History(ctx context.Context, documentID string) ([]Event, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	events, err := s.repo.List(ctx, ListOptions{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	return events, nil
}

// Comments returns review and rejection comments recorded against a version.
func (s *Service) Comments(ctx context.Context, documentID, version string) ([]Event, error) {
	if strings.TrimSpace(documentID) == "" || strings.TrimSpace(version) == "" {
		return nil, ErrInvalidInput
	}
	events, err := s.repo.List(ctx, ListOptions{
		DocumentID: documentID,
		Types:      []EventType{EventReview, EventReject},
		Version:    version,
	})
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}

	comments := make([]Event, 0, len(events))
	for _, e := range events {
		if e.IsComment() {
			comments = append(comments, e)
		}
	}
	return comments, nil
}

// Recent lists events across documents, newest first.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Event, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	opts.Descending = true
	return s.repo.List(ctx, opts)
}
