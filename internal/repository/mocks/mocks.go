package mocks

import (
	"context"

	"github.com/rpggio/qms/internal/domain/audit"
	"github.com/rpggio/qms/internal/domain/document"
	"github.com/stretchr/testify/mock"
)

// DocumentRepository is a mock for document.Repository.
type DocumentRepository struct {
	mock.Mock
}

func (m *DocumentRepository) Get(ctx context.Context, id string) (*document.Document, error) {
	args := m.Called(ctx, id)
	if doc, ok := args.Get(0).(*document.Document); ok {
		return doc, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) List(ctx context.Context, opts document.ListOptions) ([]document.Document, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]document.Document); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) Reviews(ctx context.Context, documentID string) ([]document.ReviewRecord, error) {
	args := m.Called(ctx, documentID)
	if list, ok := args.Get(0).([]document.ReviewRecord); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DocumentRepository) NextSequence(ctx context.Context, idPrefix string) (int, error) {
	args := m.Called(ctx, idPrefix)
	return args.Int(0), args.Error(1)
}

func (m *DocumentRepository) Commit(ctx context.Context, change document.Change) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *DocumentRepository) Delete(ctx context.Context, id string, expectedRevision int64) error {
	args := m.Called(ctx, id, expectedRevision)
	return args.Error(0)
}

// AuditRepository is a mock for audit.Repository.
type AuditRepository struct {
	mock.Mock
}

func (m *AuditRepository) List(ctx context.Context, opts audit.ListOptions) ([]audit.Event, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]audit.Event); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}
