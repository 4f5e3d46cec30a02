package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/repository"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, q repository.Querier, doc *model.Document) (*model.Document, error) {
	args := m.Called(ctx, q, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) FindByID(ctx context.Context, q repository.Querier, id string) (*model.Document, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) LockForUpdate(ctx context.Context, q repository.Querier, id string) (*model.Document, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentRepository) UpdateState(ctx context.Context, q repository.Querier, id string, state model.FieldMap, fingerprint string, status model.DocumentStatus, updatedAt time.Time) error {
	args := m.Called(ctx, q, id, state, fingerprint, status, updatedAt)
	return args.Error(0)
}

func (m *MockDocumentRepository) SetExternalRef(ctx context.Context, q repository.Querier, id, externalRef string) error {
	args := m.Called(ctx, q, id, externalRef)
	return args.Error(0)
}

func (m *MockDocumentRepository) ListByOwner(ctx context.Context, q repository.Querier, ownerID string, pq repository.PageQuery) (*repository.PageResult[model.Document], error) {
	args := m.Called(ctx, q, ownerID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Document]), args.Error(1)
}
