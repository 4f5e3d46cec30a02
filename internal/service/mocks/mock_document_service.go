package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Save(ctx context.Context, in service.SaveDocumentInput) (*model.Document, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) Get(ctx context.Context, id string) (*model.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID string, limit, offset int) (*service.DocumentListResult, error) {
	args := m.Called(ctx, ownerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentListResult), args.Error(1)
}
