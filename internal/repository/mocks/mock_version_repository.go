package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/repository"
)

type MockVersionRepository struct {
	mock.Mock
}

func (m *MockVersionRepository) Insert(ctx context.Context, q repository.Querier, v *model.DocumentVersion) (*model.DocumentVersion, error) {
	args := m.Called(ctx, q, v)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) FindByNumber(ctx context.Context, q repository.Querier, documentID string, versionNumber int) (*model.DocumentVersion, error) {
	args := m.Called(ctx, q, documentID, versionNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) ListByDocument(ctx context.Context, q repository.Querier, documentID string) ([]model.DocumentVersion, error) {
	args := m.Called(ctx, q, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DocumentVersion), args.Error(1)
}

func (m *MockVersionRepository) MaxVersion(ctx context.Context, q repository.Querier, documentID string) (int, error) {
	args := m.Called(ctx, q, documentID)
	return args.Int(0), args.Error(1)
}

func (m *MockVersionRepository) Prune(ctx context.Context, q repository.Querier, documentID string, keepCount int) ([]string, error) {
	args := m.Called(ctx, q, documentID, keepCount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}
