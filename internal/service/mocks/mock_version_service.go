package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
)

type MockVersionService struct {
	mock.Mock
}

func (m *MockVersionService) CreateVersion(ctx context.Context, documentID, label, createdBy string) (*model.DocumentVersion, error) {
	args := m.Called(ctx, documentID, label, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.DocumentVersion), args.Error(1)
}

func (m *MockVersionService) RestoreVersion(ctx context.Context, documentID string, versionNumber int, restoredBy string) (*model.Document, error) {
	args := m.Called(ctx, documentID, versionNumber, restoredBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockVersionService) CompareVersions(ctx context.Context, documentID string, from, to int) ([]model.DiffEntry, error) {
	args := m.Called(ctx, documentID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.DiffEntry), args.Error(1)
}

func (m *MockVersionService) CleanupOldVersions(ctx context.Context, documentID string, keepCount int) (int, error) {
	args := m.Called(ctx, documentID, keepCount)
	return args.Int(0), args.Error(1)
}

func (m *MockVersionService) ListVersions(ctx context.Context, documentID string) ([]model.VersionSummary, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.VersionSummary), args.Error(1)
}
