package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/repository"
)

type MockEventRecorder struct {
	mock.Mock
}

func (m *MockEventRecorder) RecordEvent(ctx context.Context, q repository.Querier, eventType, aggregateType, aggregateID string, payload any) (string, error) {
	args := m.Called(ctx, q, eventType, aggregateType, aggregateID, payload)
	return args.String(0), args.Error(1)
}
