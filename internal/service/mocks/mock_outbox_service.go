package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
)

type MockOutboxService struct {
	mock.Mock
}

func (m *MockOutboxService) ListFailedEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxEvent), args.Error(1)
}

func (m *MockOutboxService) RequeueEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
