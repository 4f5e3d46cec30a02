package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/repository"
)

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Record(ctx context.Context, q repository.Querier, e *model.OutboxEvent) error {
	args := m.Called(ctx, q, e)
	return args.Error(0)
}

func (m *MockOutboxRepository) ClaimBatch(ctx context.Context, q repository.Querier, limit int, now time.Time) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, q, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, q repository.Querier, id string, at time.Time) error {
	args := m.Called(ctx, q, id, at)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, q repository.Querier, id, lastError string) error {
	args := m.Called(ctx, q, id, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) Reschedule(ctx context.Context, q repository.Querier, id string, nextAttemptAt time.Time, lastError string) error {
	args := m.Called(ctx, q, id, nextAttemptAt, lastError)
	return args.Error(0)
}

func (m *MockOutboxRepository) ReleaseStuck(ctx context.Context, q repository.Querier, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, q, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockOutboxRepository) ListFailed(ctx context.Context, q repository.Querier, limit int) ([]model.OutboxEvent, error) {
	args := m.Called(ctx, q, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) Requeue(ctx context.Context, q repository.Querier, id string) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) CountPending(ctx context.Context, q repository.Querier) (int, error) {
	args := m.Called(ctx, q)
	return args.Int(0), args.Error(1)
}
