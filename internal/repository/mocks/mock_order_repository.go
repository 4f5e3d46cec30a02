package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/repository"
)

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, q repository.Querier, o *model.Order) (*model.Order, error) {
	args := m.Called(ctx, q, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) LockForUpdate(ctx context.Context, q repository.Querier, id string) (*model.Order, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderRepository) MarkPaid(ctx context.Context, q repository.Querier, id, paymentRef, method string, details map[string]any, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, q, id, paymentRef, method, details, paidAt)
	return args.Bool(0), args.Error(1)
}
