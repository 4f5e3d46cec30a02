package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	"formvault/internal/service"
)

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, ownerID string, items []service.OrderItemInput) (*model.Order, error) {
	args := m.Called(ctx, ownerID, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}

func (m *MockOrderService) CompletePayment(ctx context.Context, orderID, paymentRef, method string, details map[string]any) (*model.Order, error) {
	args := m.Called(ctx, orderID, paymentRef, method, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Order), args.Error(1)
}
