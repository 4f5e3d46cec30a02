package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"formvault/internal/model"
	outboxMocks "formvault/internal/outbox/mocks"
	repoMocks "formvault/internal/repository/mocks"
)

func TestOrderService_CreateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a pending order with totals", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		orders := new(repoMocks.MockOrderRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		orders.On("Create", ctx, mock.Anything, mock.MatchedBy(func(o *model.Order) bool {
			return o.Status == model.OrderPending && o.TotalCents == 1500 && len(o.Items) == 2
		})).Return(&model.Order{ID: "order-1", Status: model.OrderPending, TotalCents: 1500}, nil)

		svc := NewOrderService(db, orders, new(repoMocks.MockDocumentRepository), new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), zap.NewNop())

		order, err := svc.CreateOrder(ctx, "owner-1", []OrderItemInput{
			{TemplateID: "tpl-1", Title: "Lease agreement", PriceCents: 1000},
			{TemplateID: "tpl-2", Title: "Invoice", PriceCents: 500},
		})

		assert.NoError(t, err)
		assert.Equal(t, int64(1500), order.TotalCents)
		orders.AssertExpectations(t)
	})

	t.Run("validation", func(t *testing.T) {
		db, _ := newTxDB(t)
		svc := NewOrderService(db, new(repoMocks.MockOrderRepository), new(repoMocks.MockDocumentRepository), new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), zap.NewNop())

		_, err := svc.CreateOrder(ctx, "", []OrderItemInput{{TemplateID: "tpl-1"}})
		assert.ErrorIs(t, err, ErrOwnerRequired)

		_, err = svc.CreateOrder(ctx, "owner-1", nil)
		assert.ErrorIs(t, err, ErrEmptyOrder)

		_, err = svc.CreateOrder(ctx, "owner-1", []OrderItemInput{{Title: "no template"}})
		assert.ErrorIs(t, err, ErrTemplateRequired)
	})
}

func TestOrderService_CompletePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("marks paid, grants documents and records the event", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		orders := new(repoMocks.MockOrderRepository)
		docs := new(repoMocks.MockDocumentRepository)
		versions := new(repoMocks.MockVersionRepository)
		recorder := new(outboxMocks.MockEventRecorder)

		dbMock.ExpectBegin()
		dbMock.ExpectCommit()

		order := &model.Order{
			ID:      "order-1",
			OwnerID: "owner-1",
			Status:  model.OrderPending,
			Items: []model.OrderItem{
				{ID: "item-1", OrderID: "order-1", TemplateID: "tpl-1", Title: "Lease agreement", PriceCents: 1000},
				{ID: "item-2", OrderID: "order-1", TemplateID: "tpl-2", Title: "Invoice", PriceCents: 500},
			},
		}
		details := map[string]any{"provider": "stripe", "card_brand": "visa"}
		orders.On("LockForUpdate", ctx, mock.Anything, "order-1").Return(order, nil)
		orders.On("MarkPaid", ctx, mock.Anything, "order-1", "pay-9", "card", details, mock.AnythingOfType("time.Time")).Return(true, nil)

		docs.On("Create", ctx, mock.Anything, mock.MatchedBy(func(d *model.Document) bool {
			return d.OwnerID == "owner-1" && d.Status == model.StatusDraft
		})).Return(&model.Document{ID: "doc-new", OwnerID: "owner-1", Status: model.StatusDraft, CurrentState: model.FieldMap{}}, nil).Twice()
		versions.On("Insert", ctx, mock.Anything, mock.AnythingOfType("*model.DocumentVersion")).
			Return(&model.DocumentVersion{ID: "v-1", VersionNumber: 1}, nil).Twice()

		recorder.On("RecordEvent", ctx, mock.Anything, model.EventVersionCreated, model.AggregateDocument, mock.Anything, mock.Anything).Return("evt-v", nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventDocumentUpserted, model.AggregateDocument, mock.Anything, mock.Anything).Return("evt-d", nil)
		recorder.On("RecordEvent", ctx, mock.Anything, model.EventOrderCompleted, model.AggregateOrder, "order-1", mock.MatchedBy(func(p model.OrderCompletedPayload) bool {
			return p.OrderID == "order-1" && len(p.Items) == 2 && p.PaymentRef == "pay-9" &&
				p.Details["provider"] == "stripe"
		})).Return("evt-o", nil)

		svc := NewOrderService(db, orders, docs, versions, recorder, zap.NewNop())

		completed, err := svc.CompletePayment(ctx, "order-1", "pay-9", "card", details)

		assert.NoError(t, err)
		assert.Equal(t, model.OrderPaid, completed.Status)
		assert.Equal(t, "pay-9", completed.PaymentRef)
		assert.Equal(t, details, completed.PaymentDetails)
		assert.NotNil(t, completed.PaidAt)
		orders.AssertExpectations(t)
		recorder.AssertExpectations(t)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("already paid order is rejected and rolled back", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		orders := new(repoMocks.MockOrderRepository)
		docs := new(repoMocks.MockDocumentRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()

		orders.On("LockForUpdate", ctx, mock.Anything, "order-1").
			Return(&model.Order{ID: "order-1", Status: model.OrderPaid}, nil)
		orders.On("MarkPaid", ctx, mock.Anything, "order-1", "pay-9", "card", mock.Anything, mock.AnythingOfType("time.Time")).Return(false, nil)

		svc := NewOrderService(db, orders, docs, new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), zap.NewNop())

		_, err := svc.CompletePayment(ctx, "order-1", "pay-9", "card", nil)

		assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
		docs.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		db, dbMock := newTxDB(t)
		orders := new(repoMocks.MockOrderRepository)

		dbMock.ExpectBegin()
		dbMock.ExpectRollback()
		orders.On("LockForUpdate", ctx, mock.Anything, "missing").Return(nil, sql.ErrNoRows)

		svc := NewOrderService(db, orders, new(repoMocks.MockDocumentRepository), new(repoMocks.MockVersionRepository), new(outboxMocks.MockEventRecorder), zap.NewNop())

		_, err := svc.CompletePayment(ctx, "missing", "pay-9", "card", nil)
		assert.ErrorIs(t, err, ErrOrderNotFound)
	})
}
