package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"formvault/internal/database"
	"formvault/internal/model"
	"formvault/internal/outbox"
	"formvault/internal/repository"
)

// OrderItemInput is one purchased template in an order request.
type OrderItemInput struct {
	TemplateID string
	Title      string
	PriceCents int64
}

// OrderService handles the order/payment side of the platform. Payment
// completion is where entitlements materialize: each purchased template
// becomes an editable draft document for the buyer.
type OrderService interface {
	// CreateOrder opens a pending order for the owner.
	CreateOrder(ctx context.Context, ownerID string, items []OrderItemInput) (*model.Order, error)

	// CompletePayment marks the order paid, creates a draft document per
	// purchased template and records the order.completed event, all in one
	// transaction. details is the provider-specific payment metadata, stored
	// on the order and carried in the event payload. Completing an already
	// paid order is rejected.
	CompletePayment(ctx context.Context, orderID, paymentRef, method string, details map[string]any) (*model.Order, error)
}

type orderService struct {
	db        *sql.DB
	orders    repository.OrderRepository
	documents repository.DocumentRepository
	versions  repository.VersionRepository
	recorder  outbox.EventRecorder
	log       *zap.Logger
}

// NewOrderService constructs an OrderService.
func NewOrderService(
	db *sql.DB,
	orders repository.OrderRepository,
	documents repository.DocumentRepository,
	versions repository.VersionRepository,
	recorder outbox.EventRecorder,
	log *zap.Logger,
) OrderService {
	return &orderService{
		db:        db,
		orders:    orders,
		documents: documents,
		versions:  versions,
		recorder:  recorder,
		log:       log,
	}
}

func (s *orderService) CreateOrder(ctx context.Context, ownerID string, items []OrderItemInput) (*model.Order, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}
	for _, item := range items {
		if item.TemplateID == "" {
			return nil, ErrTemplateRequired
		}
	}

	order := &model.Order{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    model.OrderPending,
		CreatedAt: time.Now().UTC(),
	}
	for _, item := range items {
		order.TotalCents += item.PriceCents
		order.Items = append(order.Items, model.OrderItem{
			ID:         uuid.New().String(),
			OrderID:    order.ID,
			TemplateID: item.TemplateID,
			Title:      item.Title,
			PriceCents: item.PriceCents,
		})
	}

	var stored *model.Order
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		stored, err = s.orders.Create(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *orderService) CompletePayment(ctx context.Context, orderID, paymentRef, method string, details map[string]any) (*model.Order, error) {
	if orderID == "" {
		return nil, ErrIDRequired
	}

	var completed *model.Order
	err := database.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		order, err := s.orders.LockForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return err
		}

		paidAt := time.Now().UTC()
		paid, err := s.orders.MarkPaid(ctx, tx, orderID, paymentRef, method, details, paidAt)
		if err != nil {
			return err
		}
		if !paid {
			return ErrOrderAlreadyPaid
		}

		// entitlements: one empty draft document per purchased template
		for _, item := range order.Items {
			if err := s.grantDocument(ctx, tx, order.OwnerID, item.TemplateID); err != nil {
				return err
			}
		}

		payload := model.OrderCompletedPayload{
			OrderID:    order.ID,
			OwnerID:    order.OwnerID,
			PaymentRef: paymentRef,
			Method:     method,
			Details:    details,
			Items:      order.Items,
		}
		if _, err := s.recorder.RecordEvent(ctx, tx, model.EventOrderCompleted, model.AggregateOrder, order.ID, payload); err != nil {
			return err
		}

		order.Status = model.OrderPaid
		order.PaymentRef = paymentRef
		order.PaymentMethod = method
		order.PaymentDetails = details
		order.PaidAt = &paidAt
		completed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("order completed",
		zap.String("order_id", completed.ID),
		zap.String("owner_id", completed.OwnerID),
		zap.Int("documents_granted", len(completed.Items)),
	)
	return completed, nil
}

func (s *orderService) grantDocument(ctx context.Context, tx *sql.Tx, ownerID, templateID string) error {
	now := time.Now().UTC()
	state := model.FieldMap{}
	doc := &model.Document{
		ID:                uuid.New().String(),
		OwnerID:           ownerID,
		TemplateID:        templateID,
		CurrentState:      state,
		SchemaFingerprint: state.Fingerprint(),
		Status:            model.StatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	doc.ExternalRef = doc.ID

	stored, err := s.documents.Create(ctx, tx, doc)
	if err != nil {
		return err
	}
	if err := snapshot(ctx, tx, s.versions, s.recorder, stored, "", model.ChangeAuto, ownerID); err != nil {
		return err
	}
	return recordDocumentUpserted(ctx, tx, s.recorder, stored)
}
