package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"formvault/internal/model"
	repoMocks "formvault/internal/repository/mocks"
)

func TestOutboxService_ListFailedEvents(t *testing.T) {
	ctx := context.Background()
	db, _ := newTxDB(t)

	events := new(repoMocks.MockOutboxRepository)
	events.On("ListFailed", ctx, mock.Anything, 50).
		Return([]model.OutboxEvent{{ID: "evt-1", Status: model.OutboxFailed}}, nil)

	svc := NewOutboxService(db, events)

	failed, err := svc.ListFailedEvents(ctx, 0)

	assert.NoError(t, err)
	assert.Len(t, failed, 1)
	events.AssertExpectations(t)
}

func TestOutboxService_RequeueEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("requeues a failed event", func(t *testing.T) {
		db, _ := newTxDB(t)
		events := new(repoMocks.MockOutboxRepository)
		events.On("Requeue", ctx, mock.Anything, "evt-1").Return(nil)

		svc := NewOutboxService(db, events)
		assert.NoError(t, svc.RequeueEvent(ctx, "evt-1"))
	})

	t.Run("unknown or non-failed event", func(t *testing.T) {
		db, _ := newTxDB(t)
		events := new(repoMocks.MockOutboxRepository)
		events.On("Requeue", ctx, mock.Anything, "evt-1").Return(sql.ErrNoRows)

		svc := NewOutboxService(db, events)
		assert.ErrorIs(t, svc.RequeueEvent(ctx, "evt-1"), ErrEventNotFound)
	})

	t.Run("id required", func(t *testing.T) {
		db, _ := newTxDB(t)
		svc := NewOutboxService(db, new(repoMocks.MockOutboxRepository))
		assert.ErrorIs(t, svc.RequeueEvent(ctx, ""), ErrIDRequired)
	})
}
