package service

import (
	"context"
	"database/sql"
	"errors"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// OutboxService is the operator surface over parked relay events.
type OutboxService interface {
	// ListFailedEvents returns failed events, oldest first.
	ListFailedEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error)

	// RequeueEvent moves a failed event back to pending with a fresh attempt
	// budget. Only failed events can be requeued.
	RequeueEvent(ctx context.Context, id string) error
}

type outboxService struct {
	db     *sql.DB
	events repository.OutboxRepository
}

// NewOutboxService constructs an OutboxService.
func NewOutboxService(db *sql.DB, events repository.OutboxRepository) OutboxService {
	return &outboxService{db: db, events: events}
}

func (s *outboxService) ListFailedEvents(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.events.ListFailed(ctx, s.db, limit)
}

func (s *outboxService) RequeueEvent(ctx context.Context, id string) error {
	if id == "" {
		return ErrIDRequired
	}
	if err := s.events.Requeue(ctx, s.db, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEventNotFound
		}
		return err
	}
	return nil
}
