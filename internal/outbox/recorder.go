// Package outbox implements the transactional outbox: events recorded
// alongside relational mutations and a relay that applies them to the
// external document store with retries.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// EventRecorder records an outbox event inside the caller's transaction.
// Services depend on this interface so relay bookkeeping stays out of their
// reach.
type EventRecorder interface {
	RecordEvent(ctx context.Context, q repository.Querier, eventType, aggregateType, aggregateID string, payload any) (string, error)
}

// Recorder is the EventRecorder backed by the outbox repository.
type Recorder struct {
	events repository.OutboxRepository
}

// NewRecorder creates a Recorder.
func NewRecorder(events repository.OutboxRepository) *Recorder {
	return &Recorder{events: events}
}

var _ EventRecorder = (*Recorder)(nil)

// RecordEvent validates, serializes and inserts a pending event, returning
// its ID. It must be called with the transaction of the mutation it
// describes: a rollback discards both together.
func (r *Recorder) RecordEvent(ctx context.Context, q repository.Querier, eventType, aggregateType, aggregateID string, payload any) (string, error) {
	if eventType == "" {
		return "", errors.New("outbox: event type is required")
	}
	if aggregateType == "" || aggregateID == "" {
		return "", errors.New("outbox: aggregate reference is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("outbox: marshal payload: %w", err)
	}

	now := time.Now().UTC()
	e := &model.OutboxEvent{
		ID:            uuid.New().String(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       raw,
		Status:        model.OutboxPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := r.events.Record(ctx, q, e); err != nil {
		return "", fmt.Errorf("outbox: record event: %w", err)
	}
	return e.ID, nil
}
