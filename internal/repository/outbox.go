package repository

import (
	"context"
	"time"

	"formvault/internal/model"
)

// OutboxRepository defines persistence for outbox events. Record participates
// in the caller's transaction; the claim/mark methods are the relay's
// bookkeeping and run on the pool.
type OutboxRepository interface {
	// Record inserts a pending event. It performs no network I/O and fails
	// only on relational storage errors, which abort the caller's transaction.
	Record(ctx context.Context, q Querier, e *model.OutboxEvent) error

	// ClaimBatch atomically moves up to limit due pending events to
	// processing, incrementing attempts, and returns them ordered by
	// created_at. The claim is a conditional skip-locked update: an event is
	// returned to exactly one caller.
	ClaimBatch(ctx context.Context, q Querier, limit int, now time.Time) ([]model.OutboxEvent, error)

	// MarkProcessed retires a claimed event.
	MarkProcessed(ctx context.Context, q Querier, id string, at time.Time) error

	// MarkFailed parks a claimed event for operator action.
	MarkFailed(ctx context.Context, q Querier, id, lastError string) error

	// Reschedule returns a claimed event to pending with a retry time.
	Reschedule(ctx context.Context, q Querier, id string, nextAttemptAt time.Time, lastError string) error

	// ReleaseStuck returns events claimed before cutoff to pending so a live
	// worker can pick up after a crashed one. Attempts are preserved.
	ReleaseStuck(ctx context.Context, q Querier, cutoff time.Time) (int64, error)

	// ListFailed returns failed events, oldest first, for operator inspection.
	ListFailed(ctx context.Context, q Querier, limit int) ([]model.OutboxEvent, error)

	// Requeue moves a failed event back to pending with a reset attempt count.
	Requeue(ctx context.Context, q Querier, id string) error

	// CountPending reports the current backlog depth.
	CountPending(ctx context.Context, q Querier) (int, error)
}
