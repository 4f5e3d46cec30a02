package postgres

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"formvault/internal/model"
	"formvault/internal/repository"
)

// OutboxPostgres is a PostgreSQL implementation of repository.OutboxRepository.
//
// The claim uses a single UPDATE over a FOR UPDATE SKIP LOCKED subquery, so
// concurrent relay workers partition the pending set without blocking each
// other and no event is ever handed to two workers.
type OutboxPostgres struct{}

// NewOutboxPostgres creates a new OutboxPostgres repository.
func NewOutboxPostgres() *OutboxPostgres {
	return &OutboxPostgres{}
}

var _ repository.OutboxRepository = (*OutboxPostgres)(nil)

const outboxColumns = "id, event_type, aggregate_type, aggregate_id, payload, status, attempts, last_error, next_attempt_at, created_at, processed_at"

// Record inserts a pending event inside the caller's transaction.
func (r *OutboxPostgres) Record(ctx context.Context, q repository.Querier, e *model.OutboxEvent) error {
	const query = `
		INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, status, attempts, next_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := q.ExecContext(ctx, query,
		e.ID,
		e.EventType,
		e.AggregateType,
		e.AggregateID,
		[]byte(e.Payload),
		e.Status,
		e.Attempts,
		e.NextAttemptAt,
		e.CreatedAt,
	)
	return err
}

// ClaimBatch claims up to limit due pending events for this worker.
func (r *OutboxPostgres) ClaimBatch(ctx context.Context, q repository.Querier, limit int, now time.Time) ([]model.OutboxEvent, error) {
	// next_attempt_at doubles as the claim timestamp while an event is in
	// processing; ReleaseStuck compares against it.
	const query = `
		UPDATE outbox_events
		SET status = 'processing', attempts = attempts + 1, next_attempt_at = $2
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = 'pending' AND next_attempt_at <= $2
			ORDER BY created_at ASC
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxColumns
	rows, err := q.QueryContext(ctx, query, limit, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events, err := collectOutboxEvents(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not guarantee order; re-sort by created_at so
	// same-aggregate events are applied oldest first within the batch.
	sortEventsByCreatedAt(events)
	return events, nil
}

// MarkProcessed retires a claimed event.
func (r *OutboxPostgres) MarkProcessed(ctx context.Context, q repository.Querier, id string, at time.Time) error {
	const query = `
		UPDATE outbox_events
		SET status = 'processed', processed_at = $2, last_error = ''
		WHERE id = $1 AND status = 'processing'
	`
	return execExpectingRow(ctx, q, query, id, at)
}

// MarkFailed parks a claimed event for operator action.
func (r *OutboxPostgres) MarkFailed(ctx context.Context, q repository.Querier, id, lastError string) error {
	const query = `
		UPDATE outbox_events
		SET status = 'failed', last_error = $2
		WHERE id = $1 AND status = 'processing'
	`
	return execExpectingRow(ctx, q, query, id, lastError)
}

// Reschedule returns a claimed event to pending with a retry time.
func (r *OutboxPostgres) Reschedule(ctx context.Context, q repository.Querier, id string, nextAttemptAt time.Time, lastError string) error {
	const query = `
		UPDATE outbox_events
		SET status = 'pending', next_attempt_at = $2, last_error = $3
		WHERE id = $1 AND status = 'processing'
	`
	return execExpectingRow(ctx, q, query, id, nextAttemptAt, lastError)
}

// ReleaseStuck returns events claimed before cutoff to pending.
func (r *OutboxPostgres) ReleaseStuck(ctx context.Context, q repository.Querier, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE outbox_events
		SET status = 'pending'
		WHERE status = 'processing' AND next_attempt_at <= $1
	`
	res, err := q.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListFailed returns failed events, oldest first.
func (r *OutboxPostgres) ListFailed(ctx context.Context, q repository.Querier, limit int) ([]model.OutboxEvent, error) {
	const query = `
		SELECT ` + outboxColumns + `
		FROM outbox_events
		WHERE status = 'failed'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := q.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectOutboxEvents(rows)
}

// Requeue moves a failed event back to pending with a fresh attempt budget.
func (r *OutboxPostgres) Requeue(ctx context.Context, q repository.Querier, id string) error {
	const query = `
		UPDATE outbox_events
		SET status = 'pending', attempts = 0, last_error = '', next_attempt_at = now()
		WHERE id = $1 AND status = 'failed'
	`
	return execExpectingRow(ctx, q, query, id)
}

// CountPending reports the backlog depth.
func (r *OutboxPostgres) CountPending(ctx context.Context, q repository.Querier) (int, error) {
	const query = `SELECT COUNT(*) FROM outbox_events WHERE status = 'pending'`
	var count int
	if err := q.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func execExpectingRow(ctx context.Context, q repository.Querier, query string, args ...any) error {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func collectOutboxEvents(rows *sql.Rows) ([]model.OutboxEvent, error) {
	events := make([]model.OutboxEvent, 0)
	for rows.Next() {
		var (
			e           model.OutboxEvent
			payload     []byte
			processedAt sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.EventType,
			&e.AggregateType,
			&e.AggregateID,
			&payload,
			&e.Status,
			&e.Attempts,
			&e.LastError,
			&e.NextAttemptAt,
			&e.CreatedAt,
			&processedAt,
		); err != nil {
			return nil, err
		}
		e.Payload = payload
		if processedAt.Valid {
			t := processedAt.Time
			e.ProcessedAt = &t
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func sortEventsByCreatedAt(events []model.OutboxEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
